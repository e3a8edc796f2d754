package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/nimbusfs/blockauth/pkg/tokenauth"
	"github.com/stretchr/testify/require"
)

func TestHTTPPublishAndFetch(t *testing.T) {
	master, err := tokenauth.NewManager(tokenauth.Config{Role: tokenauth.RoleMaster})
	require.NoError(t, err)

	pub := NewHTTPPublisher(master)
	srv := httptest.NewServer(pub.Handler())
	defer srv.Close()

	env, err := FetchSnapshot(context.Background(), srv.Client(), srv.URL)
	require.NoError(t, err)
	require.NotNil(t, env)

	want, err := master.Export()
	require.NoError(t, err)
	require.Equal(t, want.CurrentKey.KeyID, env.CurrentKey.KeyID)
	require.Equal(t, want.CurrentKey.Secret, env.CurrentKey.Secret)
}

func TestApplySnapshotUpdatesSlave(t *testing.T) {
	master, err := tokenauth.NewManager(tokenauth.Config{Role: tokenauth.RoleMaster})
	require.NoError(t, err)
	slave, err := tokenauth.NewManager(tokenauth.Config{Role: tokenauth.RoleSlave})
	require.NoError(t, err)

	pub := NewHTTPPublisher(master)
	srv := httptest.NewServer(pub.Handler())
	defer srv.Close()

	require.NoError(t, ApplySnapshot(context.Background(), srv.Client(), srv.URL, slave))

	ref := tokenauth.BlockReference{PoolID: "bp-1", BlockID: 42}
	tok, err := master.GenerateToken("alice", ref, []tokenauth.AccessMode{tokenauth.AccessRead})
	require.NoError(t, err)

	require.NoError(t, slave.CheckAccess(tok, "alice", ref, tokenauth.AccessRead))
}

func TestHandlerRejectsNonGet(t *testing.T) {
	master, err := tokenauth.NewManager(tokenauth.Config{Role: tokenauth.RoleMaster})
	require.NoError(t, err)

	pub := NewHTTPPublisher(master)
	srv := httptest.NewServer(pub.Handler())
	defer srv.Close()

	resp, err := srv.Client().Post(srv.URL, "application/octet-stream", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
