package master

import (
	"testing"
	"time"

	"github.com/nimbusfs/blockauth/pkg/tokenauth"
	"github.com/stretchr/testify/require"
)

func TestNewMasterGeneratesNodeID(t *testing.T) {
	m, err := NewMaster(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer m.Stop()

	require.NotEmpty(t, m.NodeID())
}

func TestMasterMintAndCheckAccess(t *testing.T) {
	m, err := NewMaster(Config{DataDir: t.TempDir()})
	require.NoError(t, err)
	defer m.Stop()

	ref := tokenauth.BlockReference{PoolID: "bp-1", BlockID: 7}
	tok, err := m.GenerateToken("alice", ref, []tokenauth.AccessMode{tokenauth.AccessRead, tokenauth.AccessWrite})
	require.NoError(t, err)

	require.NoError(t, m.CheckAccess(tok, "alice", ref, tokenauth.AccessRead))
	require.Error(t, m.CheckAccess(tok, "bob", ref, tokenauth.AccessRead))
}

func TestMasterRestoresCheckpointAcrossRestart(t *testing.T) {
	dir := t.TempDir()

	m1, err := NewMaster(Config{DataDir: dir, NodeID: "node-a"})
	require.NoError(t, err)

	ref := tokenauth.BlockReference{PoolID: "bp-1", BlockID: 1}
	tok, err := m1.GenerateToken("alice", ref, []tokenauth.AccessMode{tokenauth.AccessRead})
	require.NoError(t, err)
	require.NoError(t, m1.Stop())

	m2, err := NewMaster(Config{DataDir: dir, NodeID: "node-a"})
	require.NoError(t, err)
	defer m2.Stop()

	require.NoError(t, m2.CheckAccess(tok, "alice", ref, tokenauth.AccessRead))
}

func TestMasterRejectsMismatchedAuthorityIndex(t *testing.T) {
	dir := t.TempDir()

	m1, err := NewMaster(Config{DataDir: dir, NNIndex: 0})
	require.NoError(t, err)
	require.NoError(t, m1.Stop())

	_, err = NewMaster(Config{DataDir: dir, NNIndex: 1})
	require.Error(t, err)
}

func TestRotationPersistsCheckpoint(t *testing.T) {
	dir := t.TempDir()

	m, err := NewMaster(Config{
		DataDir:           dir,
		KeyUpdateInterval: 10 * time.Millisecond,
		TokenLifetime:     5 * time.Millisecond,
	})
	require.NoError(t, err)
	defer m.Stop()

	rotated, err := m.tokens.RotateIfDue(20)
	require.NoError(t, err)
	require.True(t, rotated)

	env, err := m.Export()
	require.NoError(t, err)
	require.NoError(t, m.store.SaveCheckpoint(env))

	loaded, err := m.store.LoadCheckpoint()
	require.NoError(t, err)
	require.Equal(t, env.CurrentKey.KeyID, loaded.CurrentKey.KeyID)
}

func TestRunRotationLoopStopsCleanly(t *testing.T) {
	m, err := NewMaster(Config{
		DataDir:       t.TempDir(),
		RotationCheck: 5 * time.Millisecond,
	})
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		m.RunRotationLoop()
		close(done)
	}()

	time.Sleep(15 * time.Millisecond)
	require.NoError(t, m.Stop())

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("RunRotationLoop did not stop")
	}
}
