package slave

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nimbusfs/blockauth/pkg/log"
	"github.com/nimbusfs/blockauth/pkg/metrics"
	"github.com/nimbusfs/blockauth/pkg/tokenauth"
	"github.com/nimbusfs/blockauth/pkg/transport"
)

// Config holds the configuration for creating a Slave.
type Config struct {
	MasterURL    string
	PollInterval time.Duration
	NNIndex      int
	HTTPClient   *http.Client
}

// Slave holds a locally verifiable copy of a master's key registry.
type Slave struct {
	tokens       *tokenauth.Manager
	masterURL    string
	pollInterval time.Duration
	client       *http.Client
	stopCh       chan struct{}
}

// NewSlave creates a Slave with an empty registry; it has no usable
// keys until the first successful Refresh.
func NewSlave(cfg Config) (*Slave, error) {
	tokens, err := tokenauth.NewManager(tokenauth.Config{
		Role:    tokenauth.RoleSlave,
		NNIndex: cfg.NNIndex,
	})
	if err != nil {
		return nil, fmt.Errorf("create key manager: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	pollInterval := cfg.PollInterval
	if pollInterval <= 0 {
		pollInterval = time.Minute
	}

	metrics.RegisterComponent("registry", false, "waiting for first snapshot")

	return &Slave{
		tokens:       tokens,
		masterURL:    cfg.MasterURL,
		pollInterval: pollInterval,
		client:       client,
		stopCh:       make(chan struct{}),
	}, nil
}

// CheckAccess verifies a token entirely from the locally held
// registry; it never contacts the master.
func (s *Slave) CheckAccess(t tokenauth.Token, expectedUser string, block tokenauth.BlockReference, mode tokenauth.AccessMode) error {
	timer := metrics.NewTimer()
	err := s.tokens.CheckAccess(t, expectedUser, block, mode)
	timer.ObserveDuration(metrics.VerifyDuration)
	if err != nil {
		metrics.VerificationsTotal.WithLabelValues("rejected").Inc()
		return err
	}
	metrics.VerificationsTotal.WithLabelValues("accepted").Inc()
	return nil
}

// Import satisfies transport.SnapshotReceiver.
func (s *Slave) Import(env *tokenauth.ExportedBlockKeys) error {
	return s.tokens.Import(env)
}

// Refresh pulls and applies the current snapshot from the master once.
func (s *Slave) Refresh(ctx context.Context) error {
	err := transport.ApplySnapshot(ctx, s.client, s.masterURL, s)
	if err != nil {
		metrics.SnapshotsImportedTotal.WithLabelValues("failed").Inc()
		return err
	}
	metrics.SnapshotsImportedTotal.WithLabelValues("succeeded").Inc()
	metrics.RegisterComponent("registry", true, "")
	return nil
}

// RunRefreshLoop polls the master for a fresh snapshot every
// pollInterval until Stop is called. Failures are logged and do not
// stop the loop: a slave keeps verifying with its last known-good
// registry until it can refresh again.
func (s *Slave) RunRefreshLoop(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	roleLog := log.WithRole("slave")

	for {
		select {
		case <-ticker.C:
			if err := s.Refresh(ctx); err != nil {
				roleLog.Warn().Err(err).Msg("snapshot refresh failed")
			}
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Stop ends the refresh loop.
func (s *Slave) Stop() {
	close(s.stopCh)
}
