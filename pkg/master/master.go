package master

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nimbusfs/blockauth/pkg/log"
	"github.com/nimbusfs/blockauth/pkg/metrics"
	"github.com/nimbusfs/blockauth/pkg/storage"
	"github.com/nimbusfs/blockauth/pkg/tokenauth"
)

// Config holds the configuration for creating a Master.
type Config struct {
	NodeID            string
	DataDir           string
	NNIndex           int
	KeyUpdateInterval time.Duration
	TokenLifetime     time.Duration
	RotationCheck     time.Duration
}

// Master owns the authoritative key registry for one namenode
// authority and persists it to disk across restarts.
type Master struct {
	nodeID string
	store  *storage.CheckpointStore
	tokens *tokenauth.Manager

	rotationCheck time.Duration
	stopCh        chan struct{}
}

// NewMaster creates a Master, restoring its key registry from the
// last checkpoint in dataDir if one exists.
func NewMaster(cfg Config) (*Master, error) {
	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}

	store, err := storage.NewCheckpointStore(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	if prevIdx, ok, err := store.LoadNNIndex(); err != nil {
		store.Close()
		return nil, fmt.Errorf("load authority index: %w", err)
	} else if ok && prevIdx != cfg.NNIndex {
		store.Close()
		return nil, fmt.Errorf("configured authority index %d does not match persisted index %d", cfg.NNIndex, prevIdx)
	}
	if err := store.SaveNNIndex(cfg.NNIndex); err != nil {
		store.Close()
		return nil, fmt.Errorf("save authority index: %w", err)
	}

	tokens, err := tokenauth.NewManager(tokenauth.Config{
		Role:              tokenauth.RoleMaster,
		NNIndex:           cfg.NNIndex,
		KeyUpdateInterval: cfg.KeyUpdateInterval.Milliseconds(),
		TokenLifetime:     cfg.TokenLifetime.Milliseconds(),
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("create key manager: %w", err)
	}

	if env, err := store.LoadCheckpoint(); err != nil {
		store.Close()
		return nil, fmt.Errorf("load checkpoint: %w", err)
	} else if env != nil {
		if err := tokens.RestoreKeys(env); err != nil {
			store.Close()
			return nil, fmt.Errorf("restore checkpoint: %w", err)
		}
	}

	// Checkpoint right away so keys minted before the first rotation
	// survive a restart.
	if env, err := tokens.Export(); err != nil {
		store.Close()
		return nil, fmt.Errorf("export checkpoint: %w", err)
	} else if err := store.SaveCheckpoint(env); err != nil {
		store.Close()
		return nil, fmt.Errorf("save checkpoint: %w", err)
	}

	nodeID := cfg.NodeID
	if nodeID == "" {
		nodeID = uuid.New().String()
	}

	rotationCheck := cfg.RotationCheck
	if rotationCheck <= 0 {
		rotationCheck = time.Minute
	}

	m := &Master{
		nodeID:        nodeID,
		store:         store,
		tokens:        tokens,
		rotationCheck: rotationCheck,
		stopCh:        make(chan struct{}),
	}

	metrics.RegisterComponent("registry", true, "")
	return m, nil
}

// NodeID returns this master's identity: Config.NodeID, or a random
// UUID when none was configured. It is not attached to log output or
// metrics.
func (m *Master) NodeID() string {
	return m.nodeID
}

// GenerateToken mints a token for userID against block, honoring the
// requested access modes.
func (m *Master) GenerateToken(userID string, block tokenauth.BlockReference, modes []tokenauth.AccessMode) (tokenauth.Token, error) {
	timer := metrics.NewTimer()
	tok, err := m.tokens.GenerateToken(userID, block, modes)
	timer.ObserveDuration(metrics.MintDuration)
	if err != nil {
		return tokenauth.Token{}, err
	}
	metrics.TokensMintedTotal.Inc()
	return tok, nil
}

// CheckAccess verifies a token the way a master itself would, useful
// for masters that also serve as their own first slave.
func (m *Master) CheckAccess(t tokenauth.Token, expectedUser string, block tokenauth.BlockReference, mode tokenauth.AccessMode) error {
	return m.tokens.CheckAccess(t, expectedUser, block, mode)
}

// Export satisfies transport.SnapshotPublisher.
func (m *Master) Export() (*tokenauth.ExportedBlockKeys, error) {
	return m.tokens.Export()
}

// RunRotationLoop checks for and performs due key rotations every
// rotationCheck interval, persisting a checkpoint after each
// successful rotation, until Stop is called.
func (m *Master) RunRotationLoop() {
	ticker := time.NewTicker(m.rotationCheck)
	defer ticker.Stop()

	roleLog := log.WithRole("master")
	last := time.Now()

	for {
		select {
		case now := <-ticker.C:
			elapsed := now.Sub(last)
			rotated, err := m.tokens.RotateIfDue(elapsed.Milliseconds())
			if err != nil {
				roleLog.Error().Err(err).Msg("rotation check failed")
				continue
			}
			if !rotated {
				continue
			}
			last = now

			metrics.RotationsTotal.Inc()
			if env, err := m.tokens.Export(); err == nil {
				metrics.CurrentKeyID.Set(float64(env.CurrentKey.KeyID))
				metrics.RegistrySize.Set(float64(len(env.AllKeys)))
				if err := m.store.SaveCheckpoint(env); err != nil {
					roleLog.Error().Err(err).Msg("checkpoint save failed")
				} else {
					metrics.SnapshotsExportedTotal.Inc()
				}
			}
			roleLog.Info().Msg("rotated keys")
		case <-m.stopCh:
			return
		}
	}
}

// Stop ends the rotation loop and closes the checkpoint store.
func (m *Master) Stop() error {
	close(m.stopCh)
	return m.store.Close()
}
