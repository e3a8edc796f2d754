package storage

import (
	"encoding/binary"
	"fmt"
	"path/filepath"

	"github.com/nimbusfs/blockauth/pkg/tokenauth"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketCheckpoint = []byte("checkpoint")
	bucketMeta       = []byte("meta")

	keyEnvelope = []byte("envelope")
	keyNNIndex  = []byte("nn_index")
)

// CheckpointStore persists a master's key registry snapshot to disk so a
// restart does not hand out tokens slaves can't verify and does not forget
// which keys are still owed a grace period. It is the only piece of state
// a master needs to survive a restart without slaves re-importing keys out
// of band.
type CheckpointStore struct {
	db *bolt.DB
}

// NewCheckpointStore opens (creating if necessary) a BoltDB file under
// dataDir holding the registry checkpoint and master metadata.
func NewCheckpointStore(dataDir string) (*CheckpointStore, error) {
	dbPath := filepath.Join(dataDir, "blockauth.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("open checkpoint db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(bucketCheckpoint); err != nil {
			return fmt.Errorf("create checkpoint bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists(bucketMeta); err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &CheckpointStore{db: db}, nil
}

// Close closes the underlying database file.
func (s *CheckpointStore) Close() error {
	return s.db.Close()
}

// SaveCheckpoint persists the current exported key registry. It overwrites
// whatever checkpoint was there before; a master keeps only the latest.
func (s *CheckpointStore) SaveCheckpoint(env *tokenauth.ExportedBlockKeys) error {
	data := tokenauth.EncodeEnvelope(env)
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketCheckpoint).Put(keyEnvelope, data)
	})
}

// LoadCheckpoint returns the last saved envelope, or (nil, nil) if no
// checkpoint has ever been written.
func (s *CheckpointStore) LoadCheckpoint() (*tokenauth.ExportedBlockKeys, error) {
	var data []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketCheckpoint).Get(keyEnvelope)
		if v == nil {
			return nil
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	env, err := tokenauth.DecodeEnvelope(data)
	if err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	return env, nil
}

// SaveNNIndex records which multi-authority index this master was
// configured with, so a restart can refuse to start with a different
// index and accidentally mint key IDs that collide with another master.
func (s *CheckpointStore) SaveNNIndex(idx int) error {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint32(buf, uint32(idx))
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keyNNIndex, buf)
	})
}

// LoadNNIndex returns the previously saved authority index. ok is false if
// none has been saved yet.
func (s *CheckpointStore) LoadNNIndex() (idx int, ok bool, err error) {
	err = s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketMeta).Get(keyNNIndex)
		if v == nil || len(v) != 4 {
			return nil
		}
		idx = int(binary.BigEndian.Uint32(v))
		ok = true
		return nil
	})
	return idx, ok, err
}
