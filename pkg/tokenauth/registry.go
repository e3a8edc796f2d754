package tokenauth

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// registry holds the live key set plus the current/next handles and
// the serial-number allocator. It is always accessed under the owning
// Manager's mutex; keys themselves are immutable and are never
// mutated in place — rotation and import only replace references.
type registry struct {
	allKeys   map[int32]BlockKey
	currentID int32
	nextID    int32
	hasKeys   bool

	serialNo uint32 // low 31 bits advance; high bit fixed to nnIndex
	nnIndex  uint32 // 0 or 1
}

func newRegistry(nnIndex int) (*registry, error) {
	seed, err := randomSeed()
	if err != nil {
		return nil, err
	}
	return &registry{
		allKeys:  make(map[int32]BlockKey),
		serialNo: seed,
		nnIndex:  uint32(nnIndex) & 1,
	}, nil
}

func randomSeed() (uint32, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, fmt.Errorf("tokenauth: seed serial allocator: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

// nextKeyID allocates the next key_id in this authority's disjoint
// range. Spec §4.2: increment with 32-bit wraparound permitted, mask
// off the high bit, then OR in nnIndex<<31. Working in uint32 and
// converting to int32 only here keeps the wrap-around well-defined
// regardless of host signed-integer representation (resolves spec §9's
// second Open Question).
func (r *registry) nextKeyID() int32 {
	r.serialNo++
	const lowMask = uint32(1)<<31 - 1 // ^(1<<31), low 31 bits
	id := (r.serialNo & lowMask) | (r.nnIndex << 31)
	return int32(id)
}

func (r *registry) get(keyID int32) (BlockKey, bool) {
	k, ok := r.allKeys[keyID]
	return k, ok
}

func (r *registry) currentKey() (BlockKey, bool) {
	if !r.hasKeys {
		return BlockKey{}, false
	}
	k, ok := r.allKeys[r.currentID]
	return k, ok
}

func (r *registry) nextKey() (BlockKey, bool) {
	if !r.hasKeys {
		return BlockKey{}, false
	}
	k, ok := r.allKeys[r.nextID]
	return k, ok
}

// evictExpired drops every key whose expiry has passed (I5). Runs at
// rotation and at snapshot import.
func (r *registry) evictExpired(nowMs int64) {
	for id, k := range r.allKeys {
		if k.ExpiryMs < nowMs {
			delete(r.allKeys, id)
		}
	}
}

// insert adds or overwrites a key by key_id.
func (r *registry) insert(k BlockKey) {
	r.allKeys[k.KeyID] = k
}

// snapshot returns a value-copy list of all live keys, safe to ship
// off without holding the manager's lock afterward.
func (r *registry) snapshot() []BlockKey {
	out := make([]BlockKey, 0, len(r.allKeys))
	for _, k := range r.allKeys {
		out = append(out, k)
	}
	return out
}
