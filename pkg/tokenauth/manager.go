package tokenauth

import (
	"sync"
	"sync/atomic"
)

// Role fixes what a Manager is allowed to do. It is set at
// construction and never changes.
type Role int

const (
	RoleMaster Role = iota
	RoleSlave
)

// defaultKeyUpdateInterval and defaultTokenLifetime are the
// implementer-chosen sensible defaults from spec §6.
const (
	defaultKeyUpdateInterval = 10 * 60 * 60 * 1000 // 10h, ms
	defaultTokenLifetime     = 10 * 60 * 60 * 1000 // 10h, ms
)

// Manager is the Block Access Token Manager: it composes a clock, a
// key registry, and the mint/verify/rotate/export/import operations
// of spec §4 behind a single mutex (spec §5). token_lifetime is the
// one field read without the lock, per spec §5's volatile-semantics
// carve-out.
type Manager struct {
	role  Role
	clock Clock

	mu  sync.Mutex
	reg *registry

	keyUpdateIntervalMs int64
	tokenLifetimeMs     atomic.Int64
}

// Config configures a new Manager.
type Config struct {
	Role              Role
	Clock             Clock // nil uses SystemClock
	KeyUpdateInterval int64 // ms, 0 uses the default
	TokenLifetime     int64 // ms, 0 uses the default
	NNIndex           int   // 0 or 1; master only, ignored for slaves
}

// NewManager constructs a Manager in the given role. A master
// generates its initial (current, next) key pair immediately (I1); a
// slave starts with an empty registry until its first successful
// Import.
func NewManager(cfg Config) (*Manager, error) {
	clock := cfg.Clock
	if clock == nil {
		clock = SystemClock{}
	}
	keyUpdateInterval := cfg.KeyUpdateInterval
	if keyUpdateInterval == 0 {
		keyUpdateInterval = defaultKeyUpdateInterval
	}
	tokenLifetime := cfg.TokenLifetime
	if tokenLifetime == 0 {
		tokenLifetime = defaultTokenLifetime
	}

	reg, err := newRegistry(cfg.NNIndex)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		role:                cfg.Role,
		clock:               clock,
		reg:                 reg,
		keyUpdateIntervalMs: keyUpdateInterval,
	}
	m.tokenLifetimeMs.Store(tokenLifetime)

	if cfg.Role == RoleMaster {
		if err := m.initializeKeys(); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// initializeKeys generates the first (current, next) pair honoring I3/I4.
func (m *Manager) initializeKeys() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.NowMillis()
	interval := m.keyUpdateIntervalMs
	lifetime := m.tokenLifetimeMs.Load()

	currentID := m.reg.nextKeyID()
	current, err := newBlockKey(currentID, now+interval+lifetime)
	if err != nil {
		return err
	}
	m.reg.insert(current)
	m.reg.currentID = currentID

	nextID := m.reg.nextKeyID()
	next, err := newBlockKey(nextID, current.ExpiryMs+interval)
	if err != nil {
		return err
	}
	m.reg.insert(next)
	m.reg.nextID = nextID
	m.reg.hasKeys = true

	return nil
}

// Role reports this manager's fixed role.
func (m *Manager) Role() Role { return m.role }

// SetTokenLifetime updates the token lifetime without taking the
// registry lock (spec §5): readers tolerate a stale value for at most
// one mint.
func (m *Manager) SetTokenLifetime(ms int64) {
	m.tokenLifetimeMs.Store(ms)
}

func (m *Manager) requireRole(want Role) error {
	if m.role != want {
		return newErr(ErrRoleViolation, "operation requires role "+roleName(want)+", have "+roleName(m.role))
	}
	return nil
}

func roleName(r Role) string {
	if r == RoleMaster {
		return "master"
	}
	return "slave"
}

// GenerateToken mints a token for userID's access to block under the
// given modes (spec §4.3). userID may be empty. modes must be
// non-empty.
func (m *Manager) GenerateToken(userID string, block BlockReference, modes []AccessMode) (Token, error) {
	if err := m.requireRole(RoleMaster); err != nil {
		return Token{}, err
	}

	m.mu.Lock()
	key, ok := m.reg.currentKey()
	m.mu.Unlock()
	if !ok {
		return Token{}, newErr(ErrNotInitialized, "no current key")
	}

	now := m.clock.NowMillis()
	id := &TokenIdentifier{
		ExpiryMillis: now + m.tokenLifetimeMs.Load(),
		KeyID:        key.KeyID,
		UserID:       userID,
		BlockPoolID:  block.PoolID,
		BlockID:      block.BlockID,
		AccessModes:  append([]AccessMode(nil), modes...),
	}
	idBytes := EncodeIdentifier(id)
	password := computeMAC(key.Secret, idBytes)

	return Token{
		Identifier: idBytes,
		Password:   password,
		Kind:       HDFSBlockTokenKind,
		Service:    "",
	}, nil
}

// CheckAccess verifies t grants mode on block to expectedUser (spec
// §4.4). expectedUser is ignored when empty, matching the "null"
// sentinel in the reference contract.
func (m *Manager) CheckAccess(t Token, expectedUser string, block BlockReference, mode AccessMode) error {
	id, err := DecodeIdentifier(t.Identifier)
	if err != nil {
		return newErr(ErrMalformed, err.Error())
	}

	if err := m.checkAccessIdentifier(id, expectedUser, block, mode); err != nil {
		return err
	}

	m.mu.Lock()
	key, ok := m.reg.get(id.KeyID)
	m.mu.Unlock()
	if !ok {
		return newErr(ErrUnknownKey, "key_id not present")
	}

	want := computeMAC(key.Secret, t.Identifier)
	if !macEqual(want, t.Password) {
		return newErr(ErrBadMAC, "password does not match recomputed MAC")
	}
	return nil
}

// CheckAccessIdentifier performs only the structural checks of spec
// §4.4, for callers whose transport has already verified the MAC.
func (m *Manager) CheckAccessIdentifier(id *TokenIdentifier, expectedUser string, block BlockReference, mode AccessMode) error {
	return m.checkAccessIdentifier(id, expectedUser, block, mode)
}

func (m *Manager) checkAccessIdentifier(id *TokenIdentifier, expectedUser string, block BlockReference, mode AccessMode) error {
	if expectedUser != "" && expectedUser != id.UserID {
		return newErr(ErrUserMismatch, "expected user "+expectedUser+", token has "+id.UserID)
	}
	if id.BlockPoolID != block.PoolID {
		return newErr(ErrBlockMismatch, "pool id mismatch")
	}
	if id.BlockID != block.BlockID {
		return newErr(ErrBlockMismatch, "block id mismatch")
	}
	if m.clock.NowMillis() > id.ExpiryMillis {
		return newErr(ErrExpired, "token expired")
	}
	if !id.hasMode(mode) {
		return newErr(ErrAccessModeDenied, "mode "+string(mode)+" not granted")
	}
	return nil
}

// RotateIfDue runs UpdateKeys only if elapsed exceeds the configured
// key_update_interval. elapsed must be the time elapsed since the
// last rotation, not an absolute timestamp (spec §9's first
// Open Question, resolved by this parameter name).
func (m *Manager) RotateIfDue(elapsedMs int64) (bool, error) {
	m.mu.Lock()
	interval := m.keyUpdateIntervalMs
	m.mu.Unlock()
	if elapsedMs <= interval {
		return false, nil
	}
	return true, m.UpdateKeys()
}

// UpdateKeys rotates the registry (spec §4.5): evicts expired keys,
// retires current with a final quiescence-margin expiry, promotes
// next to current, and generates a fresh next key.
func (m *Manager) UpdateKeys() error {
	if err := m.requireRole(RoleMaster); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.clock.NowMillis()
	interval := m.keyUpdateIntervalMs
	lifetime := m.tokenLifetimeMs.Load()

	m.reg.evictExpired(now)

	outgoing, ok := m.reg.currentKey()
	if ok {
		outgoing.ExpiryMs = now + interval + lifetime
		m.reg.insert(outgoing)
	}

	incoming, ok := m.reg.nextKey()
	if !ok {
		return newErr(ErrNotInitialized, "no next key to promote")
	}
	incoming.ExpiryMs = now + 2*interval + lifetime
	m.reg.insert(incoming)
	m.reg.currentID = incoming.KeyID

	freshID := m.reg.nextKeyID()
	fresh, err := newBlockKey(freshID, now+3*interval+lifetime)
	if err != nil {
		return err
	}
	m.reg.insert(fresh)
	m.reg.nextID = freshID

	return nil
}

// Export produces a value-copy snapshot safe to ship over any
// transport without holding the registry lock (spec §4.6).
func (m *Manager) Export() (*ExportedBlockKeys, error) {
	if err := m.requireRole(RoleMaster); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.reg.currentKey()
	if !ok {
		return nil, newErr(ErrNotInitialized, "no current key")
	}

	return &ExportedBlockKeys{
		IsEnabled:         true,
		KeyUpdateInterval: m.keyUpdateIntervalMs,
		TokenLifetime:     m.tokenLifetimeMs.Load(),
		CurrentKey:        current,
		AllKeys:           m.reg.snapshot(),
	}, nil
}

// Import ingests a published snapshot (spec §4.6). It is a no-op on a
// master and rejects a nil envelope; otherwise the master's view
// always wins, with no attempt at reconciliation.
func (m *Manager) Import(env *ExportedBlockKeys) error {
	if m.role == RoleMaster {
		return nil
	}
	if env == nil {
		return newErr(ErrMalformed, "nil envelope")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyEnvelope(env)
	return nil
}

// RestoreKeys reloads a master's own previously checkpointed registry
// after a restart. It is the master-side counterpart to Import: Import
// is how a slave adopts a foreign authority's keys, RestoreKeys is how
// a master recovers its own, so it is rejected on a slave rather than
// silently no-op'd.
func (m *Manager) RestoreKeys(env *ExportedBlockKeys) error {
	if err := m.requireRole(RoleMaster); err != nil {
		return err
	}
	if env == nil {
		return newErr(ErrMalformed, "nil envelope")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.applyEnvelope(env)
	return nil
}

// applyEnvelope loads env into the registry. Caller must hold m.mu.
func (m *Manager) applyEnvelope(env *ExportedBlockKeys) {
	now := m.clock.NowMillis()
	m.reg.evictExpired(now)

	m.reg.insert(env.CurrentKey)
	m.reg.currentID = env.CurrentKey.KeyID

	for _, k := range env.AllKeys {
		m.reg.insert(k)
	}
	m.reg.hasKeys = true
	m.keyUpdateIntervalMs = env.KeyUpdateInterval
	m.tokenLifetimeMs.Store(env.TokenLifetime)
}
