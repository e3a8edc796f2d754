package tokenauth

import (
	"crypto/rand"
	"fmt"
)

// macSecretSize is the native key size of the reference MAC primitive,
// HMAC-SHA1 (20-byte secret, 20-byte tag).
const macSecretSize = 20

// BlockKey is an immutable (key_id, expiry, secret) triple.
type BlockKey struct {
	KeyID    int32
	ExpiryMs int64
	Secret   []byte
}

// generateSecret draws a fresh, cryptographically strong secret sized
// for the MAC primitive.
func generateSecret() ([]byte, error) {
	secret := make([]byte, macSecretSize)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("tokenauth: generate secret: %w", err)
	}
	return secret, nil
}

func newBlockKey(keyID int32, expiryMs int64) (BlockKey, error) {
	secret, err := generateSecret()
	if err != nil {
		return BlockKey{}, err
	}
	return BlockKey{KeyID: keyID, ExpiryMs: expiryMs, Secret: secret}, nil
}
