package tokenauth

import (
	"crypto/hmac"
	"crypto/sha1" //nolint:gosec // reference choice: binary compatibility with deployed clients (spec §2.3)
	"crypto/subtle"
)

// computeMAC returns mac(secret, data) using the reference HMAC-SHA1
// primitive (20-byte secret, 20-byte tag).
func computeMAC(secret, data []byte) []byte {
	h := hmac.New(sha1.New, secret)
	h.Write(data)
	return h.Sum(nil)
}

// macEqual compares two MAC tags in constant time. Never use plain
// byte-slice equality on a MAC tag.
func macEqual(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}
