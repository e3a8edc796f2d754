package tokenauth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// The wire layout (spec §6), in order:
//
//	expiry_ms     zig-zag varint64
//	key_id        zig-zag varint32
//	user_id       length-prefixed UTF-8
//	block_pool_id length-prefixed UTF-8
//	block_id      zig-zag varint64
//	access_modes  length-prefixed sequence of length-prefixed UTF-8
//
// This is the core's own concern per spec §1 (not a pluggable
// serialization framework): masters and slaves built independently
// must agree on these exact bytes.

// EncodeIdentifier serializes id deterministically.
func EncodeIdentifier(id *TokenIdentifier) []byte {
	var buf bytes.Buffer
	putVarint64(&buf, id.ExpiryMillis)
	putVarint32(&buf, id.KeyID)
	putString(&buf, id.UserID)
	putString(&buf, id.BlockPoolID)
	putVarint64(&buf, id.BlockID)

	putUvarint(&buf, uint64(len(id.AccessModes)))
	for _, m := range id.AccessModes {
		putString(&buf, string(m))
	}
	return buf.Bytes()
}

// DecodeIdentifier parses the bytes written by EncodeIdentifier.
func DecodeIdentifier(data []byte) (*TokenIdentifier, error) {
	r := bytes.NewReader(data)
	id := &TokenIdentifier{}

	expiry, err := getVarint64(r)
	if err != nil {
		return nil, fmt.Errorf("expiry_ms: %w", err)
	}
	id.ExpiryMillis = expiry

	keyID, err := getVarint32(r)
	if err != nil {
		return nil, fmt.Errorf("key_id: %w", err)
	}
	id.KeyID = keyID

	id.UserID, err = getString(r)
	if err != nil {
		return nil, fmt.Errorf("user_id: %w", err)
	}

	id.BlockPoolID, err = getString(r)
	if err != nil {
		return nil, fmt.Errorf("block_pool_id: %w", err)
	}

	id.BlockID, err = getVarint64(r)
	if err != nil {
		return nil, fmt.Errorf("block_id: %w", err)
	}

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("access_modes length: %w", err)
	}
	if n > 64 {
		return nil, fmt.Errorf("access_modes length %d exceeds sane bound", n)
	}
	modes := make([]AccessMode, 0, n)
	for i := uint64(0); i < n; i++ {
		s, err := getString(r)
		if err != nil {
			return nil, fmt.Errorf("access_modes[%d]: %w", i, err)
		}
		modes = append(modes, AccessMode(s))
	}
	id.AccessModes = modes

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after identifier", r.Len())
	}
	return id, nil
}

// PeekExpiry decodes only the first field of an encoded identifier,
// the shortcut spec §6 calls out for a quick is-expired probe.
func PeekExpiry(data []byte) (int64, error) {
	r := bytes.NewReader(data)
	return getVarint64(r)
}

func putUvarint(buf *bytes.Buffer, v uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], v)
	buf.Write(tmp[:n])
}

func putVarint64(buf *bytes.Buffer, v int64) {
	putUvarint(buf, zigzag64(v))
}

func putVarint32(buf *bytes.Buffer, v int32) {
	putUvarint(buf, uint64(zigzag32(v)))
}

func putString(buf *bytes.Buffer, s string) {
	putUvarint(buf, uint64(len(s)))
	buf.WriteString(s)
}

func getVarint64(r *bytes.Reader) (int64, error) {
	u, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return unzigzag64(u), nil
}

func getVarint32(r *bytes.Reader) (int32, error) {
	u, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, err
	}
	return unzigzag32(uint32(u)), nil
}

func getString(r *bytes.Reader) (string, error) {
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return "", err
	}
	if n > 1<<20 {
		return "", fmt.Errorf("string length %d exceeds sane bound", n)
	}
	out := make([]byte, n)
	if n > 0 {
		read, err := io.ReadFull(r, out)
		if err != nil {
			return "", err
		}
		if uint64(read) != n {
			return "", fmt.Errorf("short read: got %d of %d bytes", read, n)
		}
	}
	return string(out), nil
}

func zigzag64(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

func unzigzag64(u uint64) int64 {
	return int64(u>>1) ^ -int64(u&1)
}

func zigzag32(v int32) uint32 {
	return uint32((v << 1) ^ (v >> 31))
}

func unzigzag32(u uint32) int32 {
	return int32(u>>1) ^ -int32(u&1)
}
