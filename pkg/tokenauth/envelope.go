package tokenauth

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// readExact reads exactly n bytes from r, or returns an error
// describing the short read. bytes.Reader.Read alone would silently
// return fewer bytes than requested without error when the buffer is
// truncated, so length-prefixed fields always go through this.
func readExact(r *bytes.Reader, n uint64, field string) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	out := make([]byte, n)
	read, err := io.ReadFull(r, out)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if uint64(read) != n {
		return nil, fmt.Errorf("%s: short read: got %d of %d bytes", field, read, n)
	}
	return out, nil
}

// ExportedBlockKeys is the value-copy snapshot a master publishes and
// a slave imports (spec §4.6). It carries secrets in cleartext,
// relying on the transport for confidentiality (spec §9).
type ExportedBlockKeys struct {
	IsEnabled         bool
	KeyUpdateInterval int64 // ms
	TokenLifetime     int64 // ms
	CurrentKey        BlockKey
	AllKeys           []BlockKey
}

// EncodeBlockKey serializes a BlockKey as (key_id varint32, expiry_ms
// varint64, secret length-prefixed bytes).
func EncodeBlockKey(k BlockKey) []byte {
	var buf bytes.Buffer
	putVarint32(&buf, k.KeyID)
	putVarint64(&buf, k.ExpiryMs)
	putUvarint(&buf, uint64(len(k.Secret)))
	buf.Write(k.Secret)
	return buf.Bytes()
}

// DecodeBlockKey parses the bytes written by EncodeBlockKey.
func DecodeBlockKey(data []byte) (BlockKey, error) {
	r := bytes.NewReader(data)
	keyID, err := getVarint32(r)
	if err != nil {
		return BlockKey{}, fmt.Errorf("key_id: %w", err)
	}
	expiry, err := getVarint64(r)
	if err != nil {
		return BlockKey{}, fmt.Errorf("expiry_ms: %w", err)
	}
	n, err := binary.ReadUvarint(r)
	if err != nil {
		return BlockKey{}, fmt.Errorf("secret length: %w", err)
	}
	secret, err := readExact(r, n, "secret")
	if err != nil {
		return BlockKey{}, err
	}
	if r.Len() != 0 {
		return BlockKey{}, fmt.Errorf("%d trailing bytes after block key", r.Len())
	}
	return BlockKey{KeyID: keyID, ExpiryMs: expiry, Secret: secret}, nil
}

// EncodeEnvelope serializes an ExportedBlockKeys snapshot.
func EncodeEnvelope(e *ExportedBlockKeys) []byte {
	var buf bytes.Buffer
	if e.IsEnabled {
		buf.WriteByte(1)
	} else {
		buf.WriteByte(0)
	}
	putVarint64(&buf, e.KeyUpdateInterval)
	putVarint64(&buf, e.TokenLifetime)

	ck := EncodeBlockKey(e.CurrentKey)
	putUvarint(&buf, uint64(len(ck)))
	buf.Write(ck)

	putUvarint(&buf, uint64(len(e.AllKeys)))
	for _, k := range e.AllKeys {
		kb := EncodeBlockKey(k)
		putUvarint(&buf, uint64(len(kb)))
		buf.Write(kb)
	}
	return buf.Bytes()
}

// DecodeEnvelope parses the bytes written by EncodeEnvelope.
func DecodeEnvelope(data []byte) (*ExportedBlockKeys, error) {
	r := bytes.NewReader(data)

	enabledByte, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("is_enabled: %w", err)
	}

	interval, err := getVarint64(r)
	if err != nil {
		return nil, fmt.Errorf("key_update_interval: %w", err)
	}
	lifetime, err := getVarint64(r)
	if err != nil {
		return nil, fmt.Errorf("token_lifetime: %w", err)
	}

	ckLen, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("current_key length: %w", err)
	}
	ckBytes, err := readExact(r, ckLen, "current_key")
	if err != nil {
		return nil, err
	}
	currentKey, err := DecodeBlockKey(ckBytes)
	if err != nil {
		return nil, fmt.Errorf("current_key: %w", err)
	}

	n, err := binary.ReadUvarint(r)
	if err != nil {
		return nil, fmt.Errorf("all_keys length: %w", err)
	}
	if n > 1<<16 {
		return nil, fmt.Errorf("all_keys length %d exceeds sane bound", n)
	}
	allKeys := make([]BlockKey, 0, n)
	for i := uint64(0); i < n; i++ {
		kLen, err := binary.ReadUvarint(r)
		if err != nil {
			return nil, fmt.Errorf("all_keys[%d] length: %w", i, err)
		}
		kBytes, err := readExact(r, kLen, fmt.Sprintf("all_keys[%d]", i))
		if err != nil {
			return nil, err
		}
		k, err := DecodeBlockKey(kBytes)
		if err != nil {
			return nil, fmt.Errorf("all_keys[%d]: %w", i, err)
		}
		allKeys = append(allKeys, k)
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("%d trailing bytes after envelope", r.Len())
	}

	return &ExportedBlockKeys{
		IsEnabled:         enabledByte == 1,
		KeyUpdateInterval: interval,
		TokenLifetime:     lifetime,
		CurrentKey:        currentKey,
		AllKeys:           allKeys,
	}, nil
}
