// Package codec provides the stateless (de)serialization and
// compression primitives shared by the compact and shard storage
// backends. Nothing in this package is stateful or tier-aware; it
// only knows how to turn a map of entries into bytes and back.
package codec

import (
	"crypto/md5"
	"fmt"
	"math/big"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Entries is the self-delimiting document shape both backends
// serialize: a mapping from string key to opaque value bytes.
type Entries map[string][]byte

// Serialize encodes entries as a self-delimiting MessagePack document.
func Serialize(entries Entries) ([]byte, error) {
	data, err := msgpack.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("codec: serialize: %w", err)
	}
	return data, nil
}

// Deserialize decodes a document previously produced by Serialize.
// It returns a CorruptRecord-shaped error (via errors.Is against
// ErrMalformed) when the bytes don't decode to a string->bytes map.
func Deserialize(data []byte) (Entries, error) {
	var entries Entries
	if err := msgpack.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return entries, nil
}

// Compress frames data with zstd, the streaming block compressor
// standing in for the LZ4-frame format used by the source this
// engine is modeled on.
func Compress(data []byte) ([]byte, error) {
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: compress: %w", err)
	}
	defer enc.Close()
	return enc.EncodeAll(data, nil), nil
}

// Decompress reverses Compress. A bad frame surfaces as ErrMalformed
// so callers can fold it into CorruptRecord handling.
func Decompress(data []byte) ([]byte, error) {
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("codec: decompress: %w", err)
	}
	defer dec.Close()
	out, err := dec.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return out, nil
}

// Hash returns the 128-bit MD5 digest of the UTF-8 bytes of s. It is
// used only for shard routing and is not security-relevant.
func Hash(s string) [md5.Size]byte {
	return md5.Sum([]byte(s))
}

// ShardIndex reduces a key's MD5 digest modulo n using full-width
// integer arithmetic, matching int(md5_hex(utf8(k)), 16) % n from the
// source this engine is modeled on exactly, so that shard assignment
// is stable across reimplementations and process restarts.
func ShardIndex(key string, n int) int {
	digest := Hash(key)
	z := new(big.Int).SetBytes(digest[:])
	m := big.NewInt(int64(n))
	return int(z.Mod(z, m).Int64())
}

// EncodeRecord serializes and compresses a single-entry mapping into
// the shard record payload (the part after the length prefix).
func EncodeRecord(key string, value []byte) ([]byte, error) {
	raw, err := Serialize(Entries{key: value})
	if err != nil {
		return nil, err
	}
	return Compress(raw)
}

// DecodeRecord reverses EncodeRecord, requiring the result to be a
// single-key mapping as §4.3 mandates.
func DecodeRecord(payload []byte) (string, []byte, error) {
	raw, err := Decompress(payload)
	if err != nil {
		return "", nil, err
	}
	entries, err := Deserialize(raw)
	if err != nil {
		return "", nil, err
	}
	if len(entries) != 1 {
		return "", nil, fmt.Errorf("%w: record holds %d keys, want 1", ErrMalformed, len(entries))
	}
	for k, v := range entries {
		return k, v, nil
	}
	panic("unreachable")
}
