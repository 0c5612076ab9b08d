// Package shardstore implements the append-only, sharded tier of the
// storage engine: N independent files of length-prefixed compressed
// single-entry records, designed for large values and append-heavy
// writes.
package shardstore

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/skshohagmiah/kvtiered/internal/codec"
)

const lengthPrefixSize = 4 // u32 little-endian

var (
	// ErrKeyNotFound is returned by Get for a key with no live record.
	ErrKeyNotFound = errors.New("shardstore: key not found")
)

// CorruptRecordError marks a shard file that contains a truncated
// length prefix, a truncated payload, or a payload that fails to
// decompress/deserialize into a single-key mapping.
type CorruptRecordError struct {
	Shard  int
	Offset int64
	Err    error
}

func (e *CorruptRecordError) Error() string {
	return fmt.Sprintf("shardstore: corrupt record in shard %d at offset %d: %v", e.Shard, e.Offset, e.Err)
}

func (e *CorruptRecordError) Unwrap() error { return e.Err }

// Store is the sharded append-log tier. Shard assignment is fixed for
// the life of the database: Count does not change after New returns.
type Store struct {
	prefix string
	count  int
}

// New constructs a Store over count shard files named
// "<prefix>_shard_<i>.kvs". Shard files are created lazily on first
// write; New performs no I/O.
func New(prefix string, count int) (*Store, error) {
	if count <= 0 {
		return nil, fmt.Errorf("shardstore: invalid shard count %d", count)
	}
	return &Store{prefix: prefix, count: count}, nil
}

// Count returns the fixed number of shards.
func (s *Store) Count() int { return s.count }

// ShardIndex returns the shard a key is routed to: md5(utf8(k)) mod N.
func (s *Store) ShardIndex(key string) int {
	return codec.ShardIndex(key, s.count)
}

func (s *Store) shardPath(i int) string {
	return fmt.Sprintf("%s_shard_%d.kvs", s.prefix, i)
}

// Set appends one record for key to its shard. Repeated sets for the
// same key append multiple records; readers resolve them with
// last-write-wins semantics.
func (s *Store) Set(key string, value []byte) error {
	payload, err := codec.EncodeRecord(key, value)
	if err != nil {
		return fmt.Errorf("shardstore: set %q: %w", key, err)
	}

	idx := s.ShardIndex(key)
	path := s.shardPath(idx)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("shardstore: open %s: %w", path, err)
	}
	defer f.Close()

	var header [lengthPrefixSize]byte
	binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
	if _, err := f.Write(header[:]); err != nil {
		return fmt.Errorf("shardstore: write %s: %w", path, err)
	}
	if _, err := f.Write(payload); err != nil {
		return fmt.Errorf("shardstore: write %s: %w", path, err)
	}
	return nil
}

// EncodedSize returns the number of bytes Set(key, value) would add
// to disk: the length prefix plus the compressed, serialized record
// payload. Callers use this to check a disk budget before writing.
func (s *Store) EncodedSize(key string, value []byte) (int, error) {
	payload, err := codec.EncodeRecord(key, value)
	if err != nil {
		return 0, fmt.Errorf("shardstore: encoded size %q: %w", key, err)
	}
	return lengthPrefixSize + len(payload), nil
}

// Get scans key's shard and returns the value from the last record
// referencing key, or ErrKeyNotFound. A missing shard file is an
// empty shard, not an error.
func (s *Store) Get(key string) ([]byte, error) {
	idx := s.ShardIndex(key)
	merged, err := s.readShard(idx)
	if err != nil {
		return nil, err
	}
	v, ok := merged[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

// Has reports whether key currently has a live record in its shard.
func (s *Store) Has(key string) (bool, error) {
	_, err := s.Get(key)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrKeyNotFound) {
		return false, nil
	}
	return false, err
}

// Delete performs read-compact-write on key's shard: merge every
// record (last write wins), drop key, and rewrite the shard as one
// record per remaining key. It is a no-op if key is absent or the
// shard file does not exist.
func (s *Store) Delete(key string) error {
	idx := s.ShardIndex(key)
	merged, err := s.readShard(idx)
	if err != nil {
		return err
	}
	if _, ok := merged[key]; !ok {
		return nil
	}
	delete(merged, key)
	return s.rewriteShard(idx, merged)
}

// Keys returns the union of live keys across every shard, merging
// each shard's records with last-write-wins before collecting keys.
func (s *Store) Keys() ([]string, error) {
	var keys []string
	for i := 0; i < s.count; i++ {
		merged, err := s.readShard(i)
		if err != nil {
			return nil, err
		}
		for k := range merged {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

// SearchPrefix returns every live key across all shards that begins
// with prefix, scanning each shard's merged (last-write-wins) view.
func (s *Store) SearchPrefix(prefix string) ([]string, error) {
	var out []string
	for i := 0; i < s.count; i++ {
		merged, err := s.readShard(i)
		if err != nil {
			return nil, err
		}
		for k := range merged {
			if strings.HasPrefix(k, prefix) {
				out = append(out, k)
			}
		}
	}
	return out, nil
}

// SearchValue returns every live key across all shards whose current
// value equals target byte-for-byte.
func (s *Store) SearchValue(target []byte) ([]string, error) {
	var out []string
	for i := 0; i < s.count; i++ {
		merged, err := s.readShard(i)
		if err != nil {
			return nil, err
		}
		for k, v := range merged {
			if bytes.Equal(v, target) {
				out = append(out, k)
			}
		}
	}
	return out, nil
}

// DiskBytes returns the sum of every shard file's size on disk.
// Missing files count as zero.
func (s *Store) DiskBytes() (int64, error) {
	var total int64
	for i := 0; i < s.count; i++ {
		fi, err := os.Stat(s.shardPath(i))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, fmt.Errorf("shardstore: stat shard %d: %w", i, err)
		}
		total += fi.Size()
	}
	return total, nil
}

// readShard reads shard i in full, merging its records into a map
// with last-write-wins semantics. A missing file is an empty shard.
func (s *Store) readShard(i int) (map[string][]byte, error) {
	path := s.shardPath(i)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string][]byte{}, nil
		}
		return nil, fmt.Errorf("shardstore: open %s: %w", path, err)
	}
	defer f.Close()

	merged := make(map[string][]byte)
	var offset int64

	for {
		var header [lengthPrefixSize]byte
		n, err := io.ReadFull(f, header[:])
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, &CorruptRecordError{Shard: i, Offset: offset, Err: fmt.Errorf("truncated length prefix (read %d of %d bytes): %w", n, lengthPrefixSize, err)}
		}
		offset += int64(n)

		length := binary.LittleEndian.Uint32(header[:])
		payload := make([]byte, length)
		n, err = io.ReadFull(f, payload)
		if err != nil {
			return nil, &CorruptRecordError{Shard: i, Offset: offset, Err: fmt.Errorf("truncated payload (read %d of %d bytes): %w", n, length, err)}
		}
		offset += int64(n)

		key, value, err := codec.DecodeRecord(payload)
		if err != nil {
			return nil, &CorruptRecordError{Shard: i, Offset: offset, Err: err}
		}
		merged[key] = value
	}

	return merged, nil
}

// rewriteShard replaces shard i's contents with one record per entry
// in merged. An empty merged map truncates the shard to zero bytes
// rather than removing the file.
func (s *Store) rewriteShard(i int, merged map[string][]byte) error {
	path := s.shardPath(i)
	if len(merged) == 0 {
		if err := os.Truncate(path, 0); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("shardstore: truncate %s: %w", path, err)
		}
		return nil
	}

	var buf bytes.Buffer
	for key, value := range merged {
		payload, err := codec.EncodeRecord(key, value)
		if err != nil {
			return fmt.Errorf("shardstore: rewrite %s: %w", path, err)
		}
		var header [lengthPrefixSize]byte
		binary.LittleEndian.PutUint32(header[:], uint32(len(payload)))
		buf.Write(header[:])
		buf.Write(payload)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("shardstore: rewrite %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("shardstore: rewrite %s: %w", path, err)
	}
	return nil
}
