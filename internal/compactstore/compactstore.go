// Package compactstore implements the memory-resident tier of the
// storage engine: a map held fully in RAM and persisted as a single
// compressed, serialized blob file on save.
package compactstore

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/skshohagmiah/kvtiered/internal/codec"
)

// perEntryOverhead is the fixed accounting cost added per map entry
// on top of its key/value byte lengths, approximating bookkeeping
// overhead (map bucket, string header, slice header) without trying
// to track actual Go runtime memory layout. It must stay stable for
// the life of a database, since budget decisions are compared against
// it call over call.
const perEntryOverhead = 48

var (
	// ErrKeyNotFound is returned by Get for a key that doesn't exist.
	// NotFound is not surfaced to the Router as an error; this sentinel
	// is an internal signal between Store and its caller.
	ErrKeyNotFound = errors.New("compactstore: key not found")
)

// Store is the memory-resident key/value tier. It is not safe for
// concurrent use: the engine this package implements is single
// threaded end to end.
type Store struct {
	path string
	data map[string][]byte
}

// Open constructs a Store backed by path, loading any existing
// compact file. A missing file is treated as an empty store.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string][]byte),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Set inserts or overwrites key in memory. It does not flush to disk;
// callers must call Save to persist. Saving on every mutation would
// make bulk loads pay a file write per key, so Set deliberately
// leaves that decision to the caller.
func (s *Store) Set(key string, value []byte) {
	cp := make([]byte, len(value))
	copy(cp, value)
	s.data[key] = cp
}

// Get returns the in-memory value for key, or ErrKeyNotFound.
func (s *Store) Get(key string) ([]byte, error) {
	v, ok := s.data[key]
	if !ok {
		return nil, ErrKeyNotFound
	}
	return v, nil
}

// Has reports whether key currently exists in the store.
func (s *Store) Has(key string) bool {
	_, ok := s.data[key]
	return ok
}

// Delete removes key from memory. It is a no-op if key is absent.
func (s *Store) Delete(key string) {
	delete(s.data, key)
}

// Keys returns the current key set. Order is unspecified.
func (s *Store) Keys() []string {
	keys := make([]string, 0, len(s.data))
	for k := range s.data {
		keys = append(keys, k)
	}
	return keys
}

// SearchPrefix returns every key that begins with prefix.
func (s *Store) SearchPrefix(prefix string) []string {
	var out []string
	for k := range s.data {
		if strings.HasPrefix(k, prefix) {
			out = append(out, k)
		}
	}
	return out
}

// SearchValue returns every key whose current value equals target
// byte-for-byte.
func (s *Store) SearchValue(target []byte) []string {
	var out []string
	for k, v := range s.data {
		if bytes.Equal(v, target) {
			out = append(out, k)
		}
	}
	return out
}

// RAMBytes returns the current accounting total: the sum, over every
// entry, of key length + value length + perEntryOverhead. It is
// monotone in inserts and deletes but does not claim to match process
// RSS.
func (s *Store) RAMBytes() int64 {
	var total int64
	for k, v := range s.data {
		total += int64(len(k)) + int64(len(v)) + perEntryOverhead
	}
	return total
}

// WouldExceed reports whether adding/overwriting key with value would
// push RAMBytes() past limit. An overwrite of an existing key nets
// out its previous contribution first.
func (s *Store) WouldExceed(key string, value []byte, limit int64) bool {
	current := s.RAMBytes()
	if existing, ok := s.data[key]; ok {
		current -= int64(len(key)) + int64(len(existing)) + perEntryOverhead
	}
	current += int64(len(key)) + int64(len(value)) + perEntryOverhead
	return current > limit
}

// Save writes compress(serialize(map)) to a fresh file, replacing any
// previous contents: the payload goes to "<path>.tmp", which is then
// renamed over path.
func (s *Store) Save() error {
	raw, err := codec.Serialize(codec.Entries(s.data))
	if err != nil {
		return fmt.Errorf("compactstore: save: %w", err)
	}
	compressed, err := codec.Compress(raw)
	if err != nil {
		return fmt.Errorf("compactstore: save: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, compressed, 0o644); err != nil {
		return fmt.Errorf("compactstore: save %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("compactstore: save %s: %w", s.path, err)
	}
	return nil
}

// load reads the compact file, if present, into memory. A missing
// file is an empty store, not an error.
func (s *Store) load() error {
	compressed, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("compactstore: load %s: %w", s.path, err)
	}
	if len(compressed) == 0 {
		return nil
	}

	raw, err := codec.Decompress(compressed)
	if err != nil {
		return fmt.Errorf("compactstore: load %s: %w", s.path, err)
	}
	entries, err := codec.Deserialize(raw)
	if err != nil {
		return fmt.Errorf("compactstore: load %s: %w", s.path, err)
	}
	s.data = map[string][]byte(entries)
	return nil
}
