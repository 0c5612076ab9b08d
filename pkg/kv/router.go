// Package kv is the public façade of the tiered storage engine: it
// owns one CompactStore and one ShardStore, routes each write to a
// tier based on value size and the configured RAM/disk budgets, and
// fans reads and scans out across both.
package kv

import (
	"errors"
	"fmt"

	"github.com/skshohagmiah/kvtiered/internal/compactstore"
	"github.com/skshohagmiah/kvtiered/internal/shardstore"
)

// Entry is one key/value pair, used by SetMultiple to give callers an
// explicit, ordered alternative to Go's unordered map type: entries
// are applied in the order given.
type Entry struct {
	Key   string
	Value []byte
}

// Router is the single public handle to a tiered database: one
// CompactStore, one ShardStore, and the budgets that govern placement
// between them. It is not safe for concurrent use, and only one
// Router should ever be open against a given pair of paths at a time.
type Router struct {
	compact *compactstore.Store
	shard   *shardstore.Store
	cfg     Config
}

// New opens (or creates) a Router using default budgets and shard
// count, the way this codebase's kv.New provides a sensible default
// construction path alongside the fully-configurable one.
func New(compactPath, shardPrefix string) (*Router, error) {
	return NewWithConfig(Config{CompactPath: compactPath, ShardPrefix: shardPrefix})
}

// NewWithConfig opens (or creates) a Router with an explicit Config.
// Zero-valued budget/shard fields fall back to their documented
// defaults.
func NewWithConfig(cfg Config) (*Router, error) {
	cfg = cfg.withDefaults()

	compact, err := compactstore.Open(cfg.CompactPath)
	if err != nil {
		return nil, fmt.Errorf("kv: open compact store: %w", err)
	}
	shard, err := shardstore.New(cfg.ShardPrefix, cfg.ShardCount)
	if err != nil {
		return nil, fmt.Errorf("kv: open shard store: %w", err)
	}

	return &Router{compact: compact, shard: shard, cfg: cfg}, nil
}

// Set places key/value in whichever tier the placement policy picks,
// first evicting key from whichever tier currently holds it so it
// never lives in both at once.
//
// Tier selection:
//   - size(key)+size(value) > LargeValueThreshold -> ShardStore
//   - else, if adding would push CompactStore's RAM accounting over
//     RAMLimit -> ShardStore
//   - else -> CompactStore
//
// A placement that would also push ShardStore's disk usage over
// DiskLimit fails with a *BudgetError and leaves both tiers
// unchanged; it never partially applies.
func (r *Router) Set(key string, value []byte) error {
	entrySize := int64(len(key)) + int64(len(value))

	toShard := entrySize > r.cfg.LargeValueThreshold ||
		r.compact.WouldExceed(key, value, r.cfg.RAMLimit)

	if toShard {
		encodedSize, err := r.shard.EncodedSize(key, value)
		if err != nil {
			return fmt.Errorf("kv: set %q: %w", key, err)
		}
		diskUsed, err := r.shard.DiskBytes()
		if err != nil {
			return fmt.Errorf("kv: set %q: %w", key, err)
		}
		requested := diskUsed + int64(encodedSize)
		if requested > r.cfg.DiskLimit {
			return &BudgetError{Kind: BudgetDisk, Limit: r.cfg.DiskLimit, Requested: requested}
		}

		if r.compact.Has(key) {
			r.compact.Delete(key)
		}
		if err := r.shard.Set(key, value); err != nil {
			return fmt.Errorf("kv: set %q: %w", key, err)
		}
		return nil
	}

	if has, err := r.shard.Has(key); err != nil {
		return fmt.Errorf("kv: set %q: %w", key, err)
	} else if has {
		if err := r.shard.Delete(key); err != nil {
			return fmt.Errorf("kv: set %q: %w", key, err)
		}
	}
	r.compact.Set(key, value)
	return nil
}

// Get returns the value most recently set for key: CompactStore is
// consulted first, then ShardStore. The second return value reports
// whether key was found; a missing key is not an error.
func (r *Router) Get(key string) ([]byte, bool, error) {
	if v, err := r.compact.Get(key); err == nil {
		return v, true, nil
	} else if !errors.Is(err, compactstore.ErrKeyNotFound) {
		return nil, false, fmt.Errorf("kv: get %q: %w", key, err)
	}

	v, err := r.shard.Get(key)
	if err == nil {
		return v, true, nil
	}
	if errors.Is(err, shardstore.ErrKeyNotFound) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("kv: get %q: %w", key, err)
}

// Delete removes key from whichever tier holds it. It is a no-op if
// key is absent from both.
func (r *Router) Delete(key string) error {
	if r.compact.Has(key) {
		r.compact.Delete(key)
		return nil
	}
	if err := r.shard.Delete(key); err != nil {
		return fmt.Errorf("kv: delete %q: %w", key, err)
	}
	return nil
}

// SetMultiple applies entries in order via Set, stopping at the first
// failure. It returns the number of entries successfully applied
// before that failure (len(entries) on full success) and the error,
// if any; already-applied entries are not rolled back.
func (r *Router) SetMultiple(entries []Entry) (int, error) {
	for i, e := range entries {
		if err := r.Set(e.Key, e.Value); err != nil {
			return i, err
		}
	}
	return len(entries), nil
}

// GetAllKeys returns the union of CompactStore's and ShardStore's key
// sets, each key present at most once. Order is unspecified.
func (r *Router) GetAllKeys() ([]string, error) {
	seen := make(map[string]struct{})
	for _, k := range r.compact.Keys() {
		seen[k] = struct{}{}
	}
	shardKeys, err := r.shard.Keys()
	if err != nil {
		return nil, fmt.Errorf("kv: get all keys: %w", err)
	}
	for _, k := range shardKeys {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys, nil
}

// SearchKeysForPrefix returns every key beginning with prefix, merged
// from both tiers with duplicates removed (tier disjointness means
// duplicates shouldn't occur, but the merge still dedups defensively).
func (r *Router) SearchKeysForPrefix(prefix string) ([]string, error) {
	seen := make(map[string]struct{})
	for _, k := range r.compact.SearchPrefix(prefix) {
		seen[k] = struct{}{}
	}
	shardKeys, err := r.shard.SearchPrefix(prefix)
	if err != nil {
		return nil, fmt.Errorf("kv: search prefix %q: %w", prefix, err)
	}
	for _, k := range shardKeys {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys, nil
}

// SearchKeysForValue returns every key whose current value equals
// value byte-for-byte, merged from both tiers.
func (r *Router) SearchKeysForValue(value []byte) ([]string, error) {
	seen := make(map[string]struct{})
	for _, k := range r.compact.SearchValue(value) {
		seen[k] = struct{}{}
	}
	shardKeys, err := r.shard.SearchValue(value)
	if err != nil {
		return nil, fmt.Errorf("kv: search value: %w", err)
	}
	for _, k := range shardKeys {
		seen[k] = struct{}{}
	}

	keys := make([]string, 0, len(seen))
	for k := range seen {
		keys = append(keys, k)
	}
	return keys, nil
}

// Save forces CompactStore to flush its file. ShardStore needs no
// equivalent call: every Set/Delete against it is already durable
// when it returns.
func (r *Router) Save() error {
	if err := r.compact.Save(); err != nil {
		return fmt.Errorf("kv: save: %w", err)
	}
	return nil
}
