package kv

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"

	"github.com/skshohagmiah/kvtiered/internal/shardstore"
)

var (
	// ErrKeyTypeInvalid marks a non-string key. Go's Set/Get/Delete
	// signatures take a string key, so the public API makes this
	// unreachable by construction; the sentinel is kept so error-kind
	// handling code written against this package's error taxonomy
	// stays exhaustive and so callers bridging from a dynamically-typed
	// caller (e.g. a script binding) have something to map an invalid
	// key onto.
	ErrKeyTypeInvalid = errors.New("kv: invalid key type")

	// A missing key is represented by a plain (false, nil) / (nil, nil)
	// return rather than an error value, not by a sentinel here.
)

// BudgetKind distinguishes which budget a BudgetError reports against.
type BudgetKind string

const (
	BudgetRAM  BudgetKind = "ram"
	BudgetDisk BudgetKind = "disk"
)

// BudgetError reports that a write would have pushed RAM or disk
// usage past its configured limit. The engine's state is unchanged
// when this error is returned.
type BudgetError struct {
	Kind      BudgetKind
	Limit     int64
	Requested int64
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("kv: %s budget exceeded: requested %s, limit %s",
		e.Kind, humanize.IBytes(uint64(e.Requested)), humanize.IBytes(uint64(e.Limit)))
}

// IsBudgetExceeded reports whether err is (or wraps) a BudgetError.
func IsBudgetExceeded(err error) bool {
	var be *BudgetError
	return errors.As(err, &be)
}

// IsCorruptRecord reports whether err is (or wraps) a shard-level
// corrupt-record error, surfaced verbatim from internal/shardstore.
func IsCorruptRecord(err error) bool {
	var cr *shardstore.CorruptRecordError
	return errors.As(err, &cr)
}
