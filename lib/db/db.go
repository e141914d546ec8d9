package db

import (
	"fmt"
	"io"
)

// --------------------------------------------------------------------------
// Helper Types
// --------------------------------------------------------------------------

type Implementation string

const (
	ImplRowan Implementation = "rowan"
)

// Feature represents database features as bit flags
type Feature uint64

const (
	FeatureTransaction Feature = 1 << iota // Support for transactional Run
	FeatureDirty                           // Support for the low-isolation dirty context
	FeatureMatch                           // Support for match-spec selection inside transactions
	FeatureCounter                         // Support for atomic per-table counters
	FeatureTraverse                        // Support for ordered key traversal
	FeatureSchema                          // Support for attribute introspection
	FeatureSave                            // Support for Save operations
	FeatureLoad                            // Support for Load operations
)

func (f Feature) String() string {
	switch f {
	case FeatureTransaction:
		return "Transaction"
	case FeatureDirty:
		return "Dirty"
	case FeatureMatch:
		return "Match"
	case FeatureCounter:
		return "Counter"
	case FeatureTraverse:
		return "Traverse"
	case FeatureSchema:
		return "Schema"
	case FeatureSave:
		return "Save"
	case FeatureLoad:
		return "Load"
	default:
		return "Unknown"
	}
}

type DatabaseInfo struct {
	NumTables         int            `json:"num_tables"`
	NumRecords        int            `json:"num_records"`
	DbType            Implementation `json:"db_type"`
	SupportedFeatures []Feature      `json:"supported_features"`
	Metadata          interface{}    `json:"metadata"`
}

// --------------------------------------------------------------------------
// Record Data Model
// --------------------------------------------------------------------------

// Record is a fixed-arity ordered tuple of fields. By convention field 0
// holds the table/type tag and field 1 the primary key. Records are
// exchanged by value: the engine owns its persisted copies, callers own the
// values they construct and pass in.
type Record []any

// Key returns the primary key of the record (field 1).
// The boolean return value is false for records too short to carry a key.
func (r Record) Key() (any, bool) {
	if len(r) < 2 {
		return nil, false
	}
	return r[1], true
}

// Clone returns a shallow copy of the record so the engine and the caller
// never alias the same field slice.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	dup := make(Record, len(r))
	copy(dup, r)
	return dup
}

// noValue is the sentinel type marking an absent field in a patch record.
type noValue struct{}

func (noValue) String() string { return "NoValue" }

// NoValue marks a field of a patch record as "keep the stored value".
var NoValue any = noValue{}

// MatchSpec is an opaque predicate over records. It is produced by an
// external query layer and consumed verbatim by the engine's Match
// operation; this layer never inspects it beyond invoking it.
type MatchSpec func(rec Record) bool

// --------------------------------------------------------------------------
// Transactions
// --------------------------------------------------------------------------

// AccessContext selects the isolation semantics of a Run call.
type AccessContext uint8

const (
	// CtxTransaction runs the activity fully isolated and atomic. The engine
	// may invoke the activity more than once under conflict retry.
	CtxTransaction AccessContext = iota
	// CtxDirty runs the activity with reduced isolation: each primitive is
	// individually consistent but the activity as a whole is not atomic.
	CtxDirty
)

func (c AccessContext) String() string {
	switch c {
	case CtxTransaction:
		return "transaction"
	case CtxDirty:
		return "dirty"
	default:
		return fmt.Sprintf("Unknown(%d)", uint8(c))
	}
}

// Tx exposes the primitives an activity may use against the store.
// All methods panic with *AbortError when the addressed table is not
// registered; Run recovers the panic and reports it as a rolled-back
// transaction.
type Tx interface {
	// Read returns the record stored under key, acquiring a read lock on the
	// table for the remainder of the transaction.
	Read(table string, key any) (rec Record, loaded bool)

	// ReadForWrite behaves like Read but acquires a write lock, so no other
	// writer can interleave between this read and a subsequent Write for the
	// same table.
	ReadForWrite(table string, key any) (rec Record, loaded bool)

	// Write stores rec under its primary key (field 1). The write is visible
	// to reads within the same transaction and applied to the table on commit.
	Write(table string, rec Record)

	// Erase removes the record stored under key. Erasing an absent key is a
	// no-op.
	Erase(table string, key any)

	// Match returns the records matching spec in native key order. A limit
	// greater than zero bounds the result set; limit <= 0 returns all matches.
	Match(table string, spec MatchSpec, limit int) []Record
}

// Activity is a unit of work executed by Run. It must be free of externally
// observable side effects other than reads/writes through tx, because the
// engine may invoke it multiple times under internal conflict retry.
type Activity func(tx Tx) (interface{}, error)

// --------------------------------------------------------------------------
// Engine Failure Signaling
// --------------------------------------------------------------------------

// NoExistsError signals that a table (or its schema metadata) is not
// registered in the engine.
type NoExistsError struct {
	Table string
}

func (e *NoExistsError) Error() string {
	return fmt.Sprintf("table %q does not exist", e.Table)
}

// AbortError is returned by Run for a rolled-back transaction. Reason is
// either a *NoExistsError, the error returned by the activity itself, or an
// engine-internal condition such as retry exhaustion on lock conflicts.
type AbortError struct {
	Reason error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("transaction aborted: %v", e.Reason)
}

func (e *AbortError) Unwrap() error { return e.Reason }

// ExitError is returned by Run when the activity (or the engine underneath
// it) exited outside the abort taxonomy, i.e. panicked with an arbitrary
// value. The execution stack at the point of the exit is preserved for
// diagnostics.
type ExitError struct {
	Reason interface{}
	Stack  []byte
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("non-transactional exit: %v", e.Reason)
}

// --------------------------------------------------------------------------
// Database Interface
// --------------------------------------------------------------------------

// TableDB defines the interface for ordered, transactional table engine
// implementations. One table holds one record type, primary-keyed by record
// field 1, with keys kept in the engine's native key order (see util.CompareKeys).
// Implementations must be safe for concurrent use without any external
// coordination by their callers; blocking duration is owned entirely by the
// implementation's lock management.
type TableDB interface {

	// --------------------------------------------------------------------------
	// Schema Operations
	// --------------------------------------------------------------------------

	// CreateTable registers a table together with its declared attribute
	// names. Creating a table that already exists is a no-op.
	CreateTable(table string, attributes []string) error

	// Attributes returns the declared attribute names of a table. The boolean
	// return value reports whether the table is registered at all; unlike
	// every other operation a missing table is reported here as a value, so
	// callers can probe for table existence without triggering a fault.
	Attributes(table string) (attrs []string, exists bool)

	// --------------------------------------------------------------------------
	// Transactional Operations
	// --------------------------------------------------------------------------

	// Run executes the activity under the given access context and returns
	// its result. Failure signaling is heterogeneous on purpose, mirroring
	// the engines this contract was modeled on: rolled-back transactions come
	// back as *AbortError, stray panics as *ExitError with the captured
	// stack. Callers are expected to normalize these shapes exactly once (see
	// lstore's executor).
	Run(actx AccessContext, act Activity) (result interface{}, err error)

	// --------------------------------------------------------------------------
	// Dirty Operations (no transaction wrapping)
	// --------------------------------------------------------------------------

	// Size returns the current number of records in the table. Best-effort
	// read of table metadata; panics with *AbortError if the table does not
	// exist.
	Size(table string) int

	// UpdateCounter atomically adds delta to the per-table counter and
	// returns the new value. The counter is created at zero on first use,
	// lives outside the table's records and is never decremented or deleted
	// by this interface.
	UpdateCounter(table string, delta int64) int64

	// First returns the smallest key of the table in native key order.
	// The boolean return value is false for an empty table (end-of-table).
	First(table string) (key any, ok bool)

	// Next returns the smallest key strictly greater than the given key.
	// The behavior for a key not present in the table follows from the key
	// order alone; no validation is performed.
	Next(table string, key any) (next any, ok bool)

	// Prev returns the largest key strictly smaller than the given key.
	Prev(table string, key any) (prev any, ok bool)

	// Last returns the largest key of the table in native key order.
	Last(table string) (key any, ok bool)

	// --------------------------------------------------------------------------
	// Persistence Operations
	// --------------------------------------------------------------------------

	// Save persists the current state of the database to the provided io.Writer.
	Save(w io.Writer) (err error)

	// Load restores the database state from the data provided by an io.Reader.
	Load(r io.Reader) (err error)

	// --------------------------------------------------------------------------
	// Feature Support
	// --------------------------------------------------------------------------

	// SupportsFeature checks if the database implementation supports the specified feature.
	// Multiple features can be checked at once using the bitwise OR (|) operator.
	SupportsFeature(feature Feature) (ok bool)

	// GetInfo returns information about the database.
	GetInfo() (info DatabaseInfo)

	// Close closes the database.
	Close() (err error)
}
