package store

import (
	"fmt"

	"github.com/ValentinKolb/dTable/lib/db"
)

// --------------------------------------------------------------------------
// Interface Definition
// --------------------------------------------------------------------------

// DBFactory is a function type that creates a new db used by the store.
// This is used to abstract the creation of the db from the store implementation.
type DBFactory func() db.TableDB

// Options is a configuration map accepted by the record operations for
// forward compatibility. No option is currently consumed by any defined
// behavior; implementations accept and ignore it.
type Options map[string]any

// ITableStore is the generic interface for transactional access to an
// ordered table store. All operations resolve the table identifier first
// (see ResolveTable) and route their work through a single transaction
// executor, so the error taxonomy below is applied uniformly.
//
// Recoverable failures are always returned as *Error values, never raised.
// Missing schema (an unregistered table touched by anything but Attributes)
// is a configuration error and panics with *SchemaError, propagating past
// ordinary error handling on purpose.
type ITableStore interface {
	// Insert stores rec under its primary key (field 1) if, and only if, no
	// record exists there yet. The existence check and the write are atomic
	// within one transaction. Returns the inserted record, or an *Error with
	// RetCAlreadyExists without having written anything.
	Insert(table any, rec db.Record, opts ...Options) (db.Record, error)

	// Get returns the record stored under key. A missing key is reported via
	// loaded=false, never as an error.
	Get(table any, key any, opts ...Options) (rec db.Record, loaded bool, err error)

	// Update merges patch into the record stored under key and writes the
	// result back, atomically under a write lock. Patch fields holding
	// db.NoValue keep the stored value, all other fields override
	// positionally; both records must share one arity. Returns the merged
	// record, or an *Error with RetCNotFound if no record exists under key.
	Update(table any, key any, patch db.Record, opts ...Options) (db.Record, error)

	// Delete removes the record stored under key and returns the key as
	// confirmation. Deleting an absent key is not an error.
	Delete(table any, key any, opts ...Options) (deleted any, err error)

	// Select returns the records matching the opaque spec, in the table's
	// native key order. A limit greater than zero requests at most that many
	// matches in one bounded read; limit <= 0 returns all matches. Both
	// paths return identical content whenever the true match count does not
	// exceed the limit.
	Select(table any, spec db.MatchSpec, limit int) ([]db.Record, error)

	// Count returns the current number of records in the table. This is a
	// best-effort read of table metadata outside any transaction. The local
	// implementation never returns an error here; replicated ones surface
	// transport failures.
	Count(table any) (int, error)

	// Attributes returns the table's declared field names, or an *Error with
	// RetCAttributesNotExist if the table is not registered. This is the one
	// operation that reports missing schema as an error value instead of a
	// fatal condition, so callers can probe for table existence.
	Attributes(table any) ([]string, error)

	// NextID atomically increments the table's sequence counter by the given
	// increment and returns the new value. First use yields the increment
	// itself. Runs on the low-isolation path: the result is not linearizable
	// with concurrent record transactions.
	NextID(table any, increment int64) (int64, error)

	// First returns the smallest key of the table in native key order,
	// or ok=false for an empty table (the engine's end-of-table sentinel
	// translated to an absence value).
	First(table any) (key any, ok bool, err error)

	// Next returns the smallest key strictly greater than the given key.
	// Passing a key not present in the table is defined by the key order
	// alone; no validation is performed.
	Next(table any, key any) (next any, ok bool, err error)

	// Prev returns the largest key strictly smaller than the given key.
	Prev(table any, key any) (prev any, ok bool, err error)

	// Last returns the largest key of the table in native key order.
	Last(table any) (key any, ok bool, err error)

	// GetDBInfo returns metadata about the database underlying the store.
	// It is not guaranteed that all fields are filled in or that the information is up-to-date!
	GetDBInfo() (info db.DatabaseInfo, err error)
}

// ITableProvisioner is the administrative surface for registering tables and
// their attribute schemas at runtime. It is kept out of ITableStore because
// regular accessor code must never create schema as a side effect; callers
// that provision tables obtain this interface by type assertion.
type ITableProvisioner interface {
	// CreateTable registers the table with the given attribute names. Creating
	// an already registered table is a no-op.
	CreateTable(table any, attributes []string) error
}

// --------------------------------------------------------------------------
// Custom Error Type
// --------------------------------------------------------------------------

// Error is a custom error type that wraps a return code (of type RetCode),
// an error message and, for engine faults, the captured execution stack.
type Error struct {
	Code  RetCode // The return code
	Msg   string  // The error message
	Stack []byte  // Execution stack, set for RetCEngineFault only
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("TableStoreError (code %s): %s", e.Code, e.Msg)
}

// NewError creates a new table store error with the given code and message.
func NewError(code RetCode, msg string) *Error {
	return &Error{
		Code: code,
		Msg:  msg,
	}
}

// HasCode reports whether err is a *Error carrying the given return code.
func HasCode(err error, code RetCode) bool {
	if e, ok := err.(*Error); ok {
		return e.Code == code
	}
	return false
}

// --------------------------------------------------------------------------
// Return Codes
// --------------------------------------------------------------------------

type RetCode uint64

const (
	RetCSuccess            RetCode = iota // 0: Command executed successfully.
	RetCAlreadyExists                     // 1: Insert attempted on an occupied key.
	RetCNotFound                          // 2: Update attempted on a missing key.
	RetCAborted                           // 3: The engine aborted the transaction for an uncategorized reason.
	RetCEngineFault                       // 4: Non-abort exit from the engine, stack preserved.
	RetCAttributesNotExist                // 5: Attribute introspection on an unregistered table.
	RetCSchemaMissing                     // 6: Wire form of *SchemaError, used by the replicated store only.
	RetCInternalError                     // 7: Command failed due to an internal error.
	RetCInvalidOperation                  // 8: Invalid operation.
)

func (c RetCode) String() string {
	switch c {
	case RetCSuccess:
		return "Success"
	case RetCAlreadyExists:
		return "AlreadyExists"
	case RetCNotFound:
		return "NotFound"
	case RetCAborted:
		return "Aborted"
	case RetCEngineFault:
		return "EngineFault"
	case RetCAttributesNotExist:
		return "AttributesNotExist"
	case RetCSchemaMissing:
		return "SchemaMissing"
	case RetCInternalError:
		return "InternalError"
	case RetCInvalidOperation:
		return "InvalidOperation"
	default:
		return "Unknown"
	}
}

// --------------------------------------------------------------------------
// Fatal Schema Error
// --------------------------------------------------------------------------

// SchemaError reports that a requested table or its schema metadata does not
// exist. This is a programming/configuration error, not a transient
// condition: it is panicked, never returned, so it unwinds past any caller
// recovery that only handles the recoverable *Error values.
type SchemaError struct {
	Name string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("schema for %q does not exist", e.Name)
}
