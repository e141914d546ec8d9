package internal

import (
	"github.com/ValentinKolb/dTable/lib/db"
)

// QueryType defines the possible read-only queries for the state machine.
type QueryType uint8

const (
	QueryTGet        QueryType = iota // Retrieve a record by key.
	QueryTSelect                      // Retrieve the records matching a spec.
	QueryTCount                       // Retrieve the number of records in a table.
	QueryTAttributes                  // Retrieve a table's declared attribute names.
	QueryTFirst                       // Retrieve the smallest key of a table.
	QueryTNext                        // Retrieve the successor of a key.
	QueryTPrev                        // Retrieve the predecessor of a key.
	QueryTLast                        // Retrieve the largest key of a table.
	QueryTGetDBInfo                   // Retrieve metadata about the underlying engine.
)

func (q QueryType) String() string {
	switch q {
	case QueryTGet:
		return "Get"
	case QueryTSelect:
		return "Select"
	case QueryTCount:
		return "Count"
	case QueryTAttributes:
		return "Attributes"
	case QueryTFirst:
		return "First"
	case QueryTNext:
		return "Next"
	case QueryTPrev:
		return "Prev"
	case QueryTLast:
		return "Last"
	case QueryTGetDBInfo:
		return "GetDBInfo"
	default:
		return "Unknown"
	}
}

// Query defines the structure for lookup requests (read-only) sent via
// SyncRead or StaleRead. Queries stay in-process and are never serialized,
// which is what allows Spec to carry an opaque match function.
type Query struct {
	Type  QueryType    // The type of Query to perform.
	Table string       // The resolved table name (empty for GetDBInfo).
	Key   any          // The key for Get/Next/Prev (nil for other queries).
	Spec  db.MatchSpec // The match predicate for Select.
	Limit int          // The match limit for Select (<= 0 for unbounded).
}

// RecordResult is the result of a QueryTGet operation.
type RecordResult struct {
	Record db.Record
	Loaded bool
}

// KeyResult is the result of the traversal queries (First, Next, Prev, Last).
// All other query results are primitive types or predefined structs
// ([]db.Record, int, []string, db.DatabaseInfo).
type KeyResult struct {
	Key any
	Ok  bool
}
