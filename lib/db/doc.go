// Package db provides a standardized interface for ordered, transactional
// table engine implementations. It defines the TableDB interface that allows
// for consistent interaction with various engine backends while abstracting
// implementation details.
//
// The package focuses on:
//   - A unified interface for transactional record operations
//   - A positional record data model (Record, NoValue, MatchSpec)
//   - Feature discovery through capability flags
//   - Standardized persistence operations for snapshotting
//
// Key Components:
//
//   - TableDB Interface: The core interface that all engine implementations
//     must satisfy. It provides schema operations (CreateTable, Attributes),
//     the transactional activity runner (Run), dirty operations that bypass
//     transactions (Size, UpdateCounter, First/Next/Prev/Last) and
//     persistence operations (Save, Load).
//
//   - Record Model: Records are fixed-arity ordered tuples ([]any) where
//     field 0 carries the table/type tag and field 1 the primary key. The
//     NoValue sentinel marks absent fields in patch records, and MatchSpec
//     is an opaque predicate consumed verbatim by Match.
//
//   - Transactions: Activities are closures over the Tx primitives. An
//     engine is free to invoke an activity multiple times while resolving
//     lock conflicts, which is why activities must not have externally
//     observable side effects. Read/ReadForWrite acquire read respectively
//     write locks whose scope is the enclosing transaction.
//
//   - Failure Signaling: Engines report failures heterogeneously by design.
//     Run returns *AbortError for rolled-back transactions (the reason may
//     be a *NoExistsError for schema violations or the error returned by the
//     activity) and *ExitError, with the captured execution stack, for exits
//     outside the abort taxonomy. Dirty operations panic with *AbortError on
//     missing tables. The lib/store layer normalizes all of these shapes
//     into one closed error taxonomy; client code should never see them.
//
//   - Feature Flags: The Feature type defines capability flags that
//     implementations can advertise through the SupportsFeature method.
//
// Note on Key Ordering:
//   - All implementations must keep each table's records sorted by primary
//     key according to util.CompareKeys, a total order over nil, booleans,
//     numbers, strings and byte slices. First/Next/Prev/Last traverse this
//     order, which is independent of insertion order.
//
// Note on Counters:
//   - UpdateCounter maintains one monotonic integer per table, stored next
//     to (not inside) the table. Increments are atomic but deliberately not
//     linearizable with concurrent record transactions; callers trading
//     strict atomicity for throughput use them to mint ordered identifiers.
//
// Related Packages:
//
// The engines/rowan package (github.com/ValentinKolb/dTable/lib/db/engines/rowan)
// provides the embedded implementation of the TableDB interface backed by
// one in-memory B-tree per table, with optimistic lock acquisition and
// automatic transaction restart on conflict.
//
// The testing package (github.com/ValentinKolb/dTable/lib/db/testing) provides
// a standardized test suite for engine implementations:
//   - RunTableDBTests: Runs a standardized test suite to validate implementations
//
// The util package (github.com/ValentinKolb/dTable/lib/db/util) provides the
// canonical key order (CompareKeys, KeyString) and hashing helpers.
package db
