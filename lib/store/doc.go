// Package store provides a high-level interface for transactional, ordered
// table storage with record CRUD, partial-merge updates, predicate-based
// selection, per-table sequence generation and ordered key traversal. It
// serves as an abstraction layer over the lower-level db.TableDB engines,
// adding table name resolution and a uniform, closed error taxonomy.
//
// The package focuses on:
//   - A unified interface (ITableStore) for table operations across different backends
//   - One normalization boundary for the engines' heterogeneous failure signals
//   - Pluggable storage backend architecture through the DBFactory pattern
//
// Key Components:
//
//   - ITableStore Interface: The core abstraction defining record CRUD
//     (Insert, Get, Update, Delete), range and sequence operations (Select,
//     Count, Attributes, NextID) and cursor traversal (First, Next, Prev,
//     Last). All implementations share this common interface, allowing
//     applications to switch between local and replicated backends without
//     code changes.
//
//   - Name Resolution: ResolveTable normalizes any representation of a table
//     identifier (canonical TableName, plain string, Stringer) into one
//     canonical handle. Resolution is total and pure; it is the first step
//     of every operation.
//
//   - Error System: Recoverable failures are typed *Error values with a
//     RetCode (AlreadyExists, NotFound, Aborted, EngineFault,
//     AttributesNotExist) and are always returned, never raised. Missing
//     schema is the one fatal class: it panics as *SchemaError so it cannot
//     be swallowed by code that only handles the recoverable values. The
//     single deliberate exception is Attributes, which downgrades a missing
//     table to RetCAttributesNotExist because callers use it to probe for
//     table existence.
//
//   - Record Merging: MergeRecords implements the positional
//     overwrite-on-presence merge used by Update: patch fields holding
//     db.NoValue keep the stored value, everything else overrides.
//
// Implementations:
//
//	The package includes two implementations of the ITableStore interface:
//
//	- Local Store (lstore): Wraps a db.TableDB instance directly and houses
//	  the transaction executor that normalizes every engine outcome into the
//	  taxonomy above. Suitable for single-node applications.
//	  Available in the "github.com/ValentinKolb/dTable/lib/store/lstore" package.
//
//	- Replicated Store (dstore): An implementation built on the Dragonboat
//	  RAFT consensus library. Write operations are proposed as commands into
//	  the raft log and applied by every replica's embedded local store;
//	  reads go through linearizable lookups. Appropriate for multi-node
//	  deployments requiring fault tolerance.
//	  Available in the "github.com/ValentinKolb/dTable/lib/store/dstore" package.
//
// Units of work submitted to the executor may be invoked more than once by
// the underlying engine under conflict retry; they must therefore be free of
// externally observable side effects. This is a hard correctness
// requirement of the whole layer, not a performance hint.
package store
