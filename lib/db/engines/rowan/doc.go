// Package rowan provides an embedded, ordered implementation of the
// db.TableDB interface. It keeps one in-memory B-tree per table, sorted by
// the canonical key order, and layers optimistic per-table locking on top to
// implement atomic transactions.
//
// Architecture:
//
//   - Tables: Each registered table owns a google/btree instance plus a
//     sync.RWMutex. The tree stores whole records keyed by field 1; the
//     mutex arbitrates between transactions (which hold it for their full
//     duration) and dirty operations (which hold it per primitive).
//
//   - Transactions: Run(CtxTransaction, act) executes the activity against a
//     private write buffer. Locks are taken lazily with TryLock/TryRLock at
//     the first touch of a table; a failed attempt releases everything and
//     restarts the whole activity after a jittered backoff. Because locks
//     are never waited on, the engine cannot deadlock, and because the
//     activity is re-invoked on every restart, activities must be pure. Lock
//     modes learned in one attempt (e.g. "this table needs a write lock")
//     carry over to the next, so upgrade races settle quickly. On success
//     the buffer is applied to the trees while all write locks are held,
//     which makes the commit atomic across tables.
//
//   - Dirty Context: Run(CtxDirty, act) executes the activity once with
//     per-primitive locking and immediate writes. This trades atomicity of
//     the activity for throughput and is the path the access layer uses for
//     counter increments.
//
//   - Failure Signaling: Schema violations (touching an unregistered table)
//     panic internally and surface from Run as *db.AbortError wrapping a
//     *db.NoExistsError. An error returned by the activity rolls the
//     transaction back and surfaces as *db.AbortError wrapping that error.
//     A panic out of the activity surfaces as *db.ExitError with the
//     captured stack. Dirty operations (Size, UpdateCounter, traversal)
//     panic with *db.AbortError on unregistered tables.
//
//   - Counters: Per-table sequence counters live in an xsync.MapOf next to
//     the tables. Increments run under the map's internal bucket lock only,
//     deliberately outside any transaction.
//
//   - Traversal: First/Next/Prev/Last walk the table's tree under a short
//     read lock. Each call observes the live tree, not a snapshot: a cursor
//     walk interleaved with writers may see keys appear or vanish, which is
//     the documented semantics of the access layer's cursor operations.
//
//   - Persistence: Save streams the full state (schemas, records, counters)
//     as a gob-encoded snapshot; tables are locked one at a time, so the
//     snapshot is fuzzy across tables but internally consistent per table.
//     Load replaces the engine state wholesale and must not run concurrently
//     with other operations. Both exist primarily to back raft snapshotting
//     in the replicated store.
//
// Thread-safety: All interface methods except Load are safe for concurrent
// use without external coordination.
package rowan
