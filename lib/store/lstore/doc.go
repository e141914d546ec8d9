// Package lstore provides the local, single-node implementation of the
// store.ITableStore interface on top of a db.TableDB engine.
//
// It houses the transaction executor: the one place where the engine's
// heterogeneous failure signals (returned aborts, panicked schema faults,
// captured exits) are normalized into the store package's closed error
// taxonomy. Every accessor operation - record CRUD, selection, counters,
// traversal - resolves the table name first and then routes through the
// executor or its direct-read counterpart, so no operation can invent its
// own error shape.
//
// The units of work this package submits to the engine capture only
// immutable inputs (resolved table name, key, record values) and perform no
// external I/O, which keeps them safe under the engine's restart-on-conflict
// execution.
package lstore
