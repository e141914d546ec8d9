// Package internal provides the communication protocol structures and
// serialization logic for the dstore package. It defines the wire format used
// to transmit operations between the store client and the replicated state
// machine.
//
// This package is intended for internal use by the dstore implementation and
// should not be imported directly by external code.
//
// The package consists of two main components:
//
//   - Command System: Defines mutating operations (Insert, Update, Delete,
//     NextID, CreateTable) that change the state of a table. Commands are
//     serialized, proposed to the RAFT cluster, executed on the state machine
//     of every replica and produce a CommandResult that is returned to the
//     client.
//
//   - Query System: Defines read operations (Get, Select, Count, Attributes,
//     the traversal queries and GetDBInfo) that retrieve data without
//     modifying state. Queries are executed locally on the state machine and
//     therefore do not require serialization; this is what allows a Select
//     query to carry an opaque match function.
//
// Protocol Design:
//
//	Record fields and keys are dynamically typed, so commands are encoded
//	with gob instead of a fixed binary layout. The db package registers the
//	permitted concrete field types (noValue sentinel included) with gob in
//	its init, so any record that the engine accepts round-trips through the
//	raft log unchanged.
//
//	A command's outcome travels back in the raft entry result: the result
//	value carries the store return code, the result data carries either a
//	gob-encoded CommandResult (on success), the offending table name (for
//	the SchemaMissing code) or a plain error message.
//
// Thread Safety:
//
//	The types in this package are not thread-safe and should not be shared
//	across goroutines without external synchronization. However, this is not
//	typically an issue as the RAFT protocol ensures sequential processing of
//	commands on the state machine.
package internal
