// Package dstore implements a distributed, fault-tolerant table store using
// the Dragonboat RAFT consensus library. It provides a strongly consistent
// implementation of the store.ITableStore interface that can operate across
// multiple nodes while maintaining linearizable consistency.
//
// Architecture:
//
// The dstore implementation consists of three main components:
//
//   - Store Client: Implements the store.ITableStore interface and
//     communicates with the RAFT cluster. It resolves table names, serializes
//     mutating operations into commands, sends them to the consensus layer
//     and decodes the results.
//
//   - State Machine: A Dragonboat IConcurrentStateMachine implementation that
//     processes commands and queries on each node. The state machine holds a
//     db.TableDB engine and applies every operation through an embedded local
//     store, so the transaction executor's error normalization runs
//     identically on every replica.
//
//   - Communication Protocol: Defined in the internal package, this consists
//     of Command and Query structures with gob serialization for the
//     dynamically typed record fields.
//
// Write Operations:
//
//	All mutating operations (Insert, Update, Delete, NextID, CreateTable)
//	follow this flow:
//
//	1. The operation is serialized into a Command structure
//	2. The Command is proposed to the RAFT cluster via SyncPropose
//	3. The leader node replicates the command to a majority of followers
//	4. Once committed, the command is executed on the state machine of each
//	   node (Update method in statemachine.go)
//	5. The result payload (merged record, deleted key, sequence value) is
//	   returned to the client
//
//	NextID is deliberately a replicated command even though the local store
//	serves it on the low-isolation path: the counter value must advance
//	identically on every replica or the sequences diverge.
//
// Read Operations:
//
// Read operations (Get, Select, Count, Attributes, the traversal operations
// and GetDBInfo) can be handled in two ways:
//
//   - Linearizable Reads: By default, reads use SyncRead which ensures that
//     the node processing the read has applied all committed log entries
//     locally before processing the request.
//
//   - Stale Reads: For GetDBInfo, StaleRead is used, which may return
//     slightly outdated information but with lower latency.
//
// Queries stay in-process on the node serving them and are never serialized.
// This is what allows Select to carry an opaque match function across the
// store boundary.
//
// Error Handling:
//
//	The recoverable error taxonomy crosses the wire as return codes packed
//	into the raft entry result and is reconstructed as *store.Error values
//	on the client. Missing schema keeps its fatal semantics: the state
//	machine catches the local store's *store.SchemaError panic (a panic must
//	not take down the raft node), encodes it as the SchemaMissing code and
//	the client re-raises the panic locally. Transient dragonboat failures
//	(ErrSystemBusy) are retried a fixed number of times before reporting an
//	internal error.
//
// Snapshotting and Recovery:
//
// The state machine implements Dragonboat's snapshotting interface to persist
// its state:
//
//   - Fuzzy Snapshots: The state machine creates snapshots without pausing
//     operations, leveraging the engine's Save method.
//
//   - Recovery: On startup or when joining a cluster, nodes first restore
//     their state from the most recent snapshot using the engine's Load
//     method, then replay the RAFT log entries committed after the snapshot
//     was created.
//
// Usage:
//
//	Setting up and using dstore requires several steps:
//
//	  // Create NodeHost (RAFT client)
//	  nh, err := dragonboat.NewNodeHost(nodeHostConfig)
//	  if err != nil { ... }
//
//	  // Engine factory for the state machine
//	  dbFactory := func() db.TableDB { return rowan.NewRowanDB(nil) }
//
//	  // Create and start shard (RAFT server)
//	  err := nh.StartConcurrentReplica(
//	      clusterMembers,
//	      false,
//	      dstore.CreateStateMachineFactory(dbFactory),
//	      shardConfig)
//	  if err != nil { ... }
//
//	  // Create store with appropriate timeout
//	  timeout := time.Duration(5) * time.Second
//	  store := dstore.NewDistributedStore(nh, shardID, timeout)
//
//	  // Provision tables, then begin operations
//	  store.(store.ITableProvisioner).CreateTable("user", []string{"name", "id", "mail"})
//
// Limitations:
//
//   - Majority Requirement: Operations cannot proceed if a majority of nodes
//     are unavailable
//   - Leader Dependency: Write operations require the leader to be available
//   - Consistency vs. Performance: The strong consistency model introduces
//     performance overhead
//
// For scenarios where distributed consensus is not required, consider using
// the simpler and faster lstore package, which provides a single-node
// implementation of the same interface.
package dstore
