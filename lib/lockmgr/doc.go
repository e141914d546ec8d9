// Package lockmgr implements a locking mechanism using table stores that
// implement the store.ITableStore interface. It provides a simple yet robust
// way to coordinate access to shared resources across multiple processes or
// nodes.
//
// The lockmgr only ever stores in the provided ITableStore and has no other
// internal state. Therefore it is safe to be created multiple times on the
// same store. It is even possible to create a new lockmgr for every acquire
// and or release operation. As long as the same store is used every time, all
// locks will work as expected.
//
// Core Functionality:
//   - Lock acquisition with ownership verification
//   - Safe release operations that verify ownership
//
// Implementation Approach:
//
//	Locks are implemented by leveraging the atomic conditional operations
//	of the underlying store. Specifically:
//
//	- Lock Acquisition: Attempts to insert a record into a dedicated lock
//	  table. Insert performs its existence check and write in one
//	  transaction, which guarantees that only one requester can create the
//	  record. The record carries a randomly generated owner ID that
//	  identifies the lockmgr holder, plus the acquisition timestamp for
//	  administrative cleanup.
//
//	- Safe Release: The ReleaseLock operation first verifies that the
//	  requester is the legitimate owner of the lockmgr by comparing owner
//	  IDs before executing the Delete operation.
//
//	- No Expiration: The table store has no record expiry, so locks never
//	  time out on their own. A crashed holder's lock must be released
//	  explicitly; the acquired_at field exists so an operator can identify
//	  stale locks.
//
// Thread Safety:
//
//	The lockmgr is as thread-safe as the underlying store.ITableStore
//	implementation. All operations are performed through the store
//	interface, which typically provides thread safety guarantees.
//
// Distributed Considerations:
//
//	When used with a distributed store implementation like dstore, the
//	lockmgr provides true distributed locking with consensus-based
//	guarantees. This enables coordination across multiple nodes in a
//	cluster while maintaining strong consistency properties.
//
// Usage Example:
//
//	// Create a lockmgr provider with a store backend
//	lockProvider, err := lockmgr.NewLockManager(store)
//	if err != nil {
//	    // Handle error
//	}
//
//	// Acquire a lockmgr
//	acquired, ownerID, err := lockProvider.AcquireLock("resource:123")
//	if err != nil {
//	    // Handle error
//	}
//
//	if acquired {
//	    // Use the resource safely
//	    // ...
//
//	    // Release the lockmgr when done
//	    released, err := lockProvider.ReleaseLock("resource:123", ownerID)
//	    if err != nil {
//	        // Handle error
//	    }
//	}
//
// Security Considerations:
//
//	The lockmgr mechanism uses randomly generated owner IDs, which provides
//	reasonable protection against accidental lockmgr stealing. However, it
//	is not designed to resist malicious attacks, as an attacker with access
//	to the underlying store could potentially manipulate lockmgr data
//	directly.
//
// Performance Impact:
//
//	Lock operations require 1-2 store operations each:
//	- AcquireLock: One transactional Insert
//	- ReleaseLock: One Get followed by a conditional Delete
//
//	The performance characteristics therefore depend primarily on the
//	underlying store implementation.
package lockmgr
