// Package testing provides standardized tests for database implementations
// that satisfy the db.TableDB interface.
//   - RunTableDBTests: Runs a standardized test suite to validate implementations
//
// The suite covers schema registration, transactional semantics (commit,
// rollback, abort taxonomy, exit capture), match selection, counters,
// ordered traversal, dirty access, persistence and concurrent writers.
// Implementations advertise their capabilities via feature flags; tests for
// unsupported features are skipped.
package testing
