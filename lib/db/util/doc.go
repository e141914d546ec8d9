// Package util provides shared helpers for TableDB implementations.
//
// Key features include:
//   - The canonical total key order used by all engines (CompareKeys)
//   - Canonical textual key forms for map-indexed storage (KeyString)
//   - Hashing and seeding helpers (HashString, GenerateSeed)
//
// The key order is the contract behind First/Next/Prev/Last traversal: every
// engine must keep its tables sorted by CompareKeys so that cursor results
// are identical across implementations.
package util
