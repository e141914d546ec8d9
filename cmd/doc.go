// Package cmd implements the command-line interface for the dTable ordered
// table store. It provides a hierarchical command structure with operations
// for running a replicated node and working with local database files.
//
// The package is organized into several subpackages:
//
//   - tbl: Commands for table operations on a local database file (insert,
//     get, update, select, traversal, etc.) plus a benchmark tool
//   - serve: Commands for starting and configuring a replicated dTable node
//   - util: Shared utilities for command-line processing, configuration and
//     logging (internal use)
//
// See dtable -help for a list of all commands.
package cmd
