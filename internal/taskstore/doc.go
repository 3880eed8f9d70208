// Package taskstore archives finished generation tasks in SQLite so the CLI
// can show history across processes.
//
// The tracker keeps live tasks in memory only; the store receives a snapshot
// whenever one reaches a terminal status (via tasks.Archive) and is never
// consulted to drive generation. The schema is versioned: a mismatch asks the
// operator to delete the database instead of migrating it.
package taskstore
