// Package store persists quilt records and sync run history in SQLite.
//
// The database is opened in WAL mode with a single writer connection.
// Multi-valued record fields are stored as JSON-encoded arrays. All
// failures surface as store errors, which callers treat as fatal for the
// current run.
package store
