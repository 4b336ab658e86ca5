// Package source provides the row sources a pipeline reads from.
//
// A source is a named, re-subscribable stream of raw rows. Every
// subscription replays the source from its start (or, for a followed
// SQLite table, from its start and then live).
//
//   - Memory: rows held in memory
//   - File: JSON-lines or YAML files, optionally rate limited
//   - DB: tables of a SQLite database, optionally followed for new rows
//
// Mux combines them into the record.SourceResolver a pipeline runs
// against. Unknown names fail the subscription with ErrUnknownSource.
package source
