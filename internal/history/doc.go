// Package history keeps a SQLite log of reconciliation cycles and the chapter
// notifications they produced.
//
// The watch list JSON file stays the source of truth for tracked series. This
// log only answers "what was announced, and when", which backs the CLI history
// command and daemon status.
package history
