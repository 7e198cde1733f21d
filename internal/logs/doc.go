// Package logs reads the daemon log file for the `mangawatch logs` command.
//
// Tail returns either the last N lines or everything written after a byte
// offset, optionally waiting a bounded time for new lines and keeping only
// lines that contain a case-insensitive match string (a series title, a
// component name, a cycle id). The returned offset lets callers resume where
// the previous read stopped.
package logs
