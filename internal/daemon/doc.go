// Package daemon coordinates the long-running MangaWatch process.
//
// It wires configuration, the watch list store, the MangaDex client, the
// optional scraper, the reconciler, the interactive tracking workflow, the
// poll loop, notifications, and the history log into a single lifecycle with
// flock-based locking to prevent multiple instances. Finished poll cycles flow
// back through the daemon, which turns each chapter update into a notification
// and a history row.
//
// Keep orchestration logic here: individual steps should live in their
// respective packages while the daemon focuses on startup, shutdown, and high
// level coordination.
package daemon
