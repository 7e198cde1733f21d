// Package services defines shared utilities consumed by the tracking engine and
// its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp cycle IDs, series IDs, user IDs, and
//     correlation identifiers for logging.
//   - Structured error markers plus the Wrap helper so callers can classify
//     failures (source unavailable, storage, user input) with errors.Is.
//
// Use these helpers when wiring new components so error classification and
// observability stay uniform across the daemon.
package services
