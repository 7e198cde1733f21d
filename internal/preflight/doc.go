// Package preflight provides readiness checks for the filesystem paths and
// external services mangawatch depends on.
//
// These checks run in two contexts:
//   - The daemon runs RunAll at startup and logs every failure so a broken
//     state directory or unreachable catalog shows up before the first cycle.
//   - Daemon status reports the same results to "mangawatch status".
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight
