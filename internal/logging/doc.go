// Package logging assembles structured slog loggers and formatting helpers used
// across mangawatch components.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so reconciliation and tracking
// code can tag log lines with cycle IDs, series IDs, and correlation IDs. The
// package also provides a no-op logger for tests and wiring code that cannot
// fail.
//
// Prefer these constructors over hand-rolled slog setup so new components emit
// data with the same shape and routing as the rest of the daemon.
package logging
