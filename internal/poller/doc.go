// Package poller drives reconciliation cycles on a fixed interval.
//
// At most one cycle runs at a time. A tick that finds a cycle in flight is
// skipped and counted rather than queued. Manual rechecks go through a token
// bucket so a burst of requests cannot hammer MangaDex. Each cycle carries a
// fresh cycle id in its context and log records, and its report is handed to
// a Sink once the cycle ends.
package poller
