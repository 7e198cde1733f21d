// Package watchlist persists the set of tracked series.
//
// The on-disk form is a single JSON object keyed by catalog series ID. Every
// mutation goes through Store, which holds one writer at a time, writes the
// whole file to a temporary path and renames it into place, and restores the
// in-memory copy when the write fails. A missing file is an empty watch list;
// a malformed file is a storage error and is never overwritten implicitly.
package watchlist
