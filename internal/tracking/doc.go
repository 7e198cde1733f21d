// Package tracking implements the interactive add and remove flows for the
// watch list.
//
// A search stores the numbered choices for the requesting user until a select
// consumes them. An ambiguous untrack stores the numbered candidates until a
// confirm consumes them. A new search or untrack from the same user replaces
// the pending entry. Entries also lapse after the configured session TTL.
//
// User mistakes come back as Result values with OK=false. Go errors are
// reserved for watch list persistence failures.
package tracking
