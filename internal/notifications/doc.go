// Package notifications delivers chapter updates and daemon events via ntfy.
//
// The default implementation publishes to the ntfy topic configured in
// config.toml and degrades to a no-op when no topic is set. Enumerated event
// types keep message wording in one place so the poller and the CLI test
// command render identical text.
package notifications
