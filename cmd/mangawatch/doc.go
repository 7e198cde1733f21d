// Package main hosts the mangawatch CLI entrypoint and command graph.
//
// The Cobra command tree turns terminal invocations into IPC calls against
// the daemon: tracking and removal sessions, the watch list, manual
// rechecks, delivery history and log tailing. It also starts and stops the
// daemon and scaffolds configuration.
package main
