// Package main hosts the adforge CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the adforged daemon: project creation and inspection, review
// gate approvals, rollbacks and restarts, settings edits with impact
// previews, and live progress watching. Configuration resolution and daemon
// address discovery are centralized in the command context so subcommands
// can focus on user experience instead of wiring.
package main
