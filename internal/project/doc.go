// Package project persists pipeline projects and their generation units in
// SQLite and exposes the compare-and-set primitives the transition engine
// requires.
//
// Stage, failure marker, cost, and generation epoch are only written through
// CASTransition, which is keyed on the current stage value and epoch so that
// concurrent transition intents cannot race into an inconsistent state: the
// loser's write affects zero rows and is surfaced to the engine, never
// applied blindly.
//
// The database is the single durable resource of the orchestration core.
// Schema changes bump the version in schema.go; treat this package as the
// source of truth for persistence semantics.
package project
