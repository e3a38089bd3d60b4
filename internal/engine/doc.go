// Package engine applies transition intents (advance, approve, fail, retry,
// rollback, restart, settings edits) to persisted projects.
//
// Every intent is one atomic read-modify-write: the engine loads the
// project, validates the intent against the stage registry, and persists the
// result through a compare-and-set keyed on the stage value and generation
// epoch it read. A lost CAS surfaces ConcurrentModification and never
// mutates state. Worker callbacks additionally carry the generation epoch of
// the attempt they belong to; a mismatch means the attempt was abandoned by
// a rollback and the result is discarded, not applied.
//
// The engine never blocks on generation work. Entering a processing stage
// hands the stage to a Dispatcher and returns.
package engine
