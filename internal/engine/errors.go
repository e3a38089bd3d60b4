package engine

import "errors"

var (
	// ErrNotFound reports an unknown project identifier.
	ErrNotFound = errors.New("project not found")
	// ErrInvalidTransition reports an intent that is not legal from the
	// project's current stage. No state change occurred.
	ErrInvalidTransition = errors.New("invalid transition")
	// ErrNotAtReviewGate reports an Approve on a project that is not halted
	// at a review gate.
	ErrNotAtReviewGate = errors.New("not at a review gate")
	// ErrStageLocked reports a settings edit rejected because the owning
	// stage has already executed (or the project is not at a review gate).
	ErrStageLocked = errors.New("stage locked")
	// ErrConcurrentModification reports a compare-and-set loss. The caller
	// should refetch and re-evaluate the intent, not resubmit stale data.
	ErrConcurrentModification = errors.New("concurrent modification")
	// ErrStaleAdvance reports a worker callback for an abandoned generation
	// epoch. The result is discarded; nothing was mutated.
	ErrStaleAdvance = errors.New("stale advance discarded")
)
