package api

import (
	"errors"
	"net/http"

	"adforge/internal/engine"
	"adforge/internal/services"
)

// Error codes carried in the response envelope. The client maps them back to
// the engine's sentinel errors so callers can use errors.Is on both sides of
// the wire.
const (
	codeNotFound          = "not_found"
	codeInvalidTransition = "invalid_transition"
	codeNotAtReviewGate   = "not_at_review_gate"
	codeStageLocked       = "stage_locked"
	codeConflict          = "concurrent_modification"
	codeStaleDiscarded    = "stale_discarded"
	codeValidation        = "validation"
	codeInternal          = "internal"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

// statusForError maps engine and services sentinels onto HTTP semantics. A
// stale advance is not a caller mistake, the report is simply obsolete, so it
// is acknowledged with 202 rather than rejected.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound, codeNotFound
	case errors.Is(err, engine.ErrStaleAdvance):
		return http.StatusAccepted, codeStaleDiscarded
	case errors.Is(err, engine.ErrNotAtReviewGate):
		return http.StatusConflict, codeNotAtReviewGate
	case errors.Is(err, engine.ErrStageLocked):
		return http.StatusConflict, codeStageLocked
	case errors.Is(err, engine.ErrInvalidTransition):
		return http.StatusConflict, codeInvalidTransition
	case errors.Is(err, engine.ErrConcurrentModification):
		return http.StatusConflict, codeConflict
	case errors.Is(err, services.ErrValidation):
		return http.StatusBadRequest, codeValidation
	default:
		return http.StatusInternalServerError, codeInternal
	}
}

// sentinelForCode is the client-side inverse of statusForError.
func sentinelForCode(code string) error {
	switch code {
	case codeNotFound:
		return engine.ErrNotFound
	case codeStaleDiscarded:
		return engine.ErrStaleAdvance
	case codeNotAtReviewGate:
		return engine.ErrNotAtReviewGate
	case codeStageLocked:
		return engine.ErrStageLocked
	case codeInvalidTransition:
		return engine.ErrInvalidTransition
	case codeConflict:
		return engine.ErrConcurrentModification
	case codeValidation:
		return services.ErrValidation
	default:
		return nil
	}
}
