package stage

// autoRetryStages marks the processing stages whose failures consume the
// project's retry budget for an automatic re-dispatch before landing in
// failed. Cheap deterministic stages fail fast instead; the operator's
// manual Retry remains unlimited for every stage.
var autoRetryStages = map[Stage]struct{}{
	BrollGeneration: {},
	Casting:         {},
	Directing:       {},
	Voiceover:       {},
}

// AutoRetry reports whether a stage failure may consume retry budget for an
// automatic re-dispatch.
func AutoRetry(s Stage) bool {
	_, ok := autoRetryStages[s]
	return ok
}
