package stage

import "strings"

// Stage identifies one named position in the pipeline's total order.
type Stage string

const (
	Created             Stage = "created"
	Analyzing           Stage = "analyzing"
	AnalysisReview      Stage = "analysis_review"
	Scripting           Stage = "scripting"
	ScriptReview        Stage = "script_review"
	BrollPlanning       Stage = "broll_planning"
	BrollReview         Stage = "broll_review"
	BrollGeneration     Stage = "broll_generation"
	InfluencerSelection Stage = "influencer_selection"
	Casting             Stage = "casting"
	CastingReview       Stage = "casting_review"
	Directing           Stage = "directing"
	Voiceover           Stage = "voiceover"
	AssetReview         Stage = "asset_review"
	Editing             Stage = "editing"
	Completed           Stage = "completed"
	Failed              Stage = "failed"
)

// ordered is the pipeline's total order. Failed sits outside the order; it is
// reachable from any processing stage and has no successor.
var ordered = []Stage{
	Created,
	Analyzing,
	AnalysisReview,
	Scripting,
	ScriptReview,
	BrollPlanning,
	BrollReview,
	BrollGeneration,
	InfluencerSelection,
	Casting,
	CastingReview,
	Directing,
	Voiceover,
	AssetReview,
	Editing,
	Completed,
}

// Kind partitions stages into the three behaviors the transition engine
// distinguishes.
type Kind string

const (
	KindProcessing Kind = "processing"
	KindReviewGate Kind = "review_gate"
	KindTerminal   Kind = "terminal"
)

var kinds = map[Stage]Kind{
	Created:             KindReviewGate, // halts until the operator starts analysis
	Analyzing:           KindProcessing,
	AnalysisReview:      KindReviewGate,
	Scripting:           KindProcessing,
	ScriptReview:        KindReviewGate,
	BrollPlanning:       KindProcessing,
	BrollReview:         KindReviewGate,
	BrollGeneration:     KindProcessing,
	InfluencerSelection: KindReviewGate,
	Casting:             KindProcessing,
	CastingReview:       KindReviewGate,
	Directing:           KindProcessing,
	Voiceover:           KindProcessing,
	AssetReview:         KindReviewGate,
	Editing:             KindProcessing,
	Completed:           KindTerminal,
	Failed:              KindTerminal,
}

// rollbackTargets maps each processing stage to the review gate a
// cancellation or failure recovery returns the project to. Targets are
// always strictly earlier in stage order.
var rollbackTargets = map[Stage]Stage{
	Analyzing:       Created,
	Scripting:       AnalysisReview,
	BrollPlanning:   ScriptReview,
	BrollGeneration: BrollReview,
	Casting:         InfluencerSelection,
	Directing:       CastingReview,
	Voiceover:       CastingReview,
	Editing:         AssetReview,
}

var orderIndex = func() map[Stage]int {
	idx := make(map[Stage]int, len(ordered))
	for i, s := range ordered {
		idx[s] = i
	}
	return idx
}()

// All returns the ordered list of stages, excluding the off-order terminal
// Failed.
func All() []Stage {
	cp := make([]Stage, len(ordered))
	copy(cp, ordered)
	return cp
}

// Count reports the total number of known stages, Failed included. It bounds
// fast-mode approval chaining.
func Count() int {
	return len(ordered) + 1
}

// Parse converts a string into a known Stage.
func Parse(value string) (Stage, bool) {
	normalized := Stage(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	if _, ok := kinds[normalized]; !ok {
		return "", false
	}
	return normalized, true
}

// OrderOf returns a stage's position in the total order. Failed has no
// position and reports ok=false.
func OrderOf(s Stage) (int, bool) {
	idx, ok := orderIndex[s]
	return idx, ok
}

// KindOf returns the stage's kind, defaulting unknown values to terminal so
// callers never advance through garbage input.
func KindOf(s Stage) Kind {
	if kind, ok := kinds[s]; ok {
		return kind
	}
	return KindTerminal
}

// IsProcessing reports whether the stage runs automated generation work.
func IsProcessing(s Stage) bool { return KindOf(s) == KindProcessing }

// IsReviewGate reports whether the stage halts pending human approval.
func IsReviewGate(s Stage) bool { return KindOf(s) == KindReviewGate }

// IsTerminal reports whether the stage ends the pipeline.
func IsTerminal(s Stage) bool { return KindOf(s) == KindTerminal }

// Successor returns the next stage in the total order. Terminal stages and
// unknown values have no successor.
func Successor(s Stage) (Stage, bool) {
	idx, ok := orderIndex[s]
	if !ok || IsTerminal(s) || idx+1 >= len(ordered) {
		return "", false
	}
	return ordered[idx+1], true
}

// RollbackTarget returns the checkpoint a cancellation of the given
// processing stage returns the project to.
func RollbackTarget(s Stage) (Stage, bool) {
	target, ok := rollbackTargets[s]
	return target, ok
}

// FirstProcessing returns the earliest processing stage. The defensive
// retry-from-start path re-enters the pipeline here.
func FirstProcessing() Stage {
	for _, s := range ordered {
		if IsProcessing(s) {
			return s
		}
	}
	return Analyzing
}
