// Package impact computes the downstream blast radius of editing a stage's
// output after later stages have consumed it. Pure functions only; the
// analyzer never mutates project state.
package impact

import (
	"fmt"

	"adforge/internal/project"
	"adforge/internal/services"
	"adforge/internal/stage"
)

// Report is the computed preview presented to the operator before a
// destructive edit is allowed. RestartFrom is empty when nothing downstream
// consumed the data.
type Report struct {
	TargetStage        stage.Stage
	AffectedStages     []stage.Stage
	EstimatedCostMinor int64
	RestartFrom        stage.Stage
	Destructive        bool
}

// Analyze determines which stages strictly after targetStage and at or
// before the project's current stage already consumed the data being
// changed. Each stage consumes the outputs of every stage before it, so the
// affected set is the order interval (target, current], capped at the last
// non-terminal stage. Estimated cost sums the static regeneration cost of
// the affected processing stages.
func Analyze(p *project.Project, targetStage stage.Stage, changedKeys []string) (Report, error) {
	if p == nil {
		return Report{}, services.Wrap(services.ErrValidation, "", "analyze impact", "project is required", nil)
	}
	targetIdx, ok := stage.OrderOf(targetStage)
	if !ok {
		return Report{}, services.Wrap(services.ErrValidation, string(targetStage), "analyze impact", "unknown target stage", nil)
	}
	for _, key := range changedKeys {
		if !stage.KnownSetting(key) {
			return Report{}, services.Wrap(services.ErrValidation, string(targetStage), "analyze impact", fmt.Sprintf("unknown setting %q", key), nil)
		}
	}

	report := Report{TargetStage: targetStage}

	// A failed project's consumption boundary is the stage that failed.
	current := p.Stage
	if current == stage.Failed && p.FailedAtStage != "" {
		current = p.FailedAtStage
	}
	currentIdx, ok := stage.OrderOf(current)
	if !ok || currentIdx <= targetIdx {
		return report, nil
	}

	for _, s := range stage.All() {
		idx, _ := stage.OrderOf(s)
		if idx <= targetIdx || idx > currentIdx || stage.IsTerminal(s) {
			continue
		}
		report.AffectedStages = append(report.AffectedStages, s)
		if stage.IsProcessing(s) {
			report.EstimatedCostMinor += stage.RegenerationCostMinor(s)
		}
	}

	if len(report.AffectedStages) == 0 {
		return report, nil
	}

	report.Destructive = true
	if successor, ok := stage.Successor(targetStage); ok {
		report.RestartFrom = successor
	}
	return report, nil
}
