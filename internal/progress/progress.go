// Package progress aggregates per-stage generation unit counters for
// polling clients. It is read-only with respect to project state.
package progress

import (
	"context"
	"log/slog"
	"time"

	"adforge/internal/logging"
	"adforge/internal/project"
	"adforge/internal/stage"
)

// Snapshot reports the execution backend's unit counters for the active
// stage, plus a derived human step label. Completed+Generating+Failed never
// exceeds Total; Total is zero when the stage has dispatched nothing yet.
type Snapshot struct {
	Stage       stage.Stage
	CurrentStep string
	Completed   int
	Total       int
	Generating  int
	Failed      int
	StartedAt   time.Time
}

// Percent derives completion as a 0-100 value, tolerating Total == 0.
func (s Snapshot) Percent() float64 {
	if s.Total == 0 {
		return 0
	}
	return float64(s.Completed) / float64(s.Total) * 100
}

// UnitSource supplies unit counters for one stage attempt. *project.Store
// implements it.
type UnitSource interface {
	UnitCounts(ctx context.Context, projectID string, st stage.Stage, epoch int64) (project.UnitCounts, error)
}

// Reporter exposes progress snapshots for polling clients.
type Reporter struct {
	units  UnitSource
	logger *slog.Logger
}

// NewReporter constructs a progress reporter over the given unit source.
func NewReporter(units UnitSource, logger *slog.Logger) *Reporter {
	return &Reporter{
		units:  units,
		logger: logging.NewComponentLogger(logger, "progress"),
	}
}

// Report aggregates the active stage's unit counters. Non-processing stages
// report an empty snapshot carrying only the stage and its label.
func (r *Reporter) Report(ctx context.Context, p *project.Project) (Snapshot, error) {
	snapshot := Snapshot{
		Stage:       p.Stage,
		CurrentStep: stage.Label(p.Stage),
	}
	if !p.IsProcessing() {
		return snapshot, nil
	}

	counts, err := r.units.UnitCounts(ctx, p.ID, p.Stage, p.GenerationEpoch)
	if err != nil {
		return Snapshot{}, err
	}
	snapshot.Total = counts.Total
	snapshot.Completed = counts.Completed
	snapshot.Generating = counts.Generating
	snapshot.Failed = counts.Failed
	snapshot.StartedAt = counts.StartedAt
	return snapshot, nil
}
