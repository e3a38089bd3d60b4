package progress_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"adforge/internal/logging"
	"adforge/internal/progress"
	"adforge/internal/project"
	"adforge/internal/stage"
)

type fakeUnits struct {
	counts project.UnitCounts
	err    error

	gotProject string
	gotStage   stage.Stage
	gotEpoch   int64
}

func (f *fakeUnits) UnitCounts(_ context.Context, projectID string, st stage.Stage, epoch int64) (project.UnitCounts, error) {
	f.gotProject = projectID
	f.gotStage = st
	f.gotEpoch = epoch
	return f.counts, f.err
}

func TestReportProcessingStage(t *testing.T) {
	started := time.Now().Add(-time.Minute)
	units := &fakeUnits{counts: project.UnitCounts{
		Total:      6,
		Completed:  3,
		Generating: 2,
		Failed:     1,
		StartedAt:  started,
	}}
	reporter := progress.NewReporter(units, logging.NewNop())

	p := &project.Project{ID: "p1", Stage: stage.BrollGeneration, GenerationEpoch: 2}
	snap, err := reporter.Report(context.Background(), p)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if snap.Total != 6 || snap.Completed != 3 || snap.Generating != 2 || snap.Failed != 1 {
		t.Fatalf("snapshot = %+v", snap)
	}
	if snap.Percent() != 50 {
		t.Fatalf("percent = %v, want 50", snap.Percent())
	}
	if !snap.StartedAt.Equal(started) {
		t.Fatalf("started_at = %v, want %v", snap.StartedAt, started)
	}
	if units.gotProject != "p1" || units.gotStage != stage.BrollGeneration || units.gotEpoch != 2 {
		t.Fatalf("unit query = (%s, %s, %d), want attempt-scoped", units.gotProject, units.gotStage, units.gotEpoch)
	}
}

func TestReportGateCarriesLabelOnly(t *testing.T) {
	units := &fakeUnits{}
	reporter := progress.NewReporter(units, logging.NewNop())

	p := &project.Project{ID: "p1", Stage: stage.ScriptReview}
	snap, err := reporter.Report(context.Background(), p)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if snap.Total != 0 || snap.CurrentStep == "" {
		t.Fatalf("gate snapshot = %+v", snap)
	}
	if units.gotProject != "" {
		t.Fatal("gate report should not query unit counts")
	}
}

func TestReportZeroTotalPercent(t *testing.T) {
	units := &fakeUnits{}
	reporter := progress.NewReporter(units, logging.NewNop())

	p := &project.Project{ID: "p1", Stage: stage.Analyzing}
	snap, err := reporter.Report(context.Background(), p)
	if err != nil {
		t.Fatalf("Report: %v", err)
	}
	if snap.Percent() != 0 {
		t.Fatalf("percent with zero total = %v, want 0", snap.Percent())
	}
}

func TestReportPropagatesSourceError(t *testing.T) {
	units := &fakeUnits{err: errors.New("db locked")}
	reporter := progress.NewReporter(units, logging.NewNop())

	p := &project.Project{ID: "p1", Stage: stage.Casting}
	if _, err := reporter.Report(context.Background(), p); err == nil {
		t.Fatal("expected unit source error to propagate")
	}
}
