package watch_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"adforge/internal/api"
	"adforge/internal/logging"
	"adforge/internal/watch"
)

type scriptedSource struct {
	mu       sync.Mutex
	projects []*api.ProjectSnapshot
	errs     []error
	calls    int
	progress *api.ProgressSnapshot
}

func (s *scriptedSource) Project(context.Context, string) (*api.ProjectSnapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.errs) && s.errs[i] != nil {
		return nil, s.errs[i]
	}
	if i >= len(s.projects) {
		i = len(s.projects) - 1
	}
	return s.projects[i], nil
}

func (s *scriptedSource) Progress(context.Context, string) (*api.ProgressSnapshot, error) {
	if s.progress == nil {
		return nil, errors.New("no progress")
	}
	return s.progress, nil
}

func fastBackoff() watch.Backoff {
	return watch.Backoff{Base: time.Millisecond, Ceiling: 8 * time.Millisecond, Multiplier: 2}
}

func collect(t *testing.T, updates <-chan watch.Update) []watch.Update {
	t.Helper()
	var got []watch.Update
	deadline := time.After(5 * time.Second)
	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return got
			}
			got = append(got, update)
		case <-deadline:
			t.Fatalf("watcher never finished; got %d updates", len(got))
		}
	}
}

func TestBackoffPolicy(t *testing.T) {
	b := watch.Backoff{Base: 2 * time.Second, Ceiling: 30 * time.Second, Multiplier: 2}
	cases := []struct {
		failures int
		want     time.Duration
	}{
		{0, 2 * time.Second},
		{1, 2 * time.Second},
		{2, 4 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, 30 * time.Second},
		{10, 30 * time.Second},
	}
	for _, tc := range cases {
		if got := b.Next(tc.failures); got != tc.want {
			t.Errorf("Next(%d) = %v, want %v", tc.failures, got, tc.want)
		}
	}
}

func TestWatcherStopsAtReviewGate(t *testing.T) {
	source := &scriptedSource{
		projects: []*api.ProjectSnapshot{
			{ID: "p1", Stage: "analyzing", StageLabel: "Analyzing"},
			{ID: "p1", Stage: "analysis_review", StageLabel: "Analysis Review"},
		},
		progress: &api.ProgressSnapshot{Stage: "analyzing", Total: 1},
	}
	watcher := watch.New(source, "p1", fastBackoff(), 3, logging.NewNop())

	got := collect(t, watcher.Start(context.Background()))
	if len(got) != 2 {
		t.Fatalf("updates = %d, want 2", len(got))
	}
	if got[0].Progress == nil || got[0].Progress.Total != 1 {
		t.Fatalf("processing update missing progress: %+v", got[0])
	}
	last := got[len(got)-1]
	if last.Project.Stage != "analysis_review" {
		t.Fatalf("final stage = %s, want analysis_review", last.Project.Stage)
	}
	if last.Progress != nil {
		t.Fatal("gate update should not carry progress")
	}
}

func TestWatcherStopsAtTerminal(t *testing.T) {
	source := &scriptedSource{
		projects: []*api.ProjectSnapshot{{ID: "p1", Stage: "completed", StageLabel: "Completed"}},
	}
	watcher := watch.New(source, "p1", fastBackoff(), 3, logging.NewNop())

	got := collect(t, watcher.Start(context.Background()))
	if len(got) != 1 || got[0].Project.Stage != "completed" {
		t.Fatalf("updates = %+v", got)
	}
}

func TestWatcherDegradesAfterThreshold(t *testing.T) {
	unreachable := errors.New("connection refused")
	source := &scriptedSource{
		errs: []error{unreachable, unreachable, unreachable},
		projects: []*api.ProjectSnapshot{
			{ID: "p1", Stage: "completed", StageLabel: "Completed"},
		},
	}
	watcher := watch.New(source, "p1", fastBackoff(), 2, logging.NewNop())

	got := collect(t, watcher.Start(context.Background()))
	if len(got) != 4 {
		t.Fatalf("updates = %d, want 3 failures then success", len(got))
	}
	if got[0].Degraded {
		t.Fatal("first failure should not be degraded at threshold 2")
	}
	if !got[1].Degraded || !got[2].Degraded {
		t.Fatal("failures past the threshold should be degraded")
	}
	if got[3].Err != nil || got[3].Degraded {
		t.Fatalf("recovery update = %+v, want clean", got[3])
	}
}

func TestWatcherHonorsContextCancel(t *testing.T) {
	source := &scriptedSource{
		projects: []*api.ProjectSnapshot{{ID: "p1", Stage: "directing", StageLabel: "Directing"}},
		progress: &api.ProgressSnapshot{Stage: "directing", Total: 4},
	}
	watcher := watch.New(source, "p1", fastBackoff(), 3, logging.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	updates := watcher.Start(ctx)

	select {
	case <-updates:
	case <-time.After(5 * time.Second):
		t.Fatal("no first update")
	}
	cancel()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case _, ok := <-updates:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel not closed after cancel")
		}
	}
}
