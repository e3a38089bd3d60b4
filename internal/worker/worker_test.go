package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/hibiken/asynq"

	"adforge/internal/dispatch"
	"adforge/internal/engine"
	"adforge/internal/logging"
	"adforge/internal/project"
	"adforge/internal/services"
	"adforge/internal/stage"
	"adforge/internal/testsupport"
	"adforge/internal/worker"
)

type stubGenerator struct {
	result worker.Result
	err    error
	got    worker.Job
}

func (g *stubGenerator) Generate(_ context.Context, job worker.Job, _ worker.UnitSink) (worker.Result, error) {
	g.got = job
	return g.result, g.err
}

func newHandlerFixture(t *testing.T, gen worker.Generator) (*worker.Server, *engine.Engine, *project.Store) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	eng := engine.New(cfg, store, engine.NoopDispatcher{}, logging.NewNop())
	srv := worker.New(cfg, eng, store, gen, logging.NewNop())
	return srv, eng, store
}

func generateTask(t *testing.T, p *project.Project) *asynq.Task {
	t.Helper()
	payload, err := json.Marshal(dispatch.Payload{
		ProjectID: p.ID,
		Stage:     string(p.Stage),
		Epoch:     p.GenerationEpoch,
		UnitCount: stage.ExpectedUnits(p.Stage),
		Settings:  p.Settings,
	})
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	return asynq.NewTask(dispatch.TaskTypeGenerate, payload)
}

func TestHandleGenerateAdvancesOnSuccess(t *testing.T) {
	gen := &stubGenerator{result: worker.Result{CostMinor: 5}}
	srv, eng, store := newHandlerFixture(t, gen)
	ctx := context.Background()

	p := testsupport.NewProject(t, store, "Handler")
	p, err := eng.Approve(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if err := srv.HandleGenerate(ctx, generateTask(t, p)); err != nil {
		t.Fatalf("HandleGenerate: %v", err)
	}
	if gen.got.Stage != stage.Analyzing || gen.got.ProjectID != p.ID {
		t.Fatalf("job = %+v", gen.got)
	}

	current, err := eng.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Stage != stage.AnalysisReview {
		t.Fatalf("stage = %s, want analysis_review", current.Stage)
	}
	if current.CostMinor != 5 {
		t.Fatalf("cost = %d, want 5", current.CostMinor)
	}
}

func TestHandleGenerateReportsFailure(t *testing.T) {
	gen := &stubGenerator{err: errors.New("render farm rejected job")}
	srv, eng, store := newHandlerFixture(t, gen)
	ctx := context.Background()

	p := testsupport.NewProject(t, store, "Handler")
	p, err := eng.Approve(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	if err := srv.HandleGenerate(ctx, generateTask(t, p)); err != nil {
		t.Fatalf("HandleGenerate: %v", err)
	}

	current, err := eng.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Stage != stage.Failed {
		t.Fatalf("stage = %s, want failed", current.Stage)
	}
	if current.ErrorMessage != "render farm rejected job" {
		t.Fatalf("error = %q, want backend error verbatim", current.ErrorMessage)
	}
}

func TestHandleGenerateTransientErrorRequeues(t *testing.T) {
	transient := services.Wrap(services.ErrTransient, string(stage.Casting), "generate", "rate limited", nil)
	gen := &stubGenerator{err: transient}
	srv, eng, store := newHandlerFixture(t, gen)
	ctx := context.Background()

	p := testsupport.NewProject(t, store, "Handler")
	p, err := eng.Approve(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}

	err = srv.HandleGenerate(ctx, generateTask(t, p))
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("err = %v, want transient error returned for redelivery", err)
	}

	current, getErr := eng.Get(ctx, p.ID)
	if getErr != nil {
		t.Fatalf("Get: %v", getErr)
	}
	if current.Stage != stage.Analyzing {
		t.Fatalf("transient error mutated stage to %s", current.Stage)
	}
}

func TestHandleGenerateDiscardsStaleReport(t *testing.T) {
	gen := &stubGenerator{}
	srv, eng, store := newHandlerFixture(t, gen)
	ctx := context.Background()

	p := testsupport.NewProject(t, store, "Handler")
	p, err := eng.Approve(ctx, p.ID, "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	task := generateTask(t, p)

	// Operator rolls the attempt back before the worker finishes.
	if _, err := eng.Rollback(ctx, p.ID); err != nil {
		t.Fatalf("Rollback: %v", err)
	}

	if err := srv.HandleGenerate(ctx, task); err != nil {
		t.Fatalf("stale report should be swallowed, got %v", err)
	}
	current, err := eng.Get(ctx, p.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if current.Stage != stage.Created {
		t.Fatalf("stale report mutated stage to %s", current.Stage)
	}
}

func TestHandleGenerateRejectsMalformedPayload(t *testing.T) {
	gen := &stubGenerator{}
	srv, _, _ := newHandlerFixture(t, gen)

	task := asynq.NewTask(dispatch.TaskTypeGenerate, []byte("{not json"))
	err := srv.HandleGenerate(context.Background(), task)
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("err = %v, want SkipRetry", err)
	}
}
