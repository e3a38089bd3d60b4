// Package worker runs the generation consumer: it pulls stage tasks off the
// queue, drives a Generator backend, and reports the outcome back through the
// transition engine. The engine's compare-and-swap checks make duplicate or
// late reports harmless.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"adforge/internal/config"
	"adforge/internal/dispatch"
	"adforge/internal/engine"
	"adforge/internal/logging"
	"adforge/internal/project"
	"adforge/internal/services"
	"adforge/internal/stage"
)

// Job describes one stage attempt handed to a Generator.
type Job struct {
	ProjectID string
	Stage     stage.Stage
	Epoch     int64
	UnitCount int
	Settings  map[string]string
}

// Result carries what a completed attempt cost.
type Result struct {
	CostMinor int64
}

// UnitSink receives per-unit state updates while an attempt runs. The project
// store satisfies it.
type UnitSink interface {
	UpsertUnit(ctx context.Context, unit project.Unit) error
}

// Generator produces the artifacts for one processing stage. Implementations
// wrap the external model/rendering backends; errors marked transient (see
// services.ErrTransient) are retried at the queue level instead of consuming
// the project's retry budget.
type Generator interface {
	Generate(ctx context.Context, job Job, units UnitSink) (Result, error)
}

// Server consumes generation tasks until Shutdown.
type Server struct {
	srv       *asynq.Server
	engine    *engine.Engine
	units     UnitSink
	generator Generator
	logger    *slog.Logger
}

// New constructs a worker bound to the configured redis queue.
func New(cfg *config.Config, eng *engine.Engine, units UnitSink, gen Generator, logger *slog.Logger) *Server {
	srv := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Dispatch.RedisAddr,
			Password: cfg.Dispatch.RedisPassword,
			DB:       cfg.Dispatch.RedisDB,
		},
		asynq.Config{Concurrency: cfg.Dispatch.WorkerConcurrent},
	)
	return &Server{
		srv:       srv,
		engine:    eng,
		units:     units,
		generator: gen,
		logger:    logging.NewComponentLogger(logger, "worker"),
	}
}

// Run blocks processing tasks until Shutdown is called.
func (s *Server) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(dispatch.TaskTypeGenerate, s.HandleGenerate)
	return s.srv.Run(mux)
}

// Shutdown drains in-flight tasks and stops the consumer.
func (s *Server) Shutdown() {
	s.srv.Shutdown()
}

// HandleGenerate processes a single generation task. Generation failures are
// reported through the engine, which owns the retry budget; only transient
// infrastructure errors propagate to the queue for redelivery.
func (s *Server) HandleGenerate(ctx context.Context, t *asynq.Task) error {
	var payload dispatch.Payload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("decode generation payload: %w: %w", err, asynq.SkipRetry)
	}
	st, ok := stage.Parse(payload.Stage)
	if !ok {
		return fmt.Errorf("unknown stage %q: %w", payload.Stage, asynq.SkipRetry)
	}

	job := Job{
		ProjectID: payload.ProjectID,
		Stage:     st,
		Epoch:     payload.Epoch,
		UnitCount: payload.UnitCount,
		Settings:  payload.Settings,
	}
	ctx = services.WithProjectID(ctx, job.ProjectID)
	ctx = services.WithStage(ctx, string(job.Stage))

	res, genErr := s.generator.Generate(ctx, job, s.units)
	if genErr != nil {
		if errors.Is(genErr, services.ErrTransient) {
			logging.WithContext(ctx, s.logger).Warn("transient generation error, requeueing",
				logging.Error(genErr))
			return genErr
		}
		_, failErr := s.engine.Fail(ctx, engine.FailRequest{
			ProjectID: job.ProjectID,
			Stage:     job.Stage,
			Epoch:     job.Epoch,
			ErrorInfo: genErr.Error(),
			CostMinor: res.CostMinor,
		})
		return s.reportOutcome(ctx, "failure", failErr)
	}

	_, advErr := s.engine.Advance(ctx, engine.AdvanceRequest{
		ProjectID: job.ProjectID,
		FromStage: job.Stage,
		Epoch:     job.Epoch,
		CostMinor: res.CostMinor,
	})
	return s.reportOutcome(ctx, "completion", advErr)
}

// reportOutcome maps engine results onto queue semantics. Stale reports are
// expected after rollbacks and count as handled.
func (s *Server) reportOutcome(ctx context.Context, kind string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, engine.ErrStaleAdvance),
		errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrNotFound):
		logging.WithContext(ctx, s.logger).Info("discarded out-of-date "+kind+" report",
			logging.Error(err))
		return nil
	default:
		return fmt.Errorf("report %s: %w", kind, err)
	}
}
