// Package dispatch enqueues generation work for processing stages on a
// redis-backed task queue. The engine fires a task when a project enters a
// processing stage; an external generation worker consumes it and reports
// completion through the engine's Advance/Fail callbacks.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"adforge/internal/config"
	"adforge/internal/logging"
	"adforge/internal/project"
	"adforge/internal/stage"
)

// TaskTypeGenerate is the asynq task type carrying one stage attempt.
const TaskTypeGenerate = "pipeline:generate"

// Payload identifies the stage attempt a generation task belongs to. The
// epoch pins the attempt: a rollback bumps the project's epoch and the
// worker's eventual report is discarded by the engine.
type Payload struct {
	ProjectID string            `json:"project_id"`
	Stage     string            `json:"stage"`
	Epoch     int64             `json:"generation_epoch"`
	UnitCount int               `json:"unit_count"`
	Settings  map[string]string `json:"settings,omitempty"`
}

// Asynq dispatches stage attempts onto the task queue.
type Asynq struct {
	client    *asynq.Client
	timeout   time.Duration
	retention time.Duration
	logger    *slog.Logger
}

// NewAsynq constructs a dispatcher from the dispatch configuration section.
func NewAsynq(cfg *config.Config, logger *slog.Logger) *Asynq {
	client := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     cfg.Dispatch.RedisAddr,
		Password: cfg.Dispatch.RedisPassword,
		DB:       cfg.Dispatch.RedisDB,
	})
	return &Asynq{
		client:    client,
		timeout:   time.Duration(cfg.Dispatch.TaskTimeoutMin) * time.Minute,
		retention: time.Duration(cfg.Dispatch.RetentionHours) * time.Hour,
		logger:    logging.NewComponentLogger(logger, "dispatch"),
	}
}

// DispatchStage enqueues the generation task for the project's current
// processing stage. Queue-level retries cover transport failures only; the
// pipeline's own retry budget governs generation failures.
func (d *Asynq) DispatchStage(ctx context.Context, p *project.Project) error {
	payload, err := json.Marshal(Payload{
		ProjectID: p.ID,
		Stage:     string(p.Stage),
		Epoch:     p.GenerationEpoch,
		UnitCount: stage.ExpectedUnits(p.Stage),
		Settings:  p.Settings,
	})
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}

	task := asynq.NewTask(TaskTypeGenerate, payload,
		asynq.MaxRetry(2),
		asynq.Timeout(d.timeout),
		asynq.Retention(d.retention),
	)
	info, err := d.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue generation task: %w", err)
	}

	d.logger.Info("generation task enqueued",
		logging.String(logging.FieldProjectID, p.ID),
		logging.String(logging.FieldStage, string(p.Stage)),
		logging.Int64(logging.FieldEpoch, p.GenerationEpoch),
		logging.String("task_id", info.ID),
	)
	return nil
}

// Close releases the underlying redis connection.
func (d *Asynq) Close() error {
	if d == nil || d.client == nil {
		return nil
	}
	return d.client.Close()
}
