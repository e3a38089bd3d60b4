// Package watch polls the daemon for project progress, backing off when the
// daemon is unreachable and stopping on its own once the project leaves its
// processing stage.
package watch

import (
	"context"
	"log/slog"
	"time"

	"adforge/internal/api"
	"adforge/internal/config"
	"adforge/internal/logging"
	"adforge/internal/stage"
)

// Source is the slice of the API client the watcher needs.
type Source interface {
	Project(ctx context.Context, id string) (*api.ProjectSnapshot, error)
	Progress(ctx context.Context, id string) (*api.ProgressSnapshot, error)
}

// Update is one observation delivered to the consumer. Exactly one of
// Project/Err is set; Progress accompanies Project while the stage is
// processing. Degraded flips once consecutive failures pass the threshold
// and clears on the next success.
type Update struct {
	Project  *api.ProjectSnapshot
	Progress *api.ProgressSnapshot
	Degraded bool
	Err      error
}

// Backoff computes the delay before the next poll after consecutive
// failures. Zero failures means the base interval.
type Backoff struct {
	Base       time.Duration
	Ceiling    time.Duration
	Multiplier float64
}

// Next returns the poll delay for the given consecutive-failure count: the
// base interval through the first failure, then multiplied per additional
// consecutive failure up to the ceiling.
func (b Backoff) Next(failures int) time.Duration {
	delay := b.Base
	for i := 1; i < failures; i++ {
		delay = time.Duration(float64(delay) * b.Multiplier)
		if delay >= b.Ceiling {
			return b.Ceiling
		}
	}
	if delay < b.Base {
		return b.Base
	}
	return delay
}

// Watcher polls one project until it reaches a review gate or terminal stage.
type Watcher struct {
	source            Source
	projectID         string
	backoff           Backoff
	degradedThreshold int
	logger            *slog.Logger
}

// New builds a watcher with explicit backoff policy.
func New(source Source, projectID string, backoff Backoff, degradedThreshold int, logger *slog.Logger) *Watcher {
	if degradedThreshold <= 0 {
		degradedThreshold = 1
	}
	return &Watcher{
		source:            source,
		projectID:         projectID,
		backoff:           backoff,
		degradedThreshold: degradedThreshold,
		logger:            logging.NewComponentLogger(logger, "watch"),
	}
}

// FromConfig builds a watcher using the configured poll policy.
func FromConfig(cfg *config.Config, source Source, projectID string, logger *slog.Logger) *Watcher {
	return New(source, projectID, Backoff{
		Base:       time.Duration(cfg.Watch.PollIntervalSeconds) * time.Second,
		Ceiling:    time.Duration(cfg.Watch.BackoffCeilingSeconds) * time.Second,
		Multiplier: cfg.Watch.BackoffMultiplier,
	}, cfg.Watch.DegradedThreshold, logger)
}

// Start launches the poll loop. The returned channel closes when the project
// settles at a gate or terminal stage, or when ctx is cancelled. Failed polls
// surface as Updates with Err set so the consumer can render staleness.
func (w *Watcher) Start(ctx context.Context) <-chan Update {
	updates := make(chan Update)
	go w.run(ctx, updates)
	return updates
}

func (w *Watcher) run(ctx context.Context, updates chan<- Update) {
	defer close(updates)

	failures := 0
	for {
		update, done := w.poll(ctx)
		if update.Err != nil {
			failures++
			update.Degraded = failures >= w.degradedThreshold
			if update.Degraded {
				w.logger.Warn("poll degraded",
					logging.String(logging.FieldProjectID, w.projectID),
					logging.Int("consecutive_failures", failures),
					logging.Error(update.Err),
				)
			}
		} else {
			failures = 0
		}

		select {
		case updates <- update:
		case <-ctx.Done():
			return
		}
		if done {
			return
		}

		select {
		case <-time.After(w.backoff.Next(failures)):
		case <-ctx.Done():
			return
		}
	}
}

// poll fetches one observation. done reports that polling should stop: the
// project left its processing stage or disappeared.
func (w *Watcher) poll(ctx context.Context) (Update, bool) {
	p, err := w.source.Project(ctx, w.projectID)
	if err != nil {
		return Update{Err: err}, ctx.Err() != nil
	}

	st, ok := stage.Parse(p.Stage)
	if !ok || !stage.IsProcessing(st) {
		return Update{Project: p}, true
	}

	prog, err := w.source.Progress(ctx, w.projectID)
	if err != nil {
		// Progress is advisory; the project snapshot still counts as a
		// successful poll.
		w.logger.Debug("progress fetch failed",
			logging.String(logging.FieldProjectID, w.projectID),
			logging.Error(err),
		)
	}
	return Update{Project: p, Progress: prog}, false
}
