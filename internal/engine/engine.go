package engine

import (
	"context"
	"fmt"
	"log/slog"

	"adforge/internal/config"
	"adforge/internal/logging"
	"adforge/internal/project"
	"adforge/internal/services"
	"adforge/internal/stage"
	"adforge/internal/telemetry"
)

// Dispatcher hands a processing stage to the generation backend. The engine
// treats dispatch as fire-and-forget; completion arrives later as an Advance
// or Fail callback carrying the attempt's generation epoch.
type Dispatcher interface {
	DispatchStage(ctx context.Context, p *project.Project) error
}

// NoopDispatcher satisfies Dispatcher without enqueueing anything. Used in
// tests and when dispatch is disabled in configuration.
type NoopDispatcher struct{}

func (NoopDispatcher) DispatchStage(context.Context, *project.Project) error { return nil }

// Engine applies transition intents to persisted projects.
type Engine struct {
	store          *project.Store
	dispatcher     Dispatcher
	logger         *slog.Logger
	maxRetryBudget int
}

// New constructs a transition engine.
func New(cfg *config.Config, store *project.Store, dispatcher Dispatcher, logger *slog.Logger) *Engine {
	if dispatcher == nil {
		dispatcher = NoopDispatcher{}
	}
	maxBudget := 0
	if cfg != nil {
		maxBudget = cfg.Pipeline.MaxRetryBudget
	}
	return &Engine{
		store:          store,
		dispatcher:     dispatcher,
		logger:         logging.NewComponentLogger(logger, "engine"),
		maxRetryBudget: maxBudget,
	}
}

// Get fetches a project, mapping absence to ErrNotFound.
func (e *Engine) Get(ctx context.Context, id string) (*project.Project, error) {
	p, err := e.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return p, nil
}

// AdvanceRequest is the worker callback reporting successful completion of a
// processing stage.
type AdvanceRequest struct {
	ProjectID string
	FromStage stage.Stage
	Epoch     int64
	CostMinor int64
}

// Advance moves a project off a completed processing stage. The FromStage
// argument must match the persisted stage (stale-advance rejection) and the
// epoch must match the current generation epoch (abandoned attempts are
// discarded). When the successor is a review gate and fast mode is set,
// approvals chain until the next processing stage or completion.
func (e *Engine) Advance(ctx context.Context, req AdvanceRequest) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, req.ProjectID), "advance")
	p, err := e.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if req.Epoch != p.GenerationEpoch {
		e.discardStale(ctx, p, req.FromStage, req.Epoch)
		return nil, ErrStaleAdvance
	}
	if !stage.IsProcessing(req.FromStage) || p.Stage != req.FromStage {
		return nil, fmt.Errorf("%w: advance from %s but project is at %s", ErrInvalidTransition, req.FromStage, p.Stage)
	}

	next, ok := stage.Successor(req.FromStage)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no successor", ErrInvalidTransition, req.FromStage)
	}

	updated := p.Clone()
	updated.Stage = e.chainGates(next, updated.FastMode)
	if req.CostMinor > 0 {
		updated.CostMinor += req.CostMinor
	}
	updated.ErrorMessage = ""

	if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("advance").Inc()
	e.log(ctx, updated, "stage advanced",
		logging.String("from", string(req.FromStage)),
		logging.Int64("cost_minor", updated.CostMinor),
	)
	return updated, e.dispatchIfProcessing(ctx, updated)
}

// Approve releases a project halted at a review gate. The gate argument
// names the gate being approved; when the project has already advanced
// strictly past it the duplicate is a no-op success so double-clicks and
// network retries stay harmless. An empty gate approves the current stage.
func (e *Engine) Approve(ctx context.Context, id string, gate stage.Stage) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, id), "approve")
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if gate == "" {
		gate = p.Stage
	}
	if !stage.IsReviewGate(gate) {
		return nil, fmt.Errorf("%w: %s is not a review gate", ErrNotAtReviewGate, gate)
	}
	if p.Stage != gate {
		if pastGate(p.Stage, gate) {
			e.log(ctx, p, "duplicate approve ignored", logging.String("gate", string(gate)))
			return p, nil
		}
		return nil, fmt.Errorf("%w: project is at %s", ErrNotAtReviewGate, p.Stage)
	}

	next, ok := stage.Successor(gate)
	if !ok {
		return nil, fmt.Errorf("%w: %s has no successor", ErrInvalidTransition, gate)
	}

	updated := p.Clone()
	updated.Stage = e.chainGates(next, updated.FastMode)

	if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
		// A racing duplicate may have won the CAS; if the project moved past
		// the gate the intent is already satisfied.
		if refetched, getErr := e.Get(ctx, id); getErr == nil && pastGate(refetched.Stage, gate) {
			return refetched, nil
		}
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("approve").Inc()
	e.log(ctx, updated, "review gate approved", logging.String("gate", string(gate)))
	return updated, e.dispatchIfProcessing(ctx, updated)
}

// FailRequest is the worker callback reporting a generation error.
type FailRequest struct {
	ProjectID string
	Stage     stage.Stage
	Epoch     int64
	ErrorInfo string
	CostMinor int64
}

// Fail records a generation failure. Stages with an automatic-retry policy
// consume one unit of retry budget and re-dispatch under a fresh generation
// epoch instead of failing; once
// the budget is exhausted the project lands in failed with the stage
// recorded in failed_at_stage. Cost already spent is kept, never refunded.
func (e *Engine) Fail(ctx context.Context, req FailRequest) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, req.ProjectID), "fail")
	p, err := e.Get(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}

	if req.Epoch != p.GenerationEpoch {
		e.discardStale(ctx, p, req.Stage, req.Epoch)
		return nil, ErrStaleAdvance
	}
	if !stage.IsProcessing(req.Stage) || p.Stage != req.Stage {
		return nil, fmt.Errorf("%w: fail at %s but project is at %s", ErrInvalidTransition, req.Stage, p.Stage)
	}

	updated := p.Clone()
	if req.CostMinor > 0 {
		updated.CostMinor += req.CostMinor
	}
	updated.ErrorMessage = req.ErrorInfo

	if stage.AutoRetry(req.Stage) && updated.RetryBudget > 0 {
		updated.RetryBudget--
		// The new attempt gets a fresh epoch so a re-delivered or late
		// callback from the failed one lands on ErrStaleAdvance instead of
		// burning another budget unit.
		updated.GenerationEpoch++
		if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
			return nil, err
		}
		telemetry.AutoRetries.Inc()
		e.log(ctx, updated, "stage failure absorbed by retry budget",
			logging.String("error_info", req.ErrorInfo),
			logging.Int("retry_budget", updated.RetryBudget),
			logging.Int64(logging.FieldEpoch, updated.GenerationEpoch),
		)
		return updated, e.dispatchIfProcessing(ctx, updated)
	}

	updated.Stage = stage.Failed
	updated.FailedAtStage = req.Stage

	if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("fail").Inc()
	telemetry.GenerationFailures.Inc()
	e.log(ctx, updated, "stage failed",
		logging.String("failed_at", string(req.Stage)),
		logging.String("error_info", req.ErrorInfo),
	)
	return updated, nil
}

// Retry re-enters the failed stage as processing under a fresh generation
// epoch, so late callbacks from the abandoned attempt are discarded. Manual
// retries are unlimited; the stage's own automatic-retry budget applies
// during the new attempt. A failed project missing its failure marker
// should not occur;
// that defensive path restarts from the first processing stage and is
// logged loudly rather than silently advanced.
func (e *Engine) Retry(ctx context.Context, id string) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, id), "retry")
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Stage != stage.Failed {
		return nil, fmt.Errorf("%w: retry requires a failed project, got %s", ErrInvalidTransition, p.Stage)
	}

	target := p.FailedAtStage
	if target == "" {
		target = stage.FirstProcessing()
		e.log(ctx, p, "failed project missing failure marker, retrying from start",
			logging.Alert("missing_failed_at_stage"),
			logging.String("target", string(target)),
		)
	}

	updated := p.Clone()
	updated.Stage = target
	updated.FailedAtStage = ""
	updated.ErrorMessage = ""
	updated.GenerationEpoch++

	if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("retry").Inc()
	e.log(ctx, updated, "retrying failed stage",
		logging.String("target", string(target)),
		logging.Int64(logging.FieldEpoch, updated.GenerationEpoch),
	)
	return updated, e.dispatchIfProcessing(ctx, updated)
}

// Rollback cancels the current attempt and returns the project to its
// rollback target. It increments the generation epoch so late callbacks from
// the abandoned attempt are discarded; it does not (and cannot) cancel
// already-dispatched external work. Rollback of a project already halted at
// a review gate is a no-op success.
func (e *Engine) Rollback(ctx context.Context, id string) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, id), "rollback")
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if stage.IsReviewGate(p.Stage) {
		e.log(ctx, p, "rollback ignored, project already halted")
		return p, nil
	}

	var from stage.Stage
	switch {
	case p.Stage == stage.Failed:
		from = p.FailedAtStage
	case p.IsProcessing():
		from = p.Stage
	default:
		return nil, fmt.Errorf("%w: rollback requires a failed or processing project, got %s", ErrInvalidTransition, p.Stage)
	}

	target, ok := stage.RollbackTarget(from)
	if !ok {
		target = stage.Created
		e.log(ctx, p, "no rollback target recorded, returning to start",
			logging.Alert("missing_rollback_target"),
			logging.String("from", string(from)),
		)
	}

	updated := p.Clone()
	updated.Stage = target
	updated.FailedAtStage = ""
	updated.ErrorMessage = ""
	updated.GenerationEpoch++

	if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("rollback").Inc()
	e.log(ctx, updated, "rolled back",
		logging.String("from", string(from)),
		logging.String("target", string(target)),
		logging.Int64(logging.FieldEpoch, updated.GenerationEpoch),
	)
	return updated, nil
}

// RollbackTo re-enters an earlier processing stage after a confirmed
// destructive edit (the impact report's restartFrom). Legal from any
// non-failed stage at or after restartFrom, including completed. The epoch
// increments so any in-flight attempt is abandoned.
func (e *Engine) RollbackTo(ctx context.Context, id string, restartFrom stage.Stage) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, id), "restart")
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !stage.IsProcessing(restartFrom) {
		return nil, fmt.Errorf("%w: restart target %s is not a processing stage", ErrInvalidTransition, restartFrom)
	}
	curIdx, ok := stage.OrderOf(p.Stage)
	if !ok {
		return nil, fmt.Errorf("%w: restart requires a non-failed project", ErrInvalidTransition)
	}
	restartIdx, _ := stage.OrderOf(restartFrom)
	if restartIdx > curIdx {
		return nil, fmt.Errorf("%w: restart target %s is ahead of %s", ErrInvalidTransition, restartFrom, p.Stage)
	}

	updated := p.Clone()
	updated.Stage = restartFrom
	updated.FailedAtStage = ""
	updated.ErrorMessage = ""
	updated.GenerationEpoch++

	if err := e.commit(ctx, updated, p.Stage, p.GenerationEpoch); err != nil {
		return nil, err
	}
	telemetry.TransitionsTotal.WithLabelValues("restart").Inc()
	e.log(ctx, updated, "restarting from earlier stage",
		logging.String("restart_from", string(restartFrom)),
		logging.Int64(logging.FieldEpoch, updated.GenerationEpoch),
	)
	return updated, e.dispatchIfProcessing(ctx, updated)
}

// SettingsUpdate describes a settings-bag mutation.
type SettingsUpdate struct {
	FastMode    *bool
	RetryBudget *int
	Values      map[string]string
}

// UpdateSettings mutates the settings bag. Stage-owned keys are accepted
// only while the project is halted at a review gate strictly before the
// owning stage; fast_mode and retry_budget are accepted at any review gate.
// The retry budget clamps to [0, max].
func (e *Engine) UpdateSettings(ctx context.Context, id string, upd SettingsUpdate) (*project.Project, error) {
	ctx = services.WithIntent(services.WithProjectID(ctx, id), "settings")
	p, err := e.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if !stage.IsReviewGate(p.Stage) {
		return nil, fmt.Errorf("%w: settings are mutable only at a review gate, project is at %s", ErrStageLocked, p.Stage)
	}
	curIdx, _ := stage.OrderOf(p.Stage)
	for key := range upd.Values {
		owner, ok := stage.OwningStage(key)
		if !ok {
			return nil, services.Wrap(services.ErrValidation, string(p.Stage), "update settings", fmt.Sprintf("unknown setting %q", key), nil)
		}
		ownerIdx, _ := stage.OrderOf(owner)
		if curIdx >= ownerIdx {
			return nil, fmt.Errorf("%w: %s already consumed %q", ErrStageLocked, owner, key)
		}
	}

	updated := p.Clone()
	if updated.Settings == nil && len(upd.Values) > 0 {
		updated.Settings = make(map[string]string, len(upd.Values))
	}
	for key, value := range upd.Values {
		updated.Settings[key] = value
	}
	if upd.FastMode != nil {
		updated.FastMode = *upd.FastMode
	}
	if upd.RetryBudget != nil {
		budget := *upd.RetryBudget
		if budget < 0 {
			budget = 0
		}
		if budget > e.maxRetryBudget {
			budget = e.maxRetryBudget
		}
		updated.RetryBudget = budget
	}

	ok, err := e.store.UpdateSettingsCAS(ctx, updated, p.Stage)
	if err != nil {
		return nil, err
	}
	if !ok {
		telemetry.TransitionConflicts.Inc()
		return nil, fmt.Errorf("%w: project left %s during settings edit", ErrConcurrentModification, p.Stage)
	}
	e.log(ctx, updated, "settings updated", logging.Int("keys", len(upd.Values)))
	return updated, nil
}

// Delete removes a project out-of-band. Not a pipeline transition.
func (e *Engine) Delete(ctx context.Context, id string) error {
	removed, err := e.store.Delete(ctx, id)
	if err != nil {
		return err
	}
	if !removed {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	e.logger.Info("project deleted", logging.String(logging.FieldProjectID, id))
	return nil
}

// chainGates walks consecutive review gates under fast mode until reaching a
// processing stage or a terminal. Bounded by the stage count so a malformed
// registry cannot loop.
func (e *Engine) chainGates(next stage.Stage, fastMode bool) stage.Stage {
	if !fastMode {
		return next
	}
	for i := 0; i < stage.Count() && stage.IsReviewGate(next); i++ {
		successor, ok := stage.Successor(next)
		if !ok {
			break
		}
		next = successor
	}
	return next
}

// commit persists a transition via compare-and-set and maps a lost race to
// ErrConcurrentModification.
func (e *Engine) commit(ctx context.Context, updated *project.Project, fromStage stage.Stage, fromEpoch int64) error {
	ok, err := e.store.CASTransition(ctx, updated, fromStage, fromEpoch)
	if err != nil {
		return err
	}
	if !ok {
		telemetry.TransitionConflicts.Inc()
		return fmt.Errorf("%w: project left %s concurrently", ErrConcurrentModification, fromStage)
	}
	return nil
}

// dispatchIfProcessing seeds the attempt's generation units and hands the
// stage to the dispatcher. Dispatch failures leave the transition applied;
// the operator recovers via rollback and re-approval.
func (e *Engine) dispatchIfProcessing(ctx context.Context, p *project.Project) error {
	if !p.IsProcessing() {
		return nil
	}
	if _, err := e.store.SeedUnits(ctx, p.ID, p.Stage, p.GenerationEpoch, stage.ExpectedUnits(p.Stage)); err != nil {
		return fmt.Errorf("seed generation units: %w", err)
	}
	if err := e.dispatcher.DispatchStage(ctx, p); err != nil {
		e.log(ctx, p, "stage dispatch failed",
			logging.Alert("dispatch_failed"),
			logging.Error(err),
		)
		return fmt.Errorf("dispatch %s: %w", p.Stage, err)
	}
	telemetry.StageDispatches.Inc()
	return nil
}

func (e *Engine) discardStale(ctx context.Context, p *project.Project, reported stage.Stage, reportedEpoch int64) {
	telemetry.StaleAdvancesDiscarded.Inc()
	e.log(ctx, p, "worker result discarded for abandoned epoch",
		logging.String(logging.FieldEventType, "stale_advance"),
		logging.String("reported_stage", string(reported)),
		logging.Int64("reported_epoch", reportedEpoch),
		logging.Int64(logging.FieldEpoch, p.GenerationEpoch),
	)
}

func (e *Engine) log(ctx context.Context, p *project.Project, msg string, attrs ...logging.Attr) {
	logger := logging.WithContext(ctx, e.logger)
	base := []logging.Attr{logging.String(logging.FieldStage, string(p.Stage))}
	logger.Info(msg, logging.Args(append(base, attrs...)...)...)
}

func pastGate(current, gate stage.Stage) bool {
	curIdx, okCur := stage.OrderOf(current)
	gateIdx, okGate := stage.OrderOf(gate)
	return okCur && okGate && curIdx > gateIdx
}
