// Package api exposes the pipeline over HTTP: project lifecycle operations
// for operators, completion callbacks for generation workers, and progress
// polling for watch clients. A matching Go client lives alongside the server
// so the CLI and watchers speak typed errors instead of status codes.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"adforge/internal/config"
	"adforge/internal/engine"
	"adforge/internal/impact"
	"adforge/internal/logging"
	"adforge/internal/progress"
	"adforge/internal/project"
	"adforge/internal/services"
	"adforge/internal/stage"
	"adforge/internal/telemetry"
)

// Server routes pipeline operations to the engine and store.
type Server struct {
	cfg      *config.Config
	engine   *engine.Engine
	store    *project.Store
	reporter *progress.Reporter
	logger   *slog.Logger
}

// NewServer wires the HTTP surface. The reporter may share the store's unit
// source; both are required.
func NewServer(cfg *config.Config, eng *engine.Engine, store *project.Store, reporter *progress.Reporter, logger *slog.Logger) *Server {
	return &Server{
		cfg:      cfg,
		engine:   eng,
		store:    store,
		reporter: reporter,
		logger:   logging.NewComponentLogger(logger, "api"),
	}
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.requestID)
	r.Use(s.logRequests)

	r.Get("/healthz", s.handleHealthz)
	r.Method(http.MethodGet, "/metrics", telemetry.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Route("/projects", func(r chi.Router) {
			r.Post("/", s.handleCreate)
			r.Get("/", s.handleList)
			r.Route("/{projectID}", func(r chi.Router) {
				r.Get("/", s.handleGet)
				r.Delete("/", s.handleDelete)
				r.Get("/progress", s.handleProgress)
				r.Post("/approve", s.handleApprove)
				r.Post("/retry", s.handleRetry)
				r.Post("/rollback", s.handleRollback)
				r.Post("/restart", s.handleRestart)
				r.Patch("/settings", s.handleSettings)
				r.Post("/impact", s.handleImpact)
				r.Post("/advance", s.handleAdvance)
				r.Post("/fail", s.handleFail)
				r.Post("/units", s.handleUnit)
			})
		})
	})
	return r
}

// requestID threads a correlation id through the request context so log
// records from the engine carry it.
func (s *Server) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r.WithContext(services.WithRequestID(r.Context(), rid)))
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		logging.WithContext(r.Context(), s.logger).Debug("request",
			logging.String("method", r.Method),
			logging.String("path", r.URL.Path),
			logging.Int("status", ww.Status()),
			logging.Duration("elapsed", time.Since(start)),
		)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	health, err := s.store.Health(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, statusResponse{
		Total:      health.Total,
		Processing: health.Processing,
		AtGate:     health.AtGate,
		Failed:     health.Failed,
		Completed:  health.Completed,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createProjectRequest
	if !s.decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		s.writeError(w, r, services.Wrap(services.ErrValidation, string(stage.Created), "create", "title is required", nil))
		return
	}
	seed := project.Seed{
		Title:       req.Title,
		FastMode:    req.FastMode || s.cfg.Pipeline.FastMode,
		RetryBudget: s.cfg.Pipeline.DefaultRetryBudget,
		Settings:    s.seedSettings(req.Settings),
	}
	if req.RetryBudget != nil {
		seed.RetryBudget = *req.RetryBudget
	}
	if seed.RetryBudget < 0 || seed.RetryBudget > s.cfg.Pipeline.MaxRetryBudget {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "create", "retry budget out of range", nil))
		return
	}
	p, err := s.store.Create(r.Context(), seed)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusCreated, newProjectSnapshot(p))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	var stages []stage.Stage
	if raw := r.URL.Query().Get("stage"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, ok := stage.Parse(strings.TrimSpace(part))
			if !ok {
				s.writeError(w, r, services.Wrap(services.ErrValidation, "", "list", "unknown stage "+part, nil))
				return
			}
			stages = append(stages, st)
		}
	}
	projects, err := s.store.List(r.Context(), stages...)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]ProjectSnapshot, 0, len(projects))
	for _, p := range projects {
		out = append(out, newProjectSnapshot(p))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Get(r.Context(), s.projectID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Delete(r.Context(), s.projectID(r)); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Get(r.Context(), s.projectID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	snap, err := s.reporter.Report(r.Context(), p)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProgressSnapshot(snap))
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request) {
	var req approveRequest
	if !s.decode(w, r, &req) {
		return
	}
	var gate stage.Stage
	if req.Stage != "" {
		st, ok := stage.Parse(req.Stage)
		if !ok {
			s.writeError(w, r, services.Wrap(services.ErrValidation, "", "approve", "unknown stage "+req.Stage, nil))
			return
		}
		gate = st
	}
	p, err := s.engine.Approve(r.Context(), s.projectID(r), gate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleRetry(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Retry(r.Context(), s.projectID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleRollback(w http.ResponseWriter, r *http.Request) {
	p, err := s.engine.Rollback(r.Context(), s.projectID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleRestart(w http.ResponseWriter, r *http.Request) {
	var req restartRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := stage.Parse(req.Stage)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "restart", "unknown stage "+req.Stage, nil))
		return
	}
	p, err := s.engine.RollbackTo(r.Context(), s.projectID(r), st)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.engine.UpdateSettings(r.Context(), s.projectID(r), engine.SettingsUpdate{
		FastMode:    req.FastMode,
		RetryBudget: req.RetryBudget,
		Values:      req.Values,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleImpact(w http.ResponseWriter, r *http.Request) {
	var req impactRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := stage.Parse(req.TargetStage)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "impact", "unknown stage "+req.TargetStage, nil))
		return
	}
	p, err := s.engine.Get(r.Context(), s.projectID(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	report, err := impact.Analyze(p, st, req.Keys)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newImpactReport(report))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	var req advanceRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := stage.Parse(req.FromStage)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "advance", "unknown stage "+req.FromStage, nil))
		return
	}
	p, err := s.engine.Advance(r.Context(), engine.AdvanceRequest{
		ProjectID: s.projectID(r),
		FromStage: st,
		Epoch:     req.Epoch,
		CostMinor: req.CostMinor,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleFail(w http.ResponseWriter, r *http.Request) {
	var req failRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := stage.Parse(req.Stage)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "fail", "unknown stage "+req.Stage, nil))
		return
	}
	p, err := s.engine.Fail(r.Context(), engine.FailRequest{
		ProjectID: s.projectID(r),
		Stage:     st,
		Epoch:     req.Epoch,
		ErrorInfo: req.Error,
		CostMinor: req.CostMinor,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.writeJSON(w, http.StatusOK, newProjectSnapshot(p))
}

func (s *Server) handleUnit(w http.ResponseWriter, r *http.Request) {
	var req unitRequest
	if !s.decode(w, r, &req) {
		return
	}
	st, ok := stage.Parse(req.Stage)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "unit", "unknown stage "+req.Stage, nil))
		return
	}
	state, ok := project.ParseUnitState(req.State)
	if !ok {
		s.writeError(w, r, services.Wrap(services.ErrValidation, string(st), "unit", "unknown unit state "+req.State, nil))
		return
	}
	err := s.store.UpsertUnit(r.Context(), project.Unit{
		ID:              req.UnitID,
		ProjectID:       s.projectID(r),
		Stage:           st,
		GenerationEpoch: req.Epoch,
		State:           state,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// seedSettings layers the configured defaults under caller-provided values.
func (s *Server) seedSettings(values map[string]string) map[string]string {
	merged := map[string]string{
		stage.SettingTone:       s.cfg.Pipeline.DefaultTone,
		stage.SettingVideoModel: s.cfg.Pipeline.DefaultVideoModel,
	}
	for k, v := range values {
		merged[k] = v
	}
	return merged
}

func (s *Server) projectID(r *http.Request) string {
	return chi.URLParam(r, "projectID")
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.writeError(w, r, services.Wrap(services.ErrValidation, "", "decode", "malformed request body", err))
		return false
	}
	return true
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Warn("encode response", logging.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		logging.WithContext(r.Context(), s.logger).Error("request failed", logging.Error(err))
	}
	s.writeJSON(w, status, errorEnvelope{Error: errorBody{Code: code, Message: err.Error()}})
}
