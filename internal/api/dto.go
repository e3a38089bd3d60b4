package api

import (
	"time"

	"adforge/internal/impact"
	"adforge/internal/progress"
	"adforge/internal/project"
	"adforge/internal/stage"
)

// ProjectSnapshot is the wire form of a project row.
type ProjectSnapshot struct {
	ID              string            `json:"id"`
	Title           string            `json:"title"`
	Stage           string            `json:"stage"`
	StageLabel      string            `json:"stage_label"`
	FailedAtStage   string            `json:"failed_at_stage,omitempty"`
	CostMinor       int64             `json:"cost_minor"`
	RetryBudget     int               `json:"retry_budget"`
	FastMode        bool              `json:"fast_mode"`
	Settings        map[string]string `json:"settings,omitempty"`
	GenerationEpoch int64             `json:"generation_epoch"`
	ErrorMessage    string            `json:"error_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

func newProjectSnapshot(p *project.Project) ProjectSnapshot {
	return ProjectSnapshot{
		ID:              p.ID,
		Title:           p.Title,
		Stage:           string(p.Stage),
		StageLabel:      stage.Label(p.Stage),
		FailedAtStage:   string(p.FailedAtStage),
		CostMinor:       p.CostMinor,
		RetryBudget:     p.RetryBudget,
		FastMode:        p.FastMode,
		Settings:        p.Settings,
		GenerationEpoch: p.GenerationEpoch,
		ErrorMessage:    p.ErrorMessage,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// ProgressSnapshot is the wire form of a progress report.
type ProgressSnapshot struct {
	Stage       string    `json:"stage"`
	CurrentStep string    `json:"current_step"`
	Completed   int       `json:"completed"`
	Total       int       `json:"total"`
	Generating  int       `json:"generating"`
	Failed      int       `json:"failed"`
	Percent     float64   `json:"percent"`
	StartedAt   time.Time `json:"started_at,omitempty"`
}

func newProgressSnapshot(s progress.Snapshot) ProgressSnapshot {
	return ProgressSnapshot{
		Stage:       string(s.Stage),
		CurrentStep: s.CurrentStep,
		Completed:   s.Completed,
		Total:       s.Total,
		Generating:  s.Generating,
		Failed:      s.Failed,
		Percent:     s.Percent(),
		StartedAt:   s.StartedAt,
	}
}

// ImpactReport is the wire form of a settings-change analysis.
type ImpactReport struct {
	TargetStage        string   `json:"target_stage"`
	AffectedStages     []string `json:"affected_stages"`
	EstimatedCostMinor int64    `json:"estimated_cost_minor"`
	RestartFrom        string   `json:"restart_from,omitempty"`
	Destructive        bool     `json:"destructive"`
}

func newImpactReport(r impact.Report) ImpactReport {
	affected := make([]string, 0, len(r.AffectedStages))
	for _, st := range r.AffectedStages {
		affected = append(affected, string(st))
	}
	return ImpactReport{
		TargetStage:        string(r.TargetStage),
		AffectedStages:     affected,
		EstimatedCostMinor: r.EstimatedCostMinor,
		RestartFrom:        string(r.RestartFrom),
		Destructive:        r.Destructive,
	}
}

type createProjectRequest struct {
	Title       string            `json:"title"`
	FastMode    bool              `json:"fast_mode"`
	RetryBudget *int              `json:"retry_budget,omitempty"`
	Settings    map[string]string `json:"settings,omitempty"`
}

type approveRequest struct {
	Stage string `json:"stage,omitempty"`
}

type restartRequest struct {
	Stage string `json:"stage"`
}

type settingsRequest struct {
	FastMode    *bool             `json:"fast_mode,omitempty"`
	RetryBudget *int              `json:"retry_budget,omitempty"`
	Values      map[string]string `json:"values,omitempty"`
}

type impactRequest struct {
	TargetStage string   `json:"target_stage"`
	Keys        []string `json:"keys,omitempty"`
}

type advanceRequest struct {
	FromStage string `json:"from_stage"`
	Epoch     int64  `json:"generation_epoch"`
	CostMinor int64  `json:"cost_minor"`
}

type failRequest struct {
	Stage     string `json:"stage"`
	Epoch     int64  `json:"generation_epoch"`
	Error     string `json:"error"`
	CostMinor int64  `json:"cost_minor"`
}

type unitRequest struct {
	UnitID string `json:"unit_id"`
	Stage  string `json:"stage"`
	Epoch  int64  `json:"generation_epoch"`
	State  string `json:"state"`
}

type statusResponse struct {
	Total      int `json:"total"`
	Processing int `json:"processing"`
	AtGate     int `json:"at_gate"`
	Failed     int `json:"failed"`
	Completed  int `json:"completed"`
}
