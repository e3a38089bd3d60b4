package project

import (
	"time"

	"adforge/internal/stage"
)

// Project is the persisted record for one unit of pipeline work.
type Project struct {
	ID              string
	Title           string
	Stage           stage.Stage
	FailedAtStage   stage.Stage // set only while Stage == stage.Failed
	CostMinor       int64
	RetryBudget     int
	FastMode        bool
	Settings        map[string]string
	GenerationEpoch int64
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsProcessing reports whether the project's current stage runs automated work.
func (p *Project) IsProcessing() bool {
	return p != nil && stage.IsProcessing(p.Stage)
}

// IsTerminal reports whether the project has reached a terminal stage.
func (p *Project) IsTerminal() bool {
	return p != nil && stage.IsTerminal(p.Stage)
}

// Setting returns the value of a settings-bag key, or empty when unset.
func (p *Project) Setting(key string) string {
	if p == nil || p.Settings == nil {
		return ""
	}
	return p.Settings[key]
}

// Clone returns a deep copy so engine mutations never alias cached reads.
func (p *Project) Clone() *Project {
	if p == nil {
		return nil
	}
	cp := *p
	if p.Settings != nil {
		cp.Settings = make(map[string]string, len(p.Settings))
		for k, v := range p.Settings {
			cp.Settings[k] = v
		}
	}
	return &cp
}

// UnitState is the lifecycle of one dispatched unit of generation work.
type UnitState string

const (
	UnitPending    UnitState = "pending"
	UnitGenerating UnitState = "generating"
	UnitCompleted  UnitState = "completed"
	UnitFailed     UnitState = "failed"
)

// ParseUnitState converts a string into a known UnitState.
func ParseUnitState(value string) (UnitState, bool) {
	switch UnitState(value) {
	case UnitPending, UnitGenerating, UnitCompleted, UnitFailed:
		return UnitState(value), true
	default:
		return "", false
	}
}

// Unit is one row of paid generation work dispatched for a stage attempt.
type Unit struct {
	ID              string
	ProjectID       string
	Stage           stage.Stage
	GenerationEpoch int64
	State           UnitState
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UnitCounts aggregates unit states for one stage attempt.
type UnitCounts struct {
	Total      int
	Completed  int
	Generating int
	Failed     int
	StartedAt  time.Time // zero when no units have been dispatched
}

// HealthSummary describes aggregated project counts per lifecycle class.
type HealthSummary struct {
	Total      int
	AtGate     int
	Processing int
	Failed     int
	Completed  int
}
