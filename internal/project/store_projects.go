package project

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"adforge/internal/stage"
)

// Seed carries the initial settings applied when a project is created.
type Seed struct {
	Title       string
	FastMode    bool
	RetryBudget int
	Settings    map[string]string
}

// Create inserts a new project at the created stage.
func (s *Store) Create(ctx context.Context, seed Seed) (*Project, error) {
	if strings.TrimSpace(seed.Title) == "" {
		return nil, errors.New("project title is required")
	}

	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	settingsJSON, err := marshalSettings(seed.Settings)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err = s.execWithRetry(
		ctx,
		`INSERT INTO projects (
            id, title, stage, cost_minor, retry_budget, fast_mode,
            settings_json, generation_epoch, created_at, updated_at
        ) VALUES (?, ?, ?, 0, ?, ?, ?, 0, ?, ?)`,
		id,
		seed.Title,
		stage.Created,
		seed.RetryBudget,
		boolToInt(seed.FastMode),
		nullableString(settingsJSON),
		timestamp,
		timestamp,
	)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}

	return s.GetByID(ctx, id)
}

// GetByID fetches a project by identifier. Returns nil when absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get project: %w", err)
	}
	return p, nil
}

// List returns projects filtered by stage set (or all projects when no stage
// is provided), ordered by creation time.
func (s *Store) List(ctx context.Context, stages ...stage.Stage) ([]*Project, error) {
	var (
		rows *sql.Rows
		err  error
	)

	baseQuery := `SELECT ` + projectColumns + ` FROM projects`
	orderClause := ` ORDER BY created_at`

	if len(stages) == 0 {
		rows, err = s.db.QueryContext(ctx, baseQuery+orderClause)
	} else {
		placeholders := makePlaceholders(len(stages))
		args := make([]any, len(stages))
		for i, st := range stages {
			args[i] = st
		}
		query := baseQuery + ` WHERE stage IN (` + placeholders + `)` + orderClause
		rows, err = s.db.QueryContext(ctx, query, args...)
	}
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// CASTransition persists p's stage, failure marker, cost, epoch, and error
// message, keyed on the stage value and generation epoch the caller read.
// It reports false when another writer got there first; the caller must
// refetch rather than resubmit blindly.
func (s *Store) CASTransition(ctx context.Context, p *Project, fromStage stage.Stage, fromEpoch int64) (bool, error) {
	if p == nil {
		return false, errors.New("project is nil")
	}
	p.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects
         SET stage = ?, failed_at_stage = ?, cost_minor = ?, retry_budget = ?,
             generation_epoch = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND stage = ? AND generation_epoch = ?`,
		p.Stage,
		nullableString(string(p.FailedAtStage)),
		p.CostMinor,
		p.RetryBudget,
		p.GenerationEpoch,
		nullableString(p.ErrorMessage),
		p.UpdatedAt.Format(time.RFC3339Nano),
		p.ID,
		fromStage,
		fromEpoch,
	)
	if err != nil {
		return false, fmt.Errorf("transition project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// UpdateSettingsCAS persists the settings bag, fast-mode flag, and retry
// budget, keyed on the stage value the caller validated the edit against.
func (s *Store) UpdateSettingsCAS(ctx context.Context, p *Project, atStage stage.Stage) (bool, error) {
	if p == nil {
		return false, errors.New("project is nil")
	}
	settingsJSON, err := marshalSettings(p.Settings)
	if err != nil {
		return false, err
	}
	p.UpdatedAt = time.Now().UTC()

	res, err := s.execWithRetry(
		ctx,
		`UPDATE projects
         SET settings_json = ?, fast_mode = ?, retry_budget = ?, updated_at = ?
         WHERE id = ? AND stage = ?`,
		nullableString(settingsJSON),
		boolToInt(p.FastMode),
		p.RetryBudget,
		p.UpdatedAt.Format(time.RFC3339Nano),
		p.ID,
		atStage,
	)
	if err != nil {
		return false, fmt.Errorf("update settings: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Delete removes a project and its units. This is the out-of-band admin
// action, never a pipeline transition.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	// Units are removed explicitly; the schema's ON DELETE CASCADE only fires
	// on connections where the foreign_keys pragma took effect.
	if _, err := s.ClearUnits(ctx, id); err != nil {
		return false, err
	}
	res, err := s.execWithRetry(ctx, `DELETE FROM projects WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete project: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// Stats returns a count of projects grouped by stage.
func (s *Store) Stats(ctx context.Context) (map[stage.Stage]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT stage, COUNT(1) FROM projects GROUP BY stage`)
	if err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[stage.Stage]int)
	for rows.Next() {
		var st stage.Stage
		var count int
		if err := rows.Scan(&st, &count); err != nil {
			return nil, err
		}
		stats[st] = count
	}
	return stats, rows.Err()
}

// Health aggregates project state for diagnostic output.
func (s *Store) Health(ctx context.Context) (HealthSummary, error) {
	stats, err := s.Stats(ctx)
	if err != nil {
		return HealthSummary{}, err
	}
	health := HealthSummary{}
	for st, count := range stats {
		health.Total += count
		switch {
		case st == stage.Failed:
			health.Failed += count
		case st == stage.Completed:
			health.Completed += count
		case stage.IsProcessing(st):
			health.Processing += count
		case stage.IsReviewGate(st):
			health.AtGate += count
		}
	}
	return health, nil
}

const projectColumns = "id, title, stage, failed_at_stage, cost_minor, retry_budget, fast_mode, settings_json, generation_epoch, error_message, created_at, updated_at"

func scanProject(scanner interface{ Scan(dest ...any) error }) (*Project, error) {
	var (
		id            string
		title         sql.NullString
		stageStr      string
		failedAt      sql.NullString
		costMinor     int64
		retryBudget   int
		fastMode      sql.NullInt64
		settingsJSON  sql.NullString
		epoch         int64
		errorMessage  sql.NullString
		createdRaw    sql.NullString
		updatedRaw    sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&stageStr,
		&failedAt,
		&costMinor,
		&retryBudget,
		&fastMode,
		&settingsJSON,
		&epoch,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	p := &Project{
		ID:              id,
		Title:           title.String,
		Stage:           stage.Stage(stageStr),
		FailedAtStage:   stage.Stage(failedAt.String),
		CostMinor:       costMinor,
		RetryBudget:     retryBudget,
		GenerationEpoch: epoch,
		ErrorMessage:    errorMessage.String,
	}
	if fastMode.Valid {
		p.FastMode = fastMode.Int64 != 0
	}
	if settingsJSON.Valid && settingsJSON.String != "" {
		settings := make(map[string]string)
		if err := json.Unmarshal([]byte(settingsJSON.String), &settings); err != nil {
			return nil, fmt.Errorf("decode settings: %w", err)
		}
		p.Settings = settings
	}

	if created, err := parseTimeString(createdRaw.String); err == nil {
		p.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		p.UpdatedAt = updated
	}
	return p, nil
}

func marshalSettings(settings map[string]string) (string, error) {
	if len(settings) == 0 {
		return "", nil
	}
	data, err := json.Marshal(settings)
	if err != nil {
		return "", fmt.Errorf("encode settings: %w", err)
	}
	return string(data), nil
}
