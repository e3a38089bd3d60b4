package project

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"adforge/internal/stage"
)

// SeedUnits inserts count pending units for one stage attempt. The execution
// backend flips their states through UpsertUnit as generation proceeds.
func (s *Store) SeedUnits(ctx context.Context, projectID string, st stage.Stage, epoch int64, count int) ([]string, error) {
	if count <= 0 {
		return nil, nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.NewString()
		_, err := s.execWithRetry(
			ctx,
			`INSERT INTO generation_units (unit_id, project_id, stage, generation_epoch, state, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, projectID, st, epoch, UnitPending, now, now,
		)
		if err != nil {
			return nil, fmt.Errorf("seed unit: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// UpsertUnit records the reported state of one generation unit. Unknown unit
// identifiers insert a new row so late-registering backends still count.
func (s *Store) UpsertUnit(ctx context.Context, unit Unit) error {
	if unit.ID == "" {
		return errors.New("unit id is required")
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO generation_units (unit_id, project_id, stage, generation_epoch, state, created_at, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(unit_id) DO UPDATE SET state = excluded.state, updated_at = excluded.updated_at`,
		unit.ID, unit.ProjectID, unit.Stage, unit.GenerationEpoch, unit.State, now, now,
	)
	if err != nil {
		return fmt.Errorf("upsert unit: %w", err)
	}
	return nil
}

// UnitCounts aggregates unit states for the given stage attempt.
func (s *Store) UnitCounts(ctx context.Context, projectID string, st stage.Stage, epoch int64) (UnitCounts, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT state, COUNT(1), MIN(created_at)
         FROM generation_units
         WHERE project_id = ? AND stage = ? AND generation_epoch = ?
         GROUP BY state`,
		projectID, st, epoch,
	)
	if err != nil {
		return UnitCounts{}, fmt.Errorf("unit counts: %w", err)
	}
	defer rows.Close()

	counts := UnitCounts{}
	for rows.Next() {
		var (
			state      string
			count      int
			createdRaw sql.NullString
		)
		if err := rows.Scan(&state, &count, &createdRaw); err != nil {
			return UnitCounts{}, err
		}
		counts.Total += count
		switch UnitState(state) {
		case UnitCompleted:
			counts.Completed += count
		case UnitGenerating:
			counts.Generating += count
		case UnitFailed:
			counts.Failed += count
		}
		if createdRaw.Valid {
			if created, err := parseTimeString(createdRaw.String); err == nil {
				if counts.StartedAt.IsZero() || created.Before(counts.StartedAt) {
					counts.StartedAt = created
				}
			}
		}
	}
	return counts, rows.Err()
}

// ClearUnits removes all unit rows for a project, typically before
// re-dispatching a stage under a new epoch.
func (s *Store) ClearUnits(ctx context.Context, projectID string) (int64, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM generation_units WHERE project_id = ?`, projectID)
	if err != nil {
		return 0, fmt.Errorf("clear units: %w", err)
	}
	return res.RowsAffected()
}
