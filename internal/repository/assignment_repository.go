package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
)

// AssignmentRepository provides persistence for committed assignments.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository creates a new assignment repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

const assignmentColumns = "id, schedule_id, employee_id, date, shift_id, position_id, status, custom_start, custom_end, created_at"

// ListActiveBySchedule returns the active assignments of a schedule.
func (r *AssignmentRepository) ListActiveBySchedule(ctx context.Context, scheduleID string) ([]models.Assignment, error) {
	query := fmt.Sprintf("SELECT %s FROM assignments WHERE schedule_id = $1 AND status = $2 ORDER BY date ASC, shift_id ASC, position_id ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := r.db.SelectContext(ctx, &assignments, query, scheduleID, models.AssignmentStatusActive); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return assignments, nil
}

// ApplyChanges persists the pending operations in one transaction. The
// schedule version acts as a compare-and-swap guard: when another writer
// bumped it since the session loaded its snapshot, nothing is written and
// the caller gets a stale-snapshot error.
func (r *AssignmentRepository) ApplyChanges(ctx context.Context, schedule models.Schedule, changes []models.PendingChange) (int, []models.Assignment, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("begin commit tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	var version int
	const casQuery = `UPDATE schedules SET version = version + 1, updated_at = $1 WHERE id = $2 AND version = $3 RETURNING version`
	if err := tx.GetContext(ctx, &version, casQuery, time.Now().UTC(), schedule.ID, schedule.Version); err != nil {
		if err == sql.ErrNoRows {
			return 0, nil, appErrors.New(appErrors.ErrStaleSnapshot.Code, appErrors.ErrStaleSnapshot.Status, "committed schedule changed since session load")
		}
		return 0, nil, fmt.Errorf("bump schedule version: %w", err)
	}

	for _, change := range changes {
		switch change.Action.Class() {
		case models.ActionRemove:
			const retire = `UPDATE assignments SET status = $1 WHERE schedule_id = $2 AND employee_id = $3 AND date = $4 AND shift_id = $5 AND position_id = $6 AND status = $7`
			if _, err := tx.ExecContext(ctx, retire, models.AssignmentStatusReplaced, schedule.ID, change.EmployeeID, change.Slot.Date, change.Slot.ShiftID, change.Slot.PositionID, models.AssignmentStatusActive); err != nil {
				return 0, nil, fmt.Errorf("retire assignment %s: %w", change.Key, err)
			}
		case models.ActionAssign:
			assignment := models.Assignment{
				ID:          uuid.NewString(),
				ScheduleID:  schedule.ID,
				EmployeeID:  change.EmployeeID,
				Date:        change.Slot.Date,
				ShiftID:     change.Slot.ShiftID,
				PositionID:  change.Slot.PositionID,
				Status:      models.AssignmentStatusActive,
				CustomStart: change.CustomStart,
				CustomEnd:   change.CustomEnd,
				CreatedAt:   time.Now().UTC(),
			}
			const insert = `INSERT INTO assignments (id, schedule_id, employee_id, date, shift_id, position_id, status, custom_start, custom_end, created_at) VALUES (:id, :schedule_id, :employee_id, :date, :shift_id, :position_id, :status, :custom_start, :custom_end, :created_at)`
			if _, err := tx.NamedExecContext(ctx, insert, assignment); err != nil {
				return 0, nil, fmt.Errorf("insert assignment %s: %w", change.Key, err)
			}
		}
	}

	query := fmt.Sprintf("SELECT %s FROM assignments WHERE schedule_id = $1 AND status = $2 ORDER BY date ASC, shift_id ASC, position_id ASC", assignmentColumns)
	var assignments []models.Assignment
	if err := tx.SelectContext(ctx, &assignments, query, schedule.ID, models.AssignmentStatusActive); err != nil {
		return 0, nil, fmt.Errorf("reload assignments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("commit changes: %w", err)
	}
	return version, assignments, nil
}
