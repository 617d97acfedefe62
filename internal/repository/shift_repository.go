package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

// ShiftRepository provides persistence for shift definitions.
type ShiftRepository struct {
	db *sqlx.DB
}

// NewShiftRepository creates a new shift repository.
func NewShiftRepository(db *sqlx.DB) *ShiftRepository {
	return &ShiftRepository{db: db}
}

const shiftColumns = "id, name, position_id, start_time, duration_hours, created_at"

// ListAll returns every shift definition ordered by start time.
func (r *ShiftRepository) ListAll(ctx context.Context) ([]models.Shift, error) {
	query := fmt.Sprintf("SELECT %s FROM shifts ORDER BY start_time ASC, name ASC", shiftColumns)
	var shifts []models.Shift
	if err := r.db.SelectContext(ctx, &shifts, query); err != nil {
		return nil, fmt.Errorf("list shifts: %w", err)
	}
	return shifts, nil
}
