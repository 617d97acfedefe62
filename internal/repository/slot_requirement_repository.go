package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

// SlotRequirementRepository loads the staffing demand rows of a schedule.
type SlotRequirementRepository struct {
	db *sqlx.DB
}

// NewSlotRequirementRepository creates a new slot requirement repository.
func NewSlotRequirementRepository(db *sqlx.DB) *SlotRequirementRepository {
	return &SlotRequirementRepository{db: db}
}

// ListBySchedule returns every requirement row of the schedule ordered by
// date, shift and position.
func (r *SlotRequirementRepository) ListBySchedule(ctx context.Context, scheduleID string) ([]models.SlotRequirement, error) {
	const query = `SELECT id, schedule_id, date, shift_id, position_id, required_employees FROM slot_requirements WHERE schedule_id = $1 ORDER BY date ASC, shift_id ASC, position_id ASC`
	var requirements []models.SlotRequirement
	if err := r.db.SelectContext(ctx, &requirements, query, scheduleID); err != nil {
		return nil, fmt.Errorf("list slot requirements: %w", err)
	}
	return requirements, nil
}
