package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

// ConstraintRepository loads employee availability constraints.
type ConstraintRepository struct {
	db *sqlx.DB
}

// NewConstraintRepository creates a new constraint repository.
func NewConstraintRepository(db *sqlx.DB) *ConstraintRepository {
	return &ConstraintRepository{db: db}
}

// ListTemporaryInRange returns dated constraints for the given employees
// within [from, to] inclusive.
func (r *ConstraintRepository) ListTemporaryInRange(ctx context.Context, employeeIDs []string, from, to string) ([]models.TemporaryConstraint, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, employee_id, kind, date, shift_id, note, created_at FROM temporary_constraints WHERE employee_id = ANY($1) AND date BETWEEN $2 AND $3 ORDER BY date ASC`
	var constraints []models.TemporaryConstraint
	if err := r.db.SelectContext(ctx, &constraints, query, pq.Array(employeeIDs), from, to); err != nil {
		return nil, fmt.Errorf("list temporary constraints: %w", err)
	}
	return constraints, nil
}

// ListPermanent returns recurring weekday constraints for the given employees.
func (r *ConstraintRepository) ListPermanent(ctx context.Context, employeeIDs []string) ([]models.PermanentConstraint, error) {
	if len(employeeIDs) == 0 {
		return nil, nil
	}
	const query = `SELECT id, employee_id, day_of_week, shift_id, approved_by, approved_at FROM permanent_constraints WHERE employee_id = ANY($1) ORDER BY day_of_week ASC`
	var constraints []models.PermanentConstraint
	if err := r.db.SelectContext(ctx, &constraints, query, pq.Array(employeeIDs)); err != nil {
		return nil, fmt.Errorf("list permanent constraints: %w", err)
	}
	return constraints, nil
}
