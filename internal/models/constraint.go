package models

import "time"

// ConstraintKind distinguishes hard "cannot work" from advisory "prefer not
// to work" temporary constraints.
type ConstraintKind string

const (
	ConstraintHard ConstraintKind = "HARD"
	ConstraintSoft ConstraintKind = "SOFT"
)

// TemporaryConstraint is a dated availability restriction. Nil ShiftID covers
// the whole day.
type TemporaryConstraint struct {
	ID         string         `db:"id" json:"id"`
	EmployeeID string         `db:"employee_id" json:"employee_id"`
	Kind       ConstraintKind `db:"kind" json:"kind"`
	Date       string         `db:"date" json:"date"`
	ShiftID    *string        `db:"shift_id" json:"shift_id,omitempty"`
	Note       string         `db:"note" json:"note,omitempty"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
}

// Covers reports whether the constraint applies to the slot.
func (c TemporaryConstraint) Covers(slot Slot) bool {
	if c.Date != slot.Date {
		return false
	}
	return c.ShiftID == nil || *c.ShiftID == slot.ShiftID
}

// PermanentConstraint is an approved recurring restriction tied to a day of
// week, optionally narrowed to one shift.
type PermanentConstraint struct {
	ID         string    `db:"id" json:"id"`
	EmployeeID string    `db:"employee_id" json:"employee_id"`
	DayOfWeek  int       `db:"day_of_week" json:"day_of_week"`
	ShiftID    *string   `db:"shift_id" json:"shift_id,omitempty"`
	ApprovedBy string    `db:"approved_by" json:"approved_by"`
	ApprovedAt time.Time `db:"approved_at" json:"approved_at"`
}

// Covers reports whether the constraint applies to the slot. Day of week uses
// time.Weekday numbering (Sunday = 0).
func (c PermanentConstraint) Covers(slot Slot) bool {
	day, err := time.Parse(DateLayout, slot.Date)
	if err != nil {
		return false
	}
	if int(day.Weekday()) != c.DayOfWeek {
		return false
	}
	return c.ShiftID == nil || *c.ShiftID == slot.ShiftID
}
