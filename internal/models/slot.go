package models

import (
	"fmt"
	"strings"
)

// Slot addresses a staffable unit: one shift of one position on one date.
type Slot struct {
	Date       string `json:"date" validate:"required"`
	ShiftID    string `json:"shift_id" validate:"required"`
	PositionID string `json:"position_id" validate:"required"`
}

// Key returns the deterministic composite key for the slot. The same key is
// used for ledger entries and candidate-cache memoisation.
func (s Slot) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.Date, s.ShiftID, s.PositionID)
}

// ParseSlotKey is the inverse of Slot.Key.
func ParseSlotKey(key string) (Slot, error) {
	parts := strings.Split(key, "|")
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return Slot{}, fmt.Errorf("malformed slot key %q", key)
	}
	return Slot{Date: parts[0], ShiftID: parts[1], PositionID: parts[2]}, nil
}

// SlotRequirement is the required headcount for a slot within a schedule.
type SlotRequirement struct {
	ID         string `db:"id" json:"id"`
	ScheduleID string `db:"schedule_id" json:"schedule_id"`
	Date       string `db:"date" json:"date"`
	ShiftID    string `db:"shift_id" json:"shift_id"`
	PositionID string `db:"position_id" json:"position_id"`
	Required   int    `db:"required_employees" json:"required_employees"`
}

// Slot returns the addressed slot of the requirement row.
func (r SlotRequirement) Slot() Slot {
	return Slot{Date: r.Date, ShiftID: r.ShiftID, PositionID: r.PositionID}
}

// OccupantSource tells whether an occupant comes from the committed schedule
// or from the pending ledger.
type OccupantSource string

const (
	OccupantCommitted OccupantSource = "committed"
	OccupantPending   OccupantSource = "pending"
)

// Occupant is one employee effectively filling a slot.
type Occupant struct {
	EmployeeID   string         `json:"employee_id"`
	AssignmentID string         `json:"assignment_id,omitempty"`
	PendingKey   string         `json:"pending_key,omitempty"`
	Source       OccupantSource `json:"source"`
	Flags        ChangeFlags    `json:"flags"`
	CustomStart  *string        `json:"custom_start,omitempty"`
	CustomEnd    *string        `json:"custom_end,omitempty"`
}

// EffectiveOccupants is the merged view of a slot after overlaying the ledger
// on the committed schedule.
type EffectiveOccupants struct {
	Slot      Slot       `json:"slot"`
	Required  int        `json:"required_employees"`
	Occupants []Occupant `json:"occupants"`
}

// Count returns the effective headcount.
func (e EffectiveOccupants) Count() int {
	return len(e.Occupants)
}

// Has reports whether the employee is among the effective occupants.
func (e EffectiveOccupants) Has(employeeID string) bool {
	for _, occ := range e.Occupants {
		if occ.EmployeeID == employeeID {
			return true
		}
	}
	return false
}
