package models

import "time"

// ScheduleStatus is the lifecycle phase of a published schedule.
type ScheduleStatus string

const (
	ScheduleStatusDraft     ScheduleStatus = "DRAFT"
	ScheduleStatusPublished ScheduleStatus = "PUBLISHED"
	ScheduleStatusArchived  ScheduleStatus = "ARCHIVED"
)

// Schedule is the server-owned header of a weekly roster. Version increments
// on every committed batch and backs the commit conflict check.
type Schedule struct {
	ID         string         `db:"id" json:"id"`
	WorkSiteID string         `db:"work_site_id" json:"work_site_id"`
	WeekStart  string         `db:"week_start" json:"week_start"`
	Version    int            `db:"version" json:"version"`
	Status     ScheduleStatus `db:"status" json:"status"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// AssignmentStatus marks the server-side state of a committed assignment.
type AssignmentStatus string

const (
	AssignmentStatusActive   AssignmentStatus = "ACTIVE"
	AssignmentStatusReplaced AssignmentStatus = "REPLACED"
)

// Assignment is a committed slot occupation. Owned by the server; the edit
// core only reads it and replaces it wholesale after a commit.
type Assignment struct {
	ID          string           `db:"id" json:"id"`
	ScheduleID  string           `db:"schedule_id" json:"schedule_id"`
	EmployeeID  string           `db:"employee_id" json:"employee_id"`
	Date        string           `db:"date" json:"date"`
	ShiftID     string           `db:"shift_id" json:"shift_id"`
	PositionID  string           `db:"position_id" json:"position_id"`
	Status      AssignmentStatus `db:"status" json:"status"`
	CustomStart *string          `db:"custom_start" json:"custom_start,omitempty"`
	CustomEnd   *string          `db:"custom_end" json:"custom_end,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"created_at"`
}

// Slot returns the slot the assignment occupies.
func (a Assignment) Slot() Slot {
	return Slot{Date: a.Date, ShiftID: a.ShiftID, PositionID: a.PositionID}
}
