package models

import "time"

// InvalidatedChange is a pending change that no longer applies after a
// conflict resynchronization. It is reported, never silently dropped.
type InvalidatedChange struct {
	Change PendingChange `json:"change"`
	Reason string        `json:"reason"`
}

// CommitReport is the outcome of one commit attempt.
type CommitReport struct {
	ScheduleID      string              `json:"schedule_id"`
	Committed       bool                `json:"committed"`
	ScheduleVersion int                 `json:"schedule_version"`
	Assignments     []Assignment        `json:"assignments,omitempty"`
	Invalidated     []InvalidatedChange `json:"invalidated,omitempty"`
	CommittedAt     *time.Time          `json:"committed_at,omitempty"`
}
