package models

import (
	"fmt"
	"time"
)

// ChangeAction is the direction of a pending change.
type ChangeAction string

const (
	ActionAssign  ChangeAction = "ASSIGN"
	ActionRemove  ChangeAction = "REMOVE"
	ActionReplace ChangeAction = "REPLACE"
)

// Class folds Replace into the assign direction: a Replace target occupies
// the slot just like a plain Assign, so both share one key space per
// (employee, slot) pair.
func (a ChangeAction) Class() ChangeAction {
	if a == ActionReplace {
		return ActionAssign
	}
	return a
}

// ChangeFlags annotate how a pending change relates to the employee's
// defaults. They survive the commit so the UI can keep showing badges.
type ChangeFlags struct {
	CrossPosition bool `json:"cross_position,omitempty"`
	CrossSite     bool `json:"cross_site,omitempty"`
	Flexible      bool `json:"flexible,omitempty"`
	Autofilled    bool `json:"autofilled,omitempty"`
	Overridden    bool `json:"overridden,omitempty"`
}

// PendingChange is one uncommitted operation in the ledger. Entries are
// immutable once created except for cancellation and custom-time resize.
type PendingChange struct {
	Key            string       `json:"key"`
	GroupKey       string       `json:"group_key,omitempty"`
	Action         ChangeAction `json:"action"`
	EmployeeID     string       `json:"employee_id"`
	Slot           Slot         `json:"slot"`
	Flags          ChangeFlags  `json:"flags"`
	CustomStart    *string      `json:"custom_start,omitempty"`
	CustomEnd      *string      `json:"custom_end,omitempty"`
	OverrideReason ReasonTag    `json:"override_reason,omitempty"`
	Ordinal        int          `json:"ordinal"`
	CreatedAt      time.Time    `json:"created_at"`
}

// ChangeKey derives the deterministic ledger key for an operation. Re-issuing
// the same logical operation always produces the same key, which is what
// makes ledger writes idempotent.
func ChangeKey(action ChangeAction, employeeID string, slot Slot) string {
	return fmt.Sprintf("%s|%s|%s", action.Class(), employeeID, slot.Key())
}

// ReplaceGroupKey identifies the remove/assign pair of one logical Replace.
func ReplaceGroupKey(slot Slot, outgoingID, incomingID string) string {
	return fmt.Sprintf("replace|%s|%s|%s", slot.Key(), outgoingID, incomingID)
}
