package models

// CommandType enumerates the user gestures the edit controller accepts.
type CommandType string

const (
	CommandAssign  CommandType = "ASSIGN"
	CommandRemove  CommandType = "REMOVE"
	CommandReplace CommandType = "REPLACE"
	CommandMove    CommandType = "MOVE"
	CommandResize  CommandType = "RESIZE"
)

// EditCommand is an explicit command object describing a gesture. Drag/drop
// arrives as a Move with both source and target slots; business logic never
// inspects UI state.
type EditCommand struct {
	Type CommandType `json:"type" validate:"required"`

	TargetSlot Slot  `json:"target_slot"`
	SourceSlot *Slot `json:"source_slot,omitempty"`

	EmployeeID string `json:"employee_id" validate:"required"`
	// OutgoingEmployeeID names the occupant being replaced for Replace.
	OutgoingEmployeeID string `json:"outgoing_employee_id,omitempty"`

	CustomStart *string `json:"custom_start,omitempty"`
	CustomEnd   *string `json:"custom_end,omitempty"`

	// ConfirmOverride acknowledges a previously surfaced blocking reason. The
	// reason recorded on the change comes from re-evaluation, not the client.
	ConfirmOverride bool `json:"confirm_override,omitempty"`
}

// SessionState is the edit controller's state machine position.
type SessionState string

const (
	StateIdle           SessionState = "IDLE"
	StateSlotSelected   SessionState = "SLOT_SELECTED"
	StateAssignPending  SessionState = "ASSIGN_PENDING"
	StateRemovePending  SessionState = "REMOVE_PENDING"
	StateReplacePending SessionState = "REPLACE_PENDING"
)
