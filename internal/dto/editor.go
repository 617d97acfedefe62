package dto

import "github.com/shiftwise/shiftwise-api/internal/models"

// OpenSessionResponse describes a freshly loaded edit session.
type OpenSessionResponse struct {
	SessionID string                      `json:"session_id"`
	Schedule  models.Schedule             `json:"schedule"`
	State     models.SessionState         `json:"state"`
	Slots     []models.EffectiveOccupants `json:"slots"`
}

// SelectSlotRequest selects the slot the admin is editing.
type SelectSlotRequest struct {
	Date       string `json:"date" validate:"required"`
	ShiftID    string `json:"shift_id" validate:"required"`
	PositionID string `json:"position_id" validate:"required"`
}

// Slot converts the request to the model key type.
func (r SelectSlotRequest) Slot() models.Slot {
	return models.Slot{Date: r.Date, ShiftID: r.ShiftID, PositionID: r.PositionID}
}

// CandidateSetResponse is the ranked candidate list for the selected slot.
// RequestID identifies the fetch generation; a response carrying a stale id
// was superseded by a newer selection and holds no candidates.
type CandidateSetResponse struct {
	SessionID  string               `json:"session_id"`
	RequestID  uint64               `json:"request_id"`
	Superseded bool                 `json:"superseded,omitempty"`
	Slot       models.Slot          `json:"slot"`
	Candidates []models.CandidateRecord `json:"candidates,omitempty"`
}

// CommandRequest carries one edit gesture.
type CommandRequest struct {
	Type               models.CommandType `json:"type" validate:"required"`
	TargetSlot         SelectSlotRequest  `json:"target_slot"`
	SourceSlot         *SelectSlotRequest `json:"source_slot,omitempty"`
	EmployeeID         string             `json:"employee_id" validate:"required"`
	OutgoingEmployeeID string             `json:"outgoing_employee_id,omitempty"`
	CustomStart        *string            `json:"custom_start,omitempty"`
	CustomEnd          *string            `json:"custom_end,omitempty"`
	ConfirmOverride    bool               `json:"confirm_override,omitempty"`
}

// Command converts the request into the model command object.
func (r CommandRequest) Command() models.EditCommand {
	cmd := models.EditCommand{
		Type:               r.Type,
		TargetSlot:         r.TargetSlot.Slot(),
		EmployeeID:         r.EmployeeID,
		OutgoingEmployeeID: r.OutgoingEmployeeID,
		CustomStart:        r.CustomStart,
		CustomEnd:          r.CustomEnd,
		ConfirmOverride:    r.ConfirmOverride,
	}
	if r.SourceSlot != nil {
		slot := r.SourceSlot.Slot()
		cmd.SourceSlot = &slot
	}
	return cmd
}

// CommandResult reports the outcome of a command. When RequiresOverride is
// set, nothing was written: the caller must re-issue the command with
// confirm_override and the exact reason shown here.
type CommandResult struct {
	Applied          bool                       `json:"applied"`
	RequiresOverride bool                       `json:"requires_override,omitempty"`
	Reason           *models.ReasonTag          `json:"reason,omitempty"`
	Candidate        *models.CandidateRecord    `json:"candidate,omitempty"`
	ChangeKeys       []string                   `json:"change_keys,omitempty"`
	State            models.SessionState        `json:"state"`
	Slot             *models.EffectiveOccupants `json:"slot,omitempty"`
}

// PendingChangeView decorates a ledger entry with its badge variant.
type PendingChangeView struct {
	models.PendingChange
	Kind models.AssignmentKind `json:"kind"`
}

// ChangesResponse lists the session's uncommitted operations in replay order.
type ChangesResponse struct {
	SessionID string              `json:"session_id"`
	Changes   []PendingChangeView `json:"changes"`
}
