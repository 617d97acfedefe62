package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shiftwise/shiftwise-api/internal/dto"
	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
	"github.com/shiftwise/shiftwise-api/pkg/response"
)

type sessionEditor interface {
	Open(ctx context.Context, scheduleID string) (*dto.OpenSessionResponse, error)
	Close(ctx context.Context, sessionID string)
	SlotView(ctx context.Context, sessionID string, slot models.Slot) (*models.EffectiveOccupants, error)
	SelectSlot(ctx context.Context, sessionID string, req dto.SelectSlotRequest) (*dto.CandidateSetResponse, error)
	Candidates(ctx context.Context, sessionID string) (*dto.CandidateSetResponse, error)
	Apply(ctx context.Context, sessionID string, req dto.CommandRequest) (*dto.CommandResult, error)
	ListChanges(ctx context.Context, sessionID string) (*dto.ChangesResponse, error)
	CancelChange(ctx context.Context, sessionID, key string) (*dto.ChangesResponse, error)
	Board(ctx context.Context, sessionID string) (*dto.OpenSessionResponse, error)
}

type sessionCommitter interface {
	Commit(ctx context.Context, sessionID string) (*models.CommitReport, error)
}

// SessionHandler exposes the interactive schedule-editing endpoints.
type SessionHandler struct {
	editor    sessionEditor
	committer sessionCommitter
}

// NewSessionHandler constructs the handler.
func NewSessionHandler(editor sessionEditor, committer sessionCommitter) *SessionHandler {
	return &SessionHandler{editor: editor, committer: committer}
}

// Open godoc
// @Summary Open an edit session for a schedule
// @Description Loads the committed schedule plus staffing demand and returns the resolved board with a session id.
// @Tags Editor
// @Produce json
// @Param id path string true "Schedule ID"
// @Success 201 {object} response.Envelope
// @Router /schedules/{id}/sessions [post]
func (h *SessionHandler) Open(c *gin.Context) {
	result, err := h.editor.Open(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Close godoc
// @Summary Discard an edit session
// @Description Drops the session and every uncommitted change in it.
// @Tags Editor
// @Param id path string true "Session ID"
// @Success 204
// @Router /sessions/{id} [delete]
func (h *SessionHandler) Close(c *gin.Context) {
	h.editor.Close(c.Request.Context(), c.Param("id"))
	response.NoContent(c)
}

// Slot godoc
// @Summary Resolve one slot's effective occupants through the draft overlay
// @Tags Editor
// @Produce json
// @Param id path string true "Session ID"
// @Param key path string true "Slot key (date|shiftId|positionId)"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/slots/{key} [get]
func (h *SessionHandler) Slot(c *gin.Context) {
	slot, err := models.ParseSlotKey(c.Param("key"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot key"))
		return
	}
	view, err := h.editor.SlotView(c.Request.Context(), c.Param("id"), slot)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, view, nil)
}

// Board godoc
// @Summary Resolve the full schedule board through the draft overlay
// @Tags Editor
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/board [get]
func (h *SessionHandler) Board(c *gin.Context) {
	result, err := h.editor.Board(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// SelectSlot godoc
// @Summary Select a slot and build its ranked candidate list
// @Description A newer selection supersedes any in-flight candidate build; superseded responses carry no candidates.
// @Tags Editor
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.SelectSlotRequest true "Slot selection payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/selection [post]
func (h *SessionHandler) SelectSlot(c *gin.Context) {
	var req dto.SelectSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid slot selection payload"))
		return
	}
	result, err := h.editor.SelectSlot(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Candidates godoc
// @Summary Return the current candidate list for the selected slot
// @Tags Editor
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/candidates [get]
func (h *SessionHandler) Candidates(c *gin.Context) {
	result, err := h.editor.Candidates(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Command godoc
// @Summary Apply one edit command to the session
// @Description Assign, remove, replace, move or resize. A blocked assignment returns requires_override with the blocking reason; re-issue with confirm_override to record it anyway.
// @Tags Editor
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body dto.CommandRequest true "Edit command payload"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/commands [post]
func (h *SessionHandler) Command(c *gin.Context) {
	var req dto.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid command payload"))
		return
	}
	result, err := h.editor.Apply(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// ListChanges godoc
// @Summary List the session's pending changes in replay order
// @Tags Editor
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/changes [get]
func (h *SessionHandler) ListChanges(c *gin.Context) {
	result, err := h.editor.ListChanges(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// CancelChange godoc
// @Summary Cancel one pending change
// @Description Cancelling either leg of a replace drops both legs.
// @Tags Editor
// @Param id path string true "Session ID"
// @Param key path string true "Pending change key"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/changes/{key} [delete]
func (h *SessionHandler) CancelChange(c *gin.Context) {
	result, err := h.editor.CancelChange(c.Request.Context(), c.Param("id"), c.Param("key"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Commit godoc
// @Summary Commit every pending change of the session
// @Description Writes all pending operations in one transaction guarded by the schedule version. On a conflict nothing is written; the report lists every invalidated change.
// @Tags Editor
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /sessions/{id}/commit [post]
func (h *SessionHandler) Commit(c *gin.Context) {
	report, err := h.committer.Commit(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	status := http.StatusOK
	if !report.Committed {
		status = http.StatusConflict
	}
	response.JSON(c, status, report, nil)
}
