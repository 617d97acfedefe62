package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwise/shiftwise-api/internal/dto"
	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
)

type commitWriterStub struct {
	version     int
	assignments []models.Assignment
	err         error
	calls       int
	gotChanges  []models.PendingChange
}

func (w *commitWriterStub) ApplyChanges(ctx context.Context, schedule models.Schedule, changes []models.PendingChange) (int, []models.Assignment, error) {
	w.calls++
	w.gotChanges = changes
	if w.err != nil {
		return 0, nil, w.err
	}
	return w.version, w.assignments, nil
}

type commitFixture struct {
	*editFixture
	writer *commitWriterStub
	svc    *CommitService
}

func newCommitFixture(t *testing.T) *commitFixture {
	t.Helper()
	edit := newEditFixture(t)
	writer := &commitWriterStub{version: 4}
	svc := NewCommitService(edit.svc, writer, edit.schedules, edit.assignments, edit.requirements, nil)
	return &commitFixture{editFixture: edit, writer: writer, svc: svc}
}

func (f *commitFixture) apply(t *testing.T, sessionID string, cmd dto.CommandRequest) {
	t.Helper()
	result, err := f.editFixture.svc.Apply(context.Background(), sessionID, cmd)
	require.NoError(t, err)
	require.True(t, result.Applied)
}

func staleErr() error {
	return appErrors.New(appErrors.ErrStaleSnapshot.Code, appErrors.ErrStaleSnapshot.Status, "schedule was modified by another user")
}

func TestCommitPersistsLedger(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	fixture.writer.assignments = []models.Assignment{
		committedAssignment("emp-cmt", testSlot("2026-03-02", "day", "cashier")),
		committedAssignment("emp-av", testSlot("2026-03-02", "late", "cashier")),
	}

	report, err := fixture.svc.Commit(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, report.Committed)
	assert.Equal(t, "sched-1", report.ScheduleID)
	assert.Equal(t, 4, report.ScheduleVersion)
	require.NotNil(t, report.CommittedAt)
	require.Len(t, fixture.writer.gotChanges, 1)
	assert.Equal(t, "emp-av", fixture.writer.gotChanges[0].EmployeeID)

	changes, err := fixture.editFixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, changes.Changes, "ledger is cleared after a successful commit")

	board, err := fixture.editFixture.svc.Board(context.Background(), sessionID)
	require.NoError(t, err)
	assert.True(t, board.Slots[1].Has("emp-av"), "new assignment shows as committed")
}

func TestCommitNothingPending(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	_, err := fixture.svc.Commit(context.Background(), sessionID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.Zero(t, fixture.writer.calls)
}

func TestCommitRejectedWhileBusy(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})

	sess, err := fixture.editFixture.svc.session(sessionID)
	require.NoError(t, err)
	sess.mu.Lock()
	sess.commitBusy = true
	sess.mu.Unlock()

	_, err = fixture.svc.Commit(context.Background(), sessionID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCommitInFlight.Code, appErrors.FromError(err).Code)

	_, err = fixture.editFixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-03", "day", "cashier"),
		EmployeeID: "emp-av",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrCommitInFlight.Code, appErrors.FromError(err).Code)
}

func TestCommitConflictInvalidatesDeletedSlot(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-03", "day", "cashier"),
		EmployeeID: "emp-cross",
	})

	// Another editor committed meanwhile: the schedule moved to version 5
	// and the late slot was removed from the week.
	fixture.writer.err = staleErr()
	fixture.schedules.schedule.Version = 5
	fixture.requirements.items = []models.SlotRequirement{
		{ID: "sr-1", ScheduleID: "sched-1", Date: "2026-03-02", ShiftID: "day", PositionID: "cashier", Required: 2},
		{ID: "sr-3", ScheduleID: "sched-1", Date: "2026-03-03", ShiftID: "day", PositionID: "cashier", Required: 1},
	}

	report, err := fixture.svc.Commit(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, report.Committed)
	assert.Equal(t, 5, report.ScheduleVersion)
	require.Len(t, report.Invalidated, 1)
	assert.Equal(t, "emp-av", report.Invalidated[0].Change.EmployeeID)
	assert.Equal(t, "slot no longer exists in the schedule", report.Invalidated[0].Reason)

	changes, err := fixture.editFixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1, "unaffected changes survive the resync")
	assert.Equal(t, "emp-cross", changes.Changes[0].EmployeeID)
}

func TestCommitConflictInvalidatesDuplicateAssign(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})

	fixture.writer.err = staleErr()
	fixture.schedules.schedule.Version = 5
	fixture.assignments.items = append(fixture.assignments.items,
		committedAssignment("emp-av", testSlot("2026-03-02", "late", "cashier")))

	report, err := fixture.svc.Commit(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, report.Committed)
	require.Len(t, report.Invalidated, 1)
	assert.Equal(t, "assignment already exists in the committed schedule", report.Invalidated[0].Reason)
}

func TestCommitConflictInvalidatesVanishedRemoval(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandRemove,
		TargetSlot: slotReq("2026-03-02", "day", "cashier"),
		EmployeeID: "emp-cmt",
	})

	fixture.writer.err = staleErr()
	fixture.assignments.items = nil

	report, err := fixture.svc.Commit(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, report.Invalidated, 1)
	assert.Equal(t, "assignment no longer exists in the committed schedule", report.Invalidated[0].Reason)

	changes, err := fixture.editFixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, changes.Changes)
}

func TestCommitConflictDropsWholeReplaceGroup(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:               models.CommandReplace,
		TargetSlot:         slotReq("2026-03-02", "day", "cashier"),
		EmployeeID:         "emp-av",
		OutgoingEmployeeID: "emp-cmt",
	})

	// The outgoing employee was already removed by a concurrent commit, so
	// the remove leg is stale and drags the assign leg with it.
	fixture.writer.err = staleErr()
	fixture.assignments.items = nil

	report, err := fixture.svc.Commit(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, report.Invalidated, 2)

	reasonByEmployee := map[string]string{}
	for _, inv := range report.Invalidated {
		reasonByEmployee[inv.Change.EmployeeID] = inv.Reason
	}
	assert.Equal(t, "assignment no longer exists in the committed schedule", reasonByEmployee["emp-cmt"])
	assert.Equal(t, "linked replace operation was invalidated", reasonByEmployee["emp-av"])

	changes, err := fixture.editFixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, changes.Changes)
}

func TestCommitWriterFailurePropagates(t *testing.T) {
	fixture := newCommitFixture(t)
	sessionID := fixture.open(t)

	fixture.apply(t, sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	fixture.writer.err = appErrors.New(appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "connection reset")

	_, err := fixture.svc.Commit(context.Background(), sessionID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)

	changes, err := fixture.editFixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1, "ledger is untouched on a non-conflict failure")
}
