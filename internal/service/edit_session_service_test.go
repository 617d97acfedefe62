package service

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/shiftwise/shiftwise-api/internal/dto"
	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
)

// --- Stubs ---

type scheduleReaderStub struct {
	schedule models.Schedule
}

func (s *scheduleReaderStub) FindByID(ctx context.Context, id string) (*models.Schedule, error) {
	if id != s.schedule.ID {
		return nil, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "schedule not found")
	}
	schedule := s.schedule
	return &schedule, nil
}

type requirementReaderStub struct {
	items []models.SlotRequirement
}

func (s *requirementReaderStub) ListBySchedule(ctx context.Context, scheduleID string) ([]models.SlotRequirement, error) {
	return s.items, nil
}

type assignmentReaderStub struct {
	items []models.Assignment
}

func (s *assignmentReaderStub) ListActiveBySchedule(ctx context.Context, scheduleID string) ([]models.Assignment, error) {
	return s.items, nil
}

type employeeListerStub struct {
	items []models.Employee
}

func (s *employeeListerStub) ListActive(ctx context.Context) ([]models.Employee, error) {
	return s.items, nil
}

type shiftListerStub struct {
	items []models.Shift
}

func (s *shiftListerStub) ListAll(ctx context.Context) ([]models.Shift, error) {
	return s.items, nil
}

type constraintReaderStub struct {
	temporary []models.TemporaryConstraint
	permanent []models.PermanentConstraint
}

func (s *constraintReaderStub) ListTemporaryInRange(ctx context.Context, employeeIDs []string, from, to string) ([]models.TemporaryConstraint, error) {
	return s.temporary, nil
}

func (s *constraintReaderStub) ListPermanent(ctx context.Context, employeeIDs []string) ([]models.PermanentConstraint, error) {
	return s.permanent, nil
}

type memoCacheStub struct {
	data map[string][]byte
	sets int
}

func newMemoCacheStub() *memoCacheStub {
	return &memoCacheStub{data: make(map[string][]byte)}
}

func (c *memoCacheStub) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.data[key] = raw
	c.sets++
	return nil
}

func (c *memoCacheStub) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.data {
		if strings.HasPrefix(key, prefix) {
			delete(c.data, key)
		}
	}
	return nil
}

// --- Fixture ---

type editFixture struct {
	schedules    *scheduleReaderStub
	requirements *requirementReaderStub
	assignments  *assignmentReaderStub
	svc          *EditSessionService
}

func newEditFixture(t *testing.T) *editFixture {
	t.Helper()

	schedules := &scheduleReaderStub{schedule: models.Schedule{
		ID: "sched-1", WorkSiteID: "site-1", WeekStart: "2026-03-02", Version: 3, Status: "PUBLISHED",
	}}
	requirements := &requirementReaderStub{items: []models.SlotRequirement{
		{ID: "sr-1", ScheduleID: "sched-1", Date: "2026-03-02", ShiftID: "day", PositionID: "cashier", Required: 2},
		{ID: "sr-2", ScheduleID: "sched-1", Date: "2026-03-02", ShiftID: "late", PositionID: "cashier", Required: 1},
		{ID: "sr-3", ScheduleID: "sched-1", Date: "2026-03-03", ShiftID: "day", PositionID: "cashier", Required: 1},
	}}
	assignments := &assignmentReaderStub{items: []models.Assignment{
		committedAssignment("emp-cmt", testSlot("2026-03-02", "day", "cashier")),
	}}
	employees := &employeeListerStub{items: []models.Employee{
		{ID: "emp-av", FirstName: "Ava", LastName: "Lund", DefaultPositionID: strPtr("cashier"), WorkSiteID: strPtr("site-1"), Active: true},
		{ID: "emp-cmt", FirstName: "Cam", LastName: "Moor", DefaultPositionID: strPtr("cashier"), WorkSiteID: strPtr("site-1"), Active: true},
		{ID: "emp-hard", FirstName: "Hal", LastName: "Nys", DefaultPositionID: strPtr("cashier"), WorkSiteID: strPtr("site-1"), Active: true},
		{ID: "emp-cross", FirstName: "Cy", LastName: "Orr", DefaultPositionID: strPtr("cook"), WorkSiteID: strPtr("site-1"), Active: true},
	}}
	shifts := &shiftListerStub{items: []models.Shift{
		evalShifts["day"], evalShifts["late"], evalShifts["night"],
	}}
	constraints := &constraintReaderStub{temporary: []models.TemporaryConstraint{
		{ID: "tc-1", EmployeeID: "emp-hard", Kind: models.ConstraintHard, Date: "2026-03-02", Note: "medical"},
	}}

	svc := NewEditSessionService(
		schedules,
		requirements,
		assignments,
		employees,
		shifts,
		constraints,
		nil,
		nil,
		validator.New(),
		zap.NewNop(),
		EditSessionConfig{},
	)
	return &editFixture{schedules: schedules, requirements: requirements, assignments: assignments, svc: svc}
}

func (f *editFixture) open(t *testing.T) string {
	t.Helper()
	resp, err := f.svc.Open(context.Background(), "sched-1")
	require.NoError(t, err)
	return resp.SessionID
}

func slotReq(date, shiftID, positionID string) dto.SelectSlotRequest {
	return dto.SelectSlotRequest{Date: date, ShiftID: shiftID, PositionID: positionID}
}

// --- Tests ---

func TestEditSessionOpenResolvesBoard(t *testing.T) {
	fixture := newEditFixture(t)

	resp, err := fixture.svc.Open(context.Background(), "sched-1")
	require.NoError(t, err)
	assert.NotEmpty(t, resp.SessionID)
	assert.Equal(t, models.StateIdle, resp.State)
	require.Len(t, resp.Slots, 3)

	assert.Equal(t, testSlot("2026-03-02", "day", "cashier"), resp.Slots[0].Slot)
	assert.True(t, resp.Slots[0].Has("emp-cmt"))
	assert.Equal(t, 0, resp.Slots[1].Count())
}

func TestEditSessionOpenUnknownSchedule(t *testing.T) {
	fixture := newEditFixture(t)

	_, err := fixture.svc.Open(context.Background(), "missing")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEditSessionExpiredSession(t *testing.T) {
	fixture := newEditFixture(t)

	_, err := fixture.svc.ListChanges(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionExpired.Code, appErrors.FromError(err).Code)
}

func TestEditSessionSelectSlotRanksCandidates(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	resp, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-02", "late", "cashier"))
	require.NoError(t, err)
	assert.False(t, resp.Superseded)
	assert.Equal(t, uint64(1), resp.RequestID)
	require.Len(t, resp.Candidates, 4)

	byID := map[string]models.CandidateRecord{}
	for _, record := range resp.Candidates {
		byID[record.Employee.ID] = record
	}
	assert.Equal(t, models.TierAvailable, byID["emp-av"].Tier)
	assert.Equal(t, models.TierCrossPosition, byID["emp-cross"].Tier)
	assert.Equal(t, models.TierUnavailable, byID["emp-hard"].Tier)
	assert.Equal(t, models.TierUnavailable, byID["emp-cmt"].Tier, "occupant of another same-day slot is blocked")

	// Unavailable candidates sink to the bottom.
	assert.Equal(t, models.TierAvailable, resp.Candidates[0].Tier)
}

func TestEditSessionSelectSlotUnknownSlot(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	_, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-09", "day", "cashier"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEditSessionSelectSlotSupersededByCancelledContext(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resp, err := fixture.svc.SelectSlot(ctx, sessionID, slotReq("2026-03-02", "day", "cashier"))
	require.NoError(t, err)
	assert.True(t, resp.Superseded)
	assert.Empty(t, resp.Candidates)
}

func TestEditSessionSelectSlotGenerationIncreases(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	first, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-02", "day", "cashier"))
	require.NoError(t, err)
	second, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-02", "late", "cashier"))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), first.RequestID)
	assert.Equal(t, uint64(2), second.RequestID)

	current, err := fixture.svc.Candidates(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Equal(t, second.Slot, current.Slot)
}

func TestEditSessionAssignCommand(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	result, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Equal(t, models.StateIdle, result.State)
	require.NotNil(t, result.Slot)
	assert.True(t, result.Slot.Has("emp-av"))

	changes, err := fixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)
	assert.Equal(t, models.ActionAssign, changes.Changes[0].Action)
	assert.Equal(t, models.KindAvailable, changes.Changes[0].Kind)
}

func TestEditSessionAssignThenRemoveTogglesToNothing(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	_, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	require.NoError(t, err)

	result, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandRemove,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	changes, err := fixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, changes.Changes)
}

func TestEditSessionBlockedAssignRequiresOverride(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	cmd := dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-hard",
	}

	result, err := fixture.svc.Apply(context.Background(), sessionID, cmd)
	require.NoError(t, err)
	assert.False(t, result.Applied)
	assert.True(t, result.RequiresOverride)
	require.NotNil(t, result.Reason)
	assert.Equal(t, models.ReasonHardConstraint, *result.Reason)
	assert.Equal(t, models.StateSlotSelected, result.State)

	changes, err := fixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	assert.Empty(t, changes.Changes, "nothing is written until the override is confirmed")

	cmd.ConfirmOverride = true
	result, err = fixture.svc.Apply(context.Background(), sessionID, cmd)
	require.NoError(t, err)
	assert.True(t, result.Applied)

	changes, err = fixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)
	assert.True(t, changes.Changes[0].Flags.Overridden)
	assert.Equal(t, models.ReasonHardConstraint, changes.Changes[0].OverrideReason)
}

func TestEditSessionMoveWithinSameDay(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	source := slotReq("2026-03-02", "day", "cashier")
	result, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandMove,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		SourceSlot: &source,
		EmployeeID: "emp-cmt",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied, "vacating the source must not trip the same-day check")
	assert.Len(t, result.ChangeKeys, 2)

	board, err := fixture.svc.Board(context.Background(), sessionID)
	require.NoError(t, err)
	assert.False(t, board.Slots[0].Has("emp-cmt"))
	assert.True(t, board.Slots[1].Has("emp-cmt"))
}

func TestEditSessionReplaceCommand(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	result, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:               models.CommandReplace,
		TargetSlot:         slotReq("2026-03-02", "day", "cashier"),
		EmployeeID:         "emp-av",
		OutgoingEmployeeID: "emp-cmt",
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)
	assert.Len(t, result.ChangeKeys, 2)
	assert.True(t, result.Slot.Has("emp-av"))
	assert.False(t, result.Slot.Has("emp-cmt"))

	changes, err := fixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 2)
	assert.Equal(t, changes.Changes[0].GroupKey, changes.Changes[1].GroupKey)
}

func TestEditSessionReplaceRequiresOccupant(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	_, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:               models.CommandReplace,
		TargetSlot:         slotReq("2026-03-02", "late", "cashier"),
		EmployeeID:         "emp-av",
		OutgoingEmployeeID: "emp-cmt",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
}

func TestEditSessionResizeOnlyPendingAssignments(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	start, end := "11:00", "16:00"
	_, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:        models.CommandResize,
		TargetSlot:  slotReq("2026-03-02", "day", "cashier"),
		EmployeeID:  "emp-cmt",
		CustomStart: &start,
		CustomEnd:   &end,
	})
	require.Error(t, err, "committed assignments cannot be resized")
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)

	_, err = fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "late", "cashier"),
		EmployeeID: "emp-av",
	})
	require.NoError(t, err)

	result, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:        models.CommandResize,
		TargetSlot:  slotReq("2026-03-02", "late", "cashier"),
		EmployeeID:  "emp-av",
		CustomStart: &start,
		CustomEnd:   &end,
	})
	require.NoError(t, err)
	assert.True(t, result.Applied)

	changes, err := fixture.svc.ListChanges(context.Background(), sessionID)
	require.NoError(t, err)
	require.Len(t, changes.Changes, 1)
	assert.Equal(t, "11:00", *changes.Changes[0].CustomStart)
	assert.Equal(t, models.KindSpare, changes.Changes[0].Kind)
}

func TestEditSessionResizeRejectsBadTimeFormat(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	bad := "25:99"
	_, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:        models.CommandResize,
		TargetSlot:  slotReq("2026-03-02", "late", "cashier"),
		EmployeeID:  "emp-av",
		CustomStart: &bad,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEditSessionCancelChangeDropsReplaceGroup(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	result, err := fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:               models.CommandReplace,
		TargetSlot:         slotReq("2026-03-02", "day", "cashier"),
		EmployeeID:         "emp-av",
		OutgoingEmployeeID: "emp-cmt",
	})
	require.NoError(t, err)
	require.Len(t, result.ChangeKeys, 2)

	changes, err := fixture.svc.CancelChange(context.Background(), sessionID, result.ChangeKeys[0])
	require.NoError(t, err)
	assert.Empty(t, changes.Changes, "cancelling one leg drops the sibling too")
}

func TestEditSessionCloseDiscardsSession(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	fixture.svc.Close(context.Background(), sessionID)

	_, err := fixture.svc.ListChanges(context.Background(), sessionID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrSessionExpired.Code, appErrors.FromError(err).Code)
}

func TestEditSessionConcurrentLookups(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fixture.svc.ListChanges(context.Background(), sessionID)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
}

func TestEditSessionCloseDropsMemoisedCandidates(t *testing.T) {
	fixture := newEditFixture(t)
	cache := newMemoCacheStub()
	fixture.svc.cache = cache
	sessionID := fixture.open(t)

	_, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-02", "day", "cashier"))
	require.NoError(t, err)
	require.Len(t, cache.data, 1)

	fixture.svc.Close(context.Background(), sessionID)
	assert.Empty(t, cache.data)
}

func TestEditSessionSlotView(t *testing.T) {
	fixture := newEditFixture(t)
	sessionID := fixture.open(t)

	view, err := fixture.svc.SlotView(context.Background(), sessionID, testSlot("2026-03-02", "day", "cashier"))
	require.NoError(t, err)
	assert.Equal(t, 2, view.Required)
	assert.True(t, view.Has("emp-cmt"))

	_, err = fixture.svc.SlotView(context.Background(), sessionID, testSlot("2026-03-09", "day", "cashier"))
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEditSessionCandidateCacheInvalidatedAcrossDays(t *testing.T) {
	fixture := newEditFixture(t)
	fixture.requirements.items = append(fixture.requirements.items, models.SlotRequirement{
		ID: "sr-4", ScheduleID: "sched-1", Date: "2026-03-02", ShiftID: "night", PositionID: "cashier", Required: 1,
	})
	cache := newMemoCacheStub()
	fixture.svc.cache = cache
	sessionID := fixture.open(t)

	first, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-03", "day", "cashier"))
	require.NoError(t, err)
	for _, record := range first.Candidates {
		if record.Employee.ID == "emp-av" {
			assert.Equal(t, models.TierAvailable, record.Tier)
		}
	}
	assert.Equal(t, 1, cache.sets)

	// Night ends 02:00 the next morning; a 09:00 day start leaves 7 hours.
	_, err = fixture.svc.Apply(context.Background(), sessionID, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "night", "cashier"),
		EmployeeID: "emp-av",
	})
	require.NoError(t, err)

	resp, err := fixture.svc.SelectSlot(context.Background(), sessionID, slotReq("2026-03-03", "day", "cashier"))
	require.NoError(t, err)
	assert.Equal(t, 2, cache.sets, "the memoised set for the adjacent day must be rebuilt")

	byID := map[string]models.CandidateRecord{}
	for _, record := range resp.Candidates {
		byID[record.Employee.ID] = record
	}
	require.NotNil(t, byID["emp-av"].UnavailableReason)
	assert.Equal(t, models.ReasonRestViolation, *byID["emp-av"].UnavailableReason)
}

func TestEditSessionCandidateCacheIsSessionScoped(t *testing.T) {
	fixture := newEditFixture(t)
	cache := newMemoCacheStub()
	fixture.svc.cache = cache

	sessionA := fixture.open(t)
	sessionB := fixture.open(t)

	_, err := fixture.svc.Apply(context.Background(), sessionA, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "day", "cashier"),
		EmployeeID: "emp-av",
	})
	require.NoError(t, err)
	respA, err := fixture.svc.SelectSlot(context.Background(), sessionA, slotReq("2026-03-02", "late", "cashier"))
	require.NoError(t, err)

	// Session B mutates the same date once, so both sessions sit on equal
	// revision counters. Its slot selection must still see its own ledger.
	_, err = fixture.svc.Apply(context.Background(), sessionB, dto.CommandRequest{
		Type:       models.CommandAssign,
		TargetSlot: slotReq("2026-03-02", "day", "cashier"),
		EmployeeID: "emp-cross",
	})
	require.NoError(t, err)
	respB, err := fixture.svc.SelectSlot(context.Background(), sessionB, slotReq("2026-03-02", "late", "cashier"))
	require.NoError(t, err)

	tierFor := func(resp *dto.CandidateSetResponse, employeeID string) models.Tier {
		for _, record := range resp.Candidates {
			if record.Employee.ID == employeeID {
				return record.Tier
			}
		}
		return ""
	}
	assert.Equal(t, models.TierUnavailable, tierFor(respA, "emp-av"))
	assert.Equal(t, models.TierAvailable, tierFor(respB, "emp-av"), "one session's classifications must not leak into another")
	assert.Equal(t, 2, cache.sets)
}
