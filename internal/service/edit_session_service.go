package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/shiftwise/shiftwise-api/internal/dto"
	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
)

type editScheduleReader interface {
	FindByID(ctx context.Context, id string) (*models.Schedule, error)
}

type slotRequirementReader interface {
	ListBySchedule(ctx context.Context, scheduleID string) ([]models.SlotRequirement, error)
}

type assignmentReader interface {
	ListActiveBySchedule(ctx context.Context, scheduleID string) ([]models.Assignment, error)
}

type employeeLister interface {
	ListActive(ctx context.Context) ([]models.Employee, error)
}

type shiftLister interface {
	ListAll(ctx context.Context) ([]models.Shift, error)
}

type constraintReader interface {
	ListTemporaryInRange(ctx context.Context, employeeIDs []string, from, to string) ([]models.TemporaryConstraint, error)
	ListPermanent(ctx context.Context, employeeIDs []string) ([]models.PermanentConstraint, error)
}

type candidateCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type editObserver interface {
	ObserveCandidateBuild(duration time.Duration, cached bool)
	ObserveCommand(commandType string, applied bool)
	ObserveCommit(committed bool)
	RecordCacheOperation(hit bool)
}

// editSession is the server-side working state of one admin editing one
// schedule. All fields behind mu; the ledger has its own lock so candidate
// builds can read it while the session lock is released.
type editSession struct {
	mu sync.Mutex

	id       string
	schedule models.Schedule

	requirements map[string]models.SlotRequirement
	committed    []models.Assignment
	employees    []models.Employee
	employeeByID map[string]models.Employee
	shifts       map[string]models.Shift
	temporary    map[string][]models.TemporaryConstraint
	permanent    map[string][]models.PermanentConstraint

	ledger   *Ledger
	state    models.SessionState
	selected *models.Slot

	// fetchGen identifies the latest candidate fetch; responses carrying an
	// older generation are reported as superseded and never installed.
	fetchGen    uint64
	fetchCancel context.CancelFunc
	candidates  *dto.CandidateSetResponse

	// candidateRev participates in cache keys so any ledger mutation on a
	// date invalidates that date's memoised candidate sets.
	candidateRev map[string]uint64

	commitBusy bool
	touchedAt  time.Time
}

type sessionStore struct {
	ttl   time.Duration
	mu    sync.Mutex
	items map[string]*editSession
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:   ttl,
		items: make(map[string]*editSession),
	}
}

func (s *sessionStore) Save(sess *editSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess.touchedAt = time.Now()
	s.items[sess.id] = sess
}

func (s *sessionStore) Get(id string) (*editSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.items[id]
	if !ok {
		return nil, false
	}
	if time.Since(sess.touchedAt) > s.ttl {
		delete(s.items, id)
		return nil, false
	}
	// Touched under the store lock; Save writes touchedAt the same way.
	sess.touchedAt = time.Now()
	return sess, true
}

func (s *sessionStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

// EditSessionService drives interactive schedule editing: it loads a
// snapshot, keeps the uncommitted ledger, classifies and ranks candidates for
// a selected slot, and applies explicit edit commands.
type EditSessionService struct {
	schedules    editScheduleReader
	requirements slotRequirementReader
	assignments  assignmentReader
	employees    employeeLister
	shifts       shiftLister
	constraints  constraintReader
	evaluator    *ConstraintEvaluator
	cache        candidateCache
	cacheTTL     time.Duration
	metrics      editObserver
	validator    *validator.Validate
	logger       *zap.Logger
	store        *sessionStore
}

// EditSessionConfig governs session lifetime and candidate memoisation.
type EditSessionConfig struct {
	SessionTTL        time.Duration
	CandidateCacheTTL time.Duration
	MinRestHours      int
}

// NewEditSessionService wires the editing dependencies. Cache and metrics may
// be nil; candidate sets are then rebuilt on every selection.
func NewEditSessionService(
	schedules editScheduleReader,
	requirements slotRequirementReader,
	assignments assignmentReader,
	employees employeeLister,
	shifts shiftLister,
	constraints constraintReader,
	cache candidateCache,
	metrics editObserver,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg EditSessionConfig,
) *EditSessionService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 2 * time.Hour
	}
	if cfg.CandidateCacheTTL <= 0 {
		cfg.CandidateCacheTTL = 5 * time.Minute
	}
	return &EditSessionService{
		schedules:    schedules,
		requirements: requirements,
		assignments:  assignments,
		employees:    employees,
		shifts:       shifts,
		constraints:  constraints,
		evaluator:    NewConstraintEvaluator(cfg.MinRestHours),
		cache:        cache,
		cacheTTL:     cfg.CandidateCacheTTL,
		metrics:      metrics,
		validator:    validate,
		logger:       logger,
		store:        newSessionStore(cfg.SessionTTL),
	}
}

// Open loads the schedule snapshot and starts an edit session over it.
func (s *EditSessionService) Open(ctx context.Context, scheduleID string) (*dto.OpenSessionResponse, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, err
	}

	requirements, err := s.requirements.ListBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	if len(requirements) == 0 {
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "schedule has no slots to edit")
	}

	committed, err := s.assignments.ListActiveBySchedule(ctx, schedule.ID)
	if err != nil {
		return nil, err
	}
	employees, err := s.employees.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	shifts, err := s.shifts.ListAll(ctx)
	if err != nil {
		return nil, err
	}

	employeeIDs := make([]string, 0, len(employees))
	employeeByID := make(map[string]models.Employee, len(employees))
	for _, emp := range employees {
		employeeIDs = append(employeeIDs, emp.ID)
		employeeByID[emp.ID] = emp
	}

	from, to := requirementDateRange(requirements)
	temporary, err := s.constraints.ListTemporaryInRange(ctx, employeeIDs, from, to)
	if err != nil {
		return nil, err
	}
	permanent, err := s.constraints.ListPermanent(ctx, employeeIDs)
	if err != nil {
		return nil, err
	}

	sess := &editSession{
		id:           uuid.NewString(),
		schedule:     *schedule,
		requirements: make(map[string]models.SlotRequirement, len(requirements)),
		committed:    committed,
		employees:    employees,
		employeeByID: employeeByID,
		shifts:       make(map[string]models.Shift, len(shifts)),
		temporary:    make(map[string][]models.TemporaryConstraint),
		permanent:    make(map[string][]models.PermanentConstraint),
		ledger:       NewLedger(),
		state:        models.StateIdle,
		candidateRev: make(map[string]uint64),
	}
	for _, req := range requirements {
		sess.requirements[req.Slot().Key()] = req
	}
	for _, shift := range shifts {
		sess.shifts[shift.ID] = shift
	}
	for _, tc := range temporary {
		sess.temporary[tc.EmployeeID] = append(sess.temporary[tc.EmployeeID], tc)
	}
	for _, pc := range permanent {
		sess.permanent[pc.EmployeeID] = append(sess.permanent[pc.EmployeeID], pc)
	}

	s.store.Save(sess)
	s.logger.Info("edit session opened",
		zap.String("session_id", sess.id),
		zap.String("schedule_id", schedule.ID),
		zap.Int("slots", len(requirements)),
		zap.Int("employees", len(employees)),
	)

	sess.mu.Lock()
	slots := s.resolveAllLocked(sess)
	sess.mu.Unlock()

	return &dto.OpenSessionResponse{
		SessionID: sess.id,
		Schedule:  *schedule,
		State:     models.StateIdle,
		Slots:     slots,
	}, nil
}

// Close discards the session, everything uncommitted in it, and its
// memoised candidate sets.
func (s *EditSessionService) Close(ctx context.Context, sessionID string) {
	sess, ok := s.store.Get(sessionID)
	s.store.Delete(sessionID)
	if !ok || s.cache == nil {
		return
	}
	sess.mu.Lock()
	scheduleID := sess.schedule.ID
	sess.mu.Unlock()
	pattern := fmt.Sprintf("candidates:%s:%s:*", scheduleID, sessionID)
	if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
		s.logger.Warn("candidate cache cleanup failed", zap.String("session_id", sessionID), zap.Error(err))
	}
}

// SlotView resolves one slot through the draft overlay.
func (s *EditSessionService) SlotView(ctx context.Context, sessionID string, slot models.Slot) (*models.EffectiveOccupants, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if _, ok := sess.requirements[slot.Key()]; !ok {
		return nil, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "slot is not part of this schedule")
	}
	view := s.resolveSlotLocked(sess, slot)
	return &view, nil
}

// SelectSlot makes the slot current and returns its ranked candidate set.
// A selection arriving while an earlier build is still running cancels that
// build; the superseded request resolves with Superseded set and no
// candidates, so a slow response can never overwrite a newer one.
func (s *EditSessionService) SelectSlot(ctx context.Context, sessionID string, req dto.SelectSlotRequest) (*dto.CandidateSetResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot selection")
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	slot := req.Slot()

	sess.mu.Lock()
	if _, ok := sess.requirements[slot.Key()]; !ok {
		sess.mu.Unlock()
		return nil, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "slot is not part of this schedule")
	}
	if sess.fetchCancel != nil {
		sess.fetchCancel()
	}
	sess.fetchGen++
	gen := sess.fetchGen
	buildCtx, cancel := context.WithCancel(ctx)
	sess.fetchCancel = cancel
	selected := slot
	sess.selected = &selected
	sess.state = models.StateSlotSelected
	input := s.buildInputLocked(sess, slot)
	sess.mu.Unlock()

	records, cached, err := s.buildCandidates(buildCtx, input)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return &dto.CandidateSetResponse{SessionID: sessionID, RequestID: gen, Superseded: true, Slot: slot}, nil
		}
		return nil, err
	}

	resp := &dto.CandidateSetResponse{
		SessionID:  sessionID,
		RequestID:  gen,
		Slot:       slot,
		Candidates: records,
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	if gen != sess.fetchGen {
		return &dto.CandidateSetResponse{SessionID: sessionID, RequestID: gen, Superseded: true, Slot: slot}, nil
	}
	sess.candidates = resp
	s.logger.Debug("candidate set built",
		zap.String("session_id", sessionID),
		zap.String("slot", slot.Key()),
		zap.Int("candidates", len(records)),
		zap.Bool("cached", cached),
	)
	return resp, nil
}

// Candidates returns the last installed candidate set for the session.
func (s *EditSessionService) Candidates(_ context.Context, sessionID string) (*dto.CandidateSetResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.candidates == nil {
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "no slot selected")
	}
	return sess.candidates, nil
}

// Apply executes one edit command against the session ledger. Commands never
// touch the database; a blocked assignment is reported back once and only
// written when re-issued with confirm_override.
func (s *EditSessionService) Apply(ctx context.Context, sessionID string, req dto.CommandRequest) (*dto.CommandResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid edit command")
	}
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	cmd := req.Command()

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.commitBusy {
		return nil, appErrors.New(appErrors.ErrCommitInFlight.Code, appErrors.ErrCommitInFlight.Status, "cannot edit while a commit is in progress")
	}

	prev := sess.state
	sess.state = pendingStateFor(cmd.Type)

	var result *dto.CommandResult
	switch cmd.Type {
	case models.CommandAssign:
		result, err = s.applyAssign(sess, cmd)
	case models.CommandRemove:
		result, err = s.applyRemove(sess, cmd)
	case models.CommandReplace:
		result, err = s.applyReplace(sess, cmd)
	case models.CommandMove:
		result, err = s.applyMove(sess, cmd)
	case models.CommandResize:
		result, err = s.applyResize(sess, cmd)
	default:
		err = appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("unknown command type %q", cmd.Type))
	}
	if err != nil {
		sess.state = prev
		if s.metrics != nil {
			s.metrics.ObserveCommand(string(cmd.Type), false)
		}
		return nil, err
	}

	if result.RequiresOverride {
		sess.state = models.StateSlotSelected
	} else {
		sess.state = models.StateIdle
	}
	result.State = sess.state

	if result.Applied {
		dates := []string{cmd.TargetSlot.Date}
		if cmd.SourceSlot != nil {
			dates = append(dates, cmd.SourceSlot.Date)
		}
		s.afterMutationLocked(sess, dates...)
		view := s.resolveSlotLocked(sess, cmd.TargetSlot)
		result.Slot = &view
	}
	if s.metrics != nil {
		s.metrics.ObserveCommand(string(cmd.Type), result.Applied)
	}
	s.logger.Info("edit command processed",
		zap.String("session_id", sessionID),
		zap.String("type", string(cmd.Type)),
		zap.Bool("applied", result.Applied),
		zap.Bool("requires_override", result.RequiresOverride),
	)
	return result, nil
}

// ListChanges returns the session's uncommitted operations in replay order.
func (s *EditSessionService) ListChanges(_ context.Context, sessionID string) (*dto.ChangesResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &dto.ChangesResponse{
		SessionID: sessionID,
		Changes:   changeViews(sess.ledger.All()),
	}, nil
}

// CancelChange drops one pending operation. Cancelling either leg of a
// replace drops both.
func (s *EditSessionService) CancelChange(_ context.Context, sessionID, key string) (*dto.ChangesResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()

	entry, ok := sess.ledger.Get(key)
	if !ok {
		return nil, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "pending change not found")
	}
	sess.ledger.Cancel(key)
	s.afterMutationLocked(sess, entry.Slot.Date)

	return &dto.ChangesResponse{
		SessionID: sessionID,
		Changes:   changeViews(sess.ledger.All()),
	}, nil
}

// Board resolves every slot of the schedule through the ledger overlay.
func (s *EditSessionService) Board(_ context.Context, sessionID string) (*dto.OpenSessionResponse, error) {
	sess, err := s.session(sessionID)
	if err != nil {
		return nil, err
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return &dto.OpenSessionResponse{
		SessionID: sessionID,
		Schedule:  sess.schedule,
		State:     sess.state,
		Slots:     s.resolveAllLocked(sess),
	}, nil
}

// --- command handlers ---

func (s *EditSessionService) applyAssign(sess *editSession, cmd models.EditCommand) (*dto.CommandResult, error) {
	emp, target, err := s.commandTarget(sess, cmd)
	if err != nil {
		return nil, err
	}
	view := s.resolveSlotLocked(sess, target)
	if view.Has(emp.ID) {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "employee already occupies this slot")
	}
	if err := validateCustomTimes(cmd.CustomStart, cmd.CustomEnd); err != nil {
		return nil, err
	}

	record := s.evaluator.Evaluate(s.buildEvalInput(sess, emp, target, nil))
	if record.UnavailableReason != nil && !cmd.ConfirmOverride {
		return overrideRequired(record), nil
	}

	var key string
	if record.UnavailableReason != nil {
		key, _ = sess.ledger.AssignOverride(emp.ID, target, flagsFrom(record), *record.UnavailableReason)
	} else {
		key, _ = sess.ledger.Assign(emp.ID, target, flagsFrom(record))
	}
	if cmd.CustomStart != nil || cmd.CustomEnd != nil {
		sess.ledger.SetCustomTimes(key, cmd.CustomStart, cmd.CustomEnd)
	}
	return &dto.CommandResult{Applied: true, ChangeKeys: []string{key}}, nil
}

func (s *EditSessionService) applyRemove(sess *editSession, cmd models.EditCommand) (*dto.CommandResult, error) {
	emp, target, err := s.commandTarget(sess, cmd)
	if err != nil {
		return nil, err
	}
	view := s.resolveSlotLocked(sess, target)
	if !view.Has(emp.ID) {
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "employee does not occupy this slot")
	}
	key, _ := sess.ledger.Remove(emp.ID, target)
	return &dto.CommandResult{Applied: true, ChangeKeys: []string{key}}, nil
}

func (s *EditSessionService) applyReplace(sess *editSession, cmd models.EditCommand) (*dto.CommandResult, error) {
	emp, target, err := s.commandTarget(sess, cmd)
	if err != nil {
		return nil, err
	}
	if cmd.OutgoingEmployeeID == "" {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "replace requires outgoing_employee_id")
	}
	view := s.resolveSlotLocked(sess, target)
	if !view.Has(cmd.OutgoingEmployeeID) {
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "outgoing employee does not occupy this slot")
	}
	if view.Has(emp.ID) {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "incoming employee already occupies this slot")
	}

	record := s.evaluator.Evaluate(s.buildEvalInput(sess, emp, target, nil))
	if record.UnavailableReason != nil && !cmd.ConfirmOverride {
		return overrideRequired(record), nil
	}
	var reason models.ReasonTag
	if record.UnavailableReason != nil {
		reason = *record.UnavailableReason
	}
	sess.ledger.Replace(cmd.OutgoingEmployeeID, emp.ID, target, flagsFrom(record), reason)

	removeKey := models.ChangeKey(models.ActionRemove, cmd.OutgoingEmployeeID, target)
	assignKey := models.ChangeKey(models.ActionReplace, emp.ID, target)
	return &dto.CommandResult{Applied: true, ChangeKeys: []string{removeKey, assignKey}}, nil
}

func (s *EditSessionService) applyMove(sess *editSession, cmd models.EditCommand) (*dto.CommandResult, error) {
	emp, target, err := s.commandTarget(sess, cmd)
	if err != nil {
		return nil, err
	}
	if cmd.SourceSlot == nil {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "move requires source_slot")
	}
	source := *cmd.SourceSlot
	if source == target {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "source and target slot are identical")
	}

	sourceView := s.resolveSlotLocked(sess, source)
	if !sourceView.Has(emp.ID) {
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "employee does not occupy the source slot")
	}
	targetView := s.resolveSlotLocked(sess, target)
	if targetView.Has(emp.ID) {
		return nil, appErrors.New(appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "employee already occupies the target slot")
	}

	// Validate the target as if the source were already vacated, otherwise
	// every same-day move would trip the already-assigned check.
	record := s.evaluator.Evaluate(s.buildEvalInput(sess, emp, target, []models.Slot{source}))
	if record.UnavailableReason != nil && !cmd.ConfirmOverride {
		return overrideRequired(record), nil
	}

	// A pending spare shift keeps its custom times across the move.
	var carryStart, carryEnd *string
	if entry, ok := sess.ledger.Get(models.ChangeKey(models.ActionAssign, emp.ID, source)); ok {
		carryStart, carryEnd = entry.CustomStart, entry.CustomEnd
	}

	removeKey, _ := sess.ledger.Remove(emp.ID, source)
	var assignKey string
	if record.UnavailableReason != nil {
		assignKey, _ = sess.ledger.AssignOverride(emp.ID, target, flagsFrom(record), *record.UnavailableReason)
	} else {
		assignKey, _ = sess.ledger.Assign(emp.ID, target, flagsFrom(record))
	}
	if carryStart != nil || carryEnd != nil {
		sess.ledger.SetCustomTimes(assignKey, carryStart, carryEnd)
	}
	return &dto.CommandResult{Applied: true, ChangeKeys: []string{removeKey, assignKey}}, nil
}

func (s *EditSessionService) applyResize(sess *editSession, cmd models.EditCommand) (*dto.CommandResult, error) {
	emp, target, err := s.commandTarget(sess, cmd)
	if err != nil {
		return nil, err
	}
	if err := validateCustomTimes(cmd.CustomStart, cmd.CustomEnd); err != nil {
		return nil, err
	}
	key := models.ChangeKey(models.ActionAssign, emp.ID, target)
	if _, ok := sess.ledger.Get(key); !ok {
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "only uncommitted assignments can be resized")
	}
	sess.ledger.SetCustomTimes(key, cmd.CustomStart, cmd.CustomEnd)
	return &dto.CommandResult{Applied: true, ChangeKeys: []string{key}}, nil
}

// --- helpers ---

func (s *EditSessionService) session(id string) (*editSession, error) {
	sess, ok := s.store.Get(id)
	if !ok {
		return nil, appErrors.New(appErrors.ErrSessionExpired.Code, appErrors.ErrSessionExpired.Status, "edit session not found or expired")
	}
	return sess, nil
}

func (s *EditSessionService) commandTarget(sess *editSession, cmd models.EditCommand) (models.Employee, models.Slot, error) {
	target := cmd.TargetSlot
	if _, ok := sess.requirements[target.Key()]; !ok {
		return models.Employee{}, target, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "target slot is not part of this schedule")
	}
	emp, ok := sess.employeeByID[cmd.EmployeeID]
	if !ok {
		return models.Employee{}, target, appErrors.New(appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "employee not found")
	}
	return emp, target, nil
}

func (s *EditSessionService) resolveSlotLocked(sess *editSession, slot models.Slot) models.EffectiveOccupants {
	required := 0
	if req, ok := sess.requirements[slot.Key()]; ok {
		required = req.Required
	}
	return ResolveSlot(sess.committed, sess.ledger, slot, required)
}

func (s *EditSessionService) resolveAllLocked(sess *editSession) []models.EffectiveOccupants {
	slots := make([]models.EffectiveOccupants, 0, len(sess.requirements))
	for _, req := range sess.requirements {
		slots = append(slots, s.resolveSlotLocked(sess, req.Slot()))
	}
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i].Slot, slots[j].Slot
		if a.Date != b.Date {
			return a.Date < b.Date
		}
		if a.ShiftID != b.ShiftID {
			return a.ShiftID < b.ShiftID
		}
		return a.PositionID < b.PositionID
	})
	return slots
}

func (s *EditSessionService) buildEvalInput(sess *editSession, emp models.Employee, slot models.Slot, ignore []models.Slot) EvaluationInput {
	return EvaluationInput{
		Employee:       emp,
		Slot:           slot,
		ScheduleSiteID: sess.schedule.WorkSiteID,
		Shifts:         sess.shifts,
		Committed:      sess.committed,
		Ledger:         sess.ledger,
		Temporary:      sess.temporary[emp.ID],
		Permanent:      sess.permanent[emp.ID],
		IgnoreSlots:    ignore,
	}
}

// candidateBuildInput snapshots everything a candidate build needs so the
// session lock is not held while evaluating every employee.
type candidateBuildInput struct {
	scheduleID string
	sessionID  string
	siteID     string
	slot       models.Slot
	rev        uint64
	employees  []models.Employee
	shifts     map[string]models.Shift
	committed  []models.Assignment
	ledger     *Ledger
	temporary  map[string][]models.TemporaryConstraint
	permanent  map[string][]models.PermanentConstraint
}

func (s *EditSessionService) buildInputLocked(sess *editSession, slot models.Slot) candidateBuildInput {
	return candidateBuildInput{
		scheduleID: sess.schedule.ID,
		sessionID:  sess.id,
		siteID:     sess.schedule.WorkSiteID,
		slot:       slot,
		rev:        sess.candidateRev[slot.Date],
		employees:  sess.employees,
		shifts:     sess.shifts,
		committed:  sess.committed,
		ledger:     sess.ledger,
		temporary:  sess.temporary,
		permanent:  sess.permanent,
	}
}

func (s *EditSessionService) buildCandidates(ctx context.Context, in candidateBuildInput) ([]models.CandidateRecord, bool, error) {
	started := time.Now()
	// Keyed per session: cached records embed ledger-local classifications
	// that must never leak into another session on the same schedule.
	cacheKey := fmt.Sprintf("candidates:%s:%s:%s:%d", in.scheduleID, in.sessionID, in.slot.Key(), in.rev)

	if s.cache != nil {
		var cached []models.CandidateRecord
		err := s.cache.Get(ctx, cacheKey, &cached)
		if s.metrics != nil {
			s.metrics.RecordCacheOperation(err == nil)
		}
		if err == nil {
			if s.metrics != nil {
				s.metrics.ObserveCandidateBuild(time.Since(started), true)
			}
			return cached, true, nil
		}
	}

	records := make([]models.CandidateRecord, 0, len(in.employees))
	for i, emp := range in.employees {
		if i%32 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, false, err
			}
		}
		records = append(records, s.evaluator.Evaluate(EvaluationInput{
			Employee:       emp,
			Slot:           in.slot,
			ScheduleSiteID: in.siteID,
			Shifts:         in.shifts,
			Committed:      in.committed,
			Ledger:         in.ledger,
			Temporary:      in.temporary[emp.ID],
			Permanent:      in.permanent[emp.ID],
		}))
	}
	records = RankCandidates(records)

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, records, s.cacheTTL); err != nil {
			s.logger.Warn("candidate cache write failed", zap.String("key", cacheKey), zap.Error(err))
		}
	}
	if s.metrics != nil {
		s.metrics.ObserveCandidateBuild(time.Since(started), false)
	}
	return records, false, nil
}

// afterMutationLocked invalidates candidate state touched by a ledger change.
// Adjacent dates are bumped too: a mutation on one day changes the rest
// picture of its neighbours. Over-invalidation is fine, stale sets are not.
func (s *EditSessionService) afterMutationLocked(sess *editSession, dates ...string) {
	for _, date := range dates {
		sess.candidateRev[date]++
		for _, adjacent := range adjacentDates(date) {
			sess.candidateRev[adjacent]++
		}
	}
	sess.candidates = nil
}

func changeViews(entries []models.PendingChange) []dto.PendingChangeView {
	views := make([]dto.PendingChangeView, 0, len(entries))
	for _, entry := range entries {
		views = append(views, dto.PendingChangeView{
			PendingChange: entry,
			Kind:          models.KindFor(entry.Flags, entry.CustomStart != nil || entry.CustomEnd != nil),
		})
	}
	return views
}

func flagsFrom(record models.CandidateRecord) models.ChangeFlags {
	flags := models.ChangeFlags{}
	switch record.Tier {
	case models.TierCrossPosition:
		flags.CrossPosition = true
	case models.TierOtherSite:
		flags.CrossSite = true
	}
	for _, warning := range record.Warnings {
		if warning == models.ReasonOtherSite {
			flags.CrossSite = true
		}
	}
	for _, reason := range record.Reasons {
		if reason == models.ReasonFlexiblePosition || reason == models.ReasonFlexibleSite {
			flags.Flexible = true
		}
	}
	return flags
}

func overrideRequired(record models.CandidateRecord) *dto.CommandResult {
	candidate := record
	return &dto.CommandResult{
		RequiresOverride: true,
		Reason:           record.UnavailableReason,
		Candidate:        &candidate,
	}
}

func pendingStateFor(t models.CommandType) models.SessionState {
	switch t {
	case models.CommandRemove:
		return models.StateRemovePending
	case models.CommandReplace:
		return models.StateReplacePending
	default:
		return models.StateAssignPending
	}
}

func validateCustomTimes(start, end *string) error {
	for _, value := range []*string{start, end} {
		if value == nil {
			continue
		}
		if _, err := time.Parse(models.TimeLayout, *value); err != nil {
			return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "custom times must use HH:MM")
		}
	}
	return nil
}

func requirementDateRange(requirements []models.SlotRequirement) (string, string) {
	min, max := requirements[0].Date, requirements[0].Date
	for _, req := range requirements[1:] {
		if req.Date < min {
			min = req.Date
		}
		if req.Date > max {
			max = req.Date
		}
	}
	// Pad one day each side so rest checks at the week boundary see the
	// neighbouring constraints too.
	if day, err := time.Parse(models.DateLayout, min); err == nil {
		min = day.AddDate(0, 0, -1).Format(models.DateLayout)
	}
	if day, err := time.Parse(models.DateLayout, max); err == nil {
		max = day.AddDate(0, 0, 1).Format(models.DateLayout)
	}
	return min, max
}
