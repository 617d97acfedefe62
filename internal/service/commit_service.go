package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/shiftwise/shiftwise-api/internal/models"
	appErrors "github.com/shiftwise/shiftwise-api/pkg/errors"
)

type commitWriter interface {
	// ApplyChanges persists the pending operations in one transaction,
	// guarded by a compare-and-swap on the schedule version. It returns the
	// new version and the full active assignment set after the write.
	ApplyChanges(ctx context.Context, schedule models.Schedule, changes []models.PendingChange) (int, []models.Assignment, error)
}

// CommitService turns a session's ledger into committed assignments. At most
// one commit per session is in flight; edits are rejected while it runs. On a
// version conflict nothing is written: the session snapshot is reloaded and
// every pending change that no longer applies is reported back by name.
type CommitService struct {
	sessions     *EditSessionService
	writer       commitWriter
	schedules    editScheduleReader
	assignments  assignmentReader
	requirements slotRequirementReader
	logger       *zap.Logger
}

// NewCommitService wires the commit path. The session service is shared so
// commits operate on the same in-memory sessions the editor mutates.
func NewCommitService(
	sessions *EditSessionService,
	writer commitWriter,
	schedules editScheduleReader,
	assignments assignmentReader,
	requirements slotRequirementReader,
	logger *zap.Logger,
) *CommitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CommitService{
		sessions:     sessions,
		writer:       writer,
		schedules:    schedules,
		assignments:  assignments,
		requirements: requirements,
		logger:       logger,
	}
}

// Commit attempts to persist every pending change of the session.
func (s *CommitService) Commit(ctx context.Context, sessionID string) (*models.CommitReport, error) {
	sess, err := s.sessions.session(sessionID)
	if err != nil {
		return nil, err
	}

	sess.mu.Lock()
	if sess.commitBusy {
		sess.mu.Unlock()
		return nil, appErrors.New(appErrors.ErrCommitInFlight.Code, appErrors.ErrCommitInFlight.Status, "commit already in progress for this session")
	}
	if sess.ledger.Len() == 0 {
		sess.mu.Unlock()
		return nil, appErrors.New(appErrors.ErrPreconditionFailed.Code, appErrors.ErrPreconditionFailed.Status, "nothing to commit")
	}
	sess.commitBusy = true
	schedule := sess.schedule
	changes := sess.ledger.All()
	sess.mu.Unlock()

	defer func() {
		sess.mu.Lock()
		sess.commitBusy = false
		sess.mu.Unlock()
	}()

	version, assignments, err := s.writer.ApplyChanges(ctx, schedule, changes)
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrStaleSnapshot.Code {
			if s.sessions.metrics != nil {
				s.sessions.metrics.ObserveCommit(false)
			}
			return s.resync(ctx, sess, schedule.ID)
		}
		return nil, err
	}
	if s.sessions.metrics != nil {
		s.sessions.metrics.ObserveCommit(true)
	}

	now := time.Now()
	sess.mu.Lock()
	sess.schedule.Version = version
	sess.committed = assignments
	sess.ledger.Clear()
	sess.state = models.StateIdle
	s.sessions.afterMutationLocked(sess, changeDates(changes)...)
	sess.mu.Unlock()

	s.logger.Info("schedule committed",
		zap.String("session_id", sessionID),
		zap.String("schedule_id", schedule.ID),
		zap.Int("changes", len(changes)),
		zap.Int("version", version),
	)
	return &models.CommitReport{
		ScheduleID:      schedule.ID,
		Committed:       true,
		ScheduleVersion: version,
		Assignments:     assignments,
		CommittedAt:     &now,
	}, nil
}

// resync reloads the committed schedule after a version conflict and drops
// every ledger entry the new snapshot makes meaningless. Surviving entries
// stay pending so the admin can retry the commit.
func (s *CommitService) resync(ctx context.Context, sess *editSession, scheduleID string) (*models.CommitReport, error) {
	schedule, err := s.schedules.FindByID(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload schedule after conflict")
	}
	committed, err := s.assignments.ListActiveBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload assignments after conflict")
	}
	requirements, err := s.requirements.ListBySchedule(ctx, scheduleID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload slots after conflict")
	}

	requirementByKey := make(map[string]models.SlotRequirement, len(requirements))
	for _, req := range requirements {
		requirementByKey[req.Slot().Key()] = req
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	sess.schedule = *schedule
	sess.committed = committed
	sess.requirements = requirementByKey

	invalidated := s.invalidateStaleLocked(sess, requirementByKey, committed)
	s.sessions.afterMutationLocked(sess, changeDates(sess.ledger.All())...)
	sess.state = models.StateIdle

	s.logger.Warn("commit conflict, session resynchronized",
		zap.String("session_id", sess.id),
		zap.String("schedule_id", scheduleID),
		zap.Int("invalidated", len(invalidated)),
		zap.Int("surviving", sess.ledger.Len()),
	)
	return &models.CommitReport{
		ScheduleID:      scheduleID,
		Committed:       false,
		ScheduleVersion: schedule.Version,
		Invalidated:     invalidated,
	}, nil
}

// invalidateStaleLocked checks every pending change against the fresh
// snapshot. Invalidating one leg of a replace drops the whole group; the
// sibling leg is reported alongside it.
func (s *CommitService) invalidateStaleLocked(sess *editSession, requirements map[string]models.SlotRequirement, committed []models.Assignment) []models.InvalidatedChange {
	entries := sess.ledger.All()

	reasons := make(map[string]string)
	for _, entry := range entries {
		if _, ok := requirements[entry.Slot.Key()]; !ok {
			reasons[entry.Key] = "slot no longer exists in the schedule"
			continue
		}
		occupied := committedHas(committed, entry.EmployeeID, entry.Slot)
		switch entry.Action.Class() {
		case models.ActionAssign:
			if occupied {
				reasons[entry.Key] = "assignment already exists in the committed schedule"
			}
		case models.ActionRemove:
			if !occupied {
				reasons[entry.Key] = "assignment no longer exists in the committed schedule"
			}
		}
	}

	// Expand to replace-group siblings before cancelling anything.
	for _, entry := range entries {
		if entry.GroupKey == "" {
			continue
		}
		if _, hit := reasons[entry.Key]; !hit {
			continue
		}
		for _, sibling := range entries {
			if sibling.GroupKey != entry.GroupKey || sibling.Key == entry.Key {
				continue
			}
			if _, already := reasons[sibling.Key]; !already {
				reasons[sibling.Key] = "linked replace operation was invalidated"
			}
		}
	}

	var invalidated []models.InvalidatedChange
	for _, entry := range entries {
		reason, hit := reasons[entry.Key]
		if !hit {
			continue
		}
		invalidated = append(invalidated, models.InvalidatedChange{Change: entry, Reason: reason})
		if _, exists := sess.ledger.Get(entry.Key); exists {
			sess.ledger.Cancel(entry.Key)
		}
	}
	return invalidated
}

func committedHas(assignments []models.Assignment, employeeID string, slot models.Slot) bool {
	for _, a := range assignments {
		if a.EmployeeID == employeeID && a.Slot() == slot && a.Status == models.AssignmentStatusActive {
			return true
		}
	}
	return false
}

func changeDates(entries []models.PendingChange) []string {
	seen := make(map[string]struct{}, len(entries))
	dates := make([]string, 0, len(entries))
	for _, entry := range entries {
		if _, ok := seen[entry.Slot.Date]; ok {
			continue
		}
		seen[entry.Slot.Date] = struct{}{}
		dates = append(dates, entry.Slot.Date)
	}
	return dates
}
