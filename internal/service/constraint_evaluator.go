package service

import (
	"sort"
	"time"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

const defaultMinRestHours = 8

// ConstraintEvaluator classifies an employee against a slot into exactly one
// availability tier with concrete evidence. Checks run cheapest-first and the
// first hard match decides the unavailable sub-reason; later matches are not
// surfaced.
type ConstraintEvaluator struct {
	restHours float64
}

// NewConstraintEvaluator builds an evaluator with the configured minimum rest
// window between two shifts, in hours.
func NewConstraintEvaluator(minRestHours int) *ConstraintEvaluator {
	if minRestHours <= 0 {
		minRestHours = defaultMinRestHours
	}
	return &ConstraintEvaluator{restHours: float64(minRestHours)}
}

// EvaluationInput is the full context for classifying one employee against
// one slot. Committed and Ledger together form the effective schedule;
// Temporary and Permanent are the employee's own constraint records.
type EvaluationInput struct {
	Employee       models.Employee
	Slot           models.Slot
	ScheduleSiteID string
	Shifts         map[string]models.Shift
	Committed      []models.Assignment
	Ledger         ledgerView
	Temporary      []models.TemporaryConstraint
	Permanent      []models.PermanentConstraint
	// IgnoreSlots are disregarded when scanning the employee's existing
	// occupancy. A move validates its target as if the source slot were
	// already vacated.
	IgnoreSlots []models.Slot
}

func (in EvaluationInput) ignored(slot models.Slot) bool {
	for _, s := range in.IgnoreSlots {
		if s == slot {
			return true
		}
	}
	return false
}

// Evaluate returns the employee's classification for the slot. Missing
// default-position or site data is treated as flexible, never as an error.
func (e *ConstraintEvaluator) Evaluate(in EvaluationInput) models.CandidateRecord {
	record := models.CandidateRecord{Employee: in.Employee}

	if blocked := e.checkUnavailable(in, &record); blocked {
		record.Tier = models.TierUnavailable
		return record
	}

	e.classifyTier(in, &record)
	e.annotateBecameAvailable(in, &record)
	return record
}

// checkUnavailable runs the blocking checks in authority order:
// already_assigned, permanent constraint, rest window, temporary hard,
// temporary soft. First match wins.
func (e *ConstraintEvaluator) checkUnavailable(in EvaluationInput, record *models.CandidateRecord) bool {
	if shiftName, conflict := e.sameDayConflict(in, false); conflict {
		reason := models.ReasonAlreadyAssigned
		record.UnavailableReason = &reason
		record.Reasons = append(record.Reasons, reason)
		record.ConflictShiftName = shiftName
		return true
	}

	for _, pc := range in.Permanent {
		if pc.EmployeeID != in.Employee.ID || !pc.Covers(in.Slot) {
			continue
		}
		reason := models.ReasonPermanentConstraint
		record.UnavailableReason = &reason
		record.Reasons = append(record.Reasons, reason)
		record.ConstraintDetails = &models.ConstraintDetails{ApprovedBy: pc.ApprovedBy, ApprovedAt: pc.ApprovedAt}
		return true
	}

	if details := e.restConflict(in, false); details != nil {
		reason := models.ReasonRestViolation
		record.UnavailableReason = &reason
		record.Reasons = append(record.Reasons, reason)
		record.RestDetails = details
		return true
	}

	for _, kind := range []models.ConstraintKind{models.ConstraintHard, models.ConstraintSoft} {
		for _, tc := range in.Temporary {
			if tc.EmployeeID != in.Employee.ID || tc.Kind != kind || !tc.Covers(in.Slot) {
				continue
			}
			reason := models.ReasonHardConstraint
			if kind == models.ConstraintSoft {
				reason = models.ReasonSoftConstraint
			}
			record.UnavailableReason = &reason
			record.Reasons = append(record.Reasons, reason)
			return true
		}
	}

	return false
}

// classifyTier places a non-blocked employee into Available, CrossPosition or
// OtherSite. A position mismatch outranks a site mismatch when both apply;
// the site mismatch stays visible as a warning.
func (e *ConstraintEvaluator) classifyTier(in EvaluationInput, record *models.CandidateRecord) {
	crossPosition := false
	crossSite := false

	if in.Employee.DefaultPositionID == nil {
		record.Reasons = append(record.Reasons, models.ReasonFlexiblePosition)
	} else if *in.Employee.DefaultPositionID != in.Slot.PositionID {
		crossPosition = true
	}

	if in.Employee.WorkSiteID == nil {
		record.Reasons = append(record.Reasons, models.ReasonFlexibleSite)
	} else if in.ScheduleSiteID != "" && *in.Employee.WorkSiteID != in.ScheduleSiteID {
		crossSite = true
	}

	switch {
	case crossPosition:
		record.Tier = models.TierCrossPosition
		record.Warnings = append(record.Warnings, models.ReasonCrossPosition)
		if crossSite {
			record.Warnings = append(record.Warnings, models.ReasonOtherSite)
		}
	case crossSite:
		record.Tier = models.TierOtherSite
		record.Warnings = append(record.Warnings, models.ReasonOtherSite)
	default:
		record.Tier = models.TierAvailable
	}
}

// annotateBecameAvailable marks employees blocked by the committed snapshot
// alone, a same-day conflict or a rest violation, that a pending Remove in
// this session lifted. Server-side changes never trip this: both views come
// from one snapshot.
func (e *ConstraintEvaluator) annotateBecameAvailable(in EvaluationInput, record *models.CandidateRecord) {
	_, sameDay := e.sameDayConflict(in, true)
	if !sameDay && e.restConflict(in, true) == nil {
		return
	}
	record.BecameAvailable = true
	record.Reasons = append(record.Reasons, models.ReasonBecameAvailable)
}

// sameDayConflict reports whether the employee occupies another slot on the
// slot's date. committedOnly ignores the ledger overlay.
func (e *ConstraintEvaluator) sameDayConflict(in EvaluationInput, committedOnly bool) (string, bool) {
	var slots []models.Slot
	if committedOnly {
		slots = CommittedAssignmentsFor(in.Committed, in.Employee.ID, in.Slot.Date)
	} else {
		slots = EffectiveAssignmentsFor(in.Committed, in.Ledger, in.Employee.ID, in.Slot.Date)
	}
	for _, slot := range slots {
		if slot == in.Slot || in.ignored(slot) {
			continue
		}
		return e.shiftName(in.Shifts, slot.ShiftID), true
	}
	return "", false
}

// restConflict looks at the employee's shifts on the adjacent days and
// measures the gap to the target shift. A gap exactly equal to the required
// minimum is not a violation. committedOnly ignores the ledger overlay.
func (e *ConstraintEvaluator) restConflict(in EvaluationInput, committedOnly bool) *models.RestDetails {
	targetShift, ok := in.Shifts[in.Slot.ShiftID]
	if !ok {
		return nil
	}
	targetStart, err := targetShift.StartOn(in.Slot.Date)
	if err != nil {
		return nil
	}
	targetEnd, err := targetShift.EndOn(in.Slot.Date)
	if err != nil {
		return nil
	}

	type adjacent struct {
		slot  models.Slot
		start time.Time
		end   time.Time
	}
	var neighbours []adjacent
	for _, date := range adjacentDates(in.Slot.Date) {
		var slots []models.Slot
		if committedOnly {
			slots = CommittedAssignmentsFor(in.Committed, in.Employee.ID, date)
		} else {
			slots = EffectiveAssignmentsFor(in.Committed, in.Ledger, in.Employee.ID, date)
		}
		for _, slot := range slots {
			if in.ignored(slot) {
				continue
			}
			shift, ok := in.Shifts[slot.ShiftID]
			if !ok {
				continue
			}
			start, err := shift.StartOn(slot.Date)
			if err != nil {
				continue
			}
			end, err := shift.EndOn(slot.Date)
			if err != nil {
				continue
			}
			neighbours = append(neighbours, adjacent{slot: slot, start: start, end: end})
		}
	}
	sort.Slice(neighbours, func(i, j int) bool { return neighbours[i].start.Before(neighbours[j].start) })

	for _, n := range neighbours {
		var gap float64
		var conflictType models.RestConflictType
		if !n.start.After(targetStart) {
			gap = targetStart.Sub(n.end).Hours()
			conflictType = models.RestConflictBefore
		} else {
			gap = n.start.Sub(targetEnd).Hours()
			conflictType = models.RestConflictAfter
		}
		if gap < e.restHours {
			return &models.RestDetails{
				Type:              conflictType,
				AdjacentShiftName: e.shiftName(in.Shifts, n.slot.ShiftID),
				GapHours:          gap,
				RequiredHours:     e.restHours,
			}
		}
	}
	return nil
}

func (e *ConstraintEvaluator) shiftName(shifts map[string]models.Shift, shiftID string) string {
	if shift, ok := shifts[shiftID]; ok {
		return shift.Name
	}
	return shiftID
}

// adjacentDates returns the day before and the day after the given date.
func adjacentDates(date string) []string {
	day, err := time.Parse(models.DateLayout, date)
	if err != nil {
		return nil
	}
	return []string{
		day.AddDate(0, 0, -1).Format(models.DateLayout),
		day.AddDate(0, 0, 1).Format(models.DateLayout),
	}
}
