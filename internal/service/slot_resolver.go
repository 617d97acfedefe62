package service

import "github.com/shiftwise/shiftwise-api/internal/models"

// ledgerView is the read-only slice of the ledger the resolver needs. The
// concrete *Ledger satisfies it.
type ledgerView interface {
	ListForSlot(slot models.Slot) []models.PendingChange
	ListForEmployee(employeeID, date string) []models.PendingChange
}

// ResolveSlot merges committed assignments with the pending ledger into the
// effective occupant list of one slot. It holds no state and performs no IO,
// so it is safe to call on every keystroke or drag tick. An employee present
// both as a committed occupant and as a pending target of the same slot is
// counted once.
func ResolveSlot(committed []models.Assignment, ledger ledgerView, slot models.Slot, required int) models.EffectiveOccupants {
	pending := ledger.ListForSlot(slot)

	removed := make(map[string]bool, len(pending))
	for _, entry := range pending {
		if entry.Action == models.ActionRemove {
			removed[entry.EmployeeID] = true
		}
	}

	result := models.EffectiveOccupants{Slot: slot, Required: required}
	seen := make(map[string]bool)

	for _, a := range committed {
		if a.Slot() != slot || a.Status != models.AssignmentStatusActive {
			continue
		}
		if removed[a.EmployeeID] || seen[a.EmployeeID] {
			continue
		}
		seen[a.EmployeeID] = true
		result.Occupants = append(result.Occupants, models.Occupant{
			EmployeeID:   a.EmployeeID,
			AssignmentID: a.ID,
			Source:       models.OccupantCommitted,
			CustomStart:  a.CustomStart,
			CustomEnd:    a.CustomEnd,
		})
	}

	for _, entry := range pending {
		if entry.Action == models.ActionRemove || seen[entry.EmployeeID] {
			continue
		}
		seen[entry.EmployeeID] = true
		result.Occupants = append(result.Occupants, models.Occupant{
			EmployeeID:  entry.EmployeeID,
			PendingKey:  entry.Key,
			Source:      models.OccupantPending,
			Flags:       entry.Flags,
			CustomStart: entry.CustomStart,
			CustomEnd:   entry.CustomEnd,
		})
	}

	return result
}

// EffectiveAssignmentsFor returns the slots the employee effectively occupies
// on the date: committed assignments minus pending removals, plus pending
// assigns. Used to exclude already-claimed employees from recommendations and
// to evaluate the already_assigned rule.
func EffectiveAssignmentsFor(committed []models.Assignment, ledger ledgerView, employeeID, date string) []models.Slot {
	pending := ledger.ListForEmployee(employeeID, date)

	removed := make(map[models.Slot]bool, len(pending))
	for _, entry := range pending {
		if entry.Action == models.ActionRemove {
			removed[entry.Slot] = true
		}
	}

	var slots []models.Slot
	seen := make(map[models.Slot]bool)
	for _, a := range committed {
		if a.EmployeeID != employeeID || a.Date != date || a.Status != models.AssignmentStatusActive {
			continue
		}
		slot := a.Slot()
		if removed[slot] || seen[slot] {
			continue
		}
		seen[slot] = true
		slots = append(slots, slot)
	}
	for _, entry := range pending {
		if entry.Action == models.ActionRemove || seen[entry.Slot] {
			continue
		}
		seen[entry.Slot] = true
		slots = append(slots, entry.Slot)
	}
	return slots
}

// CommittedAssignmentsFor is the committed-only variant, ignoring the ledger.
// Comparing it with EffectiveAssignmentsFor is what lets the evaluator tell a
// session-local "became available" apart from server-side state.
func CommittedAssignmentsFor(committed []models.Assignment, employeeID, date string) []models.Slot {
	var slots []models.Slot
	seen := make(map[models.Slot]bool)
	for _, a := range committed {
		if a.EmployeeID != employeeID || a.Date != date || a.Status != models.AssignmentStatusActive {
			continue
		}
		slot := a.Slot()
		if seen[slot] {
			continue
		}
		seen[slot] = true
		slots = append(slots, slot)
	}
	return slots
}
