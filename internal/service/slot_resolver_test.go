package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

func committedAssignment(empID string, slot models.Slot) models.Assignment {
	return models.Assignment{
		ID:         "as-" + empID,
		ScheduleID: "sched-1",
		EmployeeID: empID,
		Date:       slot.Date,
		ShiftID:    slot.ShiftID,
		PositionID: slot.PositionID,
		Status:     models.AssignmentStatusActive,
	}
}

func TestResolveSlotMergesLedgerOverCommitted(t *testing.T) {
	slot := testSlot("2026-03-02", "day", "cashier")
	committed := []models.Assignment{
		committedAssignment("emp-1", slot),
		committedAssignment("emp-2", slot),
	}

	ledger := NewLedger()
	ledger.Remove("emp-2", slot)
	ledger.Assign("emp-3", slot, models.ChangeFlags{})

	view := ResolveSlot(committed, ledger, slot, 2)
	require.Equal(t, 2, view.Count())
	assert.True(t, view.Has("emp-1"))
	assert.False(t, view.Has("emp-2"))
	assert.True(t, view.Has("emp-3"))

	byID := map[string]models.Occupant{}
	for _, occ := range view.Occupants {
		byID[occ.EmployeeID] = occ
	}
	assert.Equal(t, models.OccupantCommitted, byID["emp-1"].Source)
	assert.Equal(t, models.OccupantPending, byID["emp-3"].Source)
}

func TestResolveSlotNeverDoubleCountsAnEmployee(t *testing.T) {
	slot := testSlot("2026-03-02", "day", "cashier")
	committed := []models.Assignment{committedAssignment("emp-1", slot)}

	ledger := NewLedger()
	// A pending assign for an already committed occupant must not produce
	// two occupant rows.
	ledger.Assign("emp-1", slot, models.ChangeFlags{})

	view := ResolveSlot(committed, ledger, slot, 1)
	assert.Equal(t, 1, view.Count())
}

func TestResolveSlotResultIndependentOfEntryOrder(t *testing.T) {
	slot := testSlot("2026-03-02", "day", "cashier")
	committed := []models.Assignment{committedAssignment("emp-1", slot)}

	forward := NewLedger()
	forward.Remove("emp-1", slot)
	forward.Assign("emp-2", slot, models.ChangeFlags{})

	backward := NewLedger()
	backward.Assign("emp-2", slot, models.ChangeFlags{})
	backward.Remove("emp-1", slot)

	viewA := ResolveSlot(committed, forward, slot, 1)
	viewB := ResolveSlot(committed, backward, slot, 1)

	assert.Equal(t, viewA.Count(), viewB.Count())
	assert.Equal(t, viewA.Has("emp-1"), viewB.Has("emp-1"))
	assert.Equal(t, viewA.Has("emp-2"), viewB.Has("emp-2"))
}

func TestEffectiveAssignmentsForAppliesOverlay(t *testing.T) {
	slotA := testSlot("2026-03-02", "day", "cashier")
	slotB := testSlot("2026-03-02", "night", "cashier")
	committed := []models.Assignment{committedAssignment("emp-1", slotA)}

	ledger := NewLedger()
	ledger.Remove("emp-1", slotA)
	ledger.Assign("emp-1", slotB, models.ChangeFlags{})

	effective := EffectiveAssignmentsFor(committed, ledger, "emp-1", "2026-03-02")
	require.Len(t, effective, 1)
	assert.Equal(t, slotB, effective[0])

	committedOnly := CommittedAssignmentsFor(committed, "emp-1", "2026-03-02")
	require.Len(t, committedOnly, 1)
	assert.Equal(t, slotA, committedOnly[0])
}
