package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

func testSlot(date, shiftID, positionID string) models.Slot {
	return models.Slot{Date: date, ShiftID: shiftID, PositionID: positionID}
}

func TestLedgerAssignIsIdempotent(t *testing.T) {
	ledger := NewLedger()
	slot := testSlot("2026-03-02", "day", "cashier")

	key1, created := ledger.Assign("emp-1", slot, models.ChangeFlags{})
	require.True(t, created)

	key2, created := ledger.Assign("emp-1", slot, models.ChangeFlags{})
	assert.False(t, created)
	assert.Equal(t, key1, key2)
	assert.Equal(t, 1, ledger.Len())
}

func TestLedgerRemoveCancelsPendingAssign(t *testing.T) {
	ledger := NewLedger()
	slot := testSlot("2026-03-02", "day", "cashier")

	ledger.Assign("emp-1", slot, models.ChangeFlags{})
	require.Equal(t, 1, ledger.Len())

	_, created := ledger.Remove("emp-1", slot)
	assert.False(t, created)
	assert.Equal(t, 0, ledger.Len(), "removing a pending assign cancels it outright")
}

func TestLedgerAssignCancelsPendingRemove(t *testing.T) {
	ledger := NewLedger()
	slot := testSlot("2026-03-02", "day", "cashier")

	// Committed occupant: remove creates a pending entry.
	removeKey, created := ledger.Remove("emp-1", slot)
	require.True(t, created)
	_, exists := ledger.Get(removeKey)
	require.True(t, exists)

	// Re-assigning the same pair toggles the removal away instead of
	// stacking an opposite entry.
	_, created = ledger.Assign("emp-1", slot, models.ChangeFlags{})
	assert.False(t, created)
	assert.Equal(t, 0, ledger.Len())
}

func TestLedgerReplaceLinksBothLegs(t *testing.T) {
	ledger := NewLedger()
	slot := testSlot("2026-03-02", "day", "cashier")

	group := ledger.Replace("emp-out", "emp-in", slot, models.ChangeFlags{}, "")
	require.NotEmpty(t, group)
	require.Equal(t, 2, ledger.Len())

	for _, entry := range ledger.All() {
		assert.Equal(t, group, entry.GroupKey)
	}

	assignKey := models.ChangeKey(models.ActionReplace, "emp-in", slot)
	assert.True(t, ledger.Cancel(assignKey))
	assert.Equal(t, 0, ledger.Len(), "cancelling one leg drops the sibling")
}

func TestLedgerReplaceOverrideMarksIncomingLeg(t *testing.T) {
	ledger := NewLedger()
	slot := testSlot("2026-03-02", "day", "cashier")

	ledger.Replace("emp-out", "emp-in", slot, models.ChangeFlags{}, models.ReasonHardConstraint)

	entry, ok := ledger.Get(models.ChangeKey(models.ActionReplace, "emp-in", slot))
	require.True(t, ok)
	assert.True(t, entry.Flags.Overridden)
	assert.Equal(t, models.ReasonHardConstraint, entry.OverrideReason)

	outLeg, ok := ledger.Get(models.ChangeKey(models.ActionRemove, "emp-out", slot))
	require.True(t, ok)
	assert.False(t, outLeg.Flags.Overridden)
}

func TestLedgerAllPreservesInsertionOrder(t *testing.T) {
	ledger := NewLedger()

	ledger.Assign("emp-1", testSlot("2026-03-02", "day", "cashier"), models.ChangeFlags{})
	ledger.Remove("emp-2", testSlot("2026-03-03", "night", "cook"))
	ledger.Assign("emp-3", testSlot("2026-03-02", "night", "cashier"), models.ChangeFlags{})

	entries := ledger.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "emp-1", entries[0].EmployeeID)
	assert.Equal(t, "emp-2", entries[1].EmployeeID)
	assert.Equal(t, "emp-3", entries[2].EmployeeID)
	assert.Less(t, entries[0].Ordinal, entries[1].Ordinal)
	assert.Less(t, entries[1].Ordinal, entries[2].Ordinal)
}

func TestLedgerSetCustomTimesKeepsIdentity(t *testing.T) {
	ledger := NewLedger()
	slot := testSlot("2026-03-02", "day", "cashier")

	key, _ := ledger.Assign("emp-1", slot, models.ChangeFlags{})
	start, end := "09:30", "15:00"
	require.True(t, ledger.SetCustomTimes(key, &start, &end))

	entry, ok := ledger.Get(key)
	require.True(t, ok)
	assert.Equal(t, "09:30", *entry.CustomStart)
	assert.Equal(t, "15:00", *entry.CustomEnd)
	assert.Equal(t, models.ActionAssign, entry.Action)
	assert.Equal(t, 1, ledger.Len(), "resize never creates a second entry")

	assert.False(t, ledger.SetCustomTimes("missing-key", &start, &end))
}

func TestLedgerCancelUnknownKey(t *testing.T) {
	ledger := NewLedger()
	assert.False(t, ledger.Cancel("no-such-key"))
}
