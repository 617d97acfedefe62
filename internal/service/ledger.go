package service

import (
	"sort"
	"sync"
	"time"

	"github.com/shiftwise/shiftwise-api/internal/models"
)

// Ledger is the ordered, keyed collection of uncommitted operations layered
// over the committed schedule. Keys are pure functions of the operation, so
// re-issuing the same logical operation is idempotent. The ledger never talks
// to the network; it is mutated by the edit session and drained by the commit
// coordinator.
type Ledger struct {
	mu          sync.Mutex
	entries     map[string]models.PendingChange
	nextOrdinal int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{entries: make(map[string]models.PendingChange)}
}

// Assign records a pending assignment of the employee to the slot and returns
// the entry key. A duplicate assign for the same pair is a no-op. An assign
// that matches a pending Remove of the same pair cancels that Remove instead
// of adding a second entry (toggle semantics).
func (l *Ledger) Assign(employeeID string, slot models.Slot, flags models.ChangeFlags) (string, bool) {
	return l.assign(employeeID, slot, flags, "")
}

// AssignOverride records an assign that was explicitly confirmed past the
// named blocking reason. The reason is kept on the entry so the override
// badge survives into later renders and the commit payload.
func (l *Ledger) AssignOverride(employeeID string, slot models.Slot, flags models.ChangeFlags, reason models.ReasonTag) (string, bool) {
	flags.Overridden = true
	return l.assign(employeeID, slot, flags, reason)
}

func (l *Ledger) assign(employeeID string, slot models.Slot, flags models.ChangeFlags, reason models.ReasonTag) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	removeKey := models.ChangeKey(models.ActionRemove, employeeID, slot)
	if entry, ok := l.entries[removeKey]; ok {
		l.dropLocked(entry)
		return removeKey, false
	}

	key := models.ChangeKey(models.ActionAssign, employeeID, slot)
	if _, ok := l.entries[key]; ok {
		return key, false
	}
	l.insertLocked(models.PendingChange{
		Key:            key,
		Action:         models.ActionAssign,
		EmployeeID:     employeeID,
		Slot:           slot,
		Flags:          flags,
		OverrideReason: reason,
	})
	return key, true
}

// Remove records a pending removal of the employee from the slot. If the pair
// only exists as a pending Assign, the assign entry is cancelled outright:
// nothing was ever committed, so there is nothing for the server to remove.
func (l *Ledger) Remove(employeeID string, slot models.Slot) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	assignKey := models.ChangeKey(models.ActionAssign, employeeID, slot)
	if entry, ok := l.entries[assignKey]; ok {
		l.dropLocked(entry)
		return assignKey, false
	}

	key := models.ChangeKey(models.ActionRemove, employeeID, slot)
	if _, ok := l.entries[key]; ok {
		return key, false
	}
	l.insertLocked(models.PendingChange{
		Key:        key,
		Action:     models.ActionRemove,
		EmployeeID: employeeID,
		Slot:       slot,
	})
	return key, true
}

// Replace atomically records the removal of the outgoing occupant and the
// assignment of the incoming employee under one group key, so cancellation
// affects both legs together.
func (l *Ledger) Replace(outgoingID, incomingID string, slot models.Slot, flags models.ChangeFlags, overrideReason models.ReasonTag) string {
	if overrideReason != "" {
		flags.Overridden = true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	group := models.ReplaceGroupKey(slot, outgoingID, incomingID)

	removeKey := models.ChangeKey(models.ActionRemove, outgoingID, slot)
	if _, ok := l.entries[removeKey]; !ok {
		l.insertLocked(models.PendingChange{
			Key:        removeKey,
			GroupKey:   group,
			Action:     models.ActionRemove,
			EmployeeID: outgoingID,
			Slot:       slot,
		})
	}

	assignKey := models.ChangeKey(models.ActionReplace, incomingID, slot)
	if _, ok := l.entries[assignKey]; !ok {
		l.insertLocked(models.PendingChange{
			Key:            assignKey,
			GroupKey:       group,
			Action:         models.ActionReplace,
			EmployeeID:     incomingID,
			Slot:           slot,
			Flags:          flags,
			OverrideReason: overrideReason,
		})
	}
	return group
}

// Cancel deletes the entry with the given key. When the entry belongs to a
// replace group, the sibling leg is cancelled with it.
func (l *Ledger) Cancel(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return false
	}
	l.dropLocked(entry)
	return true
}

// SetCustomTimes adjusts the custom start/end of a pending entry. The entry's
// identity key is unaffected; only non-standard "spare" times change.
func (l *Ledger) SetCustomTimes(key string, start, end *string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry, ok := l.entries[key]
	if !ok {
		return false
	}
	entry.CustomStart = start
	entry.CustomEnd = end
	l.entries[key] = entry
	return true
}

// Get returns the entry for the key, if present.
func (l *Ledger) Get(key string) (models.PendingChange, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry, ok := l.entries[key]
	return entry, ok
}

// ListForSlot returns the entries targeting the slot in creation order.
func (l *Ledger) ListForSlot(slot models.Slot) []models.PendingChange {
	return l.filter(func(e models.PendingChange) bool { return e.Slot == slot })
}

// ListForEmployee returns the employee's entries on the date in creation
// order.
func (l *Ledger) ListForEmployee(employeeID, date string) []models.PendingChange {
	return l.filter(func(e models.PendingChange) bool {
		return e.EmployeeID == employeeID && e.Slot.Date == date
	})
}

// All returns every entry in deterministic replay order.
func (l *Ledger) All() []models.PendingChange {
	return l.filter(func(models.PendingChange) bool { return true })
}

// Len reports the number of pending entries.
func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear drops every entry. Used after a successful commit.
func (l *Ledger) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = make(map[string]models.PendingChange)
}

func (l *Ledger) filter(keep func(models.PendingChange) bool) []models.PendingChange {
	l.mu.Lock()
	defer l.mu.Unlock()

	result := make([]models.PendingChange, 0, len(l.entries))
	for _, entry := range l.entries {
		if keep(entry) {
			result = append(result, entry)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Ordinal < result[j].Ordinal })
	return result
}

func (l *Ledger) insertLocked(entry models.PendingChange) {
	l.nextOrdinal++
	entry.Ordinal = l.nextOrdinal
	entry.CreatedAt = time.Now().UTC()
	l.entries[entry.Key] = entry
}

func (l *Ledger) dropLocked(entry models.PendingChange) {
	delete(l.entries, entry.Key)
	if entry.GroupKey == "" {
		return
	}
	for key, sibling := range l.entries {
		if sibling.GroupKey == entry.GroupKey {
			delete(l.entries, key)
		}
	}
}
