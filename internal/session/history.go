package session

import "slices"

// DefaultHistoryCapacity is the number of undo steps kept by default.
const DefaultHistoryCapacity = 10

// History is a bounded stack of snapshots. When full, the oldest entry is
// dropped to make room.
type History struct {
	items    []Snapshot
	capacity int
}

// NewHistory creates a history holding at most capacity snapshots. A
// non-positive capacity falls back to DefaultHistoryCapacity.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = DefaultHistoryCapacity
	}
	return &History{capacity: capacity}
}

// Push stores snap, evicting the oldest entry when full.
func (h *History) Push(snap Snapshot) {
	if len(h.items) >= h.capacity {
		h.items = slices.Delete(h.items, 0, len(h.items)-h.capacity+1)
	}
	h.items = append(h.items, snap)
}

// Pop removes and returns the newest snapshot.
func (h *History) Pop() (Snapshot, bool) {
	if len(h.items) == 0 {
		return Snapshot{}, false
	}
	last := h.items[len(h.items)-1]
	h.items = h.items[:len(h.items)-1]
	return last, true
}

// Len returns the number of stored snapshots.
func (h *History) Len() int {
	return len(h.items)
}

// Cap returns the capacity.
func (h *History) Cap() int {
	return h.capacity
}

// Clear drops every snapshot.
func (h *History) Clear() {
	h.items = nil
}
