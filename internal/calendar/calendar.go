package calendar

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ResourceKind distinguishes the two bookable resource types.
type ResourceKind string

const (
	KindDoctor ResourceKind = "doctor"
	KindRoom   ResourceKind = "room"
)

// Key identifies one resource's calendar. A resource belongs to exactly one clinic.
type Key struct {
	ClinicID   uuid.UUID
	ResourceID uuid.UUID
	Kind       ResourceKind
}

// String returns a canonical form used for lock keys and ordering.
func (k Key) String() string {
	return k.ClinicID.String() + ":" + string(k.Kind) + ":" + k.ResourceID.String()
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether Start < End.
func (iv Interval) Valid() bool {
	return iv.Start.Before(iv.End)
}

// Overlaps uses the half-open overlap test: a.Start < b.End && b.Start < a.End.
func (iv Interval) Overlaps(other Interval) bool {
	return iv.Start.Before(other.End) && other.Start.Before(iv.End)
}

// Entry is one booked interval on a resource's calendar.
type Entry struct {
	AppointmentID uuid.UUID
	Interval      Interval
}

// resourceIndex holds one resource's entries sorted by start time.
// Entries never overlap; the booking service verifies that before inserting.
type resourceIndex struct {
	mu      sync.RWMutex
	entries []Entry
}

// Calendar is an in-memory interval index over all resources the process has
// loaded. It answers overlap queries; it does not decide whether an insert is
// allowed. Reads are safe while another goroutine writes a different resource,
// and safe against writes on the same resource via a per-resource RWMutex.
type Calendar struct {
	mu      sync.RWMutex
	indexes map[Key]*resourceIndex
}

func New() *Calendar {
	return &Calendar{indexes: make(map[Key]*resourceIndex)}
}

func (c *Calendar) index(key Key, create bool) *resourceIndex {
	c.mu.RLock()
	idx := c.indexes[key]
	c.mu.RUnlock()
	if idx != nil || !create {
		return idx
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if idx = c.indexes[key]; idx == nil {
		idx = &resourceIndex{}
		c.indexes[key] = idx
	}
	return idx
}

// Overlapping returns the ids of all active appointments whose interval
// intersects iv, in start order.
func (c *Calendar) Overlapping(key Key, iv Interval) []uuid.UUID {
	return c.OverlappingExcluding(key, iv, uuid.Nil)
}

// OverlappingExcluding is Overlapping minus the entry for skip, used by
// reschedule so an appointment does not conflict with itself.
func (c *Calendar) OverlappingExcluding(key Key, iv Interval, skip uuid.UUID) []uuid.UUID {
	idx := c.index(key, false)
	if idx == nil {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	// First entry whose end is after iv.Start. Entries are disjoint and
	// start-ordered, so their ends are ordered too and this is the leftmost
	// possible overlap.
	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Interval.End.After(iv.Start)
	})

	var ids []uuid.UUID
	for ; i < len(idx.entries); i++ {
		e := idx.entries[i]
		if !e.Interval.Start.Before(iv.End) {
			break
		}
		if e.AppointmentID == skip {
			continue
		}
		ids = append(ids, e.AppointmentID)
	}
	return ids
}

// Insert adds an interval for an appointment. The caller must have already
// verified there is no conflict; Insert itself does not check.
func (c *Calendar) Insert(key Key, iv Interval, appointmentID uuid.UUID) {
	idx := c.index(key, true)

	idx.mu.Lock()
	defer idx.mu.Unlock()

	i := sort.Search(len(idx.entries), func(i int) bool {
		return idx.entries[i].Interval.Start.After(iv.Start)
	})
	idx.entries = append(idx.entries, Entry{})
	copy(idx.entries[i+1:], idx.entries[i:])
	idx.entries[i] = Entry{AppointmentID: appointmentID, Interval: iv}
}

// Remove drops the entry for an appointment, if present. Returns whether an
// entry was removed.
func (c *Calendar) Remove(key Key, appointmentID uuid.UUID) bool {
	idx := c.index(key, false)
	if idx == nil {
		return false
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	for i, e := range idx.entries {
		if e.AppointmentID == appointmentID {
			idx.entries = append(idx.entries[:i], idx.entries[i+1:]...)
			return true
		}
	}
	return false
}

// ReplaceAll rebuilds one resource's index from persisted state in O(n log n).
func (c *Calendar) ReplaceAll(key Key, entries []Entry) {
	sorted := make([]Entry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Interval.Start.Before(sorted[j].Interval.Start)
	})

	idx := c.index(key, true)
	idx.mu.Lock()
	idx.entries = sorted
	idx.mu.Unlock()
}

// Entries returns a snapshot of a resource's entries in start order.
func (c *Calendar) Entries(key Key) []Entry {
	idx := c.index(key, false)
	if idx == nil {
		return nil
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()
	out := make([]Entry, len(idx.entries))
	copy(out, idx.entries)
	return out
}

// Drop removes a resource's index entirely, used when a doctor or room is
// deactivated.
func (c *Calendar) Drop(key Key) {
	c.mu.Lock()
	delete(c.indexes, key)
	c.mu.Unlock()
}
