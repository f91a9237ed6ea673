package domain

import (
	"fmt"
	"slices"
	"sort"
	"strings"
	"time"

	cronlib "github.com/robfig/cron/v3"
)

// DayLayout formats the calendar date used for ledger keys
const DayLayout = "2006-01-02"

var slotParser = cronlib.NewParser(cronlib.Minute | cronlib.Hour | cronlib.Dom | cronlib.Month | cronlib.Dow | cronlib.Descriptor)

// Slot is a named daily broadcast time, expressed as a cron expression
type Slot struct {
	Name     string
	Expr     string
	schedule cronlib.Schedule
}

// ParseSlot validates expr and builds a slot
func ParseSlot(name, expr string) (Slot, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Slot{}, fmt.Errorf("slot name is required")
	}
	sched, err := slotParser.Parse(strings.TrimSpace(expr))
	if err != nil {
		return Slot{}, fmt.Errorf("parse slot %s: %w", name, err)
	}
	return Slot{Name: name, Expr: strings.TrimSpace(expr), schedule: sched}, nil
}

// ParseSlots parses "name=expr;name=expr" into slots, keeping the given order
func ParseSlots(spec string) ([]Slot, error) {
	var slots []Slot
	seen := make(map[string]bool)
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, expr, ok := strings.Cut(part, "=")
		if !ok {
			return nil, fmt.Errorf("slot %q: expected name=expr", part)
		}
		slot, err := ParseSlot(name, expr)
		if err != nil {
			return nil, err
		}
		if seen[slot.Name] {
			return nil, fmt.Errorf("duplicate slot %s", slot.Name)
		}
		seen[slot.Name] = true
		slots = append(slots, slot)
	}
	return slots, nil
}

// SlotNames returns the names of slots in order
func SlotNames(slots []Slot) []string {
	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.Name
	}
	return names
}

// DueAt returns the most recent occurrence occ with now-window < occ <= now,
// evaluated in loc. ok is false when no occurrence falls in that window.
func (s Slot) DueAt(now time.Time, window time.Duration, loc *time.Location) (occ time.Time, ok bool) {
	if s.schedule == nil || window <= 0 {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.UTC
	}
	now = now.In(loc)
	next := s.schedule.Next(now.Add(-window))
	for !next.IsZero() && !next.After(now) {
		occ, ok = next, true
		next = s.schedule.Next(next)
	}
	return occ, ok
}

// LedgerRecord marks that a slot was broadcast to a chat on a day
type LedgerRecord struct {
	ChatID ChatID
	Slot   string
	Day    string // DayLayout in the schedule zone
}

// BroadcastLedger is the set of broadcasts already sent. Not safe for
// concurrent use; the broadcast driver owns it.
type BroadcastLedger struct {
	records map[LedgerRecord]struct{}
}

// NewBroadcastLedger builds a ledger from persisted records
func NewBroadcastLedger(records ...LedgerRecord) *BroadcastLedger {
	l := &BroadcastLedger{records: make(map[LedgerRecord]struct{}, len(records))}
	for _, r := range records {
		l.records[r] = struct{}{}
	}
	return l
}

// Has reports whether the record exists
func (l *BroadcastLedger) Has(r LedgerRecord) bool {
	_, ok := l.records[r]
	return ok
}

// Mark adds a record; it returns false if it was already present
func (l *BroadcastLedger) Mark(r LedgerRecord) bool {
	if l.Has(r) {
		return false
	}
	l.records[r] = struct{}{}
	return true
}

// Prune drops every record whose day is not one of keep and reports whether
// anything was removed
func (l *BroadcastLedger) Prune(keep ...string) bool {
	changed := false
	for r := range l.records {
		if !slices.Contains(keep, r.Day) {
			delete(l.records, r)
			changed = true
		}
	}
	return changed
}

// Len returns the number of records
func (l *BroadcastLedger) Len() int {
	return len(l.records)
}

// Records returns all records in a stable order
func (l *BroadcastLedger) Records() []LedgerRecord {
	out := make([]LedgerRecord, 0, len(l.records))
	for r := range l.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Day != out[j].Day {
			return out[i].Day < out[j].Day
		}
		if out[i].ChatID != out[j].ChatID {
			return out[i].ChatID < out[j].ChatID
		}
		return out[i].Slot < out[j].Slot
	})
	return out
}
