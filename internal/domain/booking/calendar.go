// Package booking detects scheduling conflicts on hospital resources and
// coordinates activity bookings against them.
package booking

import "time"

// DefaultBufferMinutes is the start-to-start spacing enforced when either
// side of a comparison has no known end time.
const DefaultBufferMinutes = 30

// Conflict rules.
const (
	RuleOverlap  = "overlap"
	RuleBuffer   = "buffer"
	RuleDailyCap = "daily-cap"
)

// Conflict names the rule a proposed booking violates and, for the time
// rules, the existing booking it collides with.
type Conflict struct {
	Rule    string   `json:"rule"`
	Booking *Booking `json:"booking,omitempty"`
}

// Calendar applies the conflict rules. It holds no state beyond the
// configured buffer, so one instance serves all resources.
type Calendar struct {
	buffer time.Duration
}

func NewCalendar(bufferMinutes int) *Calendar {
	if bufferMinutes <= 0 {
		bufferMinutes = DefaultBufferMinutes
	}
	return &Calendar{buffer: time.Duration(bufferMinutes) * time.Minute}
}

// ConflictsFor checks a proposed [start, end) slot against the resource's
// active bookings. When both sides have an end time the intervals must
// not overlap; when either end is unknown the starts must sit at least
// the buffer apart. maxPerDay, when set, caps active bookings starting on
// the same UTC day.
func (c *Calendar) ConflictsFor(existing []*Booking, start time.Time, end *time.Time, maxPerDay *int) []Conflict {
	var conflicts []Conflict
	sameDay := 0

	for _, b := range existing {
		if !b.Active {
			continue
		}
		if sameUTCDay(b.ScheduledStart, start) {
			sameDay++
		}
		if end != nil && b.ScheduledEnd != nil {
			if start.Before(*b.ScheduledEnd) && b.ScheduledStart.Before(*end) {
				conflicts = append(conflicts, Conflict{Rule: RuleOverlap, Booking: b})
			}
			continue
		}
		gap := start.Sub(b.ScheduledStart)
		if gap < 0 {
			gap = -gap
		}
		if gap < c.buffer {
			conflicts = append(conflicts, Conflict{Rule: RuleBuffer, Booking: b})
		}
	}

	if maxPerDay != nil && sameDay >= *maxPerDay {
		conflicts = append(conflicts, Conflict{Rule: RuleDailyCap})
	}
	return conflicts
}

// IsAvailable reports whether the slot passes every conflict rule.
func (c *Calendar) IsAvailable(existing []*Booking, start time.Time, end *time.Time, maxPerDay *int) bool {
	return len(c.ConflictsFor(existing, start, end, maxPerDay)) == 0
}

func sameUTCDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
