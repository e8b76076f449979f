package booking

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func ts(hour, min int) time.Time {
	return time.Date(2024, 9, 10, hour, min, 0, 0, time.UTC)
}

func tsPtr(hour, min int) *time.Time {
	t := ts(hour, min)
	return &t
}

func activeBooking(start time.Time, end *time.Time) *Booking {
	return &Booking{
		ID:             uuid.New(),
		ResourceID:     uuid.New(),
		ActivityID:     uuid.New(),
		ScheduledStart: start,
		ScheduledEnd:   end,
		Active:         true,
	}
}

func TestConflictsFor_Overlap(t *testing.T) {
	cal := NewCalendar(DefaultBufferMinutes)
	existing := []*Booking{activeBooking(ts(10, 0), tsPtr(11, 0))}

	conflicts := cal.ConflictsFor(existing, ts(10, 30), tsPtr(11, 30), nil)
	if len(conflicts) != 1 {
		t.Fatalf("expected 1 conflict, got %d", len(conflicts))
	}
	if conflicts[0].Rule != RuleOverlap {
		t.Errorf("expected overlap rule, got %s", conflicts[0].Rule)
	}
	if conflicts[0].Booking == nil {
		t.Error("overlap conflict must name the colliding booking")
	}
}

func TestConflictsFor_ContainedInterval(t *testing.T) {
	cal := NewCalendar(DefaultBufferMinutes)
	existing := []*Booking{activeBooking(ts(9, 0), tsPtr(12, 0))}

	if cal.IsAvailable(existing, ts(10, 0), tsPtr(10, 30), nil) {
		t.Error("interval inside an existing booking must conflict")
	}
}

func TestConflictsFor_AdjacentSlotsAllowed(t *testing.T) {
	cal := NewCalendar(DefaultBufferMinutes)
	existing := []*Booking{activeBooking(ts(10, 0), tsPtr(11, 0))}

	// [10:00,11:00) and [11:00,12:00) share only the boundary instant.
	if !cal.IsAvailable(existing, ts(11, 0), tsPtr(12, 0), nil) {
		t.Error("back-to-back slots must not conflict")
	}
	if !cal.IsAvailable(existing, ts(9, 0), tsPtr(10, 0), nil) {
		t.Error("slot ending at an existing start must not conflict")
	}
}

func TestConflictsFor_BufferWhenEndUnknown(t *testing.T) {
	cal := NewCalendar(30)
	existing := []*Booking{activeBooking(ts(10, 0), nil)}

	conflicts := cal.ConflictsFor(existing, ts(10, 20), tsPtr(11, 0), nil)
	if len(conflicts) != 1 || conflicts[0].Rule != RuleBuffer {
		t.Fatalf("expected a buffer conflict, got %v", conflicts)
	}

	if !cal.IsAvailable(existing, ts(10, 30), tsPtr(11, 0), nil) {
		t.Error("starts exactly the buffer apart must not conflict")
	}
	if !cal.IsAvailable(existing, ts(9, 30), nil, nil) {
		t.Error("buffer applies symmetrically before the existing start")
	}
	if cal.IsAvailable(existing, ts(9, 45), nil, nil) {
		t.Error("start 15 minutes before an open-ended booking must conflict")
	}
}

func TestConflictsFor_IgnoresInactiveBookings(t *testing.T) {
	cal := NewCalendar(DefaultBufferMinutes)
	released := activeBooking(ts(10, 0), tsPtr(11, 0))
	released.Active = false

	if !cal.IsAvailable([]*Booking{released}, ts(10, 0), tsPtr(11, 0), nil) {
		t.Error("released bookings must not block the slot")
	}
}

func TestConflictsFor_DailyCap(t *testing.T) {
	cal := NewCalendar(DefaultBufferMinutes)
	existing := []*Booking{
		activeBooking(ts(8, 0), tsPtr(9, 0)),
		activeBooking(ts(9, 0), tsPtr(10, 0)),
	}
	dailyCap := 2

	conflicts := cal.ConflictsFor(existing, ts(14, 0), tsPtr(15, 0), &dailyCap)
	if len(conflicts) != 1 || conflicts[0].Rule != RuleDailyCap {
		t.Fatalf("expected a daily-cap conflict, got %v", conflicts)
	}

	// A booking on another day does not count against the cap.
	nextDay := ts(8, 0).Add(24 * time.Hour)
	nextDayEnd := nextDay.Add(time.Hour)
	if !cal.IsAvailable(existing, nextDay, &nextDayEnd, &dailyCap) {
		t.Error("cap must be evaluated per day")
	}
}
