package availability

import (
	"errors"
	"slices"
	"testing"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

func mustClock(t *testing.T, s string) Clock {
	t.Helper()
	c, err := ParseClock(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return c
}

func window(t *testing.T, start, end string) Window {
	return Window{Start: mustClock(t, start), End: mustClock(t, end)}
}

func busyAt(t *testing.T, start string, minutes int) Interval {
	s := mustClock(t, start)
	return Interval{Start: s, End: s.Add(minutes)}
}

func formatAll(cs []Clock) []string {
	out := make([]string, 0, len(cs))
	for _, c := range cs {
		out = append(out, c.String())
	}
	return out
}

func TestParseClock(t *testing.T) {
	cases := []struct {
		in   string
		want Clock
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:30", 570, true},
		{"23:59", 1439, true},
		{"24:00", EndOfDay, true},
		{"24:01", 0, false},
		{"9:30", 0, false},
		{"09:60", 0, false},
		{"0a:00", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseClock(tc.in)
		if tc.ok != (err == nil) {
			t.Fatalf("ParseClock(%q) err = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("ParseClock(%q) error should wrap ErrInvalidInput: %v", tc.in, err)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParseClock(%q) = %d, want %d", tc.in, got, tc.want)
		}
	}
	if s := Clock(570).String(); s != "09:30" {
		t.Fatalf("String() = %q", s)
	}
}

func TestOverlapsIsHalfOpen(t *testing.T) {
	a := Interval{Start: 600, End: 660}
	cases := []struct {
		b    Interval
		want bool
	}{
		{Interval{Start: 660, End: 720}, false}, // touching at the end
		{Interval{Start: 540, End: 600}, false}, // touching at the start
		{Interval{Start: 630, End: 690}, true},
		{Interval{Start: 540, End: 720}, true},
		{Interval{Start: 610, End: 620}, true},
	}
	for _, tc := range cases {
		if got := Overlaps(a, tc.b); got != tc.want {
			t.Fatalf("Overlaps(%v, %v) = %v, want %v", a, tc.b, got, tc.want)
		}
		if Overlaps(tc.b, a) != Overlaps(a, tc.b) {
			t.Fatalf("Overlaps is not symmetric for %v", tc.b)
		}
	}
}

func TestEnumerate_MondayWithConfirmedBooking(t *testing.T) {
	windows := []Window{window(t, "09:00", "12:00")}
	busy := []Interval{busyAt(t, "10:00", 60)}

	got := formatAll(Enumerate(windows, busy, 60))
	want := []string{"09:00", "11:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestEnumerate_SplitShift(t *testing.T) {
	windows := []Window{window(t, "14:00", "16:00"), window(t, "09:00", "10:00")}

	got := formatAll(Enumerate(windows, nil, 30))
	want := []string{"09:00", "09:30", "14:00", "14:30", "15:00", "15:30"}
	if !slices.Equal(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestEnumerate_OverlappingWindowsAreDeduplicated(t *testing.T) {
	windows := []Window{window(t, "09:00", "11:00"), window(t, "10:00", "12:00")}

	got := formatAll(Enumerate(windows, nil, 60))
	want := []string{"09:00", "09:30", "10:00", "10:30", "11:00"}
	if !slices.Equal(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestEnumerate_DurationLongerThanWindow(t *testing.T) {
	windows := []Window{window(t, "09:00", "10:00")}
	if got := Enumerate(windows, nil, 90); len(got) != 0 {
		t.Fatalf("expected no slots, got %v", formatAll(got))
	}
}

func TestEnumerate_WindowEndingAtMidnight(t *testing.T) {
	windows := []Window{window(t, "23:00", "24:00")}
	got := formatAll(Enumerate(windows, nil, 30))
	want := []string{"23:00", "23:30"}
	if !slices.Equal(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
}

func TestCheck(t *testing.T) {
	windows := []Window{window(t, "09:00", "12:00")}
	busy := []Interval{busyAt(t, "10:00", 60)}

	cases := []struct {
		name    string
		windows []Window
		start   string
		dur     int
		want    error
	}{
		{"free slot", windows, "09:00", 60, nil},
		{"after booking", windows, "11:00", 60, nil},
		{"overlaps booking start", windows, "09:30", 60, ErrSlotConflict},
		{"inside booking", windows, "10:00", 30, ErrSlotConflict},
		{"runs past window", windows, "11:30", 60, ErrOutsideWorkingHours},
		{"before window", windows, "08:30", 30, ErrOutsideWorkingHours},
		{"off the grid", windows, "09:15", 30, ErrOutsideWorkingHours},
		{"no windows", nil, "09:00", 30, ErrProviderNotWorking},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Check(tc.windows, busy, mustClock(t, tc.start), tc.dur)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("expected nil, got %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

// Every start time on a 15-minute grid is accepted by Check iff Enumerate
// lists it, for a spread of windows, bookings and durations.
func TestEnumerateAndCheckAgree(t *testing.T) {
	windowSets := [][]Window{
		{window(t, "09:00", "12:00")},
		{window(t, "08:15", "10:45"), window(t, "13:00", "17:00")},
		{window(t, "09:00", "11:00"), window(t, "10:30", "12:30")},
	}
	busySets := [][]Interval{
		nil,
		{busyAt(t, "10:00", 60)},
		{busyAt(t, "09:15", 45), busyAt(t, "14:00", 90), busyAt(t, "16:30", 15)},
	}
	durations := []int{15, 30, 45, 60, 90, 180}

	for wi, windows := range windowSets {
		for bi, busy := range busySets {
			for _, d := range durations {
				listed := Enumerate(windows, busy, d)
				for c := Clock(0); c < EndOfDay; c += 15 {
					accepted := Check(windows, busy, c, d) == nil
					if accepted != slices.Contains(listed, c) {
						t.Fatalf("windows#%d busy#%d dur=%d start=%s: check=%v enumerate=%v",
							wi, bi, d, c, accepted, !accepted)
					}
					if accepted {
						iv := Interval{Start: c, End: c.Add(d)}
						for _, b := range busy {
							if Overlaps(iv, b) {
								t.Fatalf("slot %s overlaps busy %v", c, b)
							}
						}
					}
				}
				if !slices.IsSorted(listed) {
					t.Fatalf("slots not sorted: %v", formatAll(listed))
				}
			}
		}
	}
}

func TestWindowsSkipsInactiveAndInvalid(t *testing.T) {
	hours := []model.WorkingHours{
		{DayOfWeek: 1, StartTime: "13:00", EndTime: "15:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "17:00", EndTime: "18:00", IsActive: false},
		{DayOfWeek: 1, StartTime: "12:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 2, StartTime: "09:00", EndTime: "12:00", IsActive: true},
		{DayOfWeek: 1, StartTime: "bad", EndTime: "12:00", IsActive: true},
	}
	got := Windows(hours, 1)
	if len(got) != 2 || got[0].Start != 540 || got[1].Start != 780 {
		t.Fatalf("unexpected windows: %+v", got)
	}
}

func TestBusyIgnoresNonOccupyingStatuses(t *testing.T) {
	busy, err := Busy([]model.Occupancy{
		{BookingID: "a", ScheduledTime: "10:00", DurationMinutes: 60, Status: model.StatusConfirmed},
		{BookingID: "b", ScheduledTime: "11:00", DurationMinutes: 60, Status: model.StatusCancelled},
		{BookingID: "c", ScheduledTime: "12:00", DurationMinutes: 60, Status: model.StatusPending},
		{BookingID: "d", ScheduledTime: "13:00", DurationMinutes: 60, Status: model.StatusCompleted},
	})
	if err != nil {
		t.Fatalf("busy: %v", err)
	}
	if len(busy) != 2 || busy[0].Start != 600 || busy[1].Start != 720 {
		t.Fatalf("unexpected busy intervals: %+v", busy)
	}

	if _, err := Busy([]model.Occupancy{{BookingID: "x", ScheduledTime: "25:00", DurationMinutes: 30, Status: model.StatusPending}}); err == nil {
		t.Fatalf("expected error for malformed stored time")
	}
}
