package availability

import (
	"errors"
	"fmt"
	"slices"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

// SlotStep is the granularity at which start times are offered.
const SlotStep = 30

// MaxDuration bounds a requested service duration to one day.
const MaxDuration = minutesPerDay

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrProviderNotWorking  = errors.New("provider does not work this day")
	ErrOutsideWorkingHours = errors.New("requested time is outside working hours")
	ErrSlotConflict        = errors.New("requested time overlaps an existing booking")
)

// IsRejection reports whether err is one of the expected outcomes of a
// validation, as opposed to an infrastructure failure.
func IsRejection(err error) bool {
	return errors.Is(err, ErrInvalidInput) ||
		errors.Is(err, ErrProviderNotWorking) ||
		errors.Is(err, ErrOutsideWorkingHours) ||
		errors.Is(err, ErrSlotConflict)
}

// Window is a half-open working-hours window [Start, End).
type Window struct {
	Start Clock
	End   Clock
}

// Interval is a half-open time-of-day interval [Start, End).
type Interval struct {
	Start Clock
	End   Clock
}

// Overlaps is the only overlap rule used for scheduling: [a,b) and [c,d)
// intersect iff a < d and c < b.
func Overlaps(a, b Interval) bool {
	return a.Start < b.End && b.Start < a.End
}

func overlapsAny(candidate Interval, busy []Interval) bool {
	for _, b := range busy {
		if Overlaps(candidate, b) {
			return true
		}
	}
	return false
}

// admits reports whether candidate fits inside w and starts on w's grid.
func (w Window) admits(candidate Interval) bool {
	return w.Start <= candidate.Start &&
		candidate.End <= w.End &&
		(candidate.Start-w.Start)%SlotStep == 0
}

// Enumerate returns every bookable start time of a duration-minute service,
// ascending and without duplicates.
func Enumerate(windows []Window, busy []Interval, duration int) []Clock {
	if duration <= 0 {
		return nil
	}
	seen := make(map[Clock]struct{})
	var out []Clock
	for _, w := range windows {
		for t := w.Start; ; t += SlotStep {
			candidate := Interval{Start: t, End: t.Add(duration)}
			if !w.admits(candidate) {
				break
			}
			if overlapsAny(candidate, busy) {
				continue
			}
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			out = append(out, t)
		}
	}
	slices.Sort(out)
	return out
}

// Check decides whether a single start time is bookable. It accepts exactly
// the start times Enumerate would return for the same inputs.
func Check(windows []Window, busy []Interval, start Clock, duration int) error {
	if len(windows) == 0 {
		return ErrProviderNotWorking
	}
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive", ErrInvalidInput)
	}
	candidate := Interval{Start: start, End: start.Add(duration)}
	if !slices.ContainsFunc(windows, func(w Window) bool { return w.admits(candidate) }) {
		return ErrOutsideWorkingHours
	}
	if overlapsAny(candidate, busy) {
		return ErrSlotConflict
	}
	return nil
}

// Windows converts stored working hours for dayOfWeek into windows. Inactive
// rows, rows for other days and rows with start >= end are skipped.
func Windows(hours []model.WorkingHours, dayOfWeek int) []Window {
	var out []Window
	for _, h := range hours {
		if w, ok := windowOf(h, dayOfWeek); ok {
			out = append(out, w)
		}
	}
	slices.SortFunc(out, func(a, b Window) int { return int(a.Start - b.Start) })
	return out
}

// windowOf is the single rule for which working-hours rows are usable.
func windowOf(h model.WorkingHours, dayOfWeek int) (Window, bool) {
	if !h.IsActive || h.DayOfWeek != dayOfWeek {
		return Window{}, false
	}
	start, err := ParseClock(h.StartTime)
	if err != nil {
		return Window{}, false
	}
	end, err := ParseClock(h.EndTime)
	if err != nil || start >= end {
		return Window{}, false
	}
	return Window{Start: start, End: end}, true
}

// Busy converts bookings into occupied intervals, keeping only occupying
// statuses. A malformed stored time is an error: skipping it could hide a
// conflict.
func Busy(bookings []model.Occupancy) ([]Interval, error) {
	out := make([]Interval, 0, len(bookings))
	for _, b := range bookings {
		if !model.IsOccupying(b.Status) {
			continue
		}
		start, err := ParseClock(b.ScheduledTime)
		if err != nil {
			return nil, fmt.Errorf("booking %s: stored time %q is malformed", b.BookingID, b.ScheduledTime)
		}
		if b.DurationMinutes <= 0 {
			continue
		}
		out = append(out, Interval{Start: start, End: start.Add(b.DurationMinutes)})
	}
	return out, nil
}
