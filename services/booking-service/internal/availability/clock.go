package availability

import (
	"fmt"
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

// Clock is a wall-clock time of day in minutes since midnight.
type Clock int

const (
	minutesPerDay = 24 * 60
	// EndOfDay lets a window run until midnight ("24:00").
	EndOfDay Clock = minutesPerDay
)

// ParseClock parses a strict "HH:MM" string. "24:00" is accepted as the end
// of the day.
func ParseClock(s string) (Clock, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	h, okH := twoDigits(s[0], s[1])
	m, okM := twoDigits(s[3], s[4])
	if !okH || !okM || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("%w: time %q must be HH:MM", ErrInvalidInput, s)
	}
	return Clock(h*60 + m), nil
}

func twoDigits(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", int(c)/60, int(c)%60)
}

// Add returns c shifted by d minutes; the result may pass EndOfDay.
func (c Clock) Add(minutes int) Clock {
	return c + Clock(minutes)
}

// ParseDate parses a calendar date; the result is midnight UTC so that its
// weekday is the calendar weekday regardless of the server zone.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(model.DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrInvalidInput, s)
	}
	return d, nil
}

// At places c on date in loc, the provider's wall-clock zone.
func (c Clock) At(date time.Time, loc *time.Location) time.Time {
	return time.Date(date.Year(), date.Month(), date.Day(), int(c)/60, int(c)%60, 0, 0, loc)
}

// ExistsOn reports whether the wall-clock time c occurs on date in loc. It
// is false for times skipped by a daylight-saving jump.
func (c Clock) ExistsOn(date time.Time, loc *time.Location) bool {
	t := c.At(date, loc)
	return t.Day() == date.Day() && Clock(t.Hour()*60+t.Minute()) == c
}
