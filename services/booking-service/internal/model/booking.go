package model

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the wire and storage format of a calendar date.
const DateLayout = "2006-01-02"

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusConfirmed Status = "CONFIRMED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
	StatusRejected  Status = "REJECTED"
)

func ParseStatus(raw string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(raw)))
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled, StatusRejected:
		return s, nil
	}
	return "", fmt.Errorf("unknown booking status %q", raw)
}

// IsOccupying reports whether a booking in status s blocks its interval for
// other bookings. Every occupancy test in the service goes through here.
func IsOccupying(s Status) bool {
	return s == StatusPending || s == StatusConfirmed
}

func OccupyingStatuses() []Status {
	return []Status{StatusPending, StatusConfirmed}
}

type Booking struct {
	ID              string
	ProviderID      string
	ClientID        string
	ServiceID       string
	ScheduledDate   time.Time // calendar date at 00:00 UTC
	ScheduledTime   string    // "HH:MM" provider wall clock
	DurationMinutes int
	Status          Status
	StartsAt        time.Time
	EndsAt          time.Time
	CancelledBy     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

func (b Booking) Date() string {
	return b.ScheduledDate.Format(DateLayout)
}

// Occupancy is the slice of a booking the availability resolver needs.
type Occupancy struct {
	BookingID       string
	ScheduledTime   string
	DurationMinutes int
	Status          Status
}

type WorkingHours struct {
	ID         string
	ProviderID string
	DayOfWeek  int // 0=Sunday..6=Saturday
	StartTime  string
	EndTime    string
	IsActive   bool
}

type Service struct {
	ID              string
	ProviderID      string
	Name            string
	DurationMinutes int
}
