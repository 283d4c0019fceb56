// Package events holds the payloads exchanged between services over Kafka.
// Topic names equal event types.
package events

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	BookingCreated   = "booking.created.v1"
	BookingConfirmed = "booking.confirmed.v1"
	BookingRejected  = "booking.rejected.v1"
	BookingCancelled = "booking.cancelled.v1"
	BookingCompleted = "booking.completed.v1"
	UserSuspended    = "user.suspended.v1"
)

// BookingTopics lists every topic a notification consumer subscribes to.
func BookingTopics() []string {
	return []string{BookingCreated, BookingConfirmed, BookingRejected, BookingCancelled, BookingCompleted, UserSuspended}
}

type Recipient struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
	Email  string `json:"email"`
}

type Booking struct {
	ID              string    `json:"id"`
	ProviderID      string    `json:"provider_id"`
	ProviderName    string    `json:"provider_name"`
	ClientID        string    `json:"client_id"`
	ClientName      string    `json:"client_name"`
	ServiceName     string    `json:"service_name,omitempty"`
	Date            string    `json:"date"`
	Time            string    `json:"time"`
	DurationMinutes int       `json:"duration_minutes"`
	Status          string    `json:"status"`
	StartsAt        time.Time `json:"starts_at"`
}

// BookingNotification is the payload of every booking.* and user.suspended
// event.
type BookingNotification struct {
	EventType   string      `json:"event_type"`
	OccurredAt  time.Time   `json:"occurred_at"`
	ActorID     string      `json:"actor_id,omitempty"`
	Booking     Booking     `json:"booking"`
	Recipients  []Recipient `json:"recipients"`
	BannedUntil *time.Time  `json:"banned_until,omitempty"`
}

func (n BookingNotification) Validate() error {
	if n.EventType == "" {
		return fmt.Errorf("event_type is required")
	}
	if n.Booking.ID == "" {
		return fmt.Errorf("booking.id is required")
	}
	if len(n.Recipients) == 0 {
		return fmt.Errorf("at least one recipient is required")
	}
	if n.EventType == UserSuspended && n.BannedUntil == nil {
		return fmt.Errorf("banned_until is required for %s", UserSuspended)
	}
	return nil
}

func DecodeBookingNotification(raw []byte) (BookingNotification, error) {
	var n BookingNotification
	if err := json.Unmarshal(raw, &n); err != nil {
		return BookingNotification{}, fmt.Errorf("decode booking notification: %w", err)
	}
	return n, n.Validate()
}
