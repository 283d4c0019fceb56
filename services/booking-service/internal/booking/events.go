package booking

import (
	"context"
	"time"

	"github.com/lancerhub/marketplace/libs/events"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

type EventType string

const (
	EventBookingCreated   EventType = events.BookingCreated
	EventBookingConfirmed EventType = events.BookingConfirmed
	EventBookingRejected  EventType = events.BookingRejected
	EventBookingCancelled EventType = events.BookingCancelled
	EventBookingCompleted EventType = events.BookingCompleted
	EventUserSuspended    EventType = events.UserSuspended
)

func eventForStatus(s model.Status) EventType {
	switch s {
	case model.StatusConfirmed:
		return EventBookingConfirmed
	case model.StatusRejected:
		return EventBookingRejected
	case model.StatusCancelled:
		return EventBookingCancelled
	case model.StatusCompleted:
		return EventBookingCompleted
	default:
		return EventBookingCreated
	}
}

// Event describes something the parties of a booking should hear about.
type Event struct {
	Type        EventType
	Booking     model.Booking
	Provider    model.User
	Client      model.User
	ServiceName string
	ActorID     string
	OccurredAt  time.Time
}

// Recipients lists who is told about e. A cancellation goes to the party
// that did not cancel.
func (e Event) Recipients() []model.User {
	switch e.Type {
	case EventBookingCreated:
		return []model.User{e.Provider, e.Client}
	case EventBookingCancelled:
		if e.ActorID == e.Client.ID {
			return []model.User{e.Provider}
		}
		return []model.User{e.Client}
	default:
		return []model.User{e.Client}
	}
}

// Notifier delivers events. Delivery is best effort: the booking service
// logs a failed Notify and carries on.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

type NotifierFunc func(ctx context.Context, e Event) error

func (f NotifierFunc) Notify(ctx context.Context, e Event) error { return f(ctx, e) }
