package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lancerhub/marketplace/libs/db"
	"github.com/lancerhub/marketplace/libs/events"
	"github.com/lancerhub/marketplace/services/booking-service/internal/booking"
)

// Notifier turns booking events into outbox rows for the relay.
type Notifier struct {
	pool *db.Pool
	repo *Repository
}

func NewNotifier(pool *db.Pool, repo *Repository) *Notifier {
	return &Notifier{pool: pool, repo: repo}
}

func (n *Notifier) Notify(ctx context.Context, e booking.Event) error {
	payload, err := json.Marshal(Payload(e))
	if err != nil {
		return fmt.Errorf("encode %s: %w", e.Type, err)
	}

	tx, err := n.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	aggregateType, aggregateID := "booking", e.Booking.ID
	if e.Type == booking.EventUserSuspended {
		aggregateType, aggregateID = "user", e.Client.ID
	}
	if err := n.repo.Insert(ctx, tx, Event{
		AggregateType: aggregateType,
		AggregateID:   aggregateID,
		EventType:     string(e.Type),
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func Payload(e booking.Event) events.BookingNotification {
	b := e.Booking
	n := events.BookingNotification{
		EventType:  string(e.Type),
		OccurredAt: e.OccurredAt.UTC(),
		ActorID:    e.ActorID,
		Booking: events.Booking{
			ID:              b.ID,
			ProviderID:      b.ProviderID,
			ProviderName:    e.Provider.Name,
			ClientID:        b.ClientID,
			ClientName:      e.Client.Name,
			ServiceName:     e.ServiceName,
			Date:            b.Date(),
			Time:            b.ScheduledTime,
			DurationMinutes: b.DurationMinutes,
			Status:          string(b.Status),
			StartsAt:        b.StartsAt.UTC(),
		},
	}
	for _, u := range e.Recipients() {
		n.Recipients = append(n.Recipients, events.Recipient{UserID: u.ID, Name: u.Name, Email: u.Email})
	}
	if e.Type == booking.EventUserSuspended {
		n.BannedUntil = e.Client.BannedUntil
	}
	return n
}
