// Package dispatch turns booking notifications into one email per recipient.
package dispatch

import (
	"context"
	"log/slog"

	"github.com/lancerhub/marketplace/libs/events"
	"github.com/lancerhub/marketplace/libs/kafkax"
	"github.com/lancerhub/marketplace/services/notification-service/internal/email"
	"github.com/lancerhub/marketplace/services/notification-service/internal/storage"
	"github.com/segmentio/kafka-go"
)

// Recorder persists delivery attempts.
type Recorder interface {
	Insert(ctx context.Context, n storage.Notification) error
	// Delivered reports whether userID already has a sent row for eventID.
	Delivered(ctx context.Context, eventID, userID string) (bool, error)
}

type Dispatcher struct {
	sender   email.Sender
	recorder Recorder
	logger   *slog.Logger
}

func New(sender email.Sender, recorder Recorder, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{sender: sender, recorder: recorder, logger: logger}
}

// Handle is a consumer.Handler. Malformed payloads and failed sends are
// logged and acknowledged. A storage error is returned so the event is
// retried; recipients that already have a sent row are skipped on retry.
func (d *Dispatcher) Handle(ctx context.Context, msg kafka.Message) error {
	meta := kafkax.ExtractEventMeta(msg)
	n, err := events.DecodeBookingNotification(msg.Value)
	if err != nil {
		d.logger.Error("invalid booking notification", "err", err, "event_id", meta.EventID)
		observe(meta.EventType, "invalid")
		return nil
	}
	if n.EventType != meta.EventType {
		d.logger.Warn("event type mismatch", "header", meta.EventType, "payload", n.EventType)
	}

	for _, to := range n.Recipients {
		done, err := d.recorder.Delivered(ctx, meta.EventID, to.UserID)
		if err != nil {
			d.logger.Error("failed to load delivery state", "err", err, "event_id", meta.EventID)
			return err
		}
		if done {
			d.logger.Info("recipient already notified", "event_id", meta.EventID, "user_id", to.UserID)
			continue
		}

		row := storage.Notification{
			EventID:   meta.EventID,
			EventType: n.EventType,
			BookingID: n.Booking.ID,
			UserID:    to.UserID,
			Recipient: to.Email,
			Payload:   n,
			Status:    storage.StatusSent,
		}

		m, err := email.Render(n, to)
		if err == nil {
			row.Subject = m.Subject
			err = d.sender.Send(m.To, m.Subject, m.Body)
		}
		if err != nil {
			row.Status = storage.StatusFailed
			row.Error = err.Error()
			d.logger.Error("email delivery failed", "err", err, "event_id", meta.EventID, "user_id", to.UserID)
		}

		if err := d.recorder.Insert(ctx, row); err != nil {
			d.logger.Error("failed to persist notification", "err", err, "event_id", meta.EventID)
			return err
		}
		observe(n.EventType, row.Status)
	}

	d.logger.Info("notification processed", "event_id", meta.EventID, "event_type", n.EventType,
		"booking_id", n.Booking.ID, "recipients", len(n.Recipients))
	return nil
}
