package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/lancerhub/marketplace/libs/events"
	"github.com/lancerhub/marketplace/libs/kafkax"
	"github.com/lancerhub/marketplace/services/notification-service/internal/storage"
	dto "github.com/prometheus/client_model/go"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sent struct{ to, subject string }

type fakeSender struct {
	sent   []sent
	failTo string
}

func (f *fakeSender) Send(to, subject, _ string) error {
	if to == f.failTo {
		return errors.New("mailbox unavailable")
	}
	f.sent = append(f.sent, sent{to: to, subject: subject})
	return nil
}

type fakeRecorder struct {
	rows []storage.Notification
	err  error
	// failOn makes the insert for this user fail once.
	failOn string
}

func (f *fakeRecorder) Insert(_ context.Context, n storage.Notification) error {
	if f.err != nil {
		return f.err
	}
	if n.UserID == f.failOn {
		f.failOn = ""
		return errors.New("connection reset")
	}
	f.rows = append(f.rows, n)
	return nil
}

func (f *fakeRecorder) Delivered(_ context.Context, eventID, userID string) (bool, error) {
	for _, r := range f.rows {
		if r.EventID == eventID && r.UserID == userID && r.Status == storage.StatusSent {
			return true, nil
		}
	}
	return false, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func createdMessage(t *testing.T) kafka.Message {
	t.Helper()
	payload, err := json.Marshal(events.BookingNotification{
		EventType: events.BookingCreated,
		Booking:   events.Booking{ID: "bk-1", Date: "2026-01-05", Time: "09:00", DurationMinutes: 60},
		Recipients: []events.Recipient{
			{UserID: "p1", Name: "Pat", Email: "pat@example.com"},
			{UserID: "c1", Name: "Casey", Email: "casey@example.com"},
		},
	})
	require.NoError(t, err)
	return kafka.Message{
		Topic:   events.BookingCreated,
		Value:   payload,
		Headers: kafkax.EventMeta{EventID: "evt-1", EventType: events.BookingCreated}.Headers(),
	}
}

func counterValue(t *testing.T, eventType, status string) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, deliveries.WithLabelValues(eventType, status).Write(&m))
	return m.GetCounter().GetValue()
}

func TestHandleSendsToEveryRecipient(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	before := counterValue(t, events.BookingCreated, storage.StatusSent)

	require.NoError(t, New(sender, rec, discard()).Handle(context.Background(), createdMessage(t)))

	require.Len(t, sender.sent, 2)
	assert.Equal(t, "pat@example.com", sender.sent[0].to)
	assert.Equal(t, "New booking for 2026-01-05 at 09:00", sender.sent[0].subject)
	require.Len(t, rec.rows, 2)
	for _, row := range rec.rows {
		assert.Equal(t, "evt-1", row.EventID)
		assert.Equal(t, "bk-1", row.BookingID)
		assert.Equal(t, storage.StatusSent, row.Status)
	}
	assert.Equal(t, before+2, counterValue(t, events.BookingCreated, storage.StatusSent))
}

func TestHandleRecordsFailedSend(t *testing.T) {
	sender := &fakeSender{failTo: "casey@example.com"}
	rec := &fakeRecorder{}

	require.NoError(t, New(sender, rec, discard()).Handle(context.Background(), createdMessage(t)))

	require.Len(t, rec.rows, 2)
	assert.Equal(t, storage.StatusSent, rec.rows[0].Status)
	assert.Equal(t, storage.StatusFailed, rec.rows[1].Status)
	assert.Equal(t, "mailbox unavailable", rec.rows[1].Error)
}

func TestHandleAcknowledgesMalformedPayload(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{}
	msg := kafka.Message{Topic: events.BookingCreated, Value: []byte(`{"event_type":"booking.created.v1"}`)}

	require.NoError(t, New(sender, rec, discard()).Handle(context.Background(), msg))
	assert.Empty(t, sender.sent)
	assert.Empty(t, rec.rows)
}

func TestHandleReturnsPersistenceError(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("db down")}
	err := New(&fakeSender{}, rec, discard()).Handle(context.Background(), createdMessage(t))
	assert.Error(t, err)
}

func TestHandleRetrySkipsDeliveredRecipients(t *testing.T) {
	sender := &fakeSender{}
	rec := &fakeRecorder{failOn: "c1"}
	d := New(sender, rec, discard())
	msg := createdMessage(t)

	require.Error(t, d.Handle(context.Background(), msg))
	require.Len(t, rec.rows, 1)
	assert.Equal(t, "p1", rec.rows[0].UserID)

	require.NoError(t, d.Handle(context.Background(), msg))
	require.Len(t, rec.rows, 2)
	assert.Equal(t, "c1", rec.rows[1].UserID)

	// Pat got one mail; Casey was sent twice because the first audit write failed.
	var toPat int
	for _, m := range sender.sent {
		if m.to == "pat@example.com" {
			toPat++
		}
	}
	assert.Equal(t, 1, toPat)
	assert.Len(t, sender.sent, 3)
}
