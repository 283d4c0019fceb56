package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeBookingNotification(t *testing.T) {
	raw := []byte(`{
		"event_type": "booking.confirmed.v1",
		"occurred_at": "2026-01-01T08:00:00Z",
		"booking": {"id": "b1", "date": "2026-01-05", "time": "10:00", "status": "CONFIRMED"},
		"recipients": [{"user_id": "c1", "name": "Cam", "email": "cam@example.com"}]
	}`)
	n, err := DecodeBookingNotification(raw)
	require.NoError(t, err)
	assert.Equal(t, BookingConfirmed, n.EventType)
	assert.Equal(t, time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC), n.OccurredAt)
	assert.Equal(t, "cam@example.com", n.Recipients[0].Email)
}

func TestValidate(t *testing.T) {
	base := BookingNotification{
		EventType:  BookingCreated,
		Booking:    Booking{ID: "b1"},
		Recipients: []Recipient{{Email: "a@example.com"}},
	}
	require.NoError(t, base.Validate())

	noRecipients := base
	noRecipients.Recipients = nil
	assert.Error(t, noRecipients.Validate())

	suspended := base
	suspended.EventType = UserSuspended
	assert.Error(t, suspended.Validate())

	_, err := DecodeBookingNotification([]byte(`{`))
	assert.Error(t, err)
}
