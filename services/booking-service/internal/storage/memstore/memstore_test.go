package memstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(id string, start time.Time, minutes int, status model.Status) model.Booking {
	return model.Booking{
		ID:              id,
		ProviderID:      "p1",
		ClientID:        "c1",
		ScheduledDate:   time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC),
		ScheduledTime:   start.Format("15:04"),
		DurationMinutes: minutes,
		Status:          status,
		StartsAt:        start,
		EndsAt:          start.Add(time.Duration(minutes) * time.Minute),
	}
}

func TestInsertBookingEnforcesExclusion(t *testing.T) {
	s := New()
	ctx := context.Background()
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.InsertBooking(ctx, newBooking("a", start, 60, model.StatusPending))
		return err
	}))

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.InsertBooking(ctx, newBooking("b", start.Add(30*time.Minute), 60, model.StatusPending))
		return err
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	// Touching intervals do not overlap.
	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.InsertBooking(ctx, newBooking("c", start.Add(time.Hour), 30, model.StatusPending))
		return err
	}))

	occ, err := s.ListOccupyingBookings(ctx, "p1", start)
	require.NoError(t, err)
	assert.Len(t, occ, 2)
}

func TestCancelledBookingReleasesInterval(t *testing.T) {
	s := New()
	ctx := context.Background()
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	s.PutBooking(newBooking("a", start, 60, model.StatusCancelled))

	require.NoError(t, s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		_, err := tx.InsertBooking(ctx, newBooking("b", start, 60, model.StatusPending))
		return err
	}))
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	start := time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC)
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		if _, err := tx.InsertBooking(ctx, newBooking("a", start, 60, model.StatusPending)); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = s.GetBooking(ctx, "a")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReplaceWorkingHours(t *testing.T) {
	s := New()
	ctx := context.Background()
	s.PutWorkingHours(model.WorkingHours{ProviderID: "p1", DayOfWeek: 1, StartTime: "08:00", EndTime: "10:00", IsActive: true})
	s.PutWorkingHours(model.WorkingHours{ProviderID: "p1", DayOfWeek: 2, StartTime: "08:00", EndTime: "10:00", IsActive: true})

	_, err := s.ReplaceWorkingHours(ctx, "p1", 1, []model.WorkingHours{
		{StartTime: "13:00", EndTime: "17:00", IsActive: true},
		{StartTime: "09:00", EndTime: "12:00", IsActive: true},
	})
	require.NoError(t, err)

	monday, err := s.ListActiveWorkingHours(ctx, "p1", 1)
	require.NoError(t, err)
	require.Len(t, monday, 2)
	assert.Equal(t, "09:00", monday[0].StartTime)

	all, err := s.ListWorkingHours(ctx, "p1")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
