package cache

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingStore struct {
	hours        []model.WorkingHours
	hourCalls    int
	bookingCalls int
}

func (s *countingStore) ListActiveWorkingHours(context.Context, string, int) ([]model.WorkingHours, error) {
	s.hourCalls++
	return s.hours, nil
}

func (s *countingStore) ListOccupyingBookings(context.Context, string, time.Time) ([]model.Occupancy, error) {
	s.bookingCalls++
	return nil, nil
}

func setup(t *testing.T) (*miniredis.Miniredis, *countingStore, *WorkingHours) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	backend := &countingStore{hours: []model.WorkingHours{
		{ID: "w1", ProviderID: "p1", DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true},
	}}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return mr, backend, NewWorkingHours(rdb, backend, time.Minute, logger)
}

func TestReadThrough(t *testing.T) {
	mr, backend, c := setup(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		hours, err := c.ListActiveWorkingHours(ctx, "p1", 1)
		require.NoError(t, err)
		require.Len(t, hours, 1)
		assert.Equal(t, "09:00", hours[0].StartTime)
	}
	assert.Equal(t, 1, backend.hourCalls)
	assert.True(t, mr.Exists("booking:wh:p1:1"))

	mr.FastForward(2 * time.Minute)
	_, err := c.ListActiveWorkingHours(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hourCalls)
}

func TestEmptyDayIsCached(t *testing.T) {
	_, backend, c := setup(t)
	ctx := context.Background()
	backend.hours = nil

	for i := 0; i < 2; i++ {
		hours, err := c.ListActiveWorkingHours(ctx, "p1", 2)
		require.NoError(t, err)
		assert.Empty(t, hours)
	}
	assert.Equal(t, 1, backend.hourCalls)
}

func TestInvalidate(t *testing.T) {
	mr, backend, c := setup(t)
	ctx := context.Background()

	_, err := c.ListActiveWorkingHours(ctx, "p1", 1)
	require.NoError(t, err)
	require.NoError(t, c.Invalidate(ctx, "p1"))
	assert.False(t, mr.Exists("booking:wh:p1:1"))

	_, err = c.ListActiveWorkingHours(ctx, "p1", 1)
	require.NoError(t, err)
	assert.Equal(t, 2, backend.hourCalls)
}

func TestBookingsAreNotCached(t *testing.T) {
	_, backend, c := setup(t)
	for i := 0; i < 2; i++ {
		_, err := c.ListOccupyingBookings(context.Background(), "p1", time.Now())
		require.NoError(t, err)
	}
	assert.Equal(t, 2, backend.bookingCalls)
}

func TestRedisDownFallsBackToBackend(t *testing.T) {
	mr, backend, c := setup(t)
	mr.Close()

	hours, err := c.ListActiveWorkingHours(context.Background(), "p1", 1)
	require.NoError(t, err)
	assert.Len(t, hours, 1)
	assert.Equal(t, 1, backend.hourCalls)
}
