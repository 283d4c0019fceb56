// Package cache fronts working-hours reads with Redis. Bookings are never
// cached: availability must see every occupying booking.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "booking:wh:"

type WorkingHours struct {
	rdb     redis.Cmdable
	backend availability.Store
	ttl     time.Duration
	logger  *slog.Logger
}

func NewWorkingHours(rdb redis.Cmdable, backend availability.Store, ttl time.Duration, logger *slog.Logger) *WorkingHours {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &WorkingHours{rdb: rdb, backend: backend, ttl: ttl, logger: logger}
}

func key(providerID string, dayOfWeek int) string {
	return fmt.Sprintf("%s%s:%d", keyPrefix, providerID, dayOfWeek)
}

// ListActiveWorkingHours serves from Redis when possible. Redis failures
// degrade to the backend.
func (c *WorkingHours) ListActiveWorkingHours(ctx context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error) {
	k := key(providerID, dayOfWeek)
	raw, err := c.rdb.Get(ctx, k).Bytes()
	switch {
	case err == nil:
		var hours []model.WorkingHours
		if jerr := json.Unmarshal(raw, &hours); jerr == nil {
			return hours, nil
		}
		c.logger.Warn("discarding corrupt working hours cache entry", "key", k)
	case !errors.Is(err, redis.Nil):
		c.logger.Warn("working hours cache read failed", "err", err, "key", k)
	}

	hours, err := c.backend.ListActiveWorkingHours(ctx, providerID, dayOfWeek)
	if err != nil {
		return nil, err
	}
	if hours == nil {
		hours = []model.WorkingHours{}
	}
	if raw, err := json.Marshal(hours); err == nil {
		if err := c.rdb.Set(ctx, k, raw, c.ttl).Err(); err != nil {
			c.logger.Warn("working hours cache write failed", "err", err, "key", k)
		}
	}
	return hours, nil
}

func (c *WorkingHours) ListOccupyingBookings(ctx context.Context, providerID string, date time.Time) ([]model.Occupancy, error) {
	return c.backend.ListOccupyingBookings(ctx, providerID, date)
}

// Invalidate drops every cached day of providerID.
func (c *WorkingHours) Invalidate(ctx context.Context, providerID string) error {
	keys := make([]string, 0, 7)
	for d := 0; d < 7; d++ {
		keys = append(keys, key(providerID, d))
	}
	return c.rdb.Del(ctx, keys...).Err()
}
