// Package storage persists providers' working hours, services, users and
// bookings. The Postgres implementation lives here; memstore provides an
// in-process one with the same semantics.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when inserting a booking would overlap an
	// occupying booking of the same provider.
	ErrConflict = errors.New("booking overlaps an existing booking")
)

// Tx is the unit of work used by the booking service. All reads see the
// transaction's snapshot; writes become visible on commit.
type Tx interface {
	ListActiveWorkingHours(ctx context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error)
	ListOccupyingBookings(ctx context.Context, providerID string, date time.Time) ([]model.Occupancy, error)

	// LockProviderDay serialises writers on one provider's calendar date
	// until the transaction ends.
	LockProviderDay(ctx context.Context, providerID string, date time.Time) error
	GetService(ctx context.Context, providerID, serviceID string) (model.Service, error)
	GetUser(ctx context.Context, userID string, forUpdate bool) (model.User, error)
	InsertBooking(ctx context.Context, b model.Booking) (model.Booking, error)
	GetBookingForUpdate(ctx context.Context, bookingID string) (model.Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID string, to model.Status, actorID string, at time.Time) (model.Booking, error)
	UpdateUserStrikes(ctx context.Context, u model.User) error
}

type ListFilter struct {
	UserID string
	Status model.Status // empty matches all
	Limit  int
}

// EffectiveLimit clamps Limit to (0, 200], defaulting to 100.
func (f ListFilter) EffectiveLimit() int {
	if f.Limit <= 0 || f.Limit > 200 {
		return 100
	}
	return f.Limit
}

// Matches applies the filter to b the same way the SQL query does.
func (f ListFilter) Matches(b model.Booking) bool {
	if b.ProviderID != f.UserID && b.ClientID != f.UserID {
		return false
	}
	return f.Status == "" || b.Status == f.Status
}
