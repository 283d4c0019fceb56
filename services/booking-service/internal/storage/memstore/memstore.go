// Package memstore is an in-process implementation of the booking storage
// used by tests and by local runs without DATABASE_URL. Transactions are
// serialised on one mutex and applied to a working copy that replaces the
// committed state only when the callback succeeds.
package memstore

import (
	"context"
	"maps"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage"
)

type state struct {
	users    map[string]model.User
	services map[string]model.Service
	hours    map[string]model.WorkingHours
	bookings map[string]model.Booking
}

func (s state) clone() state {
	return state{
		users:    maps.Clone(s.users),
		services: maps.Clone(s.services),
		hours:    maps.Clone(s.hours),
		bookings: maps.Clone(s.bookings),
	}
}

type Store struct {
	mu  sync.Mutex
	st  state
	now func() time.Time
}

func New() *Store {
	return &Store{
		st: state{
			users:    map[string]model.User{},
			services: map[string]model.Service{},
			hours:    map[string]model.WorkingHours{},
			bookings: map[string]model.Booking{},
		},
		now: time.Now,
	}
}

func (s *Store) PutUser(u model.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.users[u.ID] = u
}

func (s *Store) PutService(svc model.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.services[svc.ID] = svc
}

func (s *Store) PutWorkingHours(w model.WorkingHours) model.WorkingHours {
	s.mu.Lock()
	defer s.mu.Unlock()
	if w.ID == "" {
		w.ID = uuid.NewString()
	}
	s.st.hours[w.ID] = w
	return w
}

// PutBooking stores b as is, bypassing overlap checks.
func (s *Store) PutBooking(b model.Booking) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.st.bookings[b.ID] = b
}

func (s *Store) WithTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	tx := &memTx{st: s.st.clone(), now: s.now}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func (s *Store) ListActiveWorkingHours(_ context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workingHours(s.st, providerID, dayOfWeek, true), nil
}

func (s *Store) ListOccupyingBookings(_ context.Context, providerID string, date time.Time) ([]model.Occupancy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return occupying(s.st, providerID, date), nil
}

func (s *Store) ListWorkingHours(_ context.Context, providerID string) ([]model.WorkingHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return workingHours(s.st, providerID, -1, false), nil
}

func (s *Store) ReplaceWorkingHours(_ context.Context, providerID string, dayOfWeek int, windows []model.WorkingHours) ([]model.WorkingHours, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	maps.DeleteFunc(s.st.hours, func(_ string, w model.WorkingHours) bool {
		return w.ProviderID == providerID && w.DayOfWeek == dayOfWeek
	})
	out := make([]model.WorkingHours, 0, len(windows))
	for _, w := range windows {
		w.ID = uuid.NewString()
		w.ProviderID = providerID
		w.DayOfWeek = dayOfWeek
		s.st.hours[w.ID] = w
		out = append(out, w)
	}
	return out, nil
}

func (s *Store) GetBooking(_ context.Context, bookingID string) (model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.st.bookings[bookingID]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return b, nil
}

func (s *Store) GetUser(_ context.Context, userID string) (model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.st.users[userID]
	if !ok {
		return model.User{}, storage.ErrNotFound
	}
	return u, nil
}

func (s *Store) ListBookings(_ context.Context, f storage.ListFilter) ([]model.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Booking
	for _, b := range s.st.bookings {
		if f.Matches(b) {
			out = append(out, b)
		}
	}
	slices.SortFunc(out, func(a, b model.Booking) int { return b.StartsAt.Compare(a.StartsAt) })
	if len(out) > f.EffectiveLimit() {
		out = out[:f.EffectiveLimit()]
	}
	return out, nil
}

type memTx struct {
	st  state
	now func() time.Time
}

func (t *memTx) ListActiveWorkingHours(_ context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error) {
	return workingHours(t.st, providerID, dayOfWeek, true), nil
}

func (t *memTx) ListOccupyingBookings(_ context.Context, providerID string, date time.Time) ([]model.Occupancy, error) {
	return occupying(t.st, providerID, date), nil
}

// LockProviderDay is a no-op: the whole store is locked for the transaction.
func (t *memTx) LockProviderDay(context.Context, string, time.Time) error { return nil }

func (t *memTx) GetService(_ context.Context, providerID, serviceID string) (model.Service, error) {
	svc, ok := t.st.services[serviceID]
	if !ok || svc.ProviderID != providerID {
		return model.Service{}, storage.ErrNotFound
	}
	return svc, nil
}

func (t *memTx) GetUser(_ context.Context, userID string, _ bool) (model.User, error) {
	u, ok := t.st.users[userID]
	if !ok {
		return model.User{}, storage.ErrNotFound
	}
	return u, nil
}

// InsertBooking mirrors the bookings exclusion constraint: an occupying
// booking may not intersect another occupying booking of the same provider.
func (t *memTx) InsertBooking(_ context.Context, b model.Booking) (model.Booking, error) {
	if _, exists := t.st.bookings[b.ID]; exists {
		return model.Booking{}, storage.ErrConflict
	}
	if model.IsOccupying(b.Status) {
		for _, other := range t.st.bookings {
			if other.ProviderID != b.ProviderID || !model.IsOccupying(other.Status) {
				continue
			}
			if b.StartsAt.Before(other.EndsAt) && other.StartsAt.Before(b.EndsAt) {
				return model.Booking{}, storage.ErrConflict
			}
		}
	}
	now := t.now().UTC()
	b.CreatedAt, b.UpdatedAt = now, now
	t.st.bookings[b.ID] = b
	return b, nil
}

func (t *memTx) GetBookingForUpdate(_ context.Context, bookingID string) (model.Booking, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	return b, nil
}

func (t *memTx) UpdateBookingStatus(_ context.Context, bookingID string, to model.Status, actorID string, at time.Time) (model.Booking, error) {
	b, ok := t.st.bookings[bookingID]
	if !ok {
		return model.Booking{}, storage.ErrNotFound
	}
	b.Status = to
	if to == model.StatusCancelled {
		b.CancelledBy = actorID
	}
	b.UpdatedAt = at
	t.st.bookings[bookingID] = b
	return b, nil
}

func (t *memTx) UpdateUserStrikes(_ context.Context, u model.User) error {
	cur, ok := t.st.users[u.ID]
	if !ok {
		return storage.ErrNotFound
	}
	cur.CancellationStrikes = u.CancellationStrikes
	cur.BannedUntil = u.BannedUntil
	t.st.users[u.ID] = cur
	return nil
}

func workingHours(st state, providerID string, dayOfWeek int, activeOnly bool) []model.WorkingHours {
	var out []model.WorkingHours
	for _, w := range st.hours {
		if w.ProviderID != providerID {
			continue
		}
		if dayOfWeek >= 0 && w.DayOfWeek != dayOfWeek {
			continue
		}
		if activeOnly && !w.IsActive {
			continue
		}
		out = append(out, w)
	}
	slices.SortFunc(out, func(a, b model.WorkingHours) int {
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek - b.DayOfWeek
		}
		return strings.Compare(a.StartTime, b.StartTime)
	})
	return out
}

func occupying(st state, providerID string, date time.Time) []model.Occupancy {
	day := date.Format(model.DateLayout)
	var out []model.Occupancy
	for _, b := range st.bookings {
		if b.ProviderID != providerID || b.Date() != day || !model.IsOccupying(b.Status) {
			continue
		}
		out = append(out, model.Occupancy{
			BookingID:       b.ID,
			ScheduledTime:   b.ScheduledTime,
			DurationMinutes: b.DurationMinutes,
			Status:          b.Status,
		})
	}
	slices.SortFunc(out, func(a, b model.Occupancy) int { return strings.Compare(a.ScheduledTime, b.ScheduledTime) })
	return out
}
