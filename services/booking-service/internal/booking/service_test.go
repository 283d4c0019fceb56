package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/lifecycle"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage/memstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = t
}

type recorder struct {
	mu     sync.Mutex
	events []Event
	err    error
}

func (r *recorder) Notify(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.err
}

func (r *recorder) types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

const (
	providerID = "prov"
	clientID   = "cli"
	client2ID  = "cli2"
	adminID    = "admin"
	serviceID  = "svc"
	monday     = "2026-01-05"
	tuesday    = "2026-01-06"
)

var (
	providerActor = lifecycle.Actor{UserID: providerID, Role: model.RoleFreelancer}
	clientActor   = lifecycle.Actor{UserID: clientID, Role: model.RoleClient}
)

type fixture struct {
	store    *memstore.Store
	clock    *clock
	notifier *recorder
	svc      *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := memstore.New()
	st.PutUser(model.User{ID: providerID, Name: "Pat Provider", Email: "pat@example.com", Role: model.RoleFreelancer})
	st.PutUser(model.User{ID: clientID, Name: "Cam Client", Email: "cam@example.com", Role: model.RoleClient})
	st.PutUser(model.User{ID: client2ID, Name: "Kit Client", Email: "kit@example.com", Role: model.RoleClient})
	st.PutUser(model.User{ID: adminID, Name: "Ada Admin", Email: "ada@example.com", Role: model.RoleAdmin})
	st.PutService(model.Service{ID: serviceID, ProviderID: providerID, Name: "Consultation", DurationMinutes: 60})
	st.PutWorkingHours(model.WorkingHours{ProviderID: providerID, DayOfWeek: 1, StartTime: "09:00", EndTime: "12:00", IsActive: true})

	c := &clock{t: time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)}
	n := &recorder{}
	svc := NewService(st, n, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Now: c.Now})
	return &fixture{store: st, clock: c, notifier: n, svc: svc}
}

func (f *fixture) create(t *testing.T, client, date, at string) (model.Booking, error) {
	t.Helper()
	return f.svc.Create(context.Background(), CreateRequest{
		ProviderID: providerID,
		ClientID:   client,
		ServiceID:  serviceID,
		Date:       date,
		Time:       at,
	})
}

func (f *fixture) slots(t *testing.T, date string) []string {
	t.Helper()
	d, err := availability.ParseDate(date)
	require.NoError(t, err)
	day, err := availability.NewResolver(f.store, time.UTC).Day(context.Background(), providerID, d, 60)
	require.NoError(t, err)
	return day.AvailableSlots
}

func TestCreateBooking(t *testing.T) {
	f := newFixture(t)

	b, err := f.create(t, clientID, monday, "10:00")
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, b.Status)
	assert.Equal(t, "10:00", b.ScheduledTime)
	assert.Equal(t, 60, b.DurationMinutes)
	assert.Equal(t, time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC), b.StartsAt)
	assert.Equal(t, time.Date(2026, 1, 5, 11, 0, 0, 0, time.UTC), b.EndsAt)

	assert.Equal(t, []string{"09:00", "11:00"}, f.slots(t, monday))
	require.Equal(t, []EventType{EventBookingCreated}, f.notifier.types())
	evt := f.notifier.events[0]
	assert.Equal(t, "Consultation", evt.ServiceName)
	assert.Len(t, evt.Recipients(), 2)
}

func TestCreateBookingRejections(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, clientID, monday, "10:00")
	require.NoError(t, err)

	past := time.Date(2025, 12, 29, 0, 0, 0, 0, time.UTC).Format(model.DateLayout)
	f.store.PutUser(model.User{ID: "banned", Role: model.RoleClient, BannedUntil: ptr(time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))})

	cases := []struct {
		name   string
		client string
		date   string
		at     string
		want   error
		code   string
	}{
		{"overlapping", client2ID, monday, "10:30", availability.ErrSlotConflict, CodeSlotConflict},
		{"runs past closing", client2ID, monday, "11:30", availability.ErrOutsideWorkingHours, CodeOutsideWorkingHours},
		{"day off", client2ID, tuesday, "10:00", availability.ErrProviderNotWorking, CodeProviderNotWorking},
		{"malformed time", client2ID, monday, "10am", availability.ErrInvalidInput, CodeInvalidInput},
		{"malformed date", client2ID, "05/01/2026", "10:00", availability.ErrInvalidInput, CodeInvalidInput},
		{"in the past", client2ID, past, "10:00", availability.ErrInvalidInput, CodeInvalidInput},
		{"self booking", providerID, monday, "09:00", availability.ErrInvalidInput, CodeInvalidInput},
		{"suspended client", "banned", monday, "09:00", ErrClientSuspended, CodeClientSuspended},
		{"unknown client", "ghost", monday, "09:00", availability.ErrInvalidInput, CodeInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.create(t, tc.client, tc.date, tc.at)
			require.ErrorIs(t, err, tc.want)
			assert.Equal(t, tc.code, Code(err))
		})
	}
	assert.Equal(t, []string{"09:00", "11:00"}, f.slots(t, monday))
}

func TestCreateRejectsNonProviderTarget(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Create(context.Background(), CreateRequest{
		ProviderID: client2ID, ClientID: clientID, ServiceID: serviceID, Date: monday, Time: "09:00",
	})
	require.ErrorIs(t, err, availability.ErrInvalidInput)
}

func TestConcurrentCreatesForSameSlot(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 8; i++ {
		f.store.PutUser(model.User{ID: clientName(i), Role: model.RoleClient})
	}

	var wg sync.WaitGroup
	results := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = f.create(t, clientName(i), monday, "10:00")
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, availability.ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 7, conflicts)
}

func clientName(i int) string { return "client-" + string(rune('a'+i)) }

// staleStore hides existing bookings from validation so only the storage
// overlap constraint stands between two writers.
type staleStore struct {
	*memstore.Store
}

type staleTx struct {
	storage.Tx
}

func (staleTx) ListOccupyingBookings(context.Context, string, time.Time) ([]model.Occupancy, error) {
	return nil, nil
}

func (s staleStore) WithTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error {
	return s.Store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		return fn(ctx, staleTx{Tx: tx})
	})
}

func TestStorageConstraintMapsToSlotConflict(t *testing.T) {
	f := newFixture(t)
	_, err := f.create(t, clientID, monday, "10:00")
	require.NoError(t, err)

	stale := NewService(staleStore{f.store}, nil, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{Now: f.clock.Now})
	_, err = stale.Create(context.Background(), CreateRequest{
		ProviderID: providerID, ClientID: client2ID, ServiceID: serviceID, Date: monday, Time: "09:30",
	})
	require.ErrorIs(t, err, availability.ErrSlotConflict)
}

func TestNotifierFailureDoesNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("smtp down")

	_, err := f.create(t, clientID, monday, "09:00")
	require.NoError(t, err)
	assert.Len(t, f.notifier.types(), 1)
}

func TestUpdateStatusFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, clientID, monday, "10:00")
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, clientActor, model.StatusConfirmed)
	require.ErrorIs(t, err, lifecycle.ErrForbidden)

	confirmed, err := f.svc.UpdateStatus(ctx, b.ID, providerActor, model.StatusConfirmed)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConfirmed, confirmed.Status)

	_, err = f.svc.UpdateStatus(ctx, b.ID, providerActor, model.StatusConfirmed)
	require.ErrorIs(t, err, lifecycle.ErrSameStatus)
	assert.Equal(t, CodeInvalidTransition, Code(err))

	completed, err := f.svc.UpdateStatus(ctx, b.ID, providerActor, model.StatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, completed.Status)

	_, err = f.svc.UpdateStatus(ctx, b.ID, clientActor, model.StatusCancelled)
	require.ErrorIs(t, err, lifecycle.ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, "missing", providerActor, model.StatusConfirmed)
	require.ErrorIs(t, err, ErrNotFound)

	assert.Equal(t, []EventType{EventBookingCreated, EventBookingConfirmed, EventBookingCompleted}, f.notifier.types())

	// Completed bookings no longer occupy the slot.
	assert.Contains(t, f.slots(t, monday), "10:00")
}

func TestCancellationReleasesSlot(t *testing.T) {
	f := newFixture(t)
	b, err := f.create(t, clientID, monday, "10:00")
	require.NoError(t, err)

	cancelled, err := f.svc.UpdateStatus(context.Background(), b.ID, providerActor, model.StatusCancelled)
	require.NoError(t, err)
	assert.Equal(t, providerID, cancelled.CancelledBy)

	_, err = f.create(t, client2ID, monday, "10:00")
	require.NoError(t, err)

	last := f.notifier.events[1]
	require.Equal(t, EventBookingCancelled, last.Type)
	require.Len(t, last.Recipients(), 1)
	assert.Equal(t, clientID, last.Recipients()[0].ID)
}

func TestLateCancellationsSuspendClient(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var ids []string
	for _, at := range []string{"09:00", "10:00", "11:00"} {
		b, err := f.create(t, clientID, monday, at)
		require.NoError(t, err)
		_, err = f.svc.UpdateStatus(ctx, b.ID, providerActor, model.StatusConfirmed)
		require.NoError(t, err)
		ids = append(ids, b.ID)
	}

	// Monday 08:00: every booking is less than 24h away.
	cancelAt := time.Date(2026, 1, 5, 8, 0, 0, 0, time.UTC)
	f.clock.Set(cancelAt)

	for i, id := range ids {
		_, err := f.svc.UpdateStatus(ctx, id, clientActor, model.StatusCancelled)
		require.NoError(t, err)
		u, err := f.store.GetUser(ctx, clientID)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, i+1, u.CancellationStrikes)
			assert.Nil(t, u.BannedUntil)
			continue
		}
		assert.Equal(t, 0, u.CancellationStrikes)
		require.NotNil(t, u.BannedUntil)
		assert.Equal(t, cancelAt.Add(7*24*time.Hour), *u.BannedUntil)
	}

	types := f.notifier.types()
	assert.Equal(t, EventUserSuspended, types[len(types)-1])

	_, err := f.create(t, clientID, "2026-01-12", "09:00")
	require.ErrorIs(t, err, ErrClientSuspended)
}

func TestEarlyOrPendingCancellationIsFree(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending, err := f.create(t, clientID, monday, "09:00")
	require.NoError(t, err)
	early, err := f.create(t, clientID, monday, "10:00")
	require.NoError(t, err)
	_, err = f.svc.UpdateStatus(ctx, early.ID, providerActor, model.StatusConfirmed)
	require.NoError(t, err)

	// Thursday 08:00 is four days ahead of the confirmed booking.
	_, err = f.svc.UpdateStatus(ctx, early.ID, clientActor, model.StatusCancelled)
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 1, 5, 8, 30, 0, 0, time.UTC))
	_, err = f.svc.UpdateStatus(ctx, pending.ID, clientActor, model.StatusCancelled)
	require.NoError(t, err)

	u, err := f.store.GetUser(ctx, clientID)
	require.NoError(t, err)
	assert.Equal(t, 0, u.CancellationStrikes)
}

func TestGetAndList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b, err := f.create(t, clientID, monday, "09:00")
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, b.ID, clientActor)
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, b.ID, lifecycle.Actor{UserID: adminID, Role: model.RoleAdmin})
	require.NoError(t, err)
	_, err = f.svc.Get(ctx, b.ID, lifecycle.Actor{UserID: client2ID, Role: model.RoleClient})
	require.ErrorIs(t, err, ErrNotFound)

	mine, err := f.svc.ListForUser(ctx, providerID, "", 0)
	require.NoError(t, err)
	assert.Len(t, mine, 1)
	none, err := f.svc.ListForUser(ctx, client2ID, "", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func ptr[T any](v T) *T { return &v }
