package availability

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

// Store is everything the resolver reads. Implementations must return only
// PENDING and CONFIRMED bookings from ListOccupyingBookings; the resolver
// filters again through model.IsOccupying regardless.
type Store interface {
	ListActiveWorkingHours(ctx context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error)
	ListOccupyingBookings(ctx context.Context, providerID string, date time.Time) ([]model.Occupancy, error)
}

type Day struct {
	Date           string
	DayOfWeek      int
	DayName        string
	Working        bool
	AvailableSlots []string
	WorkingHours   []model.WorkingHours
}

type Resolver struct {
	store Store
	loc   *time.Location
}

// NewResolver reads from store; loc is the wall-clock zone of working hours
// and defaults to UTC.
func NewResolver(store Store, loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.UTC
	}
	return &Resolver{store: store, loc: loc}
}

func validDuration(duration int) error {
	if duration <= 0 || duration > MaxDuration {
		return fmt.Errorf("%w: duration must be between 1 and %d minutes", ErrInvalidInput, MaxDuration)
	}
	return nil
}

// Day lists the bookable start times of a duration-minute service on date.
// A day without working hours is not an error: Working is false and the
// slot list is empty.
func (r *Resolver) Day(ctx context.Context, providerID string, date time.Time, duration int) (Day, error) {
	if providerID == "" {
		return Day{}, fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if err := validDuration(duration); err != nil {
		return Day{}, err
	}
	dow := int(date.Weekday())
	day := Day{
		Date:           date.Format(model.DateLayout),
		DayOfWeek:      dow,
		DayName:        date.Weekday().String(),
		AvailableSlots: []string{},
		WorkingHours:   []model.WorkingHours{},
	}

	hours, err := r.store.ListActiveWorkingHours(ctx, providerID, dow)
	if err != nil {
		return Day{}, fmt.Errorf("list working hours: %w", err)
	}
	windows := Windows(hours, dow)
	if len(windows) == 0 {
		return day, nil
	}
	day.Working = true
	day.WorkingHours = usable(hours, dow)

	bookings, err := r.store.ListOccupyingBookings(ctx, providerID, date)
	if err != nil {
		return Day{}, fmt.Errorf("list bookings: %w", err)
	}
	busy, err := Busy(bookings)
	if err != nil {
		return Day{}, err
	}
	for _, t := range Enumerate(windows, busy, duration) {
		if !t.ExistsOn(date, r.loc) {
			continue
		}
		day.AvailableSlots = append(day.AvailableSlots, t.String())
	}
	return day, nil
}

// Validate checks that start is bookable for a duration-minute service on
// date. It agrees with Day for the same store contents.
func (r *Resolver) Validate(ctx context.Context, providerID string, date time.Time, start string, duration int) error {
	return Validate(ctx, r.store, r.loc, providerID, date, start, duration)
}

// Validate is the resolver's single-slot check over any Store, including one
// bound to an open transaction. A start skipped by a daylight-saving jump in
// loc is outside working hours.
func Validate(ctx context.Context, store Store, loc *time.Location, providerID string, date time.Time, start string, duration int) error {
	if providerID == "" {
		return fmt.Errorf("%w: provider id is required", ErrInvalidInput)
	}
	if err := validDuration(duration); err != nil {
		return err
	}
	t, err := ParseClock(start)
	if err != nil {
		return err
	}
	if t >= EndOfDay {
		return fmt.Errorf("%w: start time %q cannot be a start time", ErrInvalidInput, start)
	}

	dow := int(date.Weekday())
	hours, err := store.ListActiveWorkingHours(ctx, providerID, dow)
	if err != nil {
		return fmt.Errorf("list working hours: %w", err)
	}
	windows := Windows(hours, dow)
	if len(windows) == 0 {
		return ErrProviderNotWorking
	}

	bookings, err := store.ListOccupyingBookings(ctx, providerID, date)
	if err != nil {
		return fmt.Errorf("list bookings: %w", err)
	}
	busy, err := Busy(bookings)
	if err != nil {
		return err
	}
	if err := Check(windows, busy, t, duration); err != nil {
		return err
	}
	if loc != nil && !t.ExistsOn(date, loc) {
		return fmt.Errorf("%w: %s does not exist on %s", ErrOutsideWorkingHours, start, date.Format(model.DateLayout))
	}
	return nil
}

// usable returns the rows Windows accepts, ordered by start time.
func usable(hours []model.WorkingHours, dow int) []model.WorkingHours {
	out := make([]model.WorkingHours, 0, len(hours))
	for _, h := range hours {
		if _, ok := windowOf(h, dow); ok {
			out = append(out, h)
		}
	}
	slices.SortFunc(out, func(a, b model.WorkingHours) int { return strings.Compare(a.StartTime, b.StartTime) })
	return out
}
