package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/lifecycle"
	"github.com/lancerhub/marketplace/services/booking-service/internal/metrics"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
	"github.com/lancerhub/marketplace/services/booking-service/internal/storage"
)

type TxRunner interface {
	WithTx(ctx context.Context, fn func(context.Context, storage.Tx) error) error
}

type Reader interface {
	GetBooking(ctx context.Context, bookingID string) (model.Booking, error)
	GetUser(ctx context.Context, userID string) (model.User, error)
	ListBookings(ctx context.Context, f storage.ListFilter) ([]model.Booking, error)
}

type Store interface {
	TxRunner
	Reader
}

type Config struct {
	// Location is the wall-clock zone of working hours and booking times.
	Location      *time.Location
	Strikes       lifecycle.StrikePolicy
	NotifyTimeout time.Duration
	Now           func() time.Time
}

type Service struct {
	store         Store
	notifier      Notifier
	logger        *slog.Logger
	loc           *time.Location
	strikes       lifecycle.StrikePolicy
	notifyTimeout time.Duration
	now           func() time.Time
}

func NewService(store Store, notifier Notifier, logger *slog.Logger, cfg Config) *Service {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Strikes == (lifecycle.StrikePolicy{}) {
		cfg.Strikes = lifecycle.DefaultStrikePolicy()
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 5 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Service{
		store:         store,
		notifier:      notifier,
		logger:        logger,
		loc:           cfg.Location,
		strikes:       cfg.Strikes,
		notifyTimeout: cfg.NotifyTimeout,
		now:           cfg.Now,
	}
}

type CreateRequest struct {
	ProviderID string
	ClientID   string
	ServiceID  string
	Date       string
	Time       string
}

func (r CreateRequest) validate() error {
	var missing []string
	if strings.TrimSpace(r.ProviderID) == "" {
		missing = append(missing, "providerId")
	}
	if strings.TrimSpace(r.ClientID) == "" {
		missing = append(missing, "clientId")
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		missing = append(missing, "serviceId")
	}
	if strings.TrimSpace(r.Date) == "" {
		missing = append(missing, "date")
	}
	if strings.TrimSpace(r.Time) == "" {
		missing = append(missing, "time")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", availability.ErrInvalidInput, strings.Join(missing, ", "))
	}
	if r.ProviderID == r.ClientID {
		return fmt.Errorf("%w: cannot book your own services", availability.ErrInvalidInput)
	}
	return nil
}

// Create validates the requested slot and inserts a PENDING booking in one
// transaction. Concurrent requests for the same provider and date are
// serialised, and the bookings exclusion constraint rejects any overlap
// that slips past validation.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	b, evt, err := s.create(ctx, req)
	if err != nil {
		metrics.IncBookingRejected(Code(err))
		return model.Booking{}, err
	}
	metrics.IncBookingCreated()
	s.logger.Info("booking created",
		"booking_id", b.ID, "provider_id", b.ProviderID, "client_id", b.ClientID,
		"date", b.Date(), "time", b.ScheduledTime)
	s.notify(ctx, evt)
	return b, nil
}

func (s *Service) create(ctx context.Context, req CreateRequest) (model.Booking, Event, error) {
	if err := req.validate(); err != nil {
		return model.Booking{}, Event{}, err
	}
	date, err := availability.ParseDate(req.Date)
	if err != nil {
		return model.Booking{}, Event{}, err
	}
	start, err := availability.ParseClock(req.Time)
	if err != nil {
		return model.Booking{}, Event{}, err
	}
	now := s.now()
	startsAt := start.At(date, s.loc).UTC()
	if startsAt.Before(now) {
		return model.Booking{}, Event{}, fmt.Errorf("%w: %s %s is in the past", availability.ErrInvalidInput, req.Date, req.Time)
	}

	evt := Event{Type: EventBookingCreated, ActorID: req.ClientID, OccurredAt: now}
	err = s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		client, err := tx.GetUser(ctx, req.ClientID, false)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: unknown client", availability.ErrInvalidInput)
		}
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		if client.SuspendedAt(now) {
			return fmt.Errorf("%w until %s", ErrClientSuspended, client.BannedUntil.UTC().Format(time.RFC3339))
		}
		provider, err := tx.GetUser(ctx, req.ProviderID, false)
		if errors.Is(err, storage.ErrNotFound) || (err == nil && !provider.Role.IsProvider()) {
			return fmt.Errorf("%w: unknown provider", availability.ErrInvalidInput)
		}
		if err != nil {
			return fmt.Errorf("load provider: %w", err)
		}
		svc, err := tx.GetService(ctx, req.ProviderID, req.ServiceID)
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%w: unknown service for this provider", availability.ErrInvalidInput)
		}
		if err != nil {
			return fmt.Errorf("load service: %w", err)
		}

		if err := tx.LockProviderDay(ctx, req.ProviderID, date); err != nil {
			return fmt.Errorf("lock provider day: %w", err)
		}
		if err := availability.Validate(ctx, tx, s.loc, req.ProviderID, date, req.Time, svc.DurationMinutes); err != nil {
			return err
		}

		b, err := tx.InsertBooking(ctx, model.Booking{
			ID:              uuid.NewString(),
			ProviderID:      req.ProviderID,
			ClientID:        req.ClientID,
			ServiceID:       req.ServiceID,
			ScheduledDate:   date,
			ScheduledTime:   start.String(),
			DurationMinutes: svc.DurationMinutes,
			Status:          model.StatusPending,
			StartsAt:        startsAt,
			EndsAt:          startsAt.Add(time.Duration(svc.DurationMinutes) * time.Minute),
		})
		if err != nil {
			return err
		}
		evt.Booking, evt.Provider, evt.Client, evt.ServiceName = b, provider, client, svc.Name
		return nil
	})
	if errors.Is(err, storage.ErrConflict) {
		err = fmt.Errorf("%w: %v", availability.ErrSlotConflict, err)
	}
	if err != nil {
		return model.Booking{}, Event{}, err
	}
	return evt.Booking, evt, nil
}

// UpdateStatus moves a booking to status to on behalf of actor. A late
// client cancellation of a confirmed booking records a strike in the same
// transaction and may suspend the client.
func (s *Service) UpdateStatus(ctx context.Context, bookingID string, actor lifecycle.Actor, to model.Status) (model.Booking, error) {
	if strings.TrimSpace(bookingID) == "" {
		return model.Booking{}, fmt.Errorf("%w: bookingId is required", availability.ErrInvalidInput)
	}
	now := s.now()
	var (
		evt       = Event{Type: eventForStatus(to), ActorID: actor.UserID, OccurredAt: now}
		struck    bool
		suspended bool
	)
	err := s.store.WithTx(ctx, func(ctx context.Context, tx storage.Tx) error {
		b, err := tx.GetBookingForUpdate(ctx, bookingID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return fmt.Errorf("load booking: %w", err)
		}
		if err := lifecycle.Check(b, actor, to); err != nil {
			return err
		}
		earns := s.strikes.Earns(b, actor, to, now)

		updated, err := tx.UpdateBookingStatus(ctx, b.ID, to, actor.UserID, now)
		if err != nil {
			return fmt.Errorf("update status: %w", err)
		}
		client, err := tx.GetUser(ctx, b.ClientID, earns)
		if err != nil {
			return fmt.Errorf("load client: %w", err)
		}
		if earns {
			client, suspended = s.strikes.Record(client, now)
			if err := tx.UpdateUserStrikes(ctx, client); err != nil {
				return fmt.Errorf("record strike: %w", err)
			}
			struck = true
		}
		provider, err := tx.GetUser(ctx, b.ProviderID, false)
		if err != nil {
			return fmt.Errorf("load provider: %w", err)
		}
		evt.Booking, evt.Client, evt.Provider = updated, client, provider
		return nil
	})
	if err != nil {
		return model.Booking{}, err
	}

	metrics.IncTransition(string(to))
	s.logger.Info("booking status changed",
		"booking_id", evt.Booking.ID, "status", to, "actor_id", actor.UserID)
	if struck {
		metrics.IncStrike(suspended)
		s.logger.Info("cancellation strike recorded",
			"client_id", evt.Client.ID, "strikes", evt.Client.CancellationStrikes, "suspended", suspended)
	}
	s.notify(ctx, evt)
	if suspended {
		suspendEvt := evt
		suspendEvt.Type = EventUserSuspended
		s.notify(ctx, suspendEvt)
	}
	return evt.Booking, nil
}

// Get returns a booking visible to actor: one of its parties or an admin.
func (s *Service) Get(ctx context.Context, bookingID string, actor lifecycle.Actor) (model.Booking, error) {
	b, err := s.store.GetBooking(ctx, bookingID)
	if errors.Is(err, storage.ErrNotFound) {
		return model.Booking{}, ErrNotFound
	}
	if err != nil {
		return model.Booking{}, err
	}
	if actor.Role != model.RoleAdmin && actor.UserID != b.ClientID && actor.UserID != b.ProviderID {
		return model.Booking{}, ErrNotFound
	}
	return b, nil
}

// ListForUser returns bookings where userID is the provider or the client,
// newest first.
func (s *Service) ListForUser(ctx context.Context, userID string, status model.Status, limit int) ([]model.Booking, error) {
	return s.store.ListBookings(ctx, storage.ListFilter{UserID: userID, Status: status, Limit: limit})
}

func (s *Service) notify(ctx context.Context, evt Event) {
	if s.notifier == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.notifyTimeout)
	defer cancel()
	if err := s.notifier.Notify(ctx, evt); err != nil {
		metrics.IncNotifyFailure(string(evt.Type))
		s.logger.Warn("notification failed", "err", err, "event_type", evt.Type, "booking_id", evt.Booking.ID)
	}
}
