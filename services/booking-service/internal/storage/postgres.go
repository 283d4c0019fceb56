package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lancerhub/marketplace/libs/db"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

// Postgres error codes mapped to ErrConflict.
const (
	codeExclusionViolation = "23P01"
	codeUniqueViolation    = "23505"
)

// IsConflict reports whether err is an exclusion or unique violation.
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == codeExclusionViolation || pgErr.Code == codeUniqueViolation
	}
	return false
}

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type Store struct {
	pool *db.Pool
}

func NewStore(pool *db.Pool) *Store {
	return &Store{pool: pool}
}

// WithTx runs fn in a read-committed transaction and commits when fn
// returns nil.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		if IsConflict(err) {
			return ErrConflict
		}
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) ListActiveWorkingHours(ctx context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error) {
	return listWorkingHours(ctx, s.pool, providerID, dayOfWeek, true)
}

func (s *Store) ListOccupyingBookings(ctx context.Context, providerID string, date time.Time) ([]model.Occupancy, error) {
	return listOccupying(ctx, s.pool, providerID, date)
}

func (s *Store) ListWorkingHours(ctx context.Context, providerID string) ([]model.WorkingHours, error) {
	return listWorkingHours(ctx, s.pool, providerID, -1, false)
}

// ReplaceWorkingHours swaps every window of providerID on dayOfWeek for
// windows, atomically.
func (s *Store) ReplaceWorkingHours(ctx context.Context, providerID string, dayOfWeek int, windows []model.WorkingHours) ([]model.WorkingHours, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		DELETE FROM working_hours
		WHERE provider_id = $1 AND day_of_week = $2
	`, providerID, dayOfWeek); err != nil {
		return nil, err
	}
	out := make([]model.WorkingHours, 0, len(windows))
	for _, w := range windows {
		err := tx.QueryRow(ctx, `
			INSERT INTO working_hours (provider_id, day_of_week, start_time, end_time, is_active)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id
		`, providerID, dayOfWeek, w.StartTime, w.EndTime, w.IsActive).Scan(&w.ID)
		if err != nil {
			return nil, err
		}
		w.ProviderID = providerID
		w.DayOfWeek = dayOfWeek
		out = append(out, w)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return out, nil
}

func (s *Store) GetBooking(ctx context.Context, bookingID string) (model.Booking, error) {
	return getBooking(ctx, s.pool, bookingID, false)
}

func (s *Store) GetUser(ctx context.Context, userID string) (model.User, error) {
	return getUser(ctx, s.pool, userID, false)
}

func (s *Store) ListBookings(ctx context.Context, f ListFilter) ([]model.Booking, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE (provider_id = $1 OR client_id = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY starts_at DESC
		LIMIT $3
	`, f.UserID, string(f.Status), f.EffectiveLimit())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

type pgTx struct {
	q querier
}

func (t *pgTx) ListActiveWorkingHours(ctx context.Context, providerID string, dayOfWeek int) ([]model.WorkingHours, error) {
	return listWorkingHours(ctx, t.q, providerID, dayOfWeek, true)
}

func (t *pgTx) ListOccupyingBookings(ctx context.Context, providerID string, date time.Time) ([]model.Occupancy, error) {
	return listOccupying(ctx, t.q, providerID, date)
}

func (t *pgTx) LockProviderDay(ctx context.Context, providerID string, date time.Time) error {
	_, err := t.q.Exec(ctx, `
		SELECT pg_advisory_xact_lock(hashtextextended($1::text || '/' || $2::text, 0))
	`, providerID, date.Format(model.DateLayout))
	return err
}

func (t *pgTx) GetService(ctx context.Context, providerID, serviceID string) (model.Service, error) {
	var svc model.Service
	err := t.q.QueryRow(ctx, `
		SELECT id, provider_id, name, duration_minutes
		FROM services
		WHERE id = $1 AND provider_id = $2
	`, serviceID, providerID).Scan(&svc.ID, &svc.ProviderID, &svc.Name, &svc.DurationMinutes)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Service{}, ErrNotFound
	}
	return svc, err
}

func (t *pgTx) GetUser(ctx context.Context, userID string, forUpdate bool) (model.User, error) {
	return getUser(ctx, t.q, userID, forUpdate)
}

func (t *pgTx) InsertBooking(ctx context.Context, b model.Booking) (model.Booking, error) {
	err := t.q.QueryRow(ctx, `
		INSERT INTO bookings
			(id, provider_id, client_id, service_id, scheduled_date, scheduled_time, duration_minutes, status, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING created_at, updated_at
	`, b.ID, b.ProviderID, b.ClientID, b.ServiceID, b.ScheduledDate, b.ScheduledTime, b.DurationMinutes,
		string(b.Status), b.StartsAt, b.EndsAt).Scan(&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		if IsConflict(err) {
			return model.Booking{}, ErrConflict
		}
		return model.Booking{}, err
	}
	return b, nil
}

func (t *pgTx) GetBookingForUpdate(ctx context.Context, bookingID string) (model.Booking, error) {
	return getBooking(ctx, t.q, bookingID, true)
}

func (t *pgTx) UpdateBookingStatus(ctx context.Context, bookingID string, to model.Status, actorID string, at time.Time) (model.Booking, error) {
	var cancelledBy *string
	if to == model.StatusCancelled {
		cancelledBy = &actorID
	}
	row := t.q.QueryRow(ctx, `
		UPDATE bookings
		SET status = $2,
			cancelled_by = COALESCE($3, cancelled_by),
			updated_at = $4
		WHERE id = $1
		RETURNING `+bookingColumns,
		bookingID, string(to), cancelledBy, at)
	b, err := scanBooking(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

func (t *pgTx) UpdateUserStrikes(ctx context.Context, u model.User) error {
	tag, err := t.q.Exec(ctx, `
		UPDATE users
		SET cancellation_strikes = $2,
			banned_until = $3
		WHERE id = $1
	`, u.ID, u.CancellationStrikes, u.BannedUntil)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

const bookingColumns = `id, provider_id, client_id, service_id, scheduled_date, scheduled_time, duration_minutes,
	status, starts_at, ends_at, COALESCE(cancelled_by::text, ''), created_at, updated_at`

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	var status string
	err := row.Scan(&b.ID, &b.ProviderID, &b.ClientID, &b.ServiceID, &b.ScheduledDate, &b.ScheduledTime,
		&b.DurationMinutes, &status, &b.StartsAt, &b.EndsAt, &b.CancelledBy, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return model.Booking{}, err
	}
	b.Status = model.Status(status)
	return b, nil
}

func getBooking(ctx context.Context, q querier, bookingID string, forUpdate bool) (model.Booking, error) {
	sql := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	b, err := scanBooking(q.QueryRow(ctx, sql, bookingID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

func getUser(ctx context.Context, q querier, userID string, forUpdate bool) (model.User, error) {
	sql := `
		SELECT id, name, email, role, cancellation_strikes, banned_until
		FROM users
		WHERE id = $1`
	if forUpdate {
		sql += ` FOR UPDATE`
	}
	var u model.User
	var role string
	err := q.QueryRow(ctx, sql, userID).Scan(&u.ID, &u.Name, &u.Email, &role, &u.CancellationStrikes, &u.BannedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, err
	}
	u.Role = model.Role(role)
	return u, nil
}

// listWorkingHours with dayOfWeek < 0 returns every day.
func listWorkingHours(ctx context.Context, q querier, providerID string, dayOfWeek int, activeOnly bool) ([]model.WorkingHours, error) {
	rows, err := q.Query(ctx, `
		SELECT id, provider_id, day_of_week, start_time, end_time, is_active
		FROM working_hours
		WHERE provider_id = $1
			AND ($2 < 0 OR day_of_week = $2)
			AND (NOT $3 OR is_active)
		ORDER BY day_of_week, start_time
	`, providerID, dayOfWeek, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.WorkingHours
	for rows.Next() {
		var w model.WorkingHours
		if err := rows.Scan(&w.ID, &w.ProviderID, &w.DayOfWeek, &w.StartTime, &w.EndTime, &w.IsActive); err != nil {
			return nil, err
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func listOccupying(ctx context.Context, q querier, providerID string, date time.Time) ([]model.Occupancy, error) {
	rows, err := q.Query(ctx, `
		SELECT id, scheduled_time, duration_minutes, status
		FROM bookings
		WHERE provider_id = $1
			AND scheduled_date = $2
			AND status = ANY($3)
		ORDER BY scheduled_time
	`, providerID, date, occupyingStatusStrings())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Occupancy
	for rows.Next() {
		var o model.Occupancy
		var status string
		if err := rows.Scan(&o.BookingID, &o.ScheduledTime, &o.DurationMinutes, &status); err != nil {
			return nil, err
		}
		o.Status = model.Status(status)
		out = append(out, o)
	}
	return out, rows.Err()
}

func occupyingStatusStrings() []string {
	var out []string
	for _, s := range model.OccupyingStatuses() {
		out = append(out, string(s))
	}
	return out
}
