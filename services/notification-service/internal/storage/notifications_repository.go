package storage

import (
	"context"
	"encoding/json"

	"github.com/lancerhub/marketplace/libs/db"
)

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Notification is one delivery attempt to one recipient.
type Notification struct {
	EventID   string
	EventType string
	BookingID string
	UserID    string
	Recipient string
	Subject   string
	Payload   any
	Status    string
	Error     string
}

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, event_type, booking_id, user_id, recipient, subject, payload, status, error)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''))
	`, n.EventID, n.EventType, n.BookingID, n.UserID, n.Recipient, n.Subject, payload, n.Status, n.Error)
	return err
}

func (r *Repository) Delivered(ctx context.Context, eventID, userID string) (bool, error) {
	var delivered bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE event_id = $1 AND user_id = $2 AND status = 'sent'
		)
	`, eventID, userID).Scan(&delivered)
	return delivered, err
}
