package lifecycle

import (
	"time"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

type StrikePolicy struct {
	LateWindow time.Duration
	Threshold  int
	Suspension time.Duration
}

func DefaultStrikePolicy() StrikePolicy {
	return StrikePolicy{
		LateWindow: 24 * time.Hour,
		Threshold:  3,
		Suspension: 7 * 24 * time.Hour,
	}
}

// IsLate reports whether a cancellation at now, for a booking starting at
// scheduledAt, falls inside the late window. Cancelling after the start is
// late too.
func (p StrikePolicy) IsLate(scheduledAt, now time.Time) bool {
	return scheduledAt.Sub(now) < p.LateWindow
}

// Earns reports whether moving b to status to by actor at now costs the
// actor a strike: a client cancelling a confirmed booking inside the late
// window.
func (p StrikePolicy) Earns(b model.Booking, actor Actor, to model.Status, now time.Time) bool {
	return to == model.StatusCancelled &&
		b.Status == model.StatusConfirmed &&
		actor.UserID == b.ClientID &&
		p.IsLate(b.StartsAt, now)
}

// Record adds one strike to u. Reaching the threshold suspends u until
// now+Suspension and resets the counter; the second result reports that.
func (p StrikePolicy) Record(u model.User, now time.Time) (model.User, bool) {
	u.CancellationStrikes++
	if u.CancellationStrikes < p.Threshold {
		return u, false
	}
	until := now.Add(p.Suspension)
	u.BannedUntil = &until
	u.CancellationStrikes = 0
	return u, true
}
