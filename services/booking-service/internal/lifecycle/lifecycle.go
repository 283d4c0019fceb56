// Package lifecycle holds the booking status state machine, who may drive each
// transition, and the late-cancellation strike policy.
package lifecycle

import (
	"errors"
	"fmt"

	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

var (
	ErrSameStatus        = errors.New("booking already has this status")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrForbidden         = errors.New("actor may not perform this transition")
)

var transitions = map[model.Status][]model.Status{
	model.StatusPending:   {model.StatusConfirmed, model.StatusRejected, model.StatusCancelled},
	model.StatusConfirmed: {model.StatusCompleted, model.StatusCancelled},
}

// CanTransition reports whether from -> to is in the transition table.
// COMPLETED, CANCELLED and REJECTED have no outgoing edges.
func CanTransition(from, to model.Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

func IsTerminal(s model.Status) bool {
	return len(transitions[s]) == 0
}

type Actor struct {
	UserID string
	Role   model.Role
}

func (a Actor) isProviderOf(b model.Booking) bool { return a.UserID == b.ProviderID }
func (a Actor) isClientOf(b model.Booking) bool   { return a.UserID == b.ClientID }

// Authorize applies the actor rules for moving b to status to.
func Authorize(b model.Booking, actor Actor, to model.Status) error {
	var ok bool
	switch to {
	case model.StatusConfirmed, model.StatusRejected:
		ok = actor.isProviderOf(b) || actor.Role == model.RoleAdmin
	case model.StatusCompleted:
		ok = actor.isProviderOf(b)
	case model.StatusCancelled:
		ok = actor.isClientOf(b) || actor.isProviderOf(b)
	}
	if !ok {
		return fmt.Errorf("%w: %s cannot set %s", ErrForbidden, actor.Role, to)
	}
	return nil
}

// Check validates a requested status change without applying it.
func Check(b model.Booking, actor Actor, to model.Status) error {
	if b.Status == to {
		return ErrSameStatus
	}
	if !CanTransition(b.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, to)
	}
	return Authorize(b, actor, to)
}
