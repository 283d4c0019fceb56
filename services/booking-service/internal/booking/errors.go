package booking

import (
	"errors"

	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/lifecycle"
)

var (
	ErrClientSuspended = errors.New("client is suspended from booking")
	ErrNotFound        = errors.New("booking not found")
)

// Machine-readable error codes shared by metrics labels and API responses.
const (
	CodeInvalidInput        = "INVALID_INPUT"
	CodeProviderNotWorking  = "PROVIDER_NOT_WORKING"
	CodeOutsideWorkingHours = "OUTSIDE_WORKING_HOURS"
	CodeSlotConflict        = "SLOT_CONFLICT"
	CodeClientSuspended     = "CLIENT_SUSPENDED"
	CodeInvalidTransition   = "INVALID_TRANSITION"
	CodeForbidden           = "FORBIDDEN"
	CodeNotFound            = "NOT_FOUND"
	CodeInternal            = "INTERNAL"
)

// Code classifies err. Anything unrecognised is CodeInternal.
func Code(err error) string {
	switch {
	case errors.Is(err, availability.ErrInvalidInput):
		return CodeInvalidInput
	case errors.Is(err, availability.ErrProviderNotWorking):
		return CodeProviderNotWorking
	case errors.Is(err, availability.ErrOutsideWorkingHours):
		return CodeOutsideWorkingHours
	case errors.Is(err, availability.ErrSlotConflict):
		return CodeSlotConflict
	case errors.Is(err, ErrClientSuspended):
		return CodeClientSuspended
	case errors.Is(err, lifecycle.ErrSameStatus), errors.Is(err, lifecycle.ErrInvalidTransition):
		return CodeInvalidTransition
	case errors.Is(err, lifecycle.ErrForbidden):
		return CodeForbidden
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	default:
		return CodeInternal
	}
}
