package handlers

import (
	"log/slog"
	"net/http"

	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/services/booking-service/internal/booking"
)

var statusByCode = map[string]int{
	booking.CodeInvalidInput:        http.StatusBadRequest,
	booking.CodeProviderNotWorking:  http.StatusUnprocessableEntity,
	booking.CodeOutsideWorkingHours: http.StatusUnprocessableEntity,
	booking.CodeSlotConflict:        http.StatusConflict,
	booking.CodeClientSuspended:     http.StatusForbidden,
	booking.CodeInvalidTransition:   http.StatusConflict,
	booking.CodeForbidden:           http.StatusForbidden,
	booking.CodeNotFound:            http.StatusNotFound,
}

// writeError maps domain errors to a status and code. Anything else is
// logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := booking.Code(err)
	status, ok := statusByCode[code]
	if !ok {
		logger.Error("request failed", "err", err, "path", r.URL.Path, "request_id", httpx.RequestIDFromContext(r.Context()))
		httpx.WriteError(w, http.StatusInternalServerError, booking.CodeInternal, "internal error")
		return
	}
	httpx.WriteError(w, status, code, err.Error())
}

func badRequest(w http.ResponseWriter, msg string) {
	httpx.WriteError(w, http.StatusBadRequest, booking.CodeInvalidInput, msg)
}
