package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/metrics"
)

const defaultDurationMinutes = 60

type AvailabilityHandler struct {
	resolver *availability.Resolver
	logger   *slog.Logger
}

func NewAvailabilityHandler(resolver *availability.Resolver, logger *slog.Logger) *AvailabilityHandler {
	return &AvailabilityHandler{resolver: resolver, logger: logger}
}

type workingHoursItem struct {
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
}

type availabilityResponse struct {
	Date           string             `json:"date"`
	DayOfWeek      int                `json:"dayOfWeek"`
	DayName        string             `json:"dayName"`
	AvailableSlots []string           `json:"availableSlots"`
	WorkingHours   []workingHoursItem `json:"workingHours"`
	Message        string             `json:"message,omitempty"`
}

// Get serves GET /api/calendar/availability?providerId=&date=&duration=.
func (h *AvailabilityHandler) Get(w http.ResponseWriter, r *http.Request) {
	started := time.Now()
	q := r.URL.Query()
	providerID := strings.TrimSpace(q.Get("providerId"))
	if providerID == "" {
		metrics.ObserveAvailability("invalid", time.Since(started))
		badRequest(w, "providerId is required")
		return
	}
	date, err := availability.ParseDate(strings.TrimSpace(q.Get("date")))
	if err != nil {
		metrics.ObserveAvailability("invalid", time.Since(started))
		badRequest(w, err.Error())
		return
	}
	duration := defaultDurationMinutes
	if raw := strings.TrimSpace(q.Get("duration")); raw != "" {
		duration, err = strconv.Atoi(raw)
		if err != nil {
			metrics.ObserveAvailability("invalid", time.Since(started))
			badRequest(w, "duration must be an integer number of minutes")
			return
		}
	}

	day, err := h.resolver.Day(r.Context(), providerID, date, duration)
	if err != nil {
		outcome := "error"
		if availability.IsRejection(err) {
			outcome = "invalid"
		}
		metrics.ObserveAvailability(outcome, time.Since(started))
		writeError(w, r, h.logger, err)
		return
	}

	resp := availabilityResponse{
		Date:           day.Date,
		DayOfWeek:      day.DayOfWeek,
		DayName:        day.DayName,
		AvailableSlots: day.AvailableSlots,
		WorkingHours:   make([]workingHoursItem, 0, len(day.WorkingHours)),
	}
	for _, wh := range day.WorkingHours {
		resp.WorkingHours = append(resp.WorkingHours, workingHoursItem{StartTime: wh.StartTime, EndTime: wh.EndTime})
	}
	outcome := "ok"
	if !day.Working {
		outcome = "not_working"
		resp.Message = "Provider does not work on " + day.DayName
	}
	metrics.ObserveAvailability(outcome, time.Since(started))
	httpx.WriteJSON(w, http.StatusOK, resp)
}
