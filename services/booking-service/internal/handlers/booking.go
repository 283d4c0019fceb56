package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/services/booking-service/internal/booking"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

type createBookingRequest struct {
	ProviderID string `json:"providerId"`
	ServiceID  string `json:"serviceId"`
	Date       string `json:"date"`
	Time       string `json:"time"`
}

type updateStatusRequest struct {
	BookingID string `json:"bookingId"`
	Status    string `json:"status"`
}

type bookingItem struct {
	ID              string `json:"id"`
	ProviderID      string `json:"providerId"`
	ClientID        string `json:"clientId"`
	ServiceID       string `json:"serviceId"`
	Date            string `json:"date"`
	Time            string `json:"time"`
	DurationMinutes int    `json:"durationMinutes"`
	Status          string `json:"status"`
	StartsAt        string `json:"startsAt"`
	EndsAt          string `json:"endsAt"`
	CancelledBy     string `json:"cancelledBy,omitempty"`
	CreatedAt       string `json:"createdAt"`
	UpdatedAt       string `json:"updatedAt"`
}

func toBookingItem(b model.Booking) bookingItem {
	return bookingItem{
		ID:              b.ID,
		ProviderID:      b.ProviderID,
		ClientID:        b.ClientID,
		ServiceID:       b.ServiceID,
		Date:            b.Date(),
		Time:            b.ScheduledTime,
		DurationMinutes: b.DurationMinutes,
		Status:          string(b.Status),
		StartsAt:        b.StartsAt.UTC().Format(time.RFC3339),
		EndsAt:          b.EndsAt.UTC().Format(time.RFC3339),
		CancelledBy:     b.CancelledBy,
		CreatedAt:       b.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:       b.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

// Create serves POST /api/bookings. The caller is the client.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req createBookingRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}

	b, err := h.svc.Create(r.Context(), booking.CreateRequest{
		ProviderID: strings.TrimSpace(req.ProviderID),
		ClientID:   actor.UserID,
		ServiceID:  strings.TrimSpace(req.ServiceID),
		Date:       strings.TrimSpace(req.Date),
		Time:       strings.TrimSpace(req.Time),
	})
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, toBookingItem(b))
}

// UpdateStatus serves PATCH /api/bookings/status.
func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var req updateStatusRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	to, err := model.ParseStatus(req.Status)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	b, err := h.svc.UpdateStatus(r.Context(), strings.TrimSpace(req.BookingID), actor, to)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}

// List serves GET /api/bookings?status=&limit= for the caller's bookings.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	var status model.Status
	if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
		s, err := model.ParseStatus(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		status = s
	}
	limit := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	list, err := h.svc.ListForUser(r.Context(), actor.UserID, status, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	items := make([]bookingItem, 0, len(list))
	for _, b := range list {
		items = append(items, toBookingItem(b))
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"bookings": items})
}

// Get serves GET /api/bookings/{id}.
func (h *BookingHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	b, err := h.svc.Get(r.Context(), r.PathValue("id"), actor)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, toBookingItem(b))
}
