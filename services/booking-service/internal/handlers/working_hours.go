package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/services/booking-service/internal/availability"
	"github.com/lancerhub/marketplace/services/booking-service/internal/booking"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

type WorkingHoursStore interface {
	ListWorkingHours(ctx context.Context, providerID string) ([]model.WorkingHours, error)
	ReplaceWorkingHours(ctx context.Context, providerID string, dayOfWeek int, windows []model.WorkingHours) ([]model.WorkingHours, error)
}

// Invalidator drops cached working hours after a change.
type Invalidator interface {
	Invalidate(ctx context.Context, providerID string) error
}

type WorkingHoursHandler struct {
	store       WorkingHoursStore
	invalidator Invalidator
	logger      *slog.Logger
}

func NewWorkingHoursHandler(store WorkingHoursStore, invalidator Invalidator, logger *slog.Logger) *WorkingHoursHandler {
	return &WorkingHoursHandler{store: store, invalidator: invalidator, logger: logger}
}

type workingHoursSlot struct {
	ID        string `json:"id,omitempty"`
	DayOfWeek int    `json:"dayOfWeek"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	IsActive  bool   `json:"isActive"`
}

type replaceWorkingHoursRequest struct {
	DayOfWeek *int `json:"dayOfWeek"`
	Slots     []struct {
		StartTime string `json:"startTime"`
		EndTime   string `json:"endTime"`
		IsActive  *bool  `json:"isActive"`
	} `json:"slots"`
}

func toSlots(hours []model.WorkingHours) []workingHoursSlot {
	out := make([]workingHoursSlot, 0, len(hours))
	for _, h := range hours {
		out = append(out, workingHoursSlot{
			ID:        h.ID,
			DayOfWeek: h.DayOfWeek,
			StartTime: h.StartTime,
			EndTime:   h.EndTime,
			IsActive:  h.IsActive,
		})
	}
	return out
}

// List serves GET /api/providers/working-hours[?providerId=]. Without a
// providerId the caller's own windows are returned.
func (h *WorkingHoursHandler) List(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	providerID := strings.TrimSpace(r.URL.Query().Get("providerId"))
	if providerID == "" {
		providerID = actor.UserID
	}
	hours, err := h.store.ListWorkingHours(r.Context(), providerID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"providerId": providerID, "workingHours": toSlots(hours)})
}

// Replace serves PUT /api/providers/working-hours: the caller's windows for
// one weekday are replaced by the request's slots.
func (h *WorkingHoursHandler) Replace(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(w, r)
	if !ok {
		return
	}
	if !actor.Role.IsProvider() {
		httpx.WriteError(w, http.StatusForbidden, booking.CodeForbidden, "only providers manage working hours")
		return
	}
	var req replaceWorkingHoursRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		badRequest(w, "invalid json body")
		return
	}
	windows, dow, err := req.windows()
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	saved, err := h.store.ReplaceWorkingHours(r.Context(), actor.UserID, dow, windows)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if h.invalidator != nil {
		if err := h.invalidator.Invalidate(r.Context(), actor.UserID); err != nil {
			h.logger.Warn("working hours cache invalidation failed", "err", err, "provider_id", actor.UserID)
		}
	}
	h.logger.Info("working hours replaced", "provider_id", actor.UserID, "day_of_week", dow, "windows", len(saved))
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"providerId": actor.UserID, "workingHours": toSlots(saved)})
}

func (req replaceWorkingHoursRequest) windows() ([]model.WorkingHours, int, error) {
	if req.DayOfWeek == nil || *req.DayOfWeek < 0 || *req.DayOfWeek > 6 {
		return nil, 0, fmt.Errorf("dayOfWeek must be 0 (Sunday) to 6 (Saturday)")
	}
	out := make([]model.WorkingHours, 0, len(req.Slots))
	for i, s := range req.Slots {
		start, err := availability.ParseClock(strings.TrimSpace(s.StartTime))
		if err != nil {
			return nil, 0, fmt.Errorf("slots[%d].startTime: %v", i, err)
		}
		end, err := availability.ParseClock(strings.TrimSpace(s.EndTime))
		if err != nil {
			return nil, 0, fmt.Errorf("slots[%d].endTime: %v", i, err)
		}
		if start >= end {
			return nil, 0, fmt.Errorf("slots[%d]: startTime must be before endTime", i)
		}
		active := true
		if s.IsActive != nil {
			active = *s.IsActive
		}
		out = append(out, model.WorkingHours{
			DayOfWeek: *req.DayOfWeek,
			StartTime: start.String(),
			EndTime:   end.String(),
			IsActive:  active,
		})
	}
	return out, *req.DayOfWeek, nil
}
