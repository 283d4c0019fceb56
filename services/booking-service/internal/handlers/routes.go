package handlers

import (
	"net/http"

	"github.com/lancerhub/marketplace/libs/auth"
	"github.com/lancerhub/marketplace/libs/httpx"
)

type Routes struct {
	Availability *AvailabilityHandler
	Bookings     *BookingHandler
	WorkingHours *WorkingHoursHandler
	// PublicLimit guards the unauthenticated availability endpoint.
	PublicLimit httpx.Middleware
	JWTSecret   string
}

func (rt Routes) Register(mux *http.ServeMux) {
	availability := http.Handler(http.HandlerFunc(rt.Availability.Get))
	if rt.PublicLimit != nil {
		availability = rt.PublicLimit(availability)
	}
	mux.Handle("GET /api/calendar/availability", availability)

	protect := func(h http.HandlerFunc) http.Handler { return auth.Require(rt.JWTSecret, h) }
	mux.Handle("/api/bookings", protect(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet:  rt.Bookings.List,
		http.MethodPost: rt.Bookings.Create,
	})))
	mux.Handle("PATCH /api/bookings/status", protect(rt.Bookings.UpdateStatus))
	mux.Handle("GET /api/bookings/{id}", protect(rt.Bookings.Get))
	mux.Handle("/api/providers/working-hours", protect(httpx.Methods(map[string]http.HandlerFunc{
		http.MethodGet: rt.WorkingHours.List,
		http.MethodPut: rt.WorkingHours.Replace,
	})))
}
