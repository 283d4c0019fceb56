package handlers

import (
	"net/http"
	"strings"

	"github.com/lancerhub/marketplace/libs/auth"
	"github.com/lancerhub/marketplace/libs/httpx"
	"github.com/lancerhub/marketplace/services/booking-service/internal/lifecycle"
	"github.com/lancerhub/marketplace/services/booking-service/internal/model"
)

// actorFrom reads the authenticated caller. It writes a 401 and returns
// false when the request carries no claims.
func actorFrom(w http.ResponseWriter, r *http.Request) (lifecycle.Actor, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok || claims.Sub == "" {
		httpx.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{
		UserID: claims.Sub,
		Role:   model.Role(strings.ToUpper(strings.TrimSpace(claims.Role))),
	}, true
}
