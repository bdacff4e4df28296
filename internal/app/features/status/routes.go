package status

import (
	"net/http"

	"github.com/dalemusser/unigrading/internal/app/system/auth"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// Routes returns the admin-only status router.
func Routes(h *Handler, sessionMgr *auth.SessionManager) http.Handler {
	r := chi.NewRouter()
	r.Use(sessionMgr.RequireRole(models.RoleAdmin))
	r.Get("/", h.Serve)
	return r
}
