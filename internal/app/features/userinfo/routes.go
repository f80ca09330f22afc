// internal/app/features/userinfo/routes.go
package userinfo

import "github.com/go-chi/chi/v5"

// MountRoutes registers GET /api/user and its live socket. No gate is
// applied: the handler reports signed-out and loading states itself.
func MountRoutes(r chi.Router, h *Handler) {
	r.Get("/api/user", h.ServeUserInfo)
	r.Get("/api/user/live", h.ServeLive)
}
