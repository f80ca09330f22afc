// internal/app/features/admin/routes.go
package admin

import "github.com/go-chi/chi/v5"

// Routes wires the admin panel. Mount behind the superadmin gate.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServePanel)
	r.Get("/live", h.ServeLive)
	r.Get("/audit", h.ServeAudit)
	r.Post("/applications/{id}/status", h.HandleApplicationStatus)
	r.Post("/events/{kind}", h.HandleAddEvent)
	r.Delete("/events/{kind}/{id}", h.HandleDeleteEvent)
	r.Post("/users/{id}/role", h.HandleSetRole)
	return r
}
