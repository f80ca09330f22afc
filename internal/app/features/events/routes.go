// internal/app/features/events/routes.go
package events

import "github.com/go-chi/chi/v5"

// Routes serves the public listing. These routes are public.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ServeList)
	r.Get("/live", h.ServeLive)
	return r
}
