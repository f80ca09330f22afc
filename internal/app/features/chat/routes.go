// internal/app/features/chat/routes.go
package chat

import (
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/authz"
	"github.com/dalemusser/admitdesk/internal/app/system/gates"
	"github.com/go-chi/chi/v5"
)

// Routes serves the caller's own conversation. Mount behind the
// authenticated-user gate.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		h.serveThread(w, r, authz.ViewerID(r))
	})
	r.Get("/live", func(w http.ResponseWriter, r *http.Request) {
		h.serveLive(w, r, authz.ViewerID(r), gates.AuthenticatedUser)
	})
	r.Post("/", func(w http.ResponseWriter, r *http.Request) {
		h.send(w, r, authz.ViewerID(r), false)
	})
	return r
}

// AdminRoutes serves any conversation by id, answering as the support team.
// Mount behind the superadmin gate.
func AdminRoutes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/{conversationID}", func(w http.ResponseWriter, r *http.Request) {
		h.serveThread(w, r, chi.URLParam(r, "conversationID"))
	})
	r.Get("/{conversationID}/live", func(w http.ResponseWriter, r *http.Request) {
		h.serveLive(w, r, chi.URLParam(r, "conversationID"), gates.SuperadminRole)
	})
	r.Post("/{conversationID}", func(w http.ResponseWriter, r *http.Request) {
		h.send(w, r, chi.URLParam(r, "conversationID"), true)
	})
	return r
}
