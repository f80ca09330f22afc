// internal/app/features/logout/handler.go
package logout

import (
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"go.uber.org/zap"
)

type Handler struct {
	Audit *auditlog.Logger
	Log   *zap.Logger
}

func NewHandler(audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{Audit: audit, Log: logger}
}

// ServeLogout handles POST /logout. The client keeps its cookie and its
// session machine; only the identity is cleared, which drops the role
// subscription and moves the session to signed out.
func (h *Handler) ServeLogout(w http.ResponseWriter, r *http.Request) {
	if c, ok := auth.CurrentClient(r); ok {
		if id := c.State().ViewerID(); id != "" {
			h.Audit.Logout(r, id)
		}
		if err := c.Identity.SignOut(r.Context()); err != nil {
			h.Log.Warn("logout: sign out", zap.String("client", c.ID), zap.Error(err))
		}
	}

	if r.Header.Get("HX-Request") != "" {
		w.Header().Set("HX-Redirect", "/")
		w.WriteHeader(http.StatusOK)
		return
	}
	if auth.WantsHTML(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
