// internal/app/features/errors/errors.go
package errors

import (
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"go.uber.org/zap"
)

// body is the JSON shape of router-level errors.
type body struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	BackURL string `json:"back"`
}

// Handler answers requests the router cannot route.
type Handler struct {
	Log *zap.Logger
}

// NewHandler constructs an errors Handler.
func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{Log: logger}
}

// NotFound answers unknown paths. Browsers are sent home.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	h.Log.Debug("route not found", zap.String("method", r.Method), zap.String("path", r.URL.Path))
	if auth.WantsHTML(r) && r.Method == http.MethodGet {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	httpjson.Write(w, http.StatusNotFound, body{
		Error:   http.StatusText(http.StatusNotFound),
		Message: "There is nothing at this address.",
		BackURL: "/",
	})
}

// MethodNotAllowed answers a known path used with the wrong method.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusMethodNotAllowed, body{
		Error:   http.StatusText(http.StatusMethodNotAllowed),
		Message: r.Method + " is not supported here.",
		BackURL: "/",
	})
}
