// internal/app/features/heartbeat/handler.go
package heartbeat

import (
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
)

// Handler keeps browser clients alive between page loads so the reaper does
// not close their session machine while a tab is open.
type Handler struct{}

func NewHandler() *Handler { return &Handler{} }

// ServeHeartbeat handles POST /heartbeat. It marks the client active and
// answers with the current phase so pages can notice a sign-out made in
// another tab.
func (h *Handler) ServeHeartbeat(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.CurrentClient(r)
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	c.Touch()
	httpjson.Write(w, http.StatusOK, map[string]string{"phase": c.State().Phase().String()})
}
