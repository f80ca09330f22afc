package health

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Pinger checks connectivity to the backing store.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Counter reports live session clients. session.Manager satisfies it.
type Counter interface {
	Len() int
}

// Handler holds dependencies needed for health checks.
type Handler struct {
	Store   Pinger
	Backend string
	Clients Counter
	Log     *zap.Logger
}

// NewHandler constructs a health Handler. backend names the store
// implementation ("mongo" or "memory") for the response.
func NewHandler(store Pinger, backend string, clients Counter, logger *zap.Logger) *Handler {
	return &Handler{Store: store, Backend: backend, Clients: clients, Log: logger}
}

type healthResponse struct {
	Status   string `json:"status"`
	Backend  string `json:"backend"`
	Database string `json:"database"`
	Sessions int    `json:"sessions"`
	Message  string `json:"message,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Serve handles GET /health.
//
// On success: 200 and
//
//	{ "status":"ok", "backend":"mongo", "database":"connected", "sessions":3 }
//
// On store failure: 503 and
//
//	{ "status":"error", "database":"disconnected", "message":"Database unavailable", "error":"…"}
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Ping())
	defer cancel()

	w.Header().Set("Content-Type", "application/json")

	resp := healthResponse{
		Status:   "ok",
		Backend:  h.Backend,
		Database: "connected",
	}
	if h.Clients != nil {
		resp.Sessions = h.Clients.Len()
	}

	if err := h.Store.Ping(ctx); err != nil {
		h.Log.Error("health-check: store ping failed", zap.Error(err))
		w.WriteHeader(http.StatusServiceUnavailable)
		resp.Status = "error"
		resp.Database = "disconnected"
		resp.Message = "Database unavailable"
		resp.Error = err.Error()
		_ = json.NewEncoder(w).Encode(resp)
		return
	}

	_ = json.NewEncoder(w).Encode(resp)
}

// ServeLive handles GET /health/live. It never touches the store, so an
// orchestrator does not restart the process over a database outage.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "alive"})
}
