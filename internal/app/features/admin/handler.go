// internal/app/features/admin/handler.go
package admin

import (
	"context"
	"net/http"

	applicationstore "github.com/dalemusser/admitdesk/internal/app/store/applications"
	eventstore "github.com/dalemusser/admitdesk/internal/app/store/events"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/authz"
	"github.com/dalemusser/admitdesk/internal/app/system/gates"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/livesock"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Handler serves the superadmin panel.
type Handler struct {
	Store   remote.Store
	Users   *userstore.Store
	Apps    *applicationstore.Store
	Events  *eventstore.Store
	Audit   *auditlog.Logger
	Log     *zap.Logger
	Metrics *metrics.Collector
}

func NewHandler(rs remote.Store, audit *auditlog.Logger, logger *zap.Logger, m *metrics.Collector) *Handler {
	return &Handler{
		Store:   rs,
		Users:   userstore.New(rs),
		Apps:    applicationstore.New(rs),
		Events:  eventstore.New(rs),
		Audit:   audit,
		Log:     logger,
		Metrics: m,
	}
}

// ServePanel handles GET /admin: the panel as it stands once every mirror
// has loaded.
func (h *Handler) ServePanel(w http.ResponseWriter, r *http.Request) {
	p, err := OpenPanel(r.Context(), h.Store, h.Log, h.Metrics)
	if err != nil {
		h.Log.Error("open admin panel", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "panel unavailable")
		return
	}
	defer p.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	v, err := p.WaitLoaded(ctx)
	if err != nil {
		h.Log.Warn("load admin panel", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "panel unavailable")
		return
	}
	httpjson.Write(w, http.StatusOK, v)
}

// ServeLive handles GET /admin/live: a websocket that pushes the panel after
// every change to any of its collections. The socket ends if the caller
// stops being a superadmin.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	p, err := OpenPanel(context.Background(), h.Store, h.Log, h.Metrics)
	if err != nil {
		h.Log.Error("open admin panel", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "panel unavailable")
		return
	}
	client, _ := auth.CurrentClient(r)
	opts := livesock.Options{
		Name:    "admin",
		Log:     h.Log,
		Metrics: h.Metrics,
		Session: client,
		Allow:   gates.Holds(gates.SuperadminRole, authz.ViewerID(r)),
	}
	if err := livesock.Serve(w, r, p, opts); err != nil {
		h.Log.Debug("admin socket upgrade failed", zap.Error(err))
	}
}
