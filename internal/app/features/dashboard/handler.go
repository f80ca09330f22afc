// internal/app/features/dashboard/handler.go
package dashboard

import (
	"context"
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/authz"
	"github.com/dalemusser/admitdesk/internal/app/system/gates"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/livesock"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

type Handler struct {
	Store   remote.Store
	Log     *zap.Logger
	Metrics *metrics.Collector
}

func NewHandler(rs remote.Store, logger *zap.Logger, m *metrics.Collector) *Handler {
	return &Handler{
		Store:   rs,
		Log:     logger,
		Metrics: m,
	}
}

func (h *Handler) open(ctx context.Context, r *http.Request) (*Board, bool) {
	_, id, ok := authz.UserCtx(r)
	if !ok {
		return nil, false
	}
	b, err := OpenBoard(ctx, h.Store, id.ID, authz.IsSuperAdmin(r), h.Log, h.Metrics)
	if err != nil {
		h.Log.Error("open dashboard", zap.String("user", id.ID), zap.Error(err))
		return nil, true
	}
	return b, true
}

// ServeDashboard handles GET /dashboard.
func (h *Handler) ServeDashboard(w http.ResponseWriter, r *http.Request) {
	b, signedIn := h.open(r.Context(), r)
	if !signedIn {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	if b == nil {
		httpjson.Error(w, http.StatusBadGateway, "dashboard unavailable")
		return
	}
	defer b.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	v, err := b.WaitLoaded(ctx)
	if err != nil {
		h.Log.Warn("load dashboard", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "dashboard unavailable")
		return
	}

	h.Log.Debug("dashboard served",
		zap.String("user", authz.ViewerID(r)),
		zap.Int("applications", len(v.Applications)))
	httpjson.Write(w, http.StatusOK, v)
}

// ServeLive handles GET /dashboard/live. The board is built for one viewer
// and one role, so the socket ends when either changes.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	b, signedIn := h.open(context.Background(), r)
	if !signedIn {
		httpjson.Error(w, http.StatusUnauthorized, "sign in required")
		return
	}
	if b == nil {
		httpjson.Error(w, http.StatusBadGateway, "dashboard unavailable")
		return
	}
	holds := gates.Holds(gates.AuthenticatedUser, authz.ViewerID(r))
	admin := authz.IsSuperAdmin(r)
	client, _ := auth.CurrentClient(r)
	opts := livesock.Options{
		Name:    "dashboard",
		Log:     h.Log,
		Metrics: h.Metrics,
		Session: client,
		Allow: func(s session.State) bool {
			return holds(s) && s.IsSuperadmin() == admin
		},
	}
	if err := livesock.Serve(w, r, b, opts); err != nil {
		h.Log.Debug("dashboard socket upgrade failed", zap.Error(err))
	}
}
