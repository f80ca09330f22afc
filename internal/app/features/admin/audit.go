// internal/app/features/admin/audit.go
package admin

import (
	"context"
	"net/http"
	"strconv"

	"github.com/dalemusser/admitdesk/internal/app/store/audit"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"go.uber.org/zap"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 500
)

// AuditPage is the response of GET /admin/audit.
type AuditPage struct {
	Category string        `json:"category,omitempty"`
	Total    int           `json:"total"`
	Events   []audit.Event `json:"events"`
}

// ServeAudit handles GET /admin/audit?category=auth|admin&limit=N, newest
// first.
func (h *Handler) ServeAudit(w http.ResponseWriter, r *http.Request) {
	category := query.Get(r, "category")
	switch category {
	case "", audit.CategoryAuth, audit.CategoryAdmin:
	default:
		httpjson.Error(w, http.StatusBadRequest, "unknown category")
		return
	}
	limit := defaultAuditLimit
	if s := query.Get(r, "limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			httpjson.Error(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(n, maxAuditLimit)
	}

	m, err := livemirror.Open[audit.Event](r.Context(), h.Store, audit.Query(category),
		models.Decoder[audit.Event](audit.Collection),
		livemirror.Options[audit.Event]{Name: "admin_audit", Less: audit.NewestFirst, Log: h.Log, Metrics: h.Metrics})
	if err != nil {
		h.Log.Error("open audit log", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "audit log unavailable")
		return
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	snap, err := m.WaitLoaded(ctx)
	if err != nil {
		h.Log.Warn("load audit log", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "audit log unavailable")
		return
	}

	events := snap.Values()
	page := AuditPage{Category: category, Total: len(events), Events: events}
	if len(events) > limit {
		page.Events = events[:limit]
	}
	httpjson.Write(w, http.StatusOK, page)
}
