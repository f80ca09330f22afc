// internal/app/features/events/handler.go
package events

import (
	"context"
	"errors"
	"net/http"

	eventstore "github.com/dalemusser/admitdesk/internal/app/store/events"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/livesock"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

// Listing is the public events page. Loading is true until the first
// delivery; an empty, loaded listing means there are no events.
type Listing struct {
	Loading bool           `json:"loading"`
	Events  []models.Event `json:"events"`
}

// ListingOf renders a snapshot.
func ListingOf(s livemirror.Snapshot[models.Event]) Listing {
	return Listing{Loading: !s.Loaded, Events: s.Values()}
}

// Handler serves the public events listing. No sign-in is needed.
type Handler struct {
	Store   remote.Store
	Log     *zap.Logger
	Metrics *metrics.Collector
}

func NewHandler(rs remote.Store, logger *zap.Logger, m *metrics.Collector) *Handler {
	return &Handler{Store: rs, Log: logger, Metrics: m}
}

func (h *Handler) open(ctx context.Context) (*livemirror.Mirror[models.Event], error) {
	return livemirror.Open[models.Event](ctx, h.Store, eventstore.Query(models.PublicEvents),
		models.Decoder[models.Event](models.PublicEvents.Collection()),
		livemirror.Options[models.Event]{Name: "public_events", Less: models.EventBefore, Log: h.Log, Metrics: h.Metrics})
}

// ServeList handles GET /events. If the first delivery does not arrive in
// time the caller gets 202 with loading set and should retry.
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	m, err := h.open(r.Context())
	if err != nil {
		h.Log.Error("open public events", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "events unavailable")
		return
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()
	snap, err := m.WaitLoaded(ctx)
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		w.Header().Set("Retry-After", "1")
		httpjson.Write(w, http.StatusAccepted, ListingOf(snap))
	case err != nil:
		h.Log.Warn("load public events", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "events unavailable")
	default:
		httpjson.Write(w, http.StatusOK, ListingOf(snap))
	}
}

// ServeLive handles GET /events/live.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	m, err := h.open(context.Background())
	if err != nil {
		h.Log.Error("open public events", zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "events unavailable")
		return
	}
	feed := livesock.MirrorFeed(m, ListingOf)
	client, _ := auth.CurrentClient(r)
	opts := livesock.Options{Name: "public_events", Log: h.Log, Metrics: h.Metrics, Session: client}
	if err := livesock.Serve(w, r, feed, opts); err != nil {
		h.Log.Debug("events socket upgrade failed", zap.Error(err))
	}
}
