// internal/app/features/userinfo/handler.go
package userinfo

import (
	"context"
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/livesock"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"go.uber.org/zap"
)

// Handler serves the caller's session state.
type Handler struct {
	Log     *zap.Logger
	Metrics *metrics.Collector
}

func NewHandler(logger *zap.Logger, m *metrics.Collector) *Handler {
	return &Handler{Log: logger, Metrics: m}
}

// View is the JSON form of a session state.
type View struct {
	Phase           string `json:"phase"`
	Ready           bool   `json:"ready"`
	IsAuthenticated bool   `json:"isAuthenticated"`
	ID              string `json:"id,omitempty"`
	Email           string `json:"email,omitempty"`
	Role            string `json:"role,omitempty"`
	Superadmin      bool   `json:"superadmin"`
}

// ViewOf renders s.
func ViewOf(s session.State) View {
	v := View{
		Phase:           s.Phase().String(),
		Ready:           s.Ready,
		IsAuthenticated: s.SignedIn(),
		Superadmin:      s.IsSuperadmin(),
	}
	if s.Identity != nil {
		v.ID = s.Identity.ID
		v.Email = s.Identity.Email
	}
	if s.SignedIn() {
		v.Role = string(s.Role)
	}
	return v
}

// ServeUserInfo handles GET /api/user.
//
//	{ "phase":"ready", "ready":true, "isAuthenticated":true, "id":"…", "email":"…", "role":"standard", "superadmin":false }
//
// While the role is still resolving, phase is "role_unknown" and ready is
// false; callers should poll or use /api/user/live.
func (h *Handler) ServeUserInfo(w http.ResponseWriter, r *http.Request) {
	httpjson.Write(w, http.StatusOK, ViewOf(auth.CurrentState(r)))
}

// ServeLive handles GET /api/user/live: a websocket that pushes the session
// view every time it changes.
func (h *Handler) ServeLive(w http.ResponseWriter, r *http.Request) {
	c, ok := auth.CurrentClient(r)
	if !ok {
		httpjson.Error(w, http.StatusServiceUnavailable, "session unavailable")
		return
	}
	err := livesock.Serve(w, r, newStateFeed(c.Machine), livesock.Options{
		Name:    "session",
		Log:     h.Log,
		Metrics: h.Metrics,
		Session: c,
	})
	if err != nil {
		h.Log.Debug("session socket upgrade failed", zap.Error(err))
	}
}

// stateFeed adapts a machine's state stream to livesock.Feed. Closing the
// feed stops watching; the machine itself belongs to the session manager.
type stateFeed struct {
	m      *session.Machine
	ctx    context.Context
	cancel context.CancelFunc
}

func newStateFeed(m *session.Machine) *stateFeed {
	ctx, cancel := context.WithCancel(context.Background())
	return &stateFeed{m: m, ctx: ctx, cancel: cancel}
}

func (f *stateFeed) Watch(update func(any), _ func(error)) func() {
	ctx, cancel := context.WithCancel(f.ctx)
	ch := f.m.Subscribe(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for s := range ch {
			update(ViewOf(s))
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func (f *stateFeed) Close() { f.cancel() }
