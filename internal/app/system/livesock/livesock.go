// Package livesock streams live views to browsers over websockets.
//
// Every delivery of a mirror is a complete snapshot, so a slow socket never
// needs a backlog: frames are coalesced and the socket always writes the
// newest view it has not sent yet.
package livesock

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/limits"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultWriteTimeout = 10 * time.Second
	DefaultPingInterval = 30 * time.Second
)

// Feed is a live view a socket can stream. Watch registers callbacks for
// every new view and for the feed's terminal error and returns a function
// that unregisters them. Close releases the feed's subscriptions.
type Feed interface {
	Watch(update func(view any), fail func(error)) (stop func())
	Close()
}

// Frame is one websocket text message.
type Frame struct {
	Type  string `json:"type"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

const (
	FrameSnapshot = "snapshot"
	FrameError    = "error"
)

// Options configures Serve.
type Options struct {
	// Name labels logs and metrics.
	Name         string
	WriteTimeout time.Duration
	PingInterval time.Duration
	Log          *zap.Logger
	Metrics      *metrics.Collector

	// Session is the client the socket was opened for. It is not reaped
	// while the socket is open.
	Session *session.Client
	// Allow is re-checked against every state of Session. The first state
	// it rejects ends the stream with an error frame, and so does the end of
	// the session itself. Nil streams regardless of the session.
	Allow func(session.State) bool
}

// Frame error texts the browser may see.
const (
	errFeedUnavailable = "live updates unavailable"
	errSessionEnded    = "session ended"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 8192,
}

// Serve upgrades the request and streams feed until the browser goes away,
// the feed fails, or opts.Allow stops accepting the session. Serve owns feed
// and closes it before returning.
func Serve(w http.ResponseWriter, r *http.Request, feed Feed, opts Options) error {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = DefaultWriteTimeout
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = DefaultPingInterval
	}

	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		feed.Close()
		return err
	}
	opts.Metrics.SocketOpened(opts.Name)
	defer func() {
		feed.Close()
		ws.Close()
		opts.Metrics.SocketClosed(opts.Name)
	}()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	box := newMailbox()
	g := newGuard(opts.Session, opts.Allow)
	defer g.release()
	revoke := func() {
		b, _ := json.Marshal(Frame{Type: FrameError, Error: errSessionEnded})
		box.put(b, true)
	}

	stop := feed.Watch(
		func(view any) {
			if !g.permits() {
				revoke()
				return
			}
			b, err := json.Marshal(Frame{Type: FrameSnapshot, Data: view})
			if err != nil {
				opts.Log.Error("encode snapshot frame", zap.String("feed", opts.Name), zap.Error(err))
				return
			}
			box.put(b, false)
		},
		func(err error) {
			opts.Log.Warn("live feed failed", zap.String("feed", opts.Name), zap.Error(err))
			b, _ := json.Marshal(Frame{Type: FrameError, Error: errFeedUnavailable})
			box.put(b, true)
		},
	)
	defer stop()

	if g.active() {
		go func() {
			if g.watch(ctx) {
				opts.Log.Debug("live socket revoked", zap.String("feed", opts.Name), zap.String("client", opts.Session.ID))
				revoke()
			}
		}()
	}

	go readLoop(ws, cancel, opts.PingInterval)

	ping := time.NewTicker(opts.PingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-box.ready:
			b, final := box.take()
			if b == nil {
				continue
			}
			if !final && !g.permits() {
				revoke()
				continue
			}
			ws.SetWriteDeadline(time.Now().Add(opts.WriteTimeout))
			if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
				opts.Log.Debug("socket write failed", zap.String("feed", opts.Name), zap.Error(err))
				return nil
			}
			opts.Metrics.FrameSent(opts.Name)
			g.touch()
			if final {
				msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, "feed ended")
				_ = ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(opts.WriteTimeout))
				return nil
			}
		case <-ping.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteTimeout)); err != nil {
				return nil
			}
			g.touch()
		}
	}
}

// guard ties a socket to the session it was opened for and keeps that
// session from being reaped while the socket is open.
type guard struct {
	client  *session.Client
	allow   func(session.State) bool
	release func()
}

func newGuard(c *session.Client, allow func(session.State) bool) *guard {
	g := &guard{client: c, allow: allow, release: func() {}}
	if c != nil {
		g.release = c.Attach()
	}
	return g
}

func (g *guard) active() bool { return g.client != nil && g.allow != nil }

func (g *guard) touch() {
	if g.client != nil {
		g.client.Touch()
	}
}

// permits checks the session as it stands now. Frames are checked against
// it as well as the watcher, so nothing is written for a session the
// watcher has not caught up with yet.
func (g *guard) permits() bool {
	if !g.active() {
		return true
	}
	return g.allow(g.client.State())
}

// watch blocks until the session stops permitting the socket, reporting
// true, or until ctx ends.
func (g *guard) watch(ctx context.Context) bool {
	for s := range g.client.Machine.Subscribe(ctx) {
		if !g.allow(s) {
			return true
		}
	}
	return ctx.Err() == nil
}

// readLoop drains client frames so control messages are processed, and
// cancels the stream when the client goes away or stops answering pings.
func readLoop(ws *websocket.Conn, cancel context.CancelFunc, pingInterval time.Duration) {
	defer cancel()
	wait := 2 * pingInterval
	ws.SetReadLimit(limits.MaxSocketFrame)
	ws.SetReadDeadline(time.Now().Add(wait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(wait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
		ws.SetReadDeadline(time.Now().Add(wait))
	}
}

// mailbox holds the newest unsent frame.
type mailbox struct {
	mu     sync.Mutex
	frame  []byte
	final  bool
	sealed bool
	ready  chan struct{}
}

func newMailbox() *mailbox {
	return &mailbox{ready: make(chan struct{}, 1)}
}

func (m *mailbox) put(b []byte, final bool) {
	m.mu.Lock()
	if m.sealed {
		m.mu.Unlock()
		return
	}
	m.frame, m.final = b, final
	m.sealed = final
	m.mu.Unlock()
	select {
	case m.ready <- struct{}{}:
	default:
	}
}

func (m *mailbox) take() ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, final := m.frame, m.final
	m.frame = nil
	return b, final
}

type mirrorFeed[T, V any] struct {
	m    *livemirror.Mirror[T]
	view func(livemirror.Snapshot[T]) V
}

// MirrorFeed streams view(snapshot) for every delivery of m. Closing the
// feed closes m.
func MirrorFeed[T, V any](m *livemirror.Mirror[T], view func(livemirror.Snapshot[T]) V) Feed {
	return &mirrorFeed[T, V]{m: m, view: view}
}

func (f *mirrorFeed[T, V]) Watch(update func(any), fail func(error)) func() {
	offUpdate := f.m.OnUpdate(func(s livemirror.Snapshot[T]) { update(f.view(s)) })
	offError := f.m.OnError(fail)
	return func() {
		offUpdate()
		offError()
	}
}

func (f *mirrorFeed[T, V]) Close() { f.m.Close() }
