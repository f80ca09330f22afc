package testutil

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/app/system/livesock"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/gorilla/websocket"
)

// LiveFrame is a websocket frame as a browser receives it.
type LiveFrame struct {
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

// Decode unmarshals the frame's data into v.
func (f LiveFrame) Decode(t *testing.T, v any) {
	t.Helper()
	if err := json.Unmarshal(f.Data, v); err != nil {
		t.Fatalf("decode %s frame: %v", f.Type, err)
	}
}

// DialLive serves h on a test server, attaching c to every request when it
// is not nil, and dials path as a websocket.
func DialLive(t *testing.T, h http.Handler, c *session.Client, path string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c != nil {
			r = auth.WithClient(r, c)
		}
		h.ServeHTTP(w, r)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path
	ws, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", path, err, status)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// ReadLive reads one frame.
func ReadLive(t *testing.T, ws *websocket.Conn) LiveFrame {
	t.Helper()
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, b, err := ws.ReadMessage()
	if err != nil {
		t.Fatalf("read frame: %v", err)
	}
	var f LiveFrame
	if err := json.Unmarshal(b, &f); err != nil {
		t.Fatalf("decode frame %s: %v", b, err)
	}
	return f
}

// AwaitSnapshot reads frames until a snapshot satisfies ok and returns it.
// An error frame fails the test.
func AwaitSnapshot[V any](t *testing.T, ws *websocket.Conn, ok func(V) bool) V {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f := ReadLive(t, ws)
		if f.Type != livesock.FrameSnapshot {
			t.Fatalf("expected snapshot, got %s frame: %q", f.Type, f.Error)
		}
		var v V
		f.Decode(t, &v)
		if ok(v) {
			return v
		}
	}
	t.Fatalf("no matching snapshot before the deadline")
	var zero V
	return zero
}

// AwaitRevoked reads frames until an error frame and checks that the socket
// then closes. It returns the error text and the raw snapshots seen first.
func AwaitRevoked(t *testing.T, ws *websocket.Conn) (string, []string) {
	t.Helper()
	var seen []string
	for {
		f := ReadLive(t, ws)
		if f.Type == livesock.FrameError {
			ws.SetReadDeadline(time.Now().Add(2 * time.Second))
			if _, _, err := ws.ReadMessage(); !websocket.IsCloseError(err, websocket.CloseGoingAway) {
				t.Fatalf("expected going-away close after %q, got %v", f.Error, err)
			}
			return f.Error, seen
		}
		seen = append(seen, string(f.Data))
	}
}

// SignInLive signs c in as id and waits for its role to resolve.
func SignInLive(t *testing.T, c *session.Client, id string) {
	t.Helper()
	if err := c.Identity.SignIn(identity.Identity{ID: id, Email: id + "@example.com"}); err != nil {
		t.Fatalf("sign in %s: %v", id, err)
	}
	AwaitState(t, c, "signed in as "+id, func(s session.State) bool {
		return s.SignedIn() && s.ViewerID() == id
	})
}

// AwaitState waits until c's session state satisfies ok.
func AwaitState(t *testing.T, c *session.Client, what string, ok func(session.State) bool) session.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	for s := range c.Machine.Subscribe(ctx) {
		if ok(s) {
			return s
		}
	}
	t.Fatalf("timed out waiting for %s; state is %s", what, c.State().Phase())
	return session.State{}
}
