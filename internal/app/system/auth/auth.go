package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/google/uuid"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"
)

/*─────────────────────────────────────────────────────────────────────────────*
| Session constants                                                            |
*─────────────────────────────────────────────────────────────────────────────*/

const (
	DefaultSessionName = "admitdesk-session"

	clientIDKey = "client_id"
)

// Clients resolves a client id to its session client.
type Clients interface {
	Get(id string) (*session.Client, error)
}

// SessionManager binds each browser to a session.Client through a signed
// cookie that carries only a random client id.
type SessionManager struct {
	store   *sessions.CookieStore
	name    string
	clients Clients
	log     *zap.Logger
}

// NewSessionManager builds the cookie store. In production (secure=true)
// cookies are Secure + SameSite=None; over plain http in development use
// secure=false so the browser keeps them.
func NewSessionManager(sessionKey, name, domain string, maxAge time.Duration, secure bool, clients Clients, logger *zap.Logger) (*SessionManager, error) {
	if sessionKey == "" {
		return nil, fmt.Errorf("session key is empty; provide ≥32 random chars")
	}
	if len(sessionKey) < 32 {
		logger.Warn("session key is short; 32+ chars recommended",
			zap.Int("length", len(sessionKey)))
	}
	if name == "" {
		name = DefaultSessionName
	}

	store := sessions.NewCookieStore([]byte(sessionKey))
	opts := &sessions.Options{
		Domain:   domain,
		Path:     "/",
		MaxAge:   int(maxAge.Seconds()),
		Secure:   secure,
		HttpOnly: true,
	}
	if secure {
		opts.SameSite = http.SameSiteNoneMode
	} else {
		opts.SameSite = http.SameSiteLaxMode
	}
	store.Options = opts

	logger.Info("session store initialized",
		zap.String("name", name),
		zap.Bool("secure", secure),
		zap.String("domain", domain))

	return &SessionManager{store: store, name: name, clients: clients, log: logger}, nil
}

/*─────────────────────────────────────────────────────────────────────────────*
| Client binding                                                               |
*─────────────────────────────────────────────────────────────────────────────*/

type ctxKey string

const clientKey ctxKey = "sessionClient"

// LoadClient attaches the caller's session.Client to the request, issuing a
// new client id cookie on first visit.
func (sm *SessionManager) LoadClient(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := sm.store.Get(r, sm.name)

		id, _ := sess.Values[clientIDKey].(string)
		if _, err := uuid.Parse(id); err != nil {
			id = uuid.NewString()
			sess.Values[clientIDKey] = id
			if err := sess.Save(r, w); err != nil {
				sm.log.Error("save session cookie", zap.Error(err))
			}
		}

		c, err := sm.clients.Get(id)
		if err != nil {
			sm.log.Warn("session client unavailable", zap.String("client", id), zap.Error(err))
			http.Error(w, "session unavailable", http.StatusServiceUnavailable)
			return
		}
		next.ServeHTTP(w, WithClient(r, c))
	})
}

// WithClient returns r carrying c.
func WithClient(r *http.Request, c *session.Client) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), clientKey, c))
}

// CurrentClient returns the client bound by LoadClient.
func CurrentClient(r *http.Request) (*session.Client, bool) {
	c, ok := r.Context().Value(clientKey).(*session.Client)
	return c, ok && c != nil
}

// CurrentState returns the caller's session state. Requests without a client
// are treated as signed out.
func CurrentState(r *http.Request) session.State {
	if c, ok := CurrentClient(r); ok {
		return c.State()
	}
	return session.State{Ready: true}
}

/*─────────────────────────────────────────────────────────────────────────────*
| helpers                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// WantsHTML reports whether the caller is a browser navigation rather than
// an API call.
func WantsHTML(r *http.Request) bool {
	if r.Header.Get("HX-Request") == "true" {
		return true
	}
	return strings.Contains(r.Header.Get("Accept"), "text/html")
}

// CurrentURI returns the path and query of r, for return-to links.
func CurrentURI(r *http.Request) string {
	u := *r.URL
	return u.RequestURI()
}
