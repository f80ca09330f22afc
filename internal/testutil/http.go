package testutil

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

// Standard returns a resolved state for a standard user with principal id.
func Standard(id string) session.State {
	return session.State{
		Identity: &identity.Identity{ID: id, Email: id + "@example.com"},
		Role:     models.RoleStandard,
		Ready:    true,
	}
}

// Superadmin returns a resolved state for a superadmin with principal id.
func Superadmin(id string) session.State {
	s := Standard(id)
	s.Role = models.RoleSuperadmin
	return s
}

// WithState returns r carrying a client frozen at s. This bypasses the
// cookie middleware and the live session machine.
func WithState(r *http.Request, s session.State) *http.Request {
	return auth.WithClient(r, session.NewFixedClient("test-client", s))
}

// WithClient returns r carrying c.
func WithClient(r *http.Request, c *session.Client) *http.Request {
	return auth.WithClient(r, c)
}

// LiveClient returns a running session client over rs, closed at cleanup.
func LiveClient(t *testing.T, rs remote.Store, id string) *session.Client {
	t.Helper()
	mgr := session.NewManager(rs, session.Options{Log: zap.NewNop()})
	t.Cleanup(mgr.Close)
	c, err := mgr.Get(id)
	if err != nil {
		t.Fatalf("start session client: %v", err)
	}
	return c
}

// NewRequest creates an HTTP request for testing.
func NewRequest(method, target string) *http.Request {
	return httptest.NewRequest(method, target, nil)
}
