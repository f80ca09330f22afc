package login_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/features/login"
	credentialstore "github.com/dalemusser/admitdesk/internal/app/store/credentials"
	"github.com/dalemusser/admitdesk/internal/app/store/remote/memstore"
	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

func newTestHandler(t *testing.T) (*login.Handler, *memstore.Store) {
	t.Helper()
	rs := testutil.NewMemStore(t)
	limiter := ratelimit.NewLoginLimiter()
	t.Cleanup(limiter.Stop)
	creds := credentialstore.New(rs).WithCost(bcrypt.MinCost)
	return login.NewHandler(creds, limiter, true, nil, zap.NewNop()), rs
}

func post(t *testing.T, h http.HandlerFunc, c *session.Client, target string, form url.Values, html bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if html {
		req.Header.Set("Accept", "text/html")
	}
	if c != nil {
		req = testutil.WithClient(req, c)
	}
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func waitReady(t *testing.T, c *session.Client) session.State {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for s := range c.Machine.Subscribe(ctx) {
		if s.Ready && s.Identity != nil {
			return s
		}
	}
	t.Fatalf("session never resolved: %+v", c.State())
	return session.State{}
}

func TestSignupThenLogin_ResolvesStandardRole(t *testing.T) {
	h, rs := newTestHandler(t)
	c := testutil.LiveClient(t, rs, "client-1")

	rec := post(t, h.HandleSignupPost, c, "/login/signup", url.Values{
		"email":    {"Ann@Example.com"},
		"password": {"correct horse"},
		"return":   {"/events"},
	}, true)
	if rec.Code != http.StatusSeeOther {
		t.Fatalf("signup: expected 303, got %d: %s", rec.Code, rec.Body)
	}
	if loc := rec.Header().Get("Location"); loc != "/events" {
		t.Errorf("Location = %q, want /events", loc)
	}

	s := waitReady(t, c)
	if s.Role != models.RoleStandard {
		t.Errorf("role = %q, want standard", s.Role)
	}
	if s.Identity.Email != "ann@example.com" {
		t.Errorf("email = %q", s.Identity.Email)
	}

	// A second browser logs in as the same principal.
	other := testutil.LiveClient(t, rs, "client-2")
	rec = post(t, h.HandleLoginPost, other, "/login", url.Values{
		"email":    {"ann@example.com"},
		"password": {"correct horse"},
	}, false)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: expected 200, got %d: %s", rec.Code, rec.Body)
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["redirect"] != login.DefaultReturn {
		t.Errorf("redirect = %q", body["redirect"])
	}
	if got := waitReady(t, other); got.Identity.ID != s.Identity.ID {
		t.Errorf("principal = %q, want %q", got.Identity.ID, s.Identity.ID)
	}
}

func TestHandleLoginPost_Errors(t *testing.T) {
	h, rs := newTestHandler(t)
	c := testutil.LiveClient(t, rs, "client-1")

	if rec := post(t, h.HandleSignupPost, c, "/login/signup", url.Values{"email": {"a@example.com"}, "password": {"password-1"}}, false); rec.Code != http.StatusOK {
		t.Fatalf("signup failed: %d", rec.Code)
	}

	tests := []struct {
		name   string
		target string
		fn     http.HandlerFunc
		form   url.Values
		want   int
	}{
		{"missing password", "/login", h.HandleLoginPost, url.Values{"email": {"a@example.com"}}, http.StatusBadRequest},
		{"wrong password", "/login", h.HandleLoginPost, url.Values{"email": {"a@example.com"}, "password": {"nope-nope"}}, http.StatusUnauthorized},
		{"taken", "/login/signup", h.HandleSignupPost, url.Values{"email": {"A@example.com"}, "password": {"password-2"}}, http.StatusConflict},
		{"weak", "/login/signup", h.HandleSignupPost, url.Values{"email": {"b@example.com"}, "password": {"short"}}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if rec := post(t, tt.fn, c, tt.target, tt.form, false); rec.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, rec.Code)
			}
		})
	}
}

func TestHandleLoginPost_UnsafeReturnIgnored(t *testing.T) {
	h, rs := newTestHandler(t)
	c := testutil.LiveClient(t, rs, "client-1")

	rec := post(t, h.HandleSignupPost, c, "/login/signup", url.Values{
		"email":    {"a@example.com"},
		"password": {"password-1"},
		"return":   {"https://evil.example.com/"},
	}, true)
	if loc := rec.Header().Get("Location"); loc != login.DefaultReturn {
		t.Errorf("Location = %q, want %q", loc, login.DefaultReturn)
	}
}

func TestServeLogin_ListsProviders(t *testing.T) {
	h, _ := newTestHandler(t)
	rec := httptest.NewRecorder()
	h.ServeLogin(rec, httptest.NewRequest("GET", "/login?return=/admin", nil))

	var body struct {
		Providers []string `json:"providers"`
		Return    string   `json:"return"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(body.Providers) != 2 || body.Providers[1] != "google" {
		t.Errorf("providers = %v", body.Providers)
	}
	if body.Return != "/admin" {
		t.Errorf("return = %q", body.Return)
	}
}
