package auditlog_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/audit"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func storedEvents(t *testing.T, rs remote.Store) []audit.Event {
	t.Helper()
	m, err := livemirror.Open[audit.Event](testutil.Ctx(t), rs, audit.Query(""),
		models.Decoder[audit.Event](audit.Collection),
		livemirror.Options[audit.Event]{Name: "audit_test", Less: audit.NewestFirst})
	if err != nil {
		t.Fatalf("open mirror: %v", err)
	}
	defer m.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	snap, err := m.WaitLoaded(ctx)
	if err != nil {
		t.Fatalf("WaitLoaded: %v", err)
	}
	return snap.Values()
}

func TestLogger_Destinations(t *testing.T) {
	tests := []struct {
		setting   string
		wantStore bool
		wantZap   bool
	}{
		{"", true, true},
		{auditlog.DestAll, true, true},
		{auditlog.DestDB, true, false},
		{auditlog.DestLog, false, true},
		{auditlog.DestOff, false, false},
	}
	for _, tt := range tests {
		t.Run("setting="+tt.setting, func(t *testing.T) {
			rs := testutil.NewMemStore(t)
			core, logs := observer.New(zapcore.InfoLevel)
			l := auditlog.New(audit.New(rs), zap.New(core), auditlog.Config{Auth: tt.setting})

			req := httptest.NewRequest("POST", "/login", nil)
			req.Header.Set("X-Forwarded-For", "203.0.113.9")
			l.LoginSuccess(req, "p1", "password")

			stored := storedEvents(t, rs)
			if got := len(stored) == 1; got != tt.wantStore {
				t.Errorf("stored %d events, wantStore=%v", len(stored), tt.wantStore)
			}
			if got := logs.FilterMessage("audit event").Len() == 1; got != tt.wantZap {
				t.Errorf("zap entries %d, wantZap=%v", logs.FilterMessage("audit event").Len(), tt.wantZap)
			}
			if tt.wantStore {
				e := stored[0]
				if e.EventType != audit.EventLoginSuccess || e.PrincipalID != "p1" || e.IP != "203.0.113.9" {
					t.Errorf("unexpected event: %+v", e)
				}
			}
		})
	}
}

func TestLogger_CategoriesAreIndependent(t *testing.T) {
	rs := testutil.NewMemStore(t)
	l := auditlog.New(audit.New(rs), zap.NewNop(), auditlog.Config{Auth: auditlog.DestOff, Admin: auditlog.DestDB})

	req := httptest.NewRequest("POST", "/admin/users/p2/role", nil)
	l.LoginFailed(req, "a@example.com", "password", "invalid_credentials")
	l.RoleChanged(req, "boss", "p2", string(models.RoleSuperadmin))

	stored := storedEvents(t, rs)
	if len(stored) != 1 {
		t.Fatalf("expected only the admin event, got %d", len(stored))
	}
	e := stored[0]
	if e.Category != audit.CategoryAdmin || e.ActorID != "boss" || e.Details["role"] != "superadmin" {
		t.Errorf("unexpected event: %+v", e)
	}
}

func TestLogger_SignupAndFailure(t *testing.T) {
	rs := testutil.NewMemStore(t)
	l := auditlog.New(audit.New(rs), zap.NewNop(), auditlog.Config{})

	req := httptest.NewRequest("POST", "/login/signup", nil)
	l.LoginSuccess(req, "p1", "signup")
	l.LoginFailed(req, "a@example.com", "password", "invalid_credentials")

	var signup, failed *audit.Event
	for _, e := range storedEvents(t, rs) {
		e := e
		switch e.EventType {
		case audit.EventSignup:
			signup = &e
		case audit.EventLoginFailed:
			failed = &e
		}
	}
	if signup == nil || !signup.Success {
		t.Errorf("expected a successful signup event, got %+v", signup)
	}
	if failed == nil || failed.Success || failed.FailureReason != "invalid_credentials" || failed.Details["email"] != "a@example.com" {
		t.Errorf("unexpected failure event: %+v", failed)
	}
}

func TestLogger_StoreFailureIsLogged(t *testing.T) {
	rs := testutil.NewMemStore(t)
	rs.FailWrites(remote.ErrClosed)
	core, logs := observer.New(zapcore.ErrorLevel)
	l := auditlog.New(audit.New(rs), zap.New(core), auditlog.Config{Admin: auditlog.DestDB})

	l.EventDeleted(httptest.NewRequest("DELETE", "/admin/events/global/e1", nil), "boss", "global", "e1")

	if logs.FilterMessage("failed to store audit event").Len() != 1 {
		t.Error("expected the store failure to be logged")
	}
}

func TestLogger_NilIsNoop(t *testing.T) {
	var l *auditlog.Logger
	l.Logout(httptest.NewRequest("POST", "/logout", nil), "p1")
}

func TestConfig_Validate(t *testing.T) {
	if err := (auditlog.Config{Auth: "all", Admin: ""}).Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := (auditlog.Config{Admin: "sometimes"}).Validate(); err == nil {
		t.Error("expected error for unknown setting")
	}
}
