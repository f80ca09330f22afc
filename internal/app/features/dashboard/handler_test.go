package dashboard_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dalemusser/admitdesk/internal/app/features/dashboard"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"go.uber.org/zap"
)

func serve(t *testing.T, h *dashboard.Handler, s session.State) *httptest.ResponseRecorder {
	t.Helper()
	req := testutil.WithState(httptest.NewRequest("GET", "/", nil), s)
	rec := httptest.NewRecorder()
	dashboard.Routes(h).ServeHTTP(rec, req)
	return rec
}

func TestServeDashboard_Unauthenticated(t *testing.T) {
	h := dashboard.NewHandler(testutil.NewMemStore(t), zap.NewNop(), nil)
	if rec := serve(t, h, session.State{Ready: true}); rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}
}

func TestServeDashboard_OwnApplicationsAndGlobalEvents(t *testing.T) {
	rs := testutil.NewMemStore(t)
	fx := testutil.NewFixtures(t, rs)
	ctx := testutil.Ctx(t)

	fx.CreateApplication(ctx, "ann", "Oxford", models.StatusSubmitted)
	fx.CreateApplication(ctx, "ann", "Cambridge", models.StatusInProgress)
	fx.CreateApplication(ctx, "bob", "Harvard", models.StatusAccepted)
	fx.CreateEvent(ctx, models.GlobalEvents, "Essay due", models.EventDeadline, "2026-11-02")
	fx.CreateEvent(ctx, models.GlobalEvents, "Kickoff", models.EventWorkshop, "2026-10-20")
	fx.CreateEvent(ctx, models.PublicEvents, "Open day", models.EventInfoSession, "2026-12-01")

	h := dashboard.NewHandler(rs, zap.NewNop(), nil)
	rec := serve(t, h, testutil.Standard("ann"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var v dashboard.View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Loaded || v.Superadmin {
		t.Errorf("unexpected flags %+v", v)
	}
	if len(v.Applications) != 2 {
		t.Fatalf("expected ann's 2 applications, got %+v", v.Applications)
	}
	for _, a := range v.Applications {
		if a.UserID != "ann" {
			t.Errorf("leaked application %+v", a)
		}
	}
	if v.Applications[0].University != "Cambridge" {
		t.Errorf("applications not sorted: %+v", v.Applications)
	}
	if len(v.Events) != 2 || v.Events[0].Title != "Kickoff" {
		t.Errorf("expected global events by date, got %+v", v.Events)
	}
}

func TestServeDashboard_SuperadminFlag(t *testing.T) {
	h := dashboard.NewHandler(testutil.NewMemStore(t), zap.NewNop(), nil)
	rec := serve(t, h, testutil.Superadmin("root"))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var v dashboard.View
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !v.Superadmin {
		t.Error("expected superadmin flag")
	}
	if v.Applications == nil || len(v.Applications) != 0 {
		t.Errorf("expected an empty, non-null list, got %#v", v.Applications)
	}
}
