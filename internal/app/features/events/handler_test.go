package events_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/features/events"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
	"go.uber.org/zap"
)

func list(t *testing.T, h *events.Handler) (int, events.Listing) {
	t.Helper()
	rec := httptest.NewRecorder()
	events.Routes(h).ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	var l events.Listing
	if err := json.Unmarshal(rec.Body.Bytes(), &l); err != nil {
		t.Fatalf("decode: %v (%s)", err, rec.Body.String())
	}
	return rec.Code, l
}

func TestListingOf(t *testing.T) {
	if l := events.ListingOf(livemirror.Snapshot[models.Event]{}); !l.Loading {
		t.Error("an undelivered snapshot should be loading")
	}
	if l := events.ListingOf(livemirror.Snapshot[models.Event]{Loaded: true}); l.Loading || l.Events == nil {
		t.Errorf("a delivered empty snapshot is a confirmed empty listing, got %+v", l)
	}
}

func TestServeList_PublicOnlyByDate(t *testing.T) {
	rs := testutil.NewMemStore(t)
	fx := testutil.NewFixtures(t, rs)
	ctx := testutil.Ctx(t)
	fx.CreateEvent(ctx, models.PublicEvents, "Open day", models.EventInfoSession, "2026-12-01")
	fx.CreateEvent(ctx, models.PublicEvents, "Essay clinic", models.EventWorkshop, "2026-11-10")
	fx.CreateEvent(ctx, models.GlobalEvents, "Essay due", models.EventDeadline, "2026-11-02")

	code, l := list(t, events.NewHandler(rs, zap.NewNop(), nil))
	if code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
	if l.Loading || len(l.Events) != 2 {
		t.Fatalf("unexpected listing %+v", l)
	}
	if l.Events[0].Title != "Essay clinic" {
		t.Errorf("expected date order, got %+v", l.Events)
	}
}

func TestServeList_LoadingUntilFirstDelivery(t *testing.T) {
	timeouts.Configure(timeouts.Config{Short: 50 * time.Millisecond})
	t.Cleanup(timeouts.Reset)

	rs := testutil.NewMemStore(t)
	rs.Hold()
	defer rs.Release()

	code, l := list(t, events.NewHandler(rs, zap.NewNop(), nil))
	if code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", code)
	}
	if !l.Loading {
		t.Error("expected loading listing")
	}
}
