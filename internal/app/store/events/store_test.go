package eventstore_test

import (
	"errors"
	"testing"

	eventstore "github.com/dalemusser/admitdesk/internal/app/store/events"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
)

func TestStore_Add_AwaitsServerTimestamp(t *testing.T) {
	rs := testutil.NewMemStore(t)
	store := eventstore.New(rs)
	ctx := testutil.Ctx(t)

	id, err := store.Add(ctx, models.GlobalEvents, models.Event{
		Title: "  Essay   workshop ",
		Type:  models.EventWorkshop,
		Date:  "2026-11-02",
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}

	raw, err := rs.Get(ctx, remote.DocRef{Collection: models.GlobalEvents.Collection(), ID: id})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	e, err := models.Decode[models.Event](models.GlobalEvents.Collection(), id, raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if e.CreatedAt.IsZero() {
		t.Error("expected created_at to be set by the store")
	}
	if e.Title != "Essay workshop" {
		t.Errorf("title = %q", e.Title)
	}
}

func TestStore_Add_Validation(t *testing.T) {
	store := eventstore.New(testutil.NewMemStore(t))
	ctx := testutil.Ctx(t)

	tests := []struct {
		name string
		kind models.EventKind
		e    models.Event
		want error
	}{
		{"bad kind", models.EventKind("private"), models.Event{Title: "x", Type: models.EventDeadline, Date: "2026-01-01"}, eventstore.ErrBadKind},
		{"no title", models.GlobalEvents, models.Event{Type: models.EventDeadline, Date: "2026-01-01"}, eventstore.ErrNoTitle},
		{"bad date", models.GlobalEvents, models.Event{Title: "x", Type: models.EventDeadline, Date: "Jan 1"}, eventstore.ErrBadDate},
		{"deadline is not public", models.PublicEvents, models.Event{Title: "x", Type: models.EventDeadline, Date: "2026-01-01"}, eventstore.ErrBadType},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := store.Add(ctx, tt.kind, tt.e); !errors.Is(err, tt.want) {
				t.Errorf("Add error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestStore_Delete(t *testing.T) {
	rs := testutil.NewMemStore(t)
	store := eventstore.New(rs)
	ctx := testutil.Ctx(t)

	e := testutil.NewFixtures(t, rs).CreateEvent(ctx, models.PublicEvents, "Open day", models.EventInfoSession, "2026-12-01")
	if err := store.Delete(ctx, models.PublicEvents, e.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := rs.Get(ctx, remote.DocRef{Collection: models.PublicEvents.Collection(), ID: e.ID}); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := store.Delete(ctx, models.PublicEvents, e.ID); err != nil {
		t.Errorf("deleting a missing event should succeed, got %v", err)
	}
}
