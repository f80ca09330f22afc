package applicationstore_test

import (
	"errors"
	"testing"

	applicationstore "github.com/dalemusser/admitdesk/internal/app/store/applications"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/admitdesk/internal/testutil"
)

func TestStore_UpdateStatus(t *testing.T) {
	rs := testutil.NewMemStore(t)
	store := applicationstore.New(rs)
	ctx := testutil.Ctx(t)

	a := testutil.NewFixtures(t, rs).CreateApplication(ctx, "u1", "MIT", models.StatusSubmitted)
	if err := store.UpdateStatus(ctx, a.ID, models.StatusAccepted); err != nil {
		t.Fatalf("UpdateStatus failed: %v", err)
	}

	raw, err := rs.Get(ctx, remote.DocRef{Collection: models.ApplicationsCollection, ID: a.ID})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	got, err := models.Decode[models.Application](models.ApplicationsCollection, a.ID, raw)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if got.Status != models.StatusAccepted {
		t.Errorf("status = %q, want Accepted", got.Status)
	}
	if got.University != "MIT" {
		t.Errorf("update clobbered other fields: %+v", got)
	}
}

func TestStore_UpdateStatus_Errors(t *testing.T) {
	store := applicationstore.New(testutil.NewMemStore(t))
	ctx := testutil.Ctx(t)

	if err := store.UpdateStatus(ctx, "x", models.ApplicationStatus("Waitlisted")); !errors.Is(err, applicationstore.ErrBadStatus) {
		t.Errorf("expected ErrBadStatus, got %v", err)
	}
	if err := store.UpdateStatus(ctx, "missing", models.StatusRejected); !errors.Is(err, remote.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestForUserQuery(t *testing.T) {
	q := applicationstore.ForUserQuery("u7")
	if q.Filter["user_id"] != "u7" {
		t.Errorf("filter = %v", q.Filter)
	}
	if all := applicationstore.AllQuery(); all.Filter != nil {
		t.Errorf("AllQuery should not filter, got %v", all.Filter)
	}
}
