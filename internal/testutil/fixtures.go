package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx, ok := r.Context().Value(chi.RouteCtxKey).(*chi.Context)
	if !ok || rctx == nil {
		rctx = chi.NewRouteContext()
	}
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	rs remote.Store
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given store.
func NewFixtures(t *testing.T, rs remote.Store) *Fixtures {
	t.Helper()
	return &Fixtures{rs: rs, t: t}
}

// Store returns the underlying store for direct access in tests.
func (f *Fixtures) Store() remote.Store {
	return f.rs
}

// CreateUser writes a role record for principal id.
func (f *Fixtures) CreateUser(ctx context.Context, id, email string, role models.Role) models.User {
	f.t.Helper()
	now := time.Now().UTC()
	u := models.User{ID: id, Email: email, Role: role, CreatedAt: now, UpdatedAt: now}
	if _, err := f.rs.CreateIfAbsent(ctx, remote.DocRef{Collection: models.UsersCollection, ID: id}, u); err != nil {
		f.t.Fatalf("failed to create user: %v", err)
	}
	return u
}

// CreateApplication adds an application owned by userID.
func (f *Fixtures) CreateApplication(ctx context.Context, userID, university string, status models.ApplicationStatus) models.Application {
	f.t.Helper()
	a := models.Application{University: university, Program: "BSc", Status: status, UserID: userID}
	id, err := f.rs.Add(ctx, models.ApplicationsCollection, a)
	if err != nil {
		f.t.Fatalf("failed to create application: %v", err)
	}
	a.ID = id
	return a
}

// CreateEvent adds an event to the collection for kind.
func (f *Fixtures) CreateEvent(ctx context.Context, kind models.EventKind, title string, typ models.EventType, date string) models.Event {
	f.t.Helper()
	e := models.Event{Title: title, Type: typ, Date: date}
	id, err := f.rs.Add(ctx, kind.Collection(), e, "created_at")
	if err != nil {
		f.t.Fatalf("failed to create event: %v", err)
	}
	e.ID = id
	return e
}
