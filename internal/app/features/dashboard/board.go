// internal/app/features/dashboard/board.go
package dashboard

import (
	"context"
	"fmt"
	"sync"

	applicationstore "github.com/dalemusser/admitdesk/internal/app/store/applications"
	eventstore "github.com/dalemusser/admitdesk/internal/app/store/events"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

// View is one user's dashboard.
type View struct {
	Loaded       bool                 `json:"loaded"`
	Superadmin   bool                 `json:"superadmin"`
	Applications []models.Application `json:"applications"`
	Events       []models.Event       `json:"events"`
}

// Board mirrors the viewer's applications and the global events.
type Board struct {
	superadmin bool
	apps       *livemirror.Mirror[models.Application]
	events     *livemirror.Mirror[models.Event]

	mu sync.Mutex
}

// OpenBoard subscribes the two dashboard mirrors for userID.
func OpenBoard(ctx context.Context, rs remote.Store, userID string, superadmin bool, logger *zap.Logger, m *metrics.Collector) (*Board, error) {
	apps, err := livemirror.Open[models.Application](ctx, rs, applicationstore.ForUserQuery(userID),
		models.Decoder[models.Application](models.ApplicationsCollection),
		livemirror.Options[models.Application]{
			Name: "dashboard_applications",
			Less: func(a, b models.Application) bool {
				if a.University != b.University {
					return a.University < b.University
				}
				return a.ID < b.ID
			},
			Filter:  func(a models.Application) bool { return a.UserID == userID },
			Log:     logger,
			Metrics: m,
		})
	if err != nil {
		return nil, fmt.Errorf("open applications: %w", err)
	}

	events, err := livemirror.Open[models.Event](ctx, rs, eventstore.Query(models.GlobalEvents),
		models.Decoder[models.Event](models.GlobalEvents.Collection()),
		livemirror.Options[models.Event]{Name: "dashboard_events", Less: models.EventBefore, Log: logger, Metrics: m})
	if err != nil {
		apps.Close()
		return nil, fmt.Errorf("open global events: %w", err)
	}
	return &Board{superadmin: superadmin, apps: apps, events: events}, nil
}

// View returns the board built from the current snapshots.
func (b *Board) View() View {
	a, e := b.apps.Current(), b.events.Current()
	return View{
		Loaded:       a.Loaded && e.Loaded,
		Superadmin:   b.superadmin,
		Applications: a.Values(),
		Events:       e.Values(),
	}
}

// WaitLoaded blocks until both mirrors have delivered.
func (b *Board) WaitLoaded(ctx context.Context) (View, error) {
	if _, err := b.apps.WaitLoaded(ctx); err != nil {
		return View{}, err
	}
	if _, err := b.events.WaitLoaded(ctx); err != nil {
		return View{}, err
	}
	return b.View(), nil
}

// Watch satisfies livesock.Feed.
func (b *Board) Watch(update func(any), fail func(error)) func() {
	emit := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		update(b.View())
	}
	offs := []func(){
		b.apps.OnUpdate(func(livemirror.Snapshot[models.Application]) { emit() }),
		b.events.OnUpdate(func(livemirror.Snapshot[models.Event]) { emit() }),
		b.apps.OnError(fail),
		b.events.OnError(fail),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Close releases both subscriptions.
func (b *Board) Close() {
	b.apps.Close()
	b.events.Close()
}
