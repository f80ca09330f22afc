// internal/app/features/admin/panel.go
package admin

import (
	"context"
	"fmt"
	"sync"

	applicationstore "github.com/dalemusser/admitdesk/internal/app/store/applications"
	eventstore "github.com/dalemusser/admitdesk/internal/app/store/events"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

// UnknownEmail stands in for the owner of an application whose user record
// is not in the users mirror.
const UnknownEmail = "Unknown"

// Stats are the panel totals.
type Stats struct {
	Users        int `json:"users"`
	Applications int `json:"applications"`
	Accepted     int `json:"accepted"`
}

// ApplicationRow is an application joined with its owner's email.
type ApplicationRow struct {
	models.Application
	UserEmail string `json:"user_email"`
}

// View is the derived admin panel. Loaded is false until all four mirrors
// have delivered.
type View struct {
	Loaded       bool             `json:"loaded"`
	Stats        Stats            `json:"stats"`
	Users        []models.User    `json:"users"`
	Applications []ApplicationRow `json:"applications"`
	GlobalEvents []models.Event   `json:"global_events"`
	PublicEvents []models.Event   `json:"public_events"`
}

// Panel owns the four independent mirrors behind the admin panel.
type Panel struct {
	users  *livemirror.Mirror[models.User]
	apps   *livemirror.Mirror[models.Application]
	global *livemirror.Mirror[models.Event]
	public *livemirror.Mirror[models.Event]

	// mu orders view computation with delivery so a view built from older
	// snapshots never follows a newer one.
	mu sync.Mutex
}

func userBefore(a, b models.User) bool {
	if a.Email != b.Email {
		return a.Email < b.Email
	}
	return a.ID < b.ID
}

func applicationBefore(a, b models.Application) bool {
	if a.University != b.University {
		return a.University < b.University
	}
	return a.ID < b.ID
}

// OpenPanel subscribes all four mirrors. If any fails to open, the ones
// already open are closed.
func OpenPanel(ctx context.Context, rs remote.Store, logger *zap.Logger, m *metrics.Collector) (*Panel, error) {
	p := &Panel{}
	var err error

	p.users, err = livemirror.Open[models.User](ctx, rs, userstore.AllQuery(),
		models.Decoder[models.User](models.UsersCollection),
		livemirror.Options[models.User]{Name: "admin_users", Less: userBefore, Log: logger, Metrics: m})
	if err != nil {
		return nil, fmt.Errorf("open users: %w", err)
	}

	p.apps, err = livemirror.Open[models.Application](ctx, rs, applicationstore.AllQuery(),
		models.Decoder[models.Application](models.ApplicationsCollection),
		livemirror.Options[models.Application]{Name: "admin_applications", Less: applicationBefore, Log: logger, Metrics: m})
	if err != nil {
		p.Close()
		return nil, fmt.Errorf("open applications: %w", err)
	}

	p.global, err = openEvents(ctx, rs, models.GlobalEvents, "admin_global_events", logger, m)
	if err != nil {
		p.Close()
		return nil, err
	}
	p.public, err = openEvents(ctx, rs, models.PublicEvents, "admin_public_events", logger, m)
	if err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

func openEvents(ctx context.Context, rs remote.Store, kind models.EventKind, name string, logger *zap.Logger, m *metrics.Collector) (*livemirror.Mirror[models.Event], error) {
	mr, err := livemirror.Open[models.Event](ctx, rs, eventstore.Query(kind),
		models.Decoder[models.Event](kind.Collection()),
		livemirror.Options[models.Event]{Name: name, Less: models.EventBefore, Log: logger, Metrics: m})
	if err != nil {
		return nil, fmt.Errorf("open %s events: %w", kind, err)
	}
	return mr, nil
}

// View derives the panel from the mirrors' current snapshots.
func (p *Panel) View() View {
	return Derive(p.users.Current(), p.apps.Current(), p.global.Current(), p.public.Current())
}

// Derive computes the panel view from four snapshots.
func Derive(users livemirror.Snapshot[models.User], apps livemirror.Snapshot[models.Application],
	global, public livemirror.Snapshot[models.Event]) View {

	v := View{
		Loaded:       users.Loaded && apps.Loaded && global.Loaded && public.Loaded,
		Users:        users.Values(),
		GlobalEvents: global.Values(),
		PublicEvents: public.Values(),
		Applications: make([]ApplicationRow, 0, apps.Len()),
	}

	emails := make(map[string]string, users.Len())
	for _, u := range v.Users {
		emails[u.ID] = u.Email
	}
	for _, a := range apps.Values() {
		email, ok := emails[a.UserID]
		if !ok || email == "" {
			email = UnknownEmail
		}
		if a.Status == models.StatusAccepted {
			v.Stats.Accepted++
		}
		v.Applications = append(v.Applications, ApplicationRow{Application: a, UserEmail: email})
	}
	v.Stats.Users = users.Len()
	v.Stats.Applications = apps.Len()
	return v
}

// WaitLoaded blocks until every mirror has delivered once.
func (p *Panel) WaitLoaded(ctx context.Context) (View, error) {
	if _, err := p.users.WaitLoaded(ctx); err != nil {
		return View{}, err
	}
	if _, err := p.apps.WaitLoaded(ctx); err != nil {
		return View{}, err
	}
	if _, err := p.global.WaitLoaded(ctx); err != nil {
		return View{}, err
	}
	if _, err := p.public.WaitLoaded(ctx); err != nil {
		return View{}, err
	}
	return p.View(), nil
}

// Watch calls update with a fresh view after any mirror delivers, and fail
// when any of them fails. It satisfies livesock.Feed.
func (p *Panel) Watch(update func(any), fail func(error)) func() {
	emit := func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		update(p.View())
	}
	offs := []func(){
		p.users.OnUpdate(func(livemirror.Snapshot[models.User]) { emit() }),
		p.apps.OnUpdate(func(livemirror.Snapshot[models.Application]) { emit() }),
		p.global.OnUpdate(func(livemirror.Snapshot[models.Event]) { emit() }),
		p.public.OnUpdate(func(livemirror.Snapshot[models.Event]) { emit() }),
		p.users.OnError(fail),
		p.apps.OnError(fail),
		p.global.OnError(fail),
		p.public.OnError(fail),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Close releases all four subscriptions. It is safe to call more than once.
func (p *Panel) Close() {
	if p.users != nil {
		p.users.Close()
	}
	if p.apps != nil {
		p.apps.Close()
	}
	if p.global != nil {
		p.global.Close()
	}
	if p.public != nil {
		p.public.Close()
	}
}
