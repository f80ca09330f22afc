// Package session resolves who the current client is and what they may do.
//
// A Machine combines an identity.Provider with one live subscription to the
// signed-in principal's role record and publishes a single State. Every
// input (identity changes, role deliveries, provisioning results) is handled
// on one goroutine, and each role subscription is tagged with the sign-in it
// belongs to, so nothing read for a previous identity can reach the state
// after the identity changes.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

// ErrStopped is returned by WaitReady when the machine is closed first.
var ErrStopped = errors.New("session machine stopped")

// Provisioner creates a principal's role record if it does not exist.
type Provisioner interface {
	Provision(ctx context.Context, principalID, email string) (remote.CreateResult, error)
}

// Options configures a Machine.
type Options struct {
	// Provisioner defaults to the users store over the machine's store.
	Provisioner Provisioner

	// ProvisionTimeout bounds the create-if-absent write. Default 10s.
	ProvisionTimeout time.Duration

	Log     *zap.Logger
	Metrics *metrics.Collector
}

// Machine is the session state machine for one client.
type Machine struct {
	provider identity.Provider
	store    remote.Store
	prov     Provisioner
	provTTL  time.Duration
	log      *zap.Logger
	metrics  *metrics.Collector

	events chan event

	mu       sync.Mutex
	state    State
	watchers map[int]chan State
	nextW    int
	started  bool
	stopped  bool

	cancel context.CancelFunc
	done   chan struct{}
	wg     sync.WaitGroup
}

// New returns a machine that has not started. Its state is Starting until
// the provider reports.
func New(provider identity.Provider, store remote.Store, opts Options) *Machine {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Provisioner == nil {
		opts.Provisioner = userstore.New(store)
	}
	if opts.ProvisionTimeout <= 0 {
		opts.ProvisionTimeout = 10 * time.Second
	}
	return &Machine{
		provider: provider,
		store:    store,
		prov:     opts.Provisioner,
		provTTL:  opts.ProvisionTimeout,
		log:      opts.Log,
		metrics:  opts.Metrics,
		events:   make(chan event),
		watchers: make(map[int]chan State),
		done:     make(chan struct{}),
	}
}

// Start subscribes to the identity provider and begins resolving. The
// machine runs until ctx ends or Close is called.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started || m.stopped {
		m.mu.Unlock()
		return errors.New("session machine already started")
	}
	m.started = true
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	idents, err := m.provider.SubscribeAuthState(ctx)
	if err != nil {
		cancel()
		close(m.done)
		return fmt.Errorf("subscribe auth state: %w", err)
	}
	m.cancel = cancel
	m.metrics.SessionStarted()

	go m.run(ctx, idents)
	return nil
}

// event is one input to the loop, tagged with the sign-in generation it
// was produced for.
type event struct {
	gen       uint64
	role      *livemirror.DocSnapshot[models.User]
	roleErr   error
	provision *provisionResult
}

type provisionResult struct {
	res remote.CreateResult
	err error
}

// signIn is the per-identity part of the loop state.
//
// Role deliveries reach the loop through inbox, a one-slot latest-wins
// mailbox. Its only producer is the role mirror, whose callbacks never run
// concurrently, so offer never blocks; this matters because a mirror that
// has already loaded calls a new OnUpdate callback on the registering
// goroutine, which here is the loop itself.
type signIn struct {
	gen         uint64
	id          *identity.Identity
	mirror      *livemirror.DocMirror[models.User]
	inbox       chan event
	done        chan struct{}
	provisioned bool
}

func (s *signIn) offer(ev event) {
	select {
	case <-s.inbox:
	default:
	}
	s.inbox <- ev
}

// close releases the role subscription. Anything still in the inbox is
// abandoned with it.
func (s *signIn) close() {
	close(s.done)
	if s.mirror != nil {
		s.mirror.Close()
	}
}

func (m *Machine) run(ctx context.Context, idents <-chan *identity.Identity) {
	defer close(m.done)

	var (
		gen   uint64
		cur   *signIn
		inbox chan event
	)
	defer func() {
		if cur != nil {
			cur.close()
		}
		m.wg.Wait()
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case id, ok := <-idents:
			if !ok {
				// The provider went away. Keep the last state; there is
				// nothing left that could change it.
				if ctx.Err() == nil {
					m.log.Warn("identity provider closed its stream")
				}
				idents = nil
				continue
			}
			if cur != nil {
				cur.close()
				cur, inbox = nil, nil
			}
			gen++
			if id == nil {
				m.publish(signedOut())
				continue
			}
			cur = m.openRole(ctx, gen, id)
			inbox = cur.inbox

		case ev := <-inbox:
			m.handle(ctx, cur, ev)

		case ev := <-m.events:
			if cur == nil || ev.gen != cur.gen {
				m.metrics.StaleDropped()
				continue
			}
			m.handle(ctx, cur, ev)
		}
	}
}

func (m *Machine) openRole(ctx context.Context, gen uint64, id *identity.Identity) *signIn {
	si := &signIn{gen: gen, id: id, inbox: make(chan event, 1), done: make(chan struct{})}
	m.publish(roleUnknown(id))

	mirror, err := livemirror.OpenDocument[models.User](ctx, m.store, userstore.Ref(id.ID),
		models.Decoder[models.User](models.UsersCollection),
		livemirror.DocOptions{Name: "session_role", Log: m.log, Metrics: m.metrics})
	if err != nil {
		m.log.Error("open role subscription", zap.String("principal", id.ID), zap.Error(err))
		m.publish(failed(err))
		return si
	}
	si.mirror = mirror

	mirror.OnUpdate(func(s livemirror.DocSnapshot[models.User]) {
		si.offer(event{gen: gen, role: &s})
	})
	mirror.OnError(func(err error) {
		si.offer(event{gen: gen, roleErr: err})
	})
	return si
}

func (m *Machine) handle(ctx context.Context, si *signIn, ev event) {
	switch {
	case ev.roleErr != nil:
		m.log.Error("role subscription failed", zap.String("principal", si.id.ID), zap.Error(ev.roleErr))
		m.publish(failed(ev.roleErr))

	case ev.role != nil:
		if ev.role.Exists {
			si.provisioned = false
			m.publish(resolved(si.id, ev.role.Value.Role))
			return
		}
		if si.provisioned {
			return
		}
		// Absent: back to unresolved, and create the record once until it
		// shows up.
		si.provisioned = true
		if m.State().Ready {
			m.publish(roleUnknown(si.id))
		}
		m.provision(ctx, si)

	case ev.provision != nil:
		r := ev.provision
		if r.err != nil {
			m.metrics.Provisioned("error")
			m.log.Error("provision role record", zap.String("principal", si.id.ID), zap.Error(r.err))
			m.publish(failed(r.err))
			return
		}
		m.metrics.Provisioned(r.res.String())
		m.log.Info("role record provisioned",
			zap.String("principal", si.id.ID),
			zap.String("result", r.res.String()))
	}
}

// provision issues the create-if-absent write off the loop. The state stays
// RoleUnknown until the record arrives on the role subscription.
func (m *Machine) provision(ctx context.Context, si *signIn) {
	gen, done, id := si.gen, si.done, *si.id
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		pctx, cancel := context.WithTimeout(ctx, m.provTTL)
		res, err := m.prov.Provision(pctx, id.ID, id.Email)
		cancel()
		m.post(done, event{gen: gen, provision: &provisionResult{res: res, err: err}})
	}()
}

func (m *Machine) post(done <-chan struct{}, ev event) {
	select {
	case m.events <- ev:
	case <-done:
		m.metrics.StaleDropped()
	}
}

func (m *Machine) publish(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = s
	for _, ch := range m.watchers {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
	m.metrics.Transition(s.Phase().String())
	m.log.Debug("session state",
		zap.String("phase", s.Phase().String()),
		zap.String("principal", s.ViewerID()),
		zap.String("role", string(s.Role)))
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe streams the current state and then every change until ctx
// ends or the machine closes. A slow reader sees only the latest state.
func (m *Machine) Subscribe(ctx context.Context) <-chan State {
	ch := make(chan State, 1)

	m.mu.Lock()
	if m.stopped {
		ch <- m.state
		close(ch)
		m.mu.Unlock()
		return ch
	}
	ch <- m.state
	id := m.nextW
	m.nextW++
	m.watchers[id] = ch
	m.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
		case <-m.done:
		}
		m.mu.Lock()
		defer m.mu.Unlock()
		if w, ok := m.watchers[id]; ok {
			delete(m.watchers, id)
			close(w)
		}
	}()
	return ch
}

// WaitReady blocks until the state is ready and returns it.
func (m *Machine) WaitReady(ctx context.Context) (State, error) {
	if s := m.State(); s.Ready {
		return s, nil
	}
	sctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for s := range m.Subscribe(sctx) {
		if s.Ready {
			return s, nil
		}
	}
	if err := ctx.Err(); err != nil {
		return m.State(), err
	}
	return m.State(), ErrStopped
}

// Close stops the machine and releases its role subscription.
func (m *Machine) Close() {
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		return
	}
	m.stopped = true
	started := m.started
	m.mu.Unlock()

	if !started {
		close(m.done)
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.metrics.SessionStopped()
	}
	<-m.done
}

// Done is closed once the machine has stopped.
func (m *Machine) Done() <-chan struct{} { return m.done }
