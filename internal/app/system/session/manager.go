package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"go.uber.org/zap"
)

// ErrManagerClosed is returned by Get after Close.
var ErrManagerClosed = errors.New("session manager closed")

// Client is one browser client: its identity source and the machine that
// resolves it.
type Client struct {
	ID       string
	Identity *identity.Client
	Machine  *Machine

	lastSeen atomic.Int64
	attached atomic.Int32
}

// State returns the client's current session state.
func (c *Client) State() State { return c.Machine.State() }

// Touch marks the client as active.
func (c *Client) Touch() { c.lastSeen.Store(time.Now().UnixNano()) }

// Attach pins the client against reaping until the returned function is
// called. Live sockets hold one for as long as they are open.
func (c *Client) Attach() (detach func()) {
	c.attached.Add(1)
	var once sync.Once
	return func() {
		once.Do(func() {
			c.attached.Add(-1)
			c.Touch()
		})
	}
}

func (c *Client) idleSince(now time.Time) time.Duration {
	return now.Sub(time.Unix(0, c.lastSeen.Load()))
}

func (c *Client) close() {
	c.Machine.Close()
	c.Identity.Close()
}

// Manager owns one Client per client id. Clients are created on first use
// and live until they are reaped or the manager closes.
type Manager struct {
	store remote.Store
	opts  Options

	mu      sync.Mutex
	clients map[string]*Client
	closed  bool
}

func NewManager(store remote.Store, opts Options) *Manager {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	return &Manager{
		store:   store,
		opts:    opts,
		clients: make(map[string]*Client),
	}
}

// Get returns the client for id, starting a new one if needed.
func (m *Manager) Get(id string) (*Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil, ErrManagerClosed
	}
	if c, ok := m.clients[id]; ok {
		c.Touch()
		return c, nil
	}

	ic := identity.NewClient()
	mc := New(ic, m.store, m.opts)
	if err := mc.Start(context.Background()); err != nil {
		ic.Close()
		return nil, err
	}
	c := &Client{ID: id, Identity: ic, Machine: mc}
	c.Touch()
	m.clients[id] = c
	return c, nil
}

// Lookup returns the client for id without creating one.
func (m *Manager) Lookup(id string) (*Client, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	return c, ok
}

// Len returns the number of live clients.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clients)
}

// Reap closes clients that have been idle for longer than idle and returns
// how many it closed. Attached clients are never idle.
func (m *Manager) Reap(idle time.Duration) int {
	now := time.Now()
	var stale []*Client

	m.mu.Lock()
	for id, c := range m.clients {
		if c.attached.Load() == 0 && c.idleSince(now) > idle {
			stale = append(stale, c)
			delete(m.clients, id)
		}
	}
	m.mu.Unlock()

	for _, c := range stale {
		c.close()
	}
	return len(stale)
}

// Close stops every client.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*Client, 0, len(m.clients))
	for id, c := range m.clients {
		all = append(all, c)
		delete(m.clients, id)
	}
	m.mu.Unlock()

	for _, c := range all {
		c.close()
	}
	m.opts.Log.Info("session manager closed", zap.Int("clients", len(all)))
}

// NewFixedClient returns a client whose machine never runs and always
// reports s. Handler tests use it to stand in for a resolved session.
func NewFixedClient(id string, s State) *Client {
	ic := identity.NewClient()
	if s.Identity != nil {
		_ = ic.SignIn(*s.Identity)
	}
	m := New(ic, nil, Options{Provisioner: noProvision{}})
	m.state = s
	c := &Client{ID: id, Identity: ic, Machine: m}
	c.Touch()
	return c
}

type noProvision struct{}

func (noProvision) Provision(context.Context, string, string) (remote.CreateResult, error) {
	return 0, errors.New("fixed client cannot provision")
}
