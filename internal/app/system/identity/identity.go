// Package identity describes who is signed in.
//
// A Provider streams the signed-in identity of one client: the current value
// first, then every change, with nil meaning signed out. Client is the
// in-process Provider the HTTP layer drives; the login, Google and logout
// handlers call SignIn and SignOut on it, and the session machine listens.
package identity

import (
	"context"
	"errors"
	"strings"
	"sync"
)

// ErrClosed is returned by a Client that has been closed.
var ErrClosed = errors.New("identity client closed")

// Identity is a signed-in principal. It does not change for the lifetime of
// a sign-in.
type Identity struct {
	ID    string `json:"id"`
	Email string `json:"email,omitempty"`
}

// LocalPart returns the part of the email before the @, or the whole email
// if it has none.
func (i Identity) LocalPart() string {
	if at := strings.IndexByte(i.Email, '@'); at >= 0 {
		return i.Email[:at]
	}
	return i.Email
}

// Provider is the source of sign-in state for one client.
type Provider interface {
	// SubscribeAuthState streams the current identity and then each change
	// until ctx ends. Values are latest-wins: a slow reader may miss an
	// intermediate identity but always sees the newest one.
	SubscribeAuthState(ctx context.Context) (<-chan *Identity, error)

	// SignOut ends the current sign-in.
	SignOut(ctx context.Context) error
}

// Client is an in-process Provider for one browser client.
type Client struct {
	mu      sync.Mutex
	current *Identity
	subs    map[int]chan *Identity
	next    int
	closed  bool
}

// NewClient returns a signed-out client.
func NewClient() *Client {
	return &Client{subs: make(map[int]chan *Identity)}
}

var _ Provider = (*Client)(nil)

// SignIn makes id the current identity. Signing in as the identity that is
// already current is a no-op.
func (c *Client) SignIn(id Identity) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.current != nil && *c.current == id {
		return nil
	}
	v := id
	c.current = &v
	c.broadcast(&v)
	return nil
}

// SignOut implements Provider.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.current == nil {
		return nil
	}
	c.current = nil
	c.broadcast(nil)
	return nil
}

// Current returns the signed-in identity, or nil.
func (c *Client) Current() *Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil
	}
	v := *c.current
	return &v
}

// SubscribeAuthState implements Provider.
func (c *Client) SubscribeAuthState(ctx context.Context) (<-chan *Identity, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, ErrClosed
	}

	ch := make(chan *Identity, 1)
	ch <- c.current
	id := c.next
	c.next++
	c.subs[id] = ch

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}()
	return ch, nil
}

// Close ends every subscription.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
}

// broadcast replaces whatever each subscriber has not yet read with v.
// Callers hold c.mu, which makes this the only sender.
func (c *Client) broadcast(v *Identity) {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- v
	}
}
