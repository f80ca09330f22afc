// internal/app/system/ratelimit/ratelimit.go
package ratelimit

import (
	"math"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter is a set of token buckets keyed by caller (sender id, IP, email).
// Idle buckets are dropped after twice the refill time of a full bucket.
// It is safe for concurrent use.
type Limiter struct {
	every rate.Limit
	burst int
	idle  time.Duration

	mu      sync.Mutex
	buckets map[string]*bucket

	stopOnce sync.Once
	stopCh   chan struct{}
}

type bucket struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// New allows burst events at once per key, refilled at limit events per
// period.
func New(limit int, period time.Duration) *Limiter {
	if limit < 1 {
		limit = 1
	}
	every := rate.Limit(float64(limit) / period.Seconds())
	l := &Limiter{
		every:   every,
		burst:   limit,
		idle:    2 * period,
		buckets: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	go l.cleanupLoop()
	return l
}

// Allow reports whether one more event for key may happen now.
func (l *Limiter) Allow(key string) bool {
	return l.bucket(key).Allow()
}

// RetryAfter estimates how long a refused caller should wait, in whole
// seconds, never less than one.
func (l *Limiter) RetryAfter() int {
	s := int(math.Ceil(1.0 / float64(l.every)))
	if s < 1 {
		s = 1
	}
	return s
}

// Reset forgets key.
func (l *Limiter) Reset(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.buckets, key)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// Stop ends the cleanup goroutine.
func (l *Limiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Limiter) bucket(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{lim: rate.NewLimiter(l.every, l.burst)}
		l.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.lim
}

func (l *Limiter) cleanupLoop() {
	ticker := time.NewTicker(l.idle)
	defer ticker.Stop()
	for {
		select {
		case <-l.stopCh:
			return
		case now := <-ticker.C:
			l.mu.Lock()
			for key, b := range l.buckets {
				if now.Sub(b.lastSeen) > l.idle {
					delete(l.buckets, key)
				}
			}
			l.mu.Unlock()
		}
	}
}

// ClientIP extracts the client IP from an HTTP request.
// It checks X-Forwarded-For and X-Real-IP headers first (for proxied requests),
// then falls back to RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// LoginLimiter limits sign-in attempts both per IP and per email, so neither
// a distributed attack on one account nor one host probing many accounts
// gets far.
type LoginLimiter struct {
	ip    *Limiter
	email *Limiter
}

// NewLoginLimiter allows 10 attempts per IP per minute and 5 per email per
// 5 minutes.
func NewLoginLimiter() *LoginLimiter {
	return &LoginLimiter{
		ip:    New(10, time.Minute),
		email: New(5, 5*time.Minute),
	}
}

// Check reports whether a sign-in attempt may proceed, and if not, the
// message to show.
func (ll *LoginLimiter) Check(r *http.Request, email string) (bool, string) {
	if !ll.ip.Allow(ClientIP(r)) {
		return false, "Too many login attempts. Please wait a minute before trying again."
	}
	if email != "" && !ll.email.Allow(strings.ToLower(strings.TrimSpace(email))) {
		return false, "Too many login attempts for this account. Please wait a few minutes."
	}
	return true, ""
}

// ResetEmail clears the per-email count after a successful sign-in.
func (ll *LoginLimiter) ResetEmail(email string) {
	if email != "" {
		ll.email.Reset(strings.ToLower(strings.TrimSpace(email)))
	}
}

func (ll *LoginLimiter) Stop() {
	ll.ip.Stop()
	ll.email.Stop()
}
