// Package timeouts bounds the one-shot I/O a request performs.
//
// A live mirror has no deadline: it runs until its owner closes it. What a
// request can wait on is a single write or the first delivery of a mirror it
// opened, and those waits are sized by tier:
//
//   - Ping: the store liveness check behind /health
//   - Short: one write (a chat message, an admin change, an audit record),
//     and the first delivery of the public events listing
//   - Medium: the first delivery of every mirror behind a page such as the
//     admin panel, the dashboard, or a conversation
//   - Long: connecting and building indexes at startup
//
// Short and Medium come from config; Ping and Long keep their defaults unless
// a caller overrides them.
package timeouts

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultPing   = 2 * time.Second
	DefaultShort  = 5 * time.Second
	DefaultMedium = 10 * time.Second
	DefaultLong   = 30 * time.Second
)

// Config is one value per tier. In Configure a zero field keeps the tier as
// it is.
type Config struct {
	Ping   time.Duration
	Short  time.Duration
	Medium time.Duration
	Long   time.Duration
}

func defaults() Config {
	return Config{Ping: DefaultPing, Short: DefaultShort, Medium: DefaultMedium, Long: DefaultLong}
}

var (
	mu     sync.RWMutex
	active = defaults()
)

func get(pick func(Config) time.Duration) time.Duration {
	mu.RLock()
	defer mu.RUnlock()
	return pick(active)
}

func Ping() time.Duration   { return get(func(c Config) time.Duration { return c.Ping }) }
func Short() time.Duration  { return get(func(c Config) time.Duration { return c.Short }) }
func Medium() time.Duration { return get(func(c Config) time.Duration { return c.Medium }) }
func Long() time.Duration   { return get(func(c Config) time.Duration { return c.Long }) }

// Configure overrides the non-zero tiers of cfg.
func Configure(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	for _, t := range []struct {
		dst *time.Duration
		v   time.Duration
	}{
		{&active.Ping, cfg.Ping},
		{&active.Short, cfg.Short},
		{&active.Medium, cfg.Medium},
		{&active.Long, cfg.Long},
	} {
		if t.v > 0 {
			*t.dst = t.v
		}
	}
}

// Reset restores the defaults. Tests use it in cleanup.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	active = defaults()
}

// Current returns the tiers in effect.
func Current() Config {
	mu.RLock()
	defer mu.RUnlock()
	return active
}

// WithTimeout bounds one operation. If the deadline is what ended it, the
// returned cancel logs a warning naming the operation.
//
//	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "chat send")
//	defer cancel()
func WithTimeout(parent context.Context, timeout time.Duration, log *zap.Logger, operation string) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, timeout)
	return ctx, func() {
		if log != nil && errors.Is(ctx.Err(), context.DeadlineExceeded) {
			log.Warn("operation timed out",
				zap.String("operation", operation),
				zap.Duration("timeout", timeout),
			)
		}
		cancel()
	}
}
