// internal/app/system/workers/clientreaper.go
package workers

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

// Reaper is what ClientReaper sweeps. session.Manager satisfies it.
type Reaper interface {
	Reap(idle time.Duration) int
}

// ClientReaper is a background worker that closes session clients whose
// browser has not been seen for a while, releasing their role
// subscriptions.
type ClientReaper struct {
	clients  Reaper
	log      *zap.Logger
	interval time.Duration
	idle     time.Duration
	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewClientReaper sweeps every interval and closes clients idle for longer
// than idle.
func NewClientReaper(clients Reaper, logger *zap.Logger, interval, idle time.Duration) *ClientReaper {
	return &ClientReaper{
		clients:  clients,
		log:      logger,
		interval: interval,
		idle:     idle,
		stopCh:   make(chan struct{}),
	}
}

// Start begins the background loop.
func (w *ClientReaper) Start() {
	w.wg.Add(1)
	go w.run()
	w.log.Info("client reaper started",
		zap.Duration("interval", w.interval),
		zap.Duration("idle", w.idle))
}

// Stop signals the worker to stop and waits for it to finish. Safe to call
// more than once.
func (w *ClientReaper) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()
	w.log.Info("client reaper stopped")
}

func (w *ClientReaper) run() {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *ClientReaper) sweep() {
	if n := w.clients.Reap(w.idle); n > 0 {
		w.log.Info("closed idle session clients", zap.Int("count", n))
	}
}
