package livemirror

import (
	"context"
	"errors"
	"sync"

	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"go.uber.org/zap"
)

// ErrMirrorClosed is returned by WaitLoaded once the mirror has been closed.
var ErrMirrorClosed = errors.New("mirror closed")

type updateSub[S any] struct {
	id int
	fn func(S)
}

type errorSub struct {
	id int
	fn func(error)
}

// hub is the dispatch machinery shared by collection and document mirrors.
//
// dispatchMu is held for the whole of one delivery, from applying the batch
// to the last callback, and Close takes it after marking the mirror closed.
// Once Close returns no callback is running and none will start.
type hub[S any] struct {
	name    string
	log     *zap.Logger
	metrics *metrics.Collector
	cancel  context.CancelFunc

	mu     sync.Mutex
	closed bool
	err    error

	stateMu sync.RWMutex
	loaded  bool
	current S

	dispatchMu sync.Mutex
	nextSub    int
	updates    []updateSub[S]
	errs       []errorSub

	loadedCh chan struct{}
	failedCh chan struct{}
	closedCh chan struct{}
}

func newHub[S any](name string, log *zap.Logger, m *metrics.Collector, cancel context.CancelFunc) *hub[S] {
	if log == nil {
		log = zap.NewNop()
	}
	return &hub[S]{
		name:     name,
		log:      log,
		metrics:  m,
		cancel:   cancel,
		loadedCh: make(chan struct{}),
		failedCh: make(chan struct{}),
		closedCh: make(chan struct{}),
	}
}

func (h *hub[S]) isClosed() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.closed
}

func (h *hub[S]) failure() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// deliver applies one delivery and fans the result out. A delivery that
// arrives after Close, or after the mirror failed, is dropped.
func (h *hub[S]) deliver(apply func() (S, error)) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()

	if h.isClosed() || h.failure() != nil {
		h.metrics.DeliveryDropped(h.name)
		return
	}
	snap, err := apply()
	if err != nil {
		h.failLocked(err)
		return
	}

	h.stateMu.Lock()
	first := !h.loaded
	h.loaded = true
	h.current = snap
	h.stateMu.Unlock()
	if first {
		close(h.loadedCh)
	}
	h.metrics.BatchApplied(h.name)

	for _, s := range h.updates {
		if h.isClosed() {
			return
		}
		s.fn(snap)
	}
}

// fail terminates the mirror with err.
func (h *hub[S]) fail(err error) {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	if h.isClosed() {
		h.metrics.DeliveryDropped(h.name)
		return
	}
	h.failLocked(err)
}

func (h *hub[S]) failLocked(err error) {
	h.mu.Lock()
	if h.err != nil {
		h.mu.Unlock()
		return
	}
	h.err = err
	h.mu.Unlock()

	h.cancel()
	close(h.failedCh)
	h.metrics.MirrorFailed(h.name)
	h.log.Warn("live mirror stopped", zap.String("mirror", h.name), zap.Error(err))

	for _, s := range h.errs {
		s.fn(err)
	}
}

// close releases the subscription and waits for any in-flight delivery to
// finish. It reports whether this call did the closing.
func (h *hub[S]) close() bool {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return false
	}
	h.closed = true
	h.mu.Unlock()
	close(h.closedCh)

	h.cancel()
	h.dispatchMu.Lock()
	h.updates = nil
	h.errs = nil
	h.dispatchMu.Unlock()

	h.metrics.MirrorClosed(h.name)
	return true
}

func (h *hub[S]) onUpdate(fn func(S)) func() {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	if h.isClosed() {
		return func() {}
	}

	id := h.nextSub
	h.nextSub++
	h.updates = append(h.updates, updateSub[S]{id: id, fn: fn})

	h.stateMu.RLock()
	loaded, cur := h.loaded, h.current
	h.stateMu.RUnlock()
	if loaded {
		fn(cur)
	}

	return func() {
		h.dispatchMu.Lock()
		defer h.dispatchMu.Unlock()
		for i, s := range h.updates {
			if s.id == id {
				h.updates = append(h.updates[:i:i], h.updates[i+1:]...)
				return
			}
		}
	}
}

func (h *hub[S]) onError(fn func(error)) func() {
	h.dispatchMu.Lock()
	defer h.dispatchMu.Unlock()
	if h.isClosed() {
		return func() {}
	}
	if err := h.failure(); err != nil {
		fn(err)
		return func() {}
	}

	id := h.nextSub
	h.nextSub++
	h.errs = append(h.errs, errorSub{id: id, fn: fn})

	return func() {
		h.dispatchMu.Lock()
		defer h.dispatchMu.Unlock()
		for i, s := range h.errs {
			if s.id == id {
				h.errs = append(h.errs[:i:i], h.errs[i+1:]...)
				return
			}
		}
	}
}

func (h *hub[S]) snapshot() S {
	h.stateMu.RLock()
	defer h.stateMu.RUnlock()
	return h.current
}

func (h *hub[S]) waitLoaded(ctx context.Context) (S, error) {
	select {
	case <-h.loadedCh:
		return h.snapshot(), nil
	default:
	}
	select {
	case <-h.loadedCh:
		return h.snapshot(), nil
	case <-h.failedCh:
		var zero S
		return zero, h.failure()
	case <-h.closedCh:
		var zero S
		return zero, ErrMirrorClosed
	case <-ctx.Done():
		var zero S
		return zero, ctx.Err()
	}
}

// ended is called when the store closes the subscription channel. If the
// mirror was neither closed nor failed, the subscription ended underneath
// it: a cancelled parent context counts as a close, anything else is an
// error the consumer must see.
func (h *hub[S]) ended(ctx context.Context, endErr error) {
	if h.isClosed() || h.failure() != nil {
		return
	}
	if ctx.Err() != nil {
		h.close()
		return
	}
	h.fail(endErr)
}
