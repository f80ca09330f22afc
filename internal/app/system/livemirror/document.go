package livemirror

import (
	"context"
	"fmt"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"go.uber.org/zap"
)

// DocSnapshot is the state of a single mirrored document.
type DocSnapshot[T any] struct {
	Loaded bool
	Exists bool
	Value  T
}

// DocOptions configures a document mirror.
type DocOptions struct {
	Name    string
	Log     *zap.Logger
	Metrics *metrics.Collector
}

// DocMirror is a live local copy of one document.
type DocMirror[T any] struct {
	*hub[DocSnapshot[T]]

	ctx    context.Context
	id     string
	decode Decoder[T]
}

// OpenDocument subscribes to ref and returns the mirror that owns the
// subscription.
func OpenDocument[T any](ctx context.Context, store remote.Store, ref remote.DocRef, decode Decoder[T], opts DocOptions) (*DocMirror[T], error) {
	name := opts.Name
	if name == "" {
		name = ref.Collection
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := store.SubscribeDocument(ctx, ref)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open mirror %s: %w", name, err)
	}

	m := &DocMirror[T]{
		hub:    newHub[DocSnapshot[T]](name, opts.Log, opts.Metrics, cancel),
		ctx:    ctx,
		id:     ref.ID,
		decode: decode,
	}
	m.metrics.MirrorOpened(name)

	go m.run(events)
	return m, nil
}

func (m *DocMirror[T]) run(events <-chan remote.DocumentEvent) {
	for ev := range events {
		if ev.Err != nil {
			m.fail(ev.Err)
			continue
		}
		e := ev
		m.deliver(func() (DocSnapshot[T], error) {
			if !e.Exists {
				return DocSnapshot[T]{Loaded: true}, nil
			}
			v, err := m.decode(m.id, e.Doc)
			if err != nil {
				return DocSnapshot[T]{}, err
			}
			return DocSnapshot[T]{Loaded: true, Exists: true, Value: v}, nil
		})
	}
	m.ended(m.ctx, fmt.Errorf("mirror %s: %w", m.name, remote.ErrClosed))
}

// OnUpdate registers fn to receive the document state after every delivery.
func (m *DocMirror[T]) OnUpdate(fn func(DocSnapshot[T])) func() { return m.onUpdate(fn) }

// OnError registers fn to be told when the mirror stops on an error.
func (m *DocMirror[T]) OnError(fn func(error)) func() { return m.onError(fn) }

// Current returns the latest document state.
func (m *DocMirror[T]) Current() DocSnapshot[T] { return m.snapshot() }

// Err returns the error that stopped the mirror, if any.
func (m *DocMirror[T]) Err() error { return m.failure() }

// WaitLoaded blocks until the first delivery, a failure, Close, or the end
// of ctx.
func (m *DocMirror[T]) WaitLoaded(ctx context.Context) (DocSnapshot[T], error) {
	return m.waitLoaded(ctx)
}

// Close releases the subscription. No callback runs after Close returns.
func (m *DocMirror[T]) Close() { m.close() }
