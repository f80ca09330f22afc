// Package livemirror keeps local copies of remote collections and documents
// current through live subscriptions.
//
// A Mirror owns exactly one subscription. It applies the store's deliveries
// in order to a keyed map and, after each delivery, hands every registered
// callback the complete current snapshot. Callbacks must treat each
// snapshot as a replacement for the previous one.
//
// When an order is requested the whole snapshot is re-sorted on every
// delivery. The mirrored collections are small (users, events, one
// conversation), so this favours simplicity over incremental maintenance.
//
// Callbacks run on the mirror's delivery goroutine. Close, and the cancel
// funcs returned by OnUpdate and OnError, must not be called from inside a
// callback of the same mirror: they wait for the running delivery to finish.
package livemirror

import (
	"context"
	"fmt"
	"sort"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Decoder turns a stored document into a T.
type Decoder[T any] func(id string, raw bson.Raw) (T, error)

// Options configures a mirror. The zero value mirrors in arrival order.
type Options[T any] struct {
	// Name labels the mirror in logs and metrics. Defaults to the
	// collection name.
	Name string

	// Less, when set, orders the snapshot.
	Less func(a, b T) bool

	// Filter, when set, drops decoded documents it rejects.
	Filter func(T) bool

	Log     *zap.Logger
	Metrics *metrics.Collector
}

// Entry is one mirrored document.
type Entry[T any] struct {
	ID    string `json:"id"`
	Value T      `json:"value"`
}

// Snapshot is the full state of a mirror after a delivery.
// Loaded is false until the first delivery, which distinguishes "no data
// yet" from "confirmed empty".
type Snapshot[T any] struct {
	Loaded bool
	Items  []Entry[T]
}

// Len returns the number of documents.
func (s Snapshot[T]) Len() int { return len(s.Items) }

// Values returns the documents in snapshot order.
func (s Snapshot[T]) Values() []T {
	out := make([]T, len(s.Items))
	for i, e := range s.Items {
		out[i] = e.Value
	}
	return out
}

// Get returns the document with the given id.
func (s Snapshot[T]) Get(id string) (T, bool) {
	for _, e := range s.Items {
		if e.ID == id {
			return e.Value, true
		}
	}
	var zero T
	return zero, false
}

// Mirror is a live local copy of the result of one query.
type Mirror[T any] struct {
	*hub[Snapshot[T]]

	ctx    context.Context
	decode Decoder[T]
	less   func(a, b T) bool
	filter func(T) bool

	// docs and order are only touched on the delivery goroutine.
	docs  map[string]T
	order []string
}

// Open subscribes to q and returns the mirror that owns the subscription.
// The mirror is empty and not Loaded until the first delivery arrives.
func Open[T any](ctx context.Context, store remote.Store, q remote.Query, decode Decoder[T], opts Options[T]) (*Mirror[T], error) {
	name := opts.Name
	if name == "" {
		name = q.Collection
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := store.SubscribeCollection(ctx, q)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open mirror %s: %w", name, err)
	}

	m := &Mirror[T]{
		hub:    newHub[Snapshot[T]](name, opts.Log, opts.Metrics, cancel),
		ctx:    ctx,
		decode: decode,
		less:   opts.Less,
		filter: opts.Filter,
		docs:   make(map[string]T),
	}
	m.metrics.MirrorOpened(name)

	go m.run(events)
	return m, nil
}

func (m *Mirror[T]) run(events <-chan remote.CollectionEvent) {
	for ev := range events {
		if ev.Err != nil {
			m.fail(ev.Err)
			continue
		}
		b := ev.Batch
		m.deliver(func() (Snapshot[T], error) { return m.apply(b) })
	}
	m.ended(m.ctx, fmt.Errorf("mirror %s: %w", m.name, remote.ErrClosed))
}

// apply folds one batch into the map. Every document in the batch is
// decoded before anything changes, so a bad document leaves the mirror at
// its previous state.
func (m *Mirror[T]) apply(b remote.Batch) (Snapshot[T], error) {
	type decoded struct {
		kind remote.ChangeKind
		id   string
		v    T
	}
	staged := make([]decoded, 0, len(b.Changes))
	for _, c := range b.Changes {
		d := decoded{kind: c.Kind, id: c.ID}
		if c.Kind != remote.Removed {
			v, err := m.decode(c.ID, c.Doc)
			if err != nil {
				return Snapshot[T]{}, err
			}
			if m.filter != nil && !m.filter(v) {
				d.kind = remote.Removed
			} else {
				d.v = v
			}
		}
		staged = append(staged, d)
	}

	if b.Reset {
		m.docs = make(map[string]T, len(staged))
		m.order = m.order[:0]
	}
	for _, d := range staged {
		switch d.kind {
		case remote.Added, remote.Modified:
			if _, ok := m.docs[d.id]; !ok {
				m.order = append(m.order, d.id)
			}
			m.docs[d.id] = d.v
		case remote.Removed:
			if _, ok := m.docs[d.id]; ok {
				delete(m.docs, d.id)
				m.order = removeID(m.order, d.id)
			}
		}
	}
	return m.build(), nil
}

func (m *Mirror[T]) build() Snapshot[T] {
	items := make([]Entry[T], len(m.order))
	for i, id := range m.order {
		items[i] = Entry[T]{ID: id, Value: m.docs[id]}
	}
	if m.less != nil {
		sort.SliceStable(items, func(i, j int) bool { return m.less(items[i].Value, items[j].Value) })
	}
	return Snapshot[T]{Loaded: true, Items: items}
}

func removeID(order []string, id string) []string {
	for i, v := range order {
		if v == id {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

// OnUpdate registers fn to receive the full snapshot after every delivery.
// If the mirror has already loaded, fn is first called with the current
// snapshot. The returned func unregisters fn.
func (m *Mirror[T]) OnUpdate(fn func(Snapshot[T])) func() { return m.onUpdate(fn) }

// OnError registers fn to be told when the mirror stops because of a
// subscription or decode error. After an error the mirror keeps its last
// snapshot and receives nothing more.
func (m *Mirror[T]) OnError(fn func(error)) func() { return m.onError(fn) }

// Current returns the latest snapshot.
func (m *Mirror[T]) Current() Snapshot[T] { return m.snapshot() }

// Err returns the error that stopped the mirror, if any.
func (m *Mirror[T]) Err() error { return m.failure() }

// WaitLoaded blocks until the first delivery, a failure, Close, or the end
// of ctx.
func (m *Mirror[T]) WaitLoaded(ctx context.Context) (Snapshot[T], error) { return m.waitLoaded(ctx) }

// Close releases the subscription. No callback runs after Close returns,
// including for deliveries that were already on their way.
func (m *Mirror[T]) Close() { m.close() }
