// Package memstore is an in-process remote.Store.
//
// It keeps every collection in memory and fans writes out to live
// subscriptions through per-subscription queues, so a slow subscriber never
// blocks a writer and each subscriber sees writes in the order they were
// applied. It backs the "memory" store mode and the package tests.
package memstore

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"go.mongodb.org/mongo-driver/bson"
)

type collection struct {
	docs  map[string]bson.Raw
	order []string
}

type sub[E any] struct {
	ctx    context.Context
	out    chan E
	notify chan struct{}
	queue  []E
	final  bool
}

type querySub struct {
	*sub[remote.CollectionEvent]
	q    remote.Query
	view map[string]bson.Raw
}

type docSub struct {
	*sub[remote.DocumentEvent]
	ref remote.DocRef
}

// Store is a remote.Store held entirely in memory. The zero value is not
// usable; call New.
type Store struct {
	mu      sync.Mutex
	colls   map[string]*collection
	queries map[int]*querySub
	docs    map[int]*docSub
	nextSub int

	now      func() time.Time
	lastTime time.Time

	held    bool
	release chan struct{}

	writeErr error
	closed   bool
}

// New returns an empty store.
func New() *Store {
	return &Store{
		colls:   make(map[string]*collection),
		queries: make(map[int]*querySub),
		docs:    make(map[int]*docSub),
		now:     time.Now,
	}
}

var _ remote.Store = (*Store)(nil)

/*─────────────────────────────────────────────────────────────────────────────*
| Subscriptions                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// SubscribeCollection implements remote.Store.
func (s *Store) SubscribeCollection(ctx context.Context, q remote.Query) (<-chan remote.CollectionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}

	qs := &querySub{
		sub:  newSub[remote.CollectionEvent](ctx),
		q:    q,
		view: make(map[string]bson.Raw),
	}

	c := s.coll(q.Collection)
	ids := make([]string, 0, len(c.order))
	for _, id := range c.order {
		if remote.Matches(c.docs[id], q.Filter) {
			ids = append(ids, id)
		}
	}
	sortIDs(ids, c.docs, q.Sort)

	initial := remote.Batch{Reset: true, Changes: make([]remote.Change, 0, len(ids))}
	for _, id := range ids {
		qs.view[id] = c.docs[id]
		initial.Changes = append(initial.Changes, remote.Change{Kind: remote.Added, ID: id, Doc: c.docs[id]})
	}
	qs.push(remote.CollectionEvent{Batch: initial})

	id := s.nextSub
	s.nextSub++
	s.queries[id] = qs
	go pump(s, qs.sub, func() { delete(s.queries, id) })
	return qs.out, nil
}

// SubscribeDocument implements remote.Store.
func (s *Store) SubscribeDocument(ctx context.Context, ref remote.DocRef) (<-chan remote.DocumentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}

	ds := &docSub{sub: newSub[remote.DocumentEvent](ctx), ref: ref}
	doc, ok := s.coll(ref.Collection).docs[ref.ID]
	ds.push(remote.DocumentEvent{Exists: ok, Doc: doc})

	id := s.nextSub
	s.nextSub++
	s.docs[id] = ds
	go pump(s, ds.sub, func() { delete(s.docs, id) })
	return ds.out, nil
}

func newSub[E any](ctx context.Context) *sub[E] {
	return &sub[E]{
		ctx:    ctx,
		out:    make(chan E),
		notify: make(chan struct{}, 1),
	}
}

// push queues ev. Callers hold Store.mu.
func (sb *sub[E]) push(ev E) {
	if sb.final {
		return
	}
	sb.queue = append(sb.queue, ev)
	select {
	case sb.notify <- struct{}{}:
	default:
	}
}

// finish queues ev (if any) as the last event. Callers hold Store.mu.
func (sb *sub[E]) finish(ev *E) {
	if sb.final {
		return
	}
	if ev != nil {
		sb.push(*ev)
	}
	sb.final = true
	select {
	case sb.notify <- struct{}{}:
	default:
	}
}

// pump moves queued events to the subscriber's channel one at a time and
// closes the channel when the subscription ends.
func pump[E any](s *Store, sb *sub[E], remove func()) {
	defer close(sb.out)
	defer func() {
		s.mu.Lock()
		remove()
		s.mu.Unlock()
	}()

	for {
		s.mu.Lock()
		if s.held {
			release := s.release
			s.mu.Unlock()
			select {
			case <-release:
				continue
			case <-sb.ctx.Done():
				return
			}
		}
		if len(sb.queue) == 0 {
			final := sb.final
			s.mu.Unlock()
			if final {
				return
			}
			select {
			case <-sb.notify:
				continue
			case <-sb.ctx.Done():
				return
			}
		}
		ev := sb.queue[0]
		var zero E
		sb.queue[0] = zero
		sb.queue = sb.queue[1:]
		s.mu.Unlock()

		select {
		case sb.out <- ev:
		case <-sb.ctx.Done():
			return
		}
	}
}

// fanout reports a write on coll/id to every live subscription. doc is nil
// when the document was removed. Callers hold s.mu.
func (s *Store) fanout(coll, id string, doc bson.Raw) {
	for _, qs := range s.queries {
		if qs.q.Collection != coll {
			continue
		}
		old, had := qs.view[id]
		match := doc != nil && remote.Matches(doc, qs.q.Filter)

		var ch remote.Change
		switch {
		case match && !had:
			ch = remote.Change{Kind: remote.Added, ID: id, Doc: doc}
		case match && had:
			if bytes.Equal(old, doc) {
				continue
			}
			ch = remote.Change{Kind: remote.Modified, ID: id, Doc: doc}
		case !match && had:
			ch = remote.Change{Kind: remote.Removed, ID: id}
		default:
			continue
		}
		if match {
			qs.view[id] = doc
		} else {
			delete(qs.view, id)
		}
		qs.push(remote.CollectionEvent{Batch: remote.Batch{Changes: []remote.Change{ch}}})
	}

	for _, ds := range s.docs {
		if ds.ref.Collection == coll && ds.ref.ID == id {
			ds.push(remote.DocumentEvent{Exists: doc != nil, Doc: doc})
		}
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Writes                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, ref remote.DocRef) (bson.Raw, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, remote.ErrClosed
	}
	doc, ok := s.coll(ref.Collection).docs[ref.ID]
	if !ok {
		return nil, remote.ErrNotFound
	}
	return doc, nil
}

// CreateIfAbsent implements remote.Store.
func (s *Store) CreateIfAbsent(ctx context.Context, ref remote.DocRef, v any) (remote.CreateResult, error) {
	d, err := remote.ToDoc(v, ref.ID)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return 0, err
	}
	c := s.coll(ref.Collection)
	if _, ok := c.docs[ref.ID]; ok {
		return remote.AlreadyExists, nil
	}
	if err := s.put(c, ref, d); err != nil {
		return 0, err
	}
	return remote.Created, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, ref remote.DocRef, fields bson.M) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	c := s.coll(ref.Collection)
	old, ok := c.docs[ref.ID]
	if !ok {
		return remote.ErrNotFound
	}

	var d bson.D
	if err := bson.Unmarshal(old, &d); err != nil {
		return err
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		d = setField(d, k, fields[k])
	}
	return s.put(c, ref, d)
}

// Add implements remote.Store.
func (s *Store) Add(ctx context.Context, collection string, v any, serverTime ...string) (string, error) {
	id := remote.NewID()
	d, err := remote.ToDoc(v, id, serverTime...)
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return "", err
	}
	if len(serverTime) > 0 {
		ts := s.tick()
		for _, f := range serverTime {
			d = setField(d, f, ts)
		}
	}
	if err := s.put(s.coll(collection), remote.DocRef{Collection: collection, ID: id}, d); err != nil {
		return "", err
	}
	return id, nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, ref remote.DocRef) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.writable(); err != nil {
		return err
	}
	c := s.coll(ref.Collection)
	if _, ok := c.docs[ref.ID]; !ok {
		return nil
	}
	delete(c.docs, ref.ID)
	for i, id := range c.order {
		if id == ref.ID {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	s.fanout(ref.Collection, ref.ID, nil)
	return nil
}

// Put stores v at ref unconditionally, replacing any existing document.
// It is meant for seeding data.
func (s *Store) Put(ref remote.DocRef, v any) error {
	d, err := remote.ToDoc(v, ref.ID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return remote.ErrClosed
	}
	return s.put(s.coll(ref.Collection), ref, d)
}

func (s *Store) put(c *collection, ref remote.DocRef, d bson.D) error {
	raw, err := bson.Marshal(d)
	if err != nil {
		return err
	}
	if _, ok := c.docs[ref.ID]; !ok {
		c.order = append(c.order, ref.ID)
	}
	c.docs[ref.ID] = raw
	s.fanout(ref.Collection, ref.ID, raw)
	return nil
}

func (s *Store) writable() error {
	if s.closed {
		return remote.ErrClosed
	}
	return s.writeErr
}

func (s *Store) coll(name string) *collection {
	c, ok := s.colls[name]
	if !ok {
		c = &collection{docs: make(map[string]bson.Raw)}
		s.colls[name] = c
	}
	return c
}

// tick returns the store clock, strictly increasing across calls so that
// server timestamps give a total order of arrival. Callers hold s.mu.
func (s *Store) tick() time.Time {
	t := s.now().UTC().Truncate(time.Millisecond)
	if !t.After(s.lastTime) {
		t = s.lastTime.Add(time.Millisecond)
	}
	s.lastTime = t
	return t
}

/*─────────────────────────────────────────────────────────────────────────────*
| Control                                                                      |
*─────────────────────────────────────────────────────────────────────────────*/

// Hold stops delivery to every subscriber. Writes still apply and queue up.
func (s *Store) Hold() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.held {
		s.held = true
		s.release = make(chan struct{})
	}
}

// Release resumes delivery after Hold.
func (s *Store) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.held {
		s.held = false
		close(s.release)
	}
}

// FailWrites makes every subsequent write return err. Pass nil to clear.
func (s *Store) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// FailSubscriptions ends every subscription on collection with err.
func (s *Store) FailSubscriptions(collection string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, qs := range s.queries {
		if qs.q.Collection == collection {
			qs.finish(&remote.CollectionEvent{Err: err})
		}
	}
	for _, ds := range s.docs {
		if ds.ref.Collection == collection {
			ds.finish(&remote.DocumentEvent{Err: err})
		}
	}
}

// Subscribers returns the number of live subscriptions.
func (s *Store) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queries) + len(s.docs)
}

// Close ends every subscription and rejects further calls.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for _, qs := range s.queries {
		qs.finish(nil)
	}
	for _, ds := range s.docs {
		ds.finish(nil)
	}
	if s.held {
		s.held = false
		close(s.release)
	}
}
