// Package mongostore implements remote.Store on MongoDB.
//
// Live subscriptions are built on change streams, so the server must run as
// a replica set (a single-node replica set is enough for development).
// Collection subscriptions re-run their query after each burst of change
// events and deliver the difference against the previous result; the
// collections mirrored by the application are small, and re-querying keeps
// filter semantics exact when a modified document stops matching.
package mongostore

import (
	"context"
	"errors"
	"fmt"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Store is a remote.Store backed by one MongoDB database.
type Store struct {
	db  *mongo.Database
	log *zap.Logger
}

// New creates a Store over db.
func New(db *mongo.Database, logger *zap.Logger) *Store {
	return &Store{db: db, log: logger}
}

var _ remote.Store = (*Store)(nil)

/*─────────────────────────────────────────────────────────────────────────────*
| Subscriptions                                                                |
*─────────────────────────────────────────────────────────────────────────────*/

// SubscribeCollection implements remote.Store.
func (s *Store) SubscribeCollection(ctx context.Context, q remote.Query) (<-chan remote.CollectionEvent, error) {
	coll := s.db.Collection(q.Collection)

	// Open the stream before the initial read so no write falls between them.
	cs, err := coll.Watch(ctx, mongo.Pipeline{})
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", q.Collection, err)
	}
	docs, order, err := s.load(ctx, coll, q)
	if err != nil {
		_ = cs.Close(context.Background())
		return nil, err
	}

	out := make(chan remote.CollectionEvent)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())

		initial := remote.Batch{Reset: true, Changes: remote.Diff(nil, docs, order)}
		if !send(ctx, out, remote.CollectionEvent{Batch: initial}) {
			return
		}

		for cs.Next(ctx) {
			// Fold a burst of events into one reload.
			for cs.TryNext(ctx) {
			}
			next, nextOrder, err := s.load(ctx, coll, q)
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, out, remote.CollectionEvent{Err: err})
				}
				return
			}
			changes := remote.Diff(docs, next, nextOrder)
			docs = next
			if len(changes) == 0 {
				continue
			}
			if !send(ctx, out, remote.CollectionEvent{Batch: remote.Batch{Changes: changes}}) {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("collection change stream ended",
				zap.String("collection", q.Collection), zap.Error(err))
			send(ctx, out, remote.CollectionEvent{Err: fmt.Errorf("watch %s: %w", q.Collection, err)})
		}
	}()

	s.log.Debug("collection subscription opened", zap.String("collection", q.Collection))
	return out, nil
}

// SubscribeDocument implements remote.Store.
func (s *Store) SubscribeDocument(ctx context.Context, ref remote.DocRef) (<-chan remote.DocumentEvent, error) {
	coll := s.db.Collection(ref.Collection)

	pipeline := mongo.Pipeline{{{Key: "$match", Value: bson.M{"documentKey._id": ref.ID}}}}
	cs, err := coll.Watch(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", ref, err)
	}
	first, err := s.read(ctx, coll, ref.ID)
	if err != nil {
		_ = cs.Close(context.Background())
		return nil, err
	}

	out := make(chan remote.DocumentEvent)
	go func() {
		defer close(out)
		defer cs.Close(context.Background())

		if !send(ctx, out, first) {
			return
		}
		for cs.Next(ctx) {
			for cs.TryNext(ctx) {
			}
			ev, err := s.read(ctx, coll, ref.ID)
			if err != nil {
				if ctx.Err() == nil {
					send(ctx, out, remote.DocumentEvent{Err: err})
				}
				return
			}
			if !send(ctx, out, ev) {
				return
			}
		}
		if err := cs.Err(); err != nil && ctx.Err() == nil {
			s.log.Warn("document change stream ended", zap.String("ref", ref.String()), zap.Error(err))
			send(ctx, out, remote.DocumentEvent{Err: fmt.Errorf("watch %s: %w", ref, err)})
		}
	}()

	s.log.Debug("document subscription opened", zap.String("ref", ref.String()))
	return out, nil
}

func (s *Store) load(ctx context.Context, coll *mongo.Collection, q remote.Query) (map[string]bson.Raw, []string, error) {
	filter := q.Filter
	if filter == nil {
		filter = bson.M{}
	}
	opts := options.Find()
	if len(q.Sort) > 0 {
		opts.SetSort(q.Sort)
	}

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	defer cur.Close(ctx)

	docs := make(map[string]bson.Raw)
	var order []string
	for cur.Next(ctx) {
		doc := make(bson.Raw, len(cur.Current))
		copy(doc, cur.Current)
		id := remote.IDOf(doc)
		docs[id] = doc
		order = append(order, id)
	}
	if err := cur.Err(); err != nil {
		return nil, nil, fmt.Errorf("find %s: %w", q.Collection, err)
	}
	return docs, order, nil
}

func (s *Store) read(ctx context.Context, coll *mongo.Collection, id string) (remote.DocumentEvent, error) {
	raw, err := coll.FindOne(ctx, bson.M{"_id": id}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return remote.DocumentEvent{Exists: false}, nil
	}
	if err != nil {
		return remote.DocumentEvent{}, fmt.Errorf("read %s/%s: %w", coll.Name(), id, err)
	}
	return remote.DocumentEvent{Exists: true, Doc: raw}, nil
}

func send[E any](ctx context.Context, out chan<- E, ev E) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| Writes                                                                       |
*─────────────────────────────────────────────────────────────────────────────*/

// Get implements remote.Store.
func (s *Store) Get(ctx context.Context, ref remote.DocRef) (bson.Raw, error) {
	raw, err := s.db.Collection(ref.Collection).FindOne(ctx, bson.M{"_id": ref.ID}).Raw()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, remote.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", ref, err)
	}
	return raw, nil
}

// CreateIfAbsent implements remote.Store. The _id unique index makes the
// insert the arbiter: concurrent callers race on it and the losers get a
// duplicate-key error.
func (s *Store) CreateIfAbsent(ctx context.Context, ref remote.DocRef, v any) (remote.CreateResult, error) {
	doc, err := remote.ToDoc(v, ref.ID)
	if err != nil {
		return 0, err
	}
	if _, err := s.db.Collection(ref.Collection).InsertOne(ctx, doc); err != nil {
		if wafflemongo.IsDup(err) {
			return remote.AlreadyExists, nil
		}
		return 0, fmt.Errorf("create %s: %w", ref, err)
	}
	return remote.Created, nil
}

// Update implements remote.Store.
func (s *Store) Update(ctx context.Context, ref remote.DocRef, fields bson.M) error {
	res, err := s.db.Collection(ref.Collection).UpdateOne(ctx, bson.M{"_id": ref.ID}, bson.M{"$set": fields})
	if err != nil {
		return fmt.Errorf("update %s: %w", ref, err)
	}
	if res.MatchedCount == 0 {
		return remote.ErrNotFound
	}
	return nil
}

// Add implements remote.Store. Server timestamps come from the database
// clock ($$NOW) through a pipeline upsert; every client-supplied value is
// wrapped in $literal so strings that start with "$" are stored verbatim.
func (s *Store) Add(ctx context.Context, collection string, v any, serverTime ...string) (string, error) {
	id := remote.NewID()
	doc, err := remote.ToDoc(v, id, serverTime...)
	if err != nil {
		return "", err
	}

	coll := s.db.Collection(collection)
	if len(serverTime) == 0 {
		if _, err := coll.InsertOne(ctx, doc); err != nil {
			return "", fmt.Errorf("add %s: %w", collection, err)
		}
		return id, nil
	}

	set := make(bson.D, 0, len(doc)+len(serverTime))
	for _, e := range doc {
		if e.Key == "_id" {
			continue
		}
		set = append(set, bson.E{Key: e.Key, Value: bson.M{"$literal": e.Value}})
	}
	for _, f := range serverTime {
		set = append(set, bson.E{Key: f, Value: "$$NOW"})
	}
	update := mongo.Pipeline{{{Key: "$set", Value: set}}}
	if _, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true)); err != nil {
		return "", fmt.Errorf("add %s: %w", collection, err)
	}
	return id, nil
}

// Delete implements remote.Store.
func (s *Store) Delete(ctx context.Context, ref remote.DocRef) error {
	if _, err := s.db.Collection(ref.Collection).DeleteOne(ctx, bson.M{"_id": ref.ID}); err != nil {
		return fmt.Errorf("delete %s: %w", ref, err)
	}
	return nil
}
