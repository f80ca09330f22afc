// Package remote defines the contract between the application and the
// document store it mirrors: live collection and document subscriptions plus
// the handful of writes the application issues.
//
// Subscriptions are plain channels. A subscription stays open until its
// context is cancelled or the store reports a terminal error; in both cases
// the store closes the channel. Events on one channel arrive in the order the
// store produced them. Nothing is promised about ordering across channels.
package remote

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	// ErrNotFound is returned by Get and Update when the document is missing.
	ErrNotFound = errors.New("document not found")
	// ErrClosed is returned when the store has been shut down.
	ErrClosed = errors.New("store closed")
)

// Query selects documents from one collection.
//
// Filter is an equality match on top-level fields. Sort is advisory: it
// decides the order documents appear in the initial batch, but consumers
// that need an order must impose it themselves.
type Query struct {
	Collection string
	Filter     bson.M
	Sort       bson.D
}

// DocRef addresses a single document.
type DocRef struct {
	Collection string
	ID         string
}

func (r DocRef) String() string { return r.Collection + "/" + r.ID }

// ChangeKind is the kind of a single delta.
type ChangeKind int

const (
	Added ChangeKind = iota + 1
	Modified
	Removed
)

func (k ChangeKind) String() string {
	switch k {
	case Added:
		return "added"
	case Modified:
		return "modified"
	case Removed:
		return "removed"
	}
	return "unknown"
}

// Change is one document-level delta. Doc is nil for Removed.
type Change struct {
	Kind ChangeKind
	ID   string
	Doc  bson.Raw
}

// Batch is one delivery on a collection subscription.
//
// The first batch on every subscription has Reset set and carries the whole
// matching set as Added changes. Applying every batch in order to an empty
// map yields the current result of the query, so each delivery is
// equivalent to a full snapshot.
type Batch struct {
	Reset   bool
	Changes []Change
}

// CollectionEvent is either a batch or a terminal error.
type CollectionEvent struct {
	Batch Batch
	Err   error
}

// DocumentEvent is the current state of one document, or a terminal error.
type DocumentEvent struct {
	Exists bool
	Doc    bson.Raw
	Err    error
}

// CreateResult reports the outcome of CreateIfAbsent.
type CreateResult int

const (
	Created CreateResult = iota + 1
	AlreadyExists
)

func (r CreateResult) String() string {
	switch r {
	case Created:
		return "created"
	case AlreadyExists:
		return "already_exists"
	}
	return "unknown"
}

// Store is the document store contract.
type Store interface {
	// SubscribeCollection streams batches for q until ctx ends or the
	// subscription fails.
	SubscribeCollection(ctx context.Context, q Query) (<-chan CollectionEvent, error)

	// SubscribeDocument streams the state of ref, starting with its current
	// state, until ctx ends or the subscription fails.
	SubscribeDocument(ctx context.Context, ref DocRef) (<-chan DocumentEvent, error)

	// Get reads a document once. It returns ErrNotFound when absent.
	Get(ctx context.Context, ref DocRef) (bson.Raw, error)

	// CreateIfAbsent writes v at ref only if nothing is stored there.
	// Concurrent callers for the same ref see exactly one Created.
	CreateIfAbsent(ctx context.Context, ref DocRef, v any) (CreateResult, error)

	// Update sets the given top-level fields. It returns ErrNotFound when
	// the document does not exist.
	Update(ctx context.Context, ref DocRef, fields bson.M) error

	// Add inserts v under a new store-assigned id. Every field named in
	// serverTime is replaced with the store's clock at write time.
	Add(ctx context.Context, collection string, v any, serverTime ...string) (string, error)

	// Delete removes the document at ref. Deleting a missing document is
	// not an error.
	Delete(ctx context.Context, ref DocRef) error
}

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
)

// NewID returns a new lexically time-ordered document id.
func NewID() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
