// Package eventstore writes dashboard and public events.
package eventstore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrBadKind = errors.New(`kind must be "global"|"public"`)
	ErrBadType = errors.New("event type is not allowed for this kind")
	ErrBadDate = errors.New("date must be YYYY-MM-DD")
	ErrNoTitle = errors.New("event title is required")
)

// Store writes events of both kinds.
type Store struct {
	rs remote.Store
}

func New(rs remote.Store) *Store {
	return &Store{rs: rs}
}

// Query selects every event of kind.
func Query(kind models.EventKind) remote.Query {
	return remote.Query{
		Collection: kind.Collection(),
		Sort:       bson.D{{Key: "date", Value: 1}},
	}
}

// Add validates and writes an event, returning its id once the store has
// accepted it. CreatedAt is set by the store.
func (s *Store) Add(ctx context.Context, kind models.EventKind, e models.Event) (string, error) {
	if !kind.Valid() {
		return "", ErrBadKind
	}
	e.Title = normalize.Name(e.Title)
	if e.Title == "" {
		return "", ErrNoTitle
	}
	if !kind.Allows(e.Type) {
		return "", ErrBadType
	}
	e.Date = strings.TrimSpace(e.Date)
	if _, err := time.Parse(models.EventDateLayout, e.Date); err != nil {
		return "", ErrBadDate
	}

	id, err := s.rs.Add(ctx, kind.Collection(), e, "created_at")
	if err != nil {
		return "", fmt.Errorf("add %s event: %w", kind, err)
	}
	return id, nil
}

// Delete removes an event. Deleting a missing event is not an error.
func (s *Store) Delete(ctx context.Context, kind models.EventKind, id string) error {
	if !kind.Valid() {
		return ErrBadKind
	}
	return s.rs.Delete(ctx, remote.DocRef{Collection: kind.Collection(), ID: id})
}
