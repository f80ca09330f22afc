// Package applicationstore writes university application records.
package applicationstore

import (
	"context"
	"errors"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrBadStatus is returned for an unknown application status.
var ErrBadStatus = errors.New("unknown application status")

// Store writes applications.
type Store struct {
	rs remote.Store
}

func New(rs remote.Store) *Store {
	return &Store{rs: rs}
}

// AllQuery selects every application.
func AllQuery() remote.Query {
	return remote.Query{
		Collection: models.ApplicationsCollection,
		Sort:       bson.D{{Key: "university", Value: 1}},
	}
}

// ForUserQuery selects the applications owned by userID.
func ForUserQuery(userID string) remote.Query {
	q := AllQuery()
	q.Filter = bson.M{"user_id": userID}
	return q
}

// UpdateStatus sets the status of an application. Returns remote.ErrNotFound
// if it does not exist.
func (s *Store) UpdateStatus(ctx context.Context, id string, status models.ApplicationStatus) error {
	if !status.Valid() {
		return ErrBadStatus
	}
	return s.rs.Update(ctx, remote.DocRef{Collection: models.ApplicationsCollection, ID: id}, bson.M{"status": string(status)})
}
