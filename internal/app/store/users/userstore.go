package userstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

// ErrBadRole is returned by SetRole for an unknown role.
var ErrBadRole = errors.New(`role must be "standard"|"superadmin"`)

// Store reads and writes role records.
type Store struct {
	rs         remote.Store
	superadmin string
}

func New(rs remote.Store) *Store {
	return &Store{rs: rs}
}

// WithSuperadminEmail makes Provision create the record for email with the
// superadmin role instead of the default.
func (s *Store) WithSuperadminEmail(email string) *Store {
	s.superadmin = normalize.Email(email)
	return s
}

func (s *Store) initialRole(email string) models.Role {
	if s.superadmin != "" && email == s.superadmin {
		return models.RoleSuperadmin
	}
	return models.DefaultRole
}

// Ref addresses the role record for a principal.
func Ref(principalID string) remote.DocRef {
	return remote.DocRef{Collection: models.UsersCollection, ID: principalID}
}

// AllQuery selects every role record.
func AllQuery() remote.Query {
	return remote.Query{
		Collection: models.UsersCollection,
		Sort:       bson.D{{Key: "email", Value: 1}},
	}
}

// Provision creates the role record for a principal with the default role if
// none exists. An existing record is left untouched and reported as
// AlreadyExists, which callers treat as success.
func (s *Store) Provision(ctx context.Context, principalID, email string) (remote.CreateResult, error) {
	now := time.Now().UTC()
	email = normalize.Email(email)
	u := models.User{
		ID:        principalID,
		Email:     email,
		Role:      s.initialRole(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	res, err := s.rs.CreateIfAbsent(ctx, Ref(principalID), u)
	if err != nil {
		return 0, fmt.Errorf("provision %s: %w", principalID, err)
	}
	return res, nil
}

// Get loads a role record. Returns remote.ErrNotFound if absent.
func (s *Store) Get(ctx context.Context, principalID string) (models.User, error) {
	raw, err := s.rs.Get(ctx, Ref(principalID))
	if err != nil {
		return models.User{}, err
	}
	return models.Decode[models.User](models.UsersCollection, principalID, raw)
}

// SetRole changes a principal's role. Returns remote.ErrNotFound if the
// principal has never signed in.
func (s *Store) SetRole(ctx context.Context, principalID string, role models.Role) error {
	role = models.Role(normalize.Role(string(role)))
	if !role.Valid() {
		return ErrBadRole
	}
	return s.rs.Update(ctx, Ref(principalID), bson.M{
		"role":       string(role),
		"updated_at": time.Now().UTC(),
	})
}
