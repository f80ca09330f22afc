// Package credentialstore keeps password credentials for the local sign-in.
package credentialstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"golang.org/x/crypto/bcrypt"
)

var (
	// ErrEmailTaken is returned by Register when the email already has a
	// credential.
	ErrEmailTaken = errors.New("an account with this email already exists")
	// ErrInvalidLogin is returned by Verify for an unknown email or a wrong
	// password. The two are not distinguished.
	ErrInvalidLogin = errors.New("invalid email or password")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLen.
	ErrWeakPassword = errors.New("password is too short")
)

// MinPasswordLen is the shortest accepted password.
const MinPasswordLen = 8

// Store registers and verifies credentials.
type Store struct {
	rs   remote.Store
	cost int
}

// New returns a store hashing at bcrypt.DefaultCost.
func New(rs remote.Store) *Store {
	return &Store{rs: rs, cost: bcrypt.DefaultCost}
}

// WithCost returns a copy hashing at cost. Tests use bcrypt.MinCost.
func (s *Store) WithCost(cost int) *Store {
	return &Store{rs: s.rs, cost: cost}
}

func ref(email string) remote.DocRef {
	return remote.DocRef{Collection: models.CredentialsCollection, ID: email}
}

// Register creates a credential for email and returns the principal id
// assigned to it.
func (s *Store) Register(ctx context.Context, email, password string) (string, error) {
	email = normalize.Email(email)
	if email == "" {
		return "", ErrInvalidLogin
	}
	if len(password) < MinPasswordLen {
		return "", ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}

	cred := models.Credential{
		Email:        email,
		PrincipalID:  "pw:" + remote.NewID(),
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	res, err := s.rs.CreateIfAbsent(ctx, ref(email), cred)
	if err != nil {
		return "", fmt.Errorf("register %s: %w", email, err)
	}
	if res == remote.AlreadyExists {
		return "", ErrEmailTaken
	}
	return cred.PrincipalID, nil
}

// Verify checks password for email and returns the principal id.
func (s *Store) Verify(ctx context.Context, email, password string) (string, error) {
	email = normalize.Email(email)
	raw, err := s.rs.Get(ctx, ref(email))
	if errors.Is(err, remote.ErrNotFound) {
		return "", ErrInvalidLogin
	}
	if err != nil {
		return "", fmt.Errorf("load credential: %w", err)
	}
	cred, err := models.Decode[models.Credential](models.CredentialsCollection, email, raw)
	if err != nil {
		return "", err
	}
	if err := bcrypt.CompareHashAndPassword(cred.PasswordHash, []byte(password)); err != nil {
		return "", ErrInvalidLogin
	}
	return cred.PrincipalID, nil
}
