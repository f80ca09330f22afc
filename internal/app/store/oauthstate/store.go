// internal/app/store/oauthstate/store.go
package oauthstate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/domain/models"
)

// Collection holds pending OAuth2 state tokens. A TTL index on expires_at
// removes abandoned ones.
const Collection = "oauth_states"

// State is an OAuth2 state token stored for CSRF protection, keyed by the
// token itself.
type State struct {
	ReturnURL string    `bson:"return_url,omitempty"`
	ClientID  string    `bson:"client_id"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

// ErrDuplicate is returned by Save when the token is already stored.
var ErrDuplicate = errors.New("oauth state already stored")

// Store manages OAuth2 state tokens.
type Store struct {
	rs  remote.Store
	now func() time.Time
}

func New(rs remote.Store) *Store {
	return &Store{rs: rs, now: time.Now}
}

func ref(state string) remote.DocRef {
	return remote.DocRef{Collection: Collection, ID: state}
}

// Save stores a state token bound to the browser client that started the
// flow.
func (s *Store) Save(ctx context.Context, state, clientID, returnURL string, expiresAt time.Time) error {
	res, err := s.rs.CreateIfAbsent(ctx, ref(state), State{
		ReturnURL: returnURL,
		ClientID:  clientID,
		ExpiresAt: expiresAt.UTC(),
		CreatedAt: s.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("save oauth state: %w", err)
	}
	if res == remote.AlreadyExists {
		return ErrDuplicate
	}
	return nil
}

// Validate consumes a state token. It reports valid only when the token
// exists, has not expired, and was issued to clientID. The token is deleted
// either way.
func (s *Store) Validate(ctx context.Context, state, clientID string) (returnURL string, valid bool, err error) {
	raw, err := s.rs.Get(ctx, ref(state))
	if errors.Is(err, remote.ErrNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	if err := s.rs.Delete(ctx, ref(state)); err != nil {
		return "", false, err
	}

	st, err := models.Decode[State](Collection, state, raw)
	if err != nil {
		return "", false, err
	}
	if !s.now().Before(st.ExpiresAt) || st.ClientID != clientID {
		return "", false, nil
	}
	return st.ReturnURL, true, nil
}
