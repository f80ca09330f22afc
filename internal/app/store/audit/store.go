// internal/app/store/audit/store.go
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"go.mongodb.org/mongo-driver/bson"
)

// Collection holds one document per audit event.
const Collection = "audit_events"

// Event categories
const (
	CategoryAuth  = "auth"
	CategoryAdmin = "admin"
)

// Auth event types
const (
	EventLoginSuccess = "login_success"
	EventLoginFailed  = "login_failed"
	EventSignup       = "signup"
	EventLogout       = "logout"
)

// Admin event types
const (
	EventApplicationStatusChanged = "application_status_changed"
	EventRoleChanged              = "role_changed"
	EventEventAdded               = "event_added"
	EventEventDeleted             = "event_deleted"
)

// Event represents an audit event.
type Event struct {
	ID        string    `bson:"_id" json:"id"`
	Timestamp time.Time `bson:"timestamp,omitempty" json:"timestamp"`

	Category  string `bson:"category" json:"category"`
	EventType string `bson:"event_type" json:"event_type"`

	// Who
	PrincipalID string `bson:"principal_id,omitempty" json:"principal_id,omitempty"` // affected principal
	ActorID     string `bson:"actor_id,omitempty" json:"actor_id,omitempty"`         // who performed the action

	IP        string `bson:"ip" json:"ip"`
	UserAgent string `bson:"user_agent,omitempty" json:"user_agent,omitempty"`

	Success       bool   `bson:"success" json:"success"`
	FailureReason string `bson:"failure_reason,omitempty" json:"failure_reason,omitempty"`

	Details map[string]string `bson:"details,omitempty" json:"details,omitempty"`
}

// Store manages audit event records.
type Store struct {
	rs remote.Store
}

// New creates a new audit Store.
func New(rs remote.Store) *Store {
	return &Store{rs: rs}
}

// Log records an audit event. The timestamp is assigned by the store.
func (s *Store) Log(ctx context.Context, event Event) (string, error) {
	event.ID = ""
	id, err := s.rs.Add(ctx, Collection, event, "timestamp")
	if err != nil {
		return "", fmt.Errorf("log audit event %s: %w", event.EventType, err)
	}
	return id, nil
}

// Query selects audit events, optionally narrowed to one category.
func Query(category string) remote.Query {
	q := remote.Query{
		Collection: Collection,
		Sort:       bson.D{{Key: "timestamp", Value: -1}},
	}
	if category != "" {
		q.Filter = bson.M{"category": category}
	}
	return q
}

// NewestFirst orders events by descending timestamp, then id.
func NewestFirst(a, b Event) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	return a.ID > b.ID
}
