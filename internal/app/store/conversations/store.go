// Package conversationstore writes support chat messages.
package conversationstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
)

var (
	ErrEmptyText      = errors.New("message text is empty")
	ErrNoSender       = errors.New("message has no sender")
	ErrNoConversation = errors.New("message has no conversation")
)

// Store appends messages to conversations.
type Store struct {
	rs remote.Store
}

func New(rs remote.Store) *Store {
	return &Store{rs: rs}
}

// Query selects the messages of one conversation in the order they reached
// the store.
func Query(conversationID string) remote.Query {
	return remote.Query{
		Collection: models.MessagesCollection,
		Filter:     bson.M{"conversation_id": conversationID},
		Sort:       bson.D{{Key: "created_at", Value: 1}},
	}
}

// Append writes msg to its conversation. CreatedAt is set by the store; any
// value on msg is ignored. Returns the new message id.
func (s *Store) Append(ctx context.Context, msg models.ChatMessage) (string, error) {
	switch {
	case strings.TrimSpace(msg.Text) == "":
		return "", ErrEmptyText
	case msg.SenderID == "":
		return "", ErrNoSender
	case msg.ConversationID == "":
		return "", ErrNoConversation
	}
	id, err := s.rs.Add(ctx, models.MessagesCollection, msg, "created_at")
	if err != nil {
		return "", fmt.Errorf("append message to %s: %w", msg.ConversationID, err)
	}
	return id, nil
}
