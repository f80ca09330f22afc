package models

import (
	"time"
)

// MessagesCollection holds chat messages for every conversation. A
// conversation is keyed by the principal id of the user being supported.
const MessagesCollection = "messages"

// SupportLabel is shown as the sender name on messages written from the
// admin side of a conversation.
const SupportLabel = "Support Team"

// ChatMessage is a single message in a support conversation.
//
// CreatedAt is assigned by the store when the message is written, so messages
// from different senders are ordered by arrival at the store rather than by
// any client clock.
type ChatMessage struct {
	ID             string    `bson:"_id" json:"id"`
	ConversationID string    `bson:"conversation_id" json:"conversation_id"`
	Text           string    `bson:"text" json:"text"`
	SenderID       string    `bson:"sender_id" json:"sender_id"`
	SenderName     string    `bson:"sender_name,omitempty" json:"sender_name,omitempty"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
}

func (m *ChatMessage) validate() error {
	if m.SenderID == "" {
		return ErrMissingSender
	}
	return nil
}
