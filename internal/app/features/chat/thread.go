// internal/app/features/chat/thread.go
package chat

import (
	"context"
	"net/http"
	"time"

	conversationstore "github.com/dalemusser/admitdesk/internal/app/store/conversations"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/authz"
	"github.com/dalemusser/admitdesk/internal/app/system/gates"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/livesock"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

// MessageView is one message as a particular viewer sees it.
type MessageView struct {
	ID         string    `json:"id"`
	Text       string    `json:"text"`
	SenderName string    `json:"sender_name"`
	CreatedAt  time.Time `json:"created_at"`
	Mine       bool      `json:"mine"`
}

// Thread is a conversation snapshot for one viewer.
type Thread struct {
	ConversationID string        `json:"conversation_id"`
	Loaded         bool          `json:"loaded"`
	Messages       []MessageView `json:"messages"`
}

// MessageBefore orders messages by store arrival, then id.
func MessageBefore(a, b models.ChatMessage) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// ThreadOf renders s for viewerID. Attribution is relative to the viewer,
// so the same snapshot reads differently on each side of the conversation.
func ThreadOf(conversationID string, s livemirror.Snapshot[models.ChatMessage], viewerID string) Thread {
	t := Thread{ConversationID: conversationID, Loaded: s.Loaded, Messages: make([]MessageView, 0, s.Len())}
	for _, m := range s.Values() {
		t.Messages = append(t.Messages, MessageView{
			ID:         m.ID,
			Text:       m.Text,
			SenderName: m.SenderName,
			CreatedAt:  m.CreatedAt,
			Mine:       viewerID != "" && m.SenderID == viewerID,
		})
	}
	return t
}

func (h *Handler) openThread(ctx context.Context, conversationID string) (*livemirror.Mirror[models.ChatMessage], error) {
	return livemirror.Open[models.ChatMessage](ctx, h.Store, conversationstore.Query(conversationID),
		models.Decoder[models.ChatMessage](models.MessagesCollection),
		livemirror.Options[models.ChatMessage]{
			Name:    "chat",
			Less:    MessageBefore,
			Log:     h.Log,
			Metrics: h.Metrics,
		})
}

func (h *Handler) serveThread(w http.ResponseWriter, r *http.Request, conversationID string) {
	if !authz.CanWriteConversation(r, conversationID) {
		httpjson.Error(w, http.StatusForbidden, "not your conversation")
		return
	}

	m, err := h.openThread(r.Context(), conversationID)
	if err != nil {
		h.Log.Error("open conversation", zap.String("conversation", conversationID), zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "conversation unavailable")
		return
	}
	defer m.Close()

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()
	snap, err := m.WaitLoaded(ctx)
	if err != nil {
		h.Log.Warn("load conversation", zap.String("conversation", conversationID), zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "conversation unavailable")
		return
	}
	httpjson.Write(w, http.StatusOK, ThreadOf(conversationID, snap, authz.ViewerID(r)))
}

// serveLive streams the conversation for as long as the caller keeps
// capability c.
func (h *Handler) serveLive(w http.ResponseWriter, r *http.Request, conversationID string, c gates.Capability) {
	if !authz.CanWriteConversation(r, conversationID) {
		httpjson.Error(w, http.StatusForbidden, "not your conversation")
		return
	}

	// The mirror lives for the socket, not the request.
	m, err := h.openThread(context.Background(), conversationID)
	if err != nil {
		h.Log.Error("open conversation", zap.String("conversation", conversationID), zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "conversation unavailable")
		return
	}
	viewer := authz.ViewerID(r)
	feed := livesock.MirrorFeed(m, func(s livemirror.Snapshot[models.ChatMessage]) Thread {
		return ThreadOf(conversationID, s, viewer)
	})
	client, _ := auth.CurrentClient(r)
	opts := livesock.Options{
		Name:    "chat",
		Log:     h.Log,
		Metrics: h.Metrics,
		Session: client,
		Allow:   gates.Holds(c, viewer),
	}
	if err := livesock.Serve(w, r, feed, opts); err != nil {
		h.Log.Debug("chat socket upgrade failed", zap.Error(err))
	}
}
