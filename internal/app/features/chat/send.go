// internal/app/features/chat/send.go
package chat

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"unicode/utf8"

	conversationstore "github.com/dalemusser/admitdesk/internal/app/store/conversations"
	"github.com/dalemusser/admitdesk/internal/app/system/authz"
	"github.com/dalemusser/admitdesk/internal/app/system/htmlsanitize"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/app/system/limits"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"go.uber.org/zap"
)

var ErrTooLong = errors.New("message is too long")

type sendRequest struct {
	Text string `json:"text"`
}

// SenderName is the name stamped on a message when it is written. A
// superadmin answering from the admin view writes as the support team;
// everyone else writes as the local part of their email.
func SenderName(role models.Role, id identity.Identity, adminView bool) string {
	if adminView && role == models.RoleSuperadmin {
		return models.SupportLabel
	}
	return id.LocalPart()
}

// CleanText reduces raw input to plain text and enforces the length limit.
func CleanText(raw string) (string, error) {
	text := htmlsanitize.PlainText(raw)
	if text == "" {
		return "", conversationstore.ErrEmptyText
	}
	if utf8.RuneCountInString(text) > limits.MaxChatRunes {
		return "", ErrTooLong
	}
	return text, nil
}

func (h *Handler) send(w http.ResponseWriter, r *http.Request, conversationID string, adminView bool) {
	role, id, ok := authz.UserCtx(r)
	if !ok {
		httpjson.Error(w, http.StatusUnauthorized, "sign in to send messages")
		return
	}
	if !authz.CanWriteConversation(r, conversationID) {
		httpjson.Error(w, http.StatusForbidden, "not your conversation")
		return
	}
	if h.Limiter != nil && !h.Limiter.Allow(id.ID) {
		w.Header().Set("Retry-After", strconv.Itoa(h.Limiter.RetryAfter()))
		httpjson.Error(w, http.StatusTooManyRequests, "slow down")
		return
	}

	raw, err := readText(w, r)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, "bad request body")
		return
	}
	text, err := CleanText(raw)
	if err != nil {
		httpjson.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	msg := models.ChatMessage{
		ConversationID: conversationID,
		Text:           text,
		SenderID:       id.ID,
		SenderName:     SenderName(role, id, adminView),
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "chat send")
	defer cancel()
	msgID, err := h.Messages.Append(ctx, msg)
	if err != nil {
		h.Log.Error("send message",
			zap.String("conversation", conversationID),
			zap.String("sender", id.ID),
			zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "message not sent")
		return
	}
	h.Log.Debug("message sent",
		zap.String("conversation", conversationID),
		zap.String("id", msgID),
		zap.Bool("admin_view", adminView))
	httpjson.Write(w, http.StatusCreated, map[string]string{"id": msgID})
}

// readText accepts either a JSON body or a form post.
func readText(w http.ResponseWriter, r *http.Request) (string, error) {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		var req sendRequest
		if err := httpjson.Decode(w, r, &req); err != nil {
			return "", err
		}
		return req.Text, nil
	}
	r.Body = http.MaxBytesReader(w, r.Body, limits.MaxFormSize)
	if err := r.ParseForm(); err != nil {
		return "", err
	}
	return r.PostForm.Get("text"), nil
}
