// internal/app/features/chat/handler.go
package chat

import (
	conversationstore "github.com/dalemusser/admitdesk/internal/app/store/conversations"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
	"go.uber.org/zap"
)

// Handler serves support conversations: a user's own thread, and any thread
// for a superadmin in the admin view.
type Handler struct {
	Store    remote.Store
	Messages *conversationstore.Store
	Limiter  *ratelimit.Limiter
	Log      *zap.Logger
	Metrics  *metrics.Collector
}

func NewHandler(rs remote.Store, limiter *ratelimit.Limiter, logger *zap.Logger, m *metrics.Collector) *Handler {
	return &Handler{
		Store:    rs,
		Messages: conversationstore.New(rs),
		Limiter:  limiter,
		Log:      logger,
		Metrics:  m,
	}
}
