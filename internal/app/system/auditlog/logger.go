// internal/app/system/auditlog/logger.go
package auditlog

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dalemusser/admitdesk/internal/app/store/audit"
	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// Destination settings, per category.
const (
	DestAll = "all" // store + zap
	DestDB  = "db"
	DestLog = "log"
	DestOff = "off"
)

// Config holds audit logging configuration.
type Config struct {
	// Auth controls sign-in, sign-up and sign-out events.
	Auth string
	// Admin controls superadmin writes.
	Admin string
}

// Validate rejects unknown destination settings. Empty means DestAll.
func (c Config) Validate() error {
	for name, v := range map[string]string{"audit_auth": c.Auth, "audit_admin": c.Admin} {
		switch v {
		case "", DestAll, DestDB, DestLog, DestOff:
		default:
			return fmt.Errorf("%s must be one of all|db|log|off, got %q", name, v)
		}
	}
	return nil
}

// Logger records audit events to the audit store and to zap.
type Logger struct {
	store  *audit.Store
	zapLog *zap.Logger
	config Config
}

// New creates a new audit Logger.
func New(store *audit.Store, zapLog *zap.Logger, config Config) *Logger {
	return &Logger{
		store:  store,
		zapLog: zapLog,
		config: config,
	}
}

func (l *Logger) logToZap(event audit.Event) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("category", event.Category),
		zap.String("event_type", event.EventType),
		zap.Bool("success", event.Success),
		zap.String("ip", event.IP),
	}
	if event.PrincipalID != "" {
		fields = append(fields, zap.String("principal_id", event.PrincipalID))
	}
	if event.ActorID != "" {
		fields = append(fields, zap.String("actor_id", event.ActorID))
	}
	if event.FailureReason != "" {
		fields = append(fields, zap.String("failure_reason", event.FailureReason))
	}
	for k, v := range event.Details {
		fields = append(fields, zap.String("detail_"+k, v))
	}

	if event.Success {
		l.zapLog.Info("audit event", fields...)
	} else {
		l.zapLog.Warn("audit event", fields...)
	}
}

func (l *Logger) setting(category string) string {
	var s string
	switch category {
	case audit.CategoryAuth:
		s = l.config.Auth
	case audit.CategoryAdmin:
		s = l.config.Admin
	}
	if s == "" {
		return DestAll
	}
	return s
}

// Log records an audit event according to its category's setting. A nil
// Logger is a no-op. Store failures are logged and otherwise ignored; an
// audit write never fails the request it describes.
func (l *Logger) Log(ctx context.Context, event audit.Event) {
	if l == nil {
		return
	}
	setting := l.setting(event.Category)
	if setting == DestOff {
		return
	}
	if setting == DestAll || setting == DestLog {
		l.logToZap(event)
	}
	if setting == DestAll || setting == DestDB {
		wctx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), l.zapLog, "audit write")
		defer cancel()
		if _, err := l.store.Log(wctx, event); err != nil {
			l.zapLog.Error("failed to store audit event",
				zap.Error(err),
				zap.String("event_type", event.EventType))
		}
	}
}

func fromRequest(r *http.Request, category, eventType string) audit.Event {
	return audit.Event{
		Category:  category,
		EventType: eventType,
		IP:        ratelimit.ClientIP(r),
		UserAgent: r.UserAgent(),
		Success:   true,
	}
}

// --- Authentication Events ---

// LoginSuccess logs a successful sign-in. method is "password", "signup"
// or "google".
func (l *Logger) LoginSuccess(r *http.Request, principalID, method string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginSuccess)
	if method == "signup" {
		e.EventType = audit.EventSignup
	}
	e.PrincipalID = principalID
	e.Details = map[string]string{"method": method}
	l.Log(r.Context(), e)
}

// LoginFailed logs a rejected sign-in attempt.
func (l *Logger) LoginFailed(r *http.Request, email, method, reason string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLoginFailed)
	e.Success = false
	e.FailureReason = reason
	e.Details = map[string]string{"method": method}
	if email != "" {
		e.Details["email"] = email
	}
	l.Log(r.Context(), e)
}

// Logout logs a sign-out.
func (l *Logger) Logout(r *http.Request, principalID string) {
	e := fromRequest(r, audit.CategoryAuth, audit.EventLogout)
	e.PrincipalID = principalID
	l.Log(r.Context(), e)
}

// --- Admin Events ---

// ApplicationStatusChanged logs a superadmin decision on an application.
func (l *Logger) ApplicationStatusChanged(r *http.Request, actorID, applicationID, status string) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventApplicationStatusChanged)
	e.ActorID = actorID
	e.Details = map[string]string{"application_id": applicationID, "status": status}
	l.Log(r.Context(), e)
}

// RoleChanged logs a role assignment.
func (l *Logger) RoleChanged(r *http.Request, actorID, principalID, role string) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventRoleChanged)
	e.ActorID = actorID
	e.PrincipalID = principalID
	e.Details = map[string]string{"role": role}
	l.Log(r.Context(), e)
}

// EventAdded logs a new dashboard or public event.
func (l *Logger) EventAdded(r *http.Request, actorID, kind, eventID, title string) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventEventAdded)
	e.ActorID = actorID
	e.Details = map[string]string{"kind": kind, "event_id": eventID, "title": title}
	l.Log(r.Context(), e)
}

// EventDeleted logs an event removal.
func (l *Logger) EventDeleted(r *http.Request, actorID, kind, eventID string) {
	e := fromRequest(r, audit.CategoryAdmin, audit.EventEventDeleted)
	e.ActorID = actorID
	e.Details = map[string]string{"kind": kind, "event_id": eventID}
	l.Log(r.Context(), e)
}
