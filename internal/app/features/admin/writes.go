// internal/app/features/admin/writes.go
package admin

import (
	"errors"
	"net/http"

	applicationstore "github.com/dalemusser/admitdesk/internal/app/store/applications"
	eventstore "github.com/dalemusser/admitdesk/internal/app/store/events"
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/app/system/authz"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

type statusRequest struct {
	Status models.ApplicationStatus `json:"status"`
}

type eventRequest struct {
	Title string           `json:"title"`
	Type  models.EventType `json:"type"`
	Date  string           `json:"date"`
}

type roleRequest struct {
	Role models.Role `json:"role"`
}

// writeStatus maps store errors onto HTTP. Anything unrecognised is a store
// failure and is passed back as such; there is no retry.
func (h *Handler) writeStatus(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, remote.ErrNotFound):
		httpjson.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, applicationstore.ErrBadStatus),
		errors.Is(err, userstore.ErrBadRole),
		errors.Is(err, eventstore.ErrBadKind),
		errors.Is(err, eventstore.ErrBadType),
		errors.Is(err, eventstore.ErrBadDate),
		errors.Is(err, eventstore.ErrNoTitle):
		httpjson.Error(w, http.StatusBadRequest, err.Error())
	default:
		h.Log.Error("admin write failed", zap.String("op", op), zap.Error(err))
		httpjson.Error(w, http.StatusBadGateway, "write failed")
	}
}

// HandleApplicationStatus handles POST /admin/applications/{id}/status.
func (h *Handler) HandleApplicationStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req statusRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "bad request body")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "application status")
	defer cancel()
	if err := h.Apps.UpdateStatus(ctx, id, req.Status); err != nil {
		h.writeStatus(w, "application_status", err)
		return
	}
	h.Log.Info("application status changed",
		zap.String("application", id),
		zap.String("status", string(req.Status)),
		zap.String("by", authz.ViewerID(r)))
	h.Audit.ApplicationStatusChanged(r, authz.ViewerID(r), id, string(req.Status))
	w.WriteHeader(http.StatusNoContent)
}

// HandleAddEvent handles POST /admin/events/{kind}. The response is sent
// only after the store has accepted the event.
func (h *Handler) HandleAddEvent(w http.ResponseWriter, r *http.Request) {
	kind := models.EventKind(chi.URLParam(r, "kind"))
	var req eventRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "bad request body")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "add event")
	defer cancel()
	id, err := h.Events.Add(ctx, kind, models.Event{Title: req.Title, Type: req.Type, Date: req.Date})
	if err != nil {
		h.writeStatus(w, "add_event", err)
		return
	}
	h.Log.Info("event added",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("by", authz.ViewerID(r)))
	h.Audit.EventAdded(r, authz.ViewerID(r), string(kind), id, req.Title)
	httpjson.Write(w, http.StatusCreated, map[string]string{"id": id})
}

// HandleDeleteEvent handles DELETE /admin/events/{kind}/{id}.
func (h *Handler) HandleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	kind := models.EventKind(chi.URLParam(r, "kind"))
	id := chi.URLParam(r, "id")

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "delete event")
	defer cancel()
	if err := h.Events.Delete(ctx, kind, id); err != nil {
		h.writeStatus(w, "delete_event", err)
		return
	}
	h.Log.Info("event deleted",
		zap.String("kind", string(kind)),
		zap.String("id", id),
		zap.String("by", authz.ViewerID(r)))
	h.Audit.EventDeleted(r, authz.ViewerID(r), string(kind), id)
	w.WriteHeader(http.StatusNoContent)
}

// HandleSetRole handles POST /admin/users/{id}/role.
func (h *Handler) HandleSetRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req roleRequest
	if err := httpjson.Decode(w, r, &req); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "bad request body")
		return
	}

	ctx, cancel := timeouts.WithTimeout(r.Context(), timeouts.Short(), h.Log, "set role")
	defer cancel()
	if err := h.Users.SetRole(ctx, id, req.Role); err != nil {
		h.writeStatus(w, "set_role", err)
		return
	}
	h.Log.Info("role changed",
		zap.String("principal", id),
		zap.String("role", string(req.Role)),
		zap.String("by", authz.ViewerID(r)))
	h.Audit.RoleChanged(r, authz.ViewerID(r), id, string(req.Role))
	w.WriteHeader(http.StatusNoContent)
}
