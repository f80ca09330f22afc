// Package gates decides whether a protected view may render for the current
// session, and turns that decision into HTTP.
//
// # Decision
//
// Decide is a pure function of (session.State, Capability). It never
// redirects while the session is still resolving: an unready session gets
// Loading, so a signed-in superadmin is never bounced to the login page
// just because their role record has not arrived yet. Rules, in order:
//
//  1. Not ready → Loading.
//  2. AuthenticatedUser, no identity → Redirect(/login).
//  3. AuthenticatedUser, identity → Render.
//  4. SuperadminRole, no identity or role ≠ superadmin → Redirect(/dashboard).
//  5. SuperadminRole, superadmin → Render.
//
// A failed session (ready, with an error) carries no identity and is handled
// as signed out.
//
// # Middleware
//
// Require wraps a route group. It waits briefly for an unready session to
// resolve, then answers Loading with 202 and a Retry-After header, Redirect
// with 303 for browsers (HX-Redirect for htmx) or 401/403 JSON for API
// callers, and Render by calling the next handler.
package gates

import (
	"context"
	"net/http"
	"net/url"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/domain/models"
)

// Capability is a named access requirement.
type Capability int

const (
	AuthenticatedUser Capability = iota + 1
	SuperadminRole
)

func (c Capability) String() string {
	switch c {
	case AuthenticatedUser:
		return "authenticated_user"
	case SuperadminRole:
		return "superadmin_role"
	}
	return "unknown"
}

// Kind is the outcome of a decision.
type Kind int

const (
	Loading Kind = iota + 1
	Render
	Redirect
)

func (k Kind) String() string {
	switch k {
	case Loading:
		return "loading"
	case Render:
		return "render"
	case Redirect:
		return "redirect"
	}
	return "unknown"
}

const (
	LoginPath     = "/login"
	DashboardPath = "/dashboard"
)

// Decision is what a protected view should do. Path is set for Redirect.
type Decision struct {
	Kind Kind
	Path string
}

// Decide applies the gate rules to s for capability c. Unknown capabilities
// are denied.
func Decide(s session.State, c Capability) Decision {
	if !s.Ready {
		return Decision{Kind: Loading}
	}
	signedIn := s.Identity != nil && s.Err == nil

	switch c {
	case AuthenticatedUser:
		if !signedIn {
			return Decision{Kind: Redirect, Path: LoginPath}
		}
		return Decision{Kind: Render}
	case SuperadminRole:
		if !signedIn || s.Role != models.RoleSuperadmin {
			return Decision{Kind: Redirect, Path: DashboardPath}
		}
		return Decision{Kind: Render}
	}
	return Decision{Kind: Redirect, Path: LoginPath}
}

// Holds returns a check that passes while c still renders for viewerID.
// Live views re-run it on every session change so a socket ends when its
// viewer signs out, is replaced, or loses the role.
func Holds(c Capability, viewerID string) func(session.State) bool {
	return func(s session.State) bool {
		return viewerID != "" && s.ViewerID() == viewerID && Decide(s, c).Kind == Render
	}
}

// DefaultReadyWait is how long Require holds a request for an unready
// session before answering Loading.
const DefaultReadyWait = 2 * time.Second

// Require gates the wrapped handler on c.
func Require(c Capability) func(http.Handler) http.Handler {
	return RequireWithin(c, DefaultReadyWait)
}

// RequireWithin is Require with an explicit ready wait. A zero wait decides
// on the state as it is.
func RequireWithin(c Capability, wait time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s := auth.CurrentState(r)
			if !s.Ready && wait > 0 {
				if cl, ok := auth.CurrentClient(r); ok {
					ctx, cancel := context.WithTimeout(r.Context(), wait)
					if ready, err := cl.Machine.WaitReady(ctx); err == nil {
						s = ready
					}
					cancel()
				}
			}

			d := Decide(s, c)
			switch d.Kind {
			case Render:
				next.ServeHTTP(w, r)
			case Loading:
				w.Header().Set("Retry-After", "1")
				httpjson.Write(w, http.StatusAccepted, map[string]string{"state": "loading"})
			default:
				deny(w, r, d, c)
			}
		})
	}
}

func deny(w http.ResponseWriter, r *http.Request, d Decision, c Capability) {
	status := http.StatusForbidden
	dest := d.Path
	if d.Path == LoginPath {
		status = http.StatusUnauthorized
		dest = LoginPath + "?return=" + url.QueryEscape(auth.CurrentURI(r))
	}

	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", dest)
		w.WriteHeader(status)
		return
	}
	if auth.WantsHTML(r) {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	httpjson.Write(w, status, map[string]string{
		"error":      http.StatusText(status),
		"capability": c.String(),
		"redirect":   d.Path,
	})
}
