// internal/app/features/login/handler.go
package login

import (
	"context"
	"errors"
	"net/http"

	credentialstore "github.com/dalemusser/admitdesk/internal/app/store/credentials"
	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/httpjson"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"go.uber.org/zap"
)

// DefaultReturn is where a successful sign-in lands without a return URL.
const DefaultReturn = "/dashboard"

// Handler signs browser clients in with an email and password. Success only
// sets the client's identity; the session machine resolves the role.
type Handler struct {
	Creds         *credentialstore.Store
	Limiter       *ratelimit.LoginLimiter
	GoogleEnabled bool
	Audit         *auditlog.Logger
	Log           *zap.Logger
}

func NewHandler(creds *credentialstore.Store, limiter *ratelimit.LoginLimiter, googleEnabled bool, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Creds:         creds,
		Limiter:       limiter,
		GoogleEnabled: googleEnabled,
		Audit:         audit,
		Log:           logger,
	}
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /login                                                                  |
*─────────────────────────────────────────────────────────────────────────────*/

type loginInfo struct {
	Providers []string `json:"providers"`
	Return    string   `json:"return"`
	Phase     string   `json:"phase"`
}

// ServeLogin describes the available sign-in methods.
func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	providers := []string{"password"}
	if h.GoogleEnabled {
		providers = append(providers, "google")
	}
	httpjson.Write(w, http.StatusOK, loginInfo{
		Providers: providers,
		Return:    urlutil.SafeReturn(query.Get(r, "return"), "", DefaultReturn),
		Phase:     auth.CurrentState(r).Phase().String(),
	})
}

/*─────────────────────────────────────────────────────────────────────────────*
| POST /login, POST /login/signup                                             |
*─────────────────────────────────────────────────────────────────────────────*/

// HandleLoginPost verifies email and password.
func (h *Handler) HandleLoginPost(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "login", h.Creds.Verify)
}

// HandleSignupPost registers a new credential and signs it in.
func (h *Handler) HandleSignupPost(w http.ResponseWriter, r *http.Request) {
	h.handle(w, r, "signup", h.Creds.Register)
}

func (h *Handler) handle(w http.ResponseWriter, r *http.Request, op string, check func(ctx context.Context, email, password string) (string, error)) {
	if err := r.ParseForm(); err != nil {
		httpjson.Error(w, http.StatusBadRequest, "Invalid form data.")
		return
	}
	email := normalize.Email(r.FormValue("email"))
	password := r.FormValue("password")
	if email == "" || password == "" {
		httpjson.Error(w, http.StatusBadRequest, "Please enter your email and password.")
		return
	}

	if ok, msg := h.Limiter.Check(r, email); !ok {
		h.Log.Warn("login rate limited",
			zap.String("op", op),
			zap.String("email", email),
			zap.String("ip", ratelimit.ClientIP(r)))
		h.Audit.LoginFailed(r, email, op, "rate_limited")
		httpjson.Error(w, http.StatusTooManyRequests, msg)
		return
	}

	c, ok := auth.CurrentClient(r)
	if !ok {
		httpjson.Error(w, http.StatusServiceUnavailable, "Session unavailable.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	principal, err := check(ctx, email, password)
	switch {
	case errors.Is(err, credentialstore.ErrInvalidLogin):
		h.Audit.LoginFailed(r, email, op, "invalid_credentials")
		httpjson.Error(w, http.StatusUnauthorized, "Invalid email or password.")
		return
	case errors.Is(err, credentialstore.ErrEmailTaken):
		h.Audit.LoginFailed(r, email, op, "email_taken")
		httpjson.Error(w, http.StatusConflict, "An account with this email already exists.")
		return
	case errors.Is(err, credentialstore.ErrWeakPassword):
		httpjson.Error(w, http.StatusBadRequest, "Password must be at least 8 characters.")
		return
	case err != nil:
		h.Log.Error(op+" failed", zap.String("email", email), zap.Error(err))
		httpjson.Error(w, http.StatusInternalServerError, "Unable to sign in. Please try again.")
		return
	}

	if err := c.Identity.SignIn(identity.Identity{ID: principal, Email: email}); err != nil {
		h.Log.Error("sign in client", zap.String("client", c.ID), zap.Error(err))
		httpjson.Error(w, http.StatusServiceUnavailable, "Session unavailable.")
		return
	}
	h.Limiter.ResetEmail(email)
	h.Log.Info("signed in",
		zap.String("op", op),
		zap.String("principal", principal),
		zap.String("client", c.ID))
	method := "password"
	if op == "signup" {
		method = "signup"
	}
	h.Audit.LoginSuccess(r, principal, method)

	dest := urlutil.SafeReturn(r.FormValue("return"), "", DefaultReturn)
	if auth.WantsHTML(r) {
		http.Redirect(w, r, dest, http.StatusSeeOther)
		return
	}
	httpjson.Write(w, http.StatusOK, map[string]string{"redirect": dest, "principal": principal})
}
