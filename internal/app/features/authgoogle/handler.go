// internal/app/features/authgoogle/handler.go
package authgoogle

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/oauthstate"
	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/identity"
	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/dalemusser/waffle/pantry/urlutil"
	"github.com/gorilla/securecookie"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const (
	// DefaultUserInfoURL is Google's OAuth2 userinfo endpoint.
	DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"

	// PrincipalPrefix namespaces Google principals so they never collide
	// with password principals.
	PrincipalPrefix = "google:"

	stateTTL = 10 * time.Minute
)

// Handler signs browser clients in with Google. Like the password login it
// only sets the client's identity; the session machine resolves the role.
type Handler struct {
	Log        *zap.Logger
	Audit      *auditlog.Logger
	StateStore *oauthstate.Store

	ClientID     string
	ClientSecret string
	RedirectURL  string // e.g., "https://admitdesk.example/auth/google/callback"

	// Endpoint and UserInfoURL default to Google's. Tests point them at a
	// local server.
	Endpoint    oauth2.Endpoint
	UserInfoURL string
}

// NewHandler creates a Google OAuth handler. baseURL is the public origin
// the callback is served from.
func NewHandler(stateStore *oauthstate.Store, clientID, clientSecret, baseURL string, audit *auditlog.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		Log:          logger,
		Audit:        audit,
		StateStore:   stateStore,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  baseURL + "/auth/google/callback",
		Endpoint:     google.Endpoint,
		UserInfoURL:  DefaultUserInfoURL,
	}
}

func (h *Handler) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     h.ClientID,
		ClientSecret: h.ClientSecret,
		RedirectURL:  h.RedirectURL,
		Scopes: []string{
			"openid",
			"https://www.googleapis.com/auth/userinfo.email",
		},
		Endpoint: h.Endpoint,
	}
}

// IsConfigured returns true if Google OAuth is configured.
func (h *Handler) IsConfigured() bool {
	return h.ClientID != "" && h.ClientSecret != ""
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google                                                             |
| Initiates the Google OAuth flow by redirecting to Google's consent screen.   |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeLogin(w http.ResponseWriter, r *http.Request) {
	if !h.IsConfigured() {
		h.Log.Warn("Google OAuth not configured")
		http.Redirect(w, r, "/login?error=google_not_configured", http.StatusSeeOther)
		return
	}
	c, ok := auth.CurrentClient(r)
	if !ok {
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	state, err := generateState()
	if err != nil {
		h.Log.Error("failed to generate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	returnURL := query.Get(r, "return")

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	if err := h.StateStore.Save(ctx, state, c.ID, returnURL, time.Now().Add(stateTTL)); err != nil {
		h.Log.Error("failed to save OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	url := h.oauth2Config().AuthCodeURL(state)
	h.Log.Debug("initiating Google OAuth flow",
		zap.String("client", c.ID),
		zap.String("return_url", returnURL))
	http.Redirect(w, r, url, http.StatusTemporaryRedirect)
}

/*─────────────────────────────────────────────────────────────────────────────*
| GET /auth/google/callback                                                    |
*─────────────────────────────────────────────────────────────────────────────*/

func (h *Handler) ServeCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if errParam := r.URL.Query().Get("error"); errParam != "" {
		h.Log.Warn("Google OAuth error",
			zap.String("error", errParam),
			zap.String("description", r.URL.Query().Get("error_description")))
		http.Redirect(w, r, "/login?error=google_denied", http.StatusSeeOther)
		return
	}

	c, ok := auth.CurrentClient(r)
	if !ok {
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		h.Log.Warn("missing OAuth state parameter")
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	sctx, cancel := context.WithTimeout(ctx, timeouts.Short())
	defer cancel()

	returnURL, valid, err := h.StateStore.Validate(sctx, state, c.ID)
	if err != nil {
		h.Log.Error("failed to validate OAuth state", zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	if !valid {
		h.Log.Warn("invalid or expired OAuth state", zap.String("client", c.ID))
		http.Redirect(w, r, "/login?error=invalid_state", http.StatusSeeOther)
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		h.Log.Warn("missing OAuth code parameter")
		http.Redirect(w, r, "/login?error=invalid_code", http.StatusSeeOther)
		return
	}

	token, err := h.oauth2Config().Exchange(ctx, code)
	if err != nil {
		h.Log.Error("failed to exchange OAuth code", zap.Error(err))
		http.Redirect(w, r, "/login?error=token_exchange", http.StatusSeeOther)
		return
	}

	info, err := h.fetchUserInfo(ctx, token)
	if err != nil {
		h.Log.Error("failed to fetch Google user info", zap.Error(err))
		http.Redirect(w, r, "/login?error=user_info", http.StatusSeeOther)
		return
	}
	if info.ID == "" || !info.EmailVerified {
		h.Log.Info("Google account rejected",
			zap.String("google_id", info.ID),
			zap.Bool("verified", info.EmailVerified))
		h.Audit.LoginFailed(r, normalize.Email(info.Email), "google", "unverified_email")
		http.Redirect(w, r, "/login?error=unverified_email", http.StatusSeeOther)
		return
	}

	id := identity.Identity{ID: PrincipalPrefix + info.ID, Email: normalize.Email(info.Email)}
	if err := c.Identity.SignIn(id); err != nil {
		h.Log.Error("sign in client", zap.String("client", c.ID), zap.Error(err))
		http.Redirect(w, r, "/login?error=internal", http.StatusSeeOther)
		return
	}
	h.Log.Info("signed in",
		zap.String("op", "google"),
		zap.String("principal", id.ID),
		zap.String("client", c.ID))
	h.Audit.LoginSuccess(r, id.ID, "google")

	http.Redirect(w, r, urlutil.SafeReturn(returnURL, "", "/dashboard"), http.StatusSeeOther)
}

type googleUserInfo struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"verified_email"`
}

func (h *Handler) fetchUserInfo(ctx context.Context, token *oauth2.Token) (*googleUserInfo, error) {
	client := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))

	resp, err := client.Get(h.UserInfoURL)
	if err != nil {
		return nil, fmt.Errorf("fetch user info: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode user info: %w", err)
	}
	return &info, nil
}

// generateState creates a cryptographically secure random state string.
func generateState() (string, error) {
	b := securecookie.GenerateRandomKey(32)
	if b == nil {
		return "", errors.New("no randomness available for OAuth state")
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
