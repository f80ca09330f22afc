// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	adminfeature "github.com/dalemusser/admitdesk/internal/app/features/admin"
	authgooglefeature "github.com/dalemusser/admitdesk/internal/app/features/authgoogle"
	chatfeature "github.com/dalemusser/admitdesk/internal/app/features/chat"
	dashboardfeature "github.com/dalemusser/admitdesk/internal/app/features/dashboard"
	eventsfeature "github.com/dalemusser/admitdesk/internal/app/features/events"
	healthfeature "github.com/dalemusser/admitdesk/internal/app/features/health"
	errorsfeature "github.com/dalemusser/admitdesk/internal/app/features/errors"
	heartbeatfeature "github.com/dalemusser/admitdesk/internal/app/features/heartbeat"
	loginfeature "github.com/dalemusser/admitdesk/internal/app/features/login"
	logoutfeature "github.com/dalemusser/admitdesk/internal/app/features/logout"
	userinfofeature "github.com/dalemusser/admitdesk/internal/app/features/userinfo"
	credentialstore "github.com/dalemusser/admitdesk/internal/app/store/credentials"
	"github.com/dalemusser/admitdesk/internal/app/store/oauthstate"
	"github.com/dalemusser/admitdesk/internal/app/system/auth"
	"github.com/dalemusser/admitdesk/internal/app/system/gates"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/waffle/config"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// Every route except /health and /metrics runs behind LoadClient, which
// binds the request to its session client. Protected areas are wrapped in
// gate middleware; an unresolved session is answered with a loading
// response rather than a redirect.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	// Secure cookies are enabled in production mode.
	secure := coreCfg.Env == "prod"
	sessionMgr, err := auth.NewSessionManager(appCfg.SessionKey, appCfg.SessionName, appCfg.SessionDomain,
		appCfg.SessionMaxAge, secure, deps.Clients, logger)
	if err != nil {
		logger.Error("session manager init failed", zap.Error(err))
		return nil, err
	}

	r := chi.NewRouter()

	errorsHandler := errorsfeature.NewHandler(logger)
	r.NotFound(errorsHandler.NotFound)
	r.MethodNotAllowed(errorsHandler.MethodNotAllowed)

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(healthfeature.PingFunc(pinger(deps)), deps.Backend, deps.Clients, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))
	r.Handle("/metrics", metrics.Handler(deps.Registry))

	r.Group(func(cr chi.Router) {
		cr.Use(sessionMgr.LoadClient)

		userinfofeature.MountRoutes(cr, userinfofeature.NewHandler(logger, deps.Metrics))
		cr.Mount("/heartbeat", heartbeatfeature.Routes(heartbeatfeature.NewHandler()))

		// Authentication
		googleHandler := authgooglefeature.NewHandler(oauthstate.New(deps.Store),
			appCfg.GoogleClientID, appCfg.GoogleClientSecret, appCfg.BaseURL, deps.Audit, logger)
		loginHandler := loginfeature.NewHandler(credentialstore.New(deps.Store), deps.LoginLimiter,
			googleHandler.IsConfigured(), deps.Audit, logger)
		cr.Mount("/login", loginfeature.Routes(loginHandler))
		cr.Mount("/auth/google", authgooglefeature.Routes(googleHandler))
		cr.Mount("/logout", logoutfeature.Routes(logoutfeature.NewHandler(deps.Audit, logger)))

		// Public listing
		cr.Mount("/events", eventsfeature.Routes(eventsfeature.NewHandler(deps.Store, logger, deps.Metrics)))

		chatHandler := chatfeature.NewHandler(deps.Store, deps.ChatLimiter, logger, deps.Metrics)

		// Signed-in users
		cr.Group(func(pr chi.Router) {
			pr.Use(gates.Require(gates.AuthenticatedUser))
			pr.Mount("/dashboard", dashboardfeature.Routes(dashboardfeature.NewHandler(deps.Store, logger, deps.Metrics)))
			pr.Mount("/chat", chatfeature.Routes(chatHandler))
		})

		// Superadmins
		cr.Group(func(ar chi.Router) {
			ar.Use(gates.Require(gates.SuperadminRole))
			adminRouter := adminfeature.Routes(adminfeature.NewHandler(deps.Store, deps.Audit, logger, deps.Metrics))
			adminRouter.Mount("/conversations", chatfeature.AdminRoutes(chatHandler))
			ar.Mount("/admin", adminRouter)
		})
	})

	return r, nil
}
