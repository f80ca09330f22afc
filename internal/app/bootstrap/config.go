// internal/app/bootstrap/config.go
package bootstrap

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// appConfigKeys defines the configuration keys for admitdesk.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, session_name, etc.
//   - Environment variables: ADMITDESK_MONGO_URI, ADMITDESK_SESSION_NAME, etc.
//   - Command-line flags: --mongo_uri, --session_name, etc.
var appConfigKeys = []config.AppKey{
	{Name: "store_backend", Default: BackendMongo, Desc: "Store backend: 'mongo' or 'memory'"},

	{Name: "mongo_uri", Default: "mongodb://localhost:27017/?replicaSet=rs0", Desc: "MongoDB connection URI (replica set required for change streams)"},
	{Name: "mongo_database", Default: "admitdesk", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	{Name: "session_key", Default: "dev-only-change-me-please-0123456789ABCDEF", Desc: "Client cookie signing key (must be strong in production)"},
	{Name: "session_name", Default: "admitdesk-session", Desc: "Client cookie name"},
	{Name: "session_domain", Default: "", Desc: "Client cookie domain (blank means current host)"},
	{Name: "session_max_age", Default: "720h", Desc: "Client cookie lifetime"},

	{Name: "client_idle_ttl", Default: "30m", Desc: "Close session clients idle for this long"},
	{Name: "client_reap_interval", Default: "1m", Desc: "How often idle session clients are swept"},

	{Name: "base_url", Default: "http://localhost:3000", Desc: "Public origin for OAuth callbacks"},

	{Name: "google_client_id", Default: "", Desc: "Google OAuth2 client ID"},
	{Name: "google_client_secret", Default: "", Desc: "Google OAuth2 client secret"},

	{Name: "superadmin_email", Default: "", Desc: "Email that is given the superadmin role (promoted on startup and at first sign-in)"},

	{Name: "chat_rate_limit", Default: 20, Desc: "Chat messages allowed per sender per minute"},

	{Name: "audit_auth", Default: "all", Desc: "Where sign-in audit events go: all, db, log, off"},
	{Name: "audit_admin", Default: "all", Desc: "Where superadmin write audit events go: all, db, log, off"},

	{Name: "timeout_short", Default: "", Desc: "Timeout for single-document reads and writes (e.g., 5s)"},
	{Name: "timeout_medium", Default: "", Desc: "Timeout for initial snapshot loads (e.g., 10s)"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// WAFFLE's config.LoadWithAppConfig handles .env files, config files,
// ADMITDESK_* environment variables and flags, merged with precedence
// flags > env > files > defaults.
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "ADMITDESK", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		StoreBackend: strings.ToLower(strings.TrimSpace(appValues.String("store_backend"))),

		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		SessionKey:    appValues.String("session_key"),
		SessionName:   appValues.String("session_name"),
		SessionDomain: appValues.String("session_domain"),
		SessionMaxAge: appValues.Duration("session_max_age", 30*24*time.Hour),

		ClientIdleTTL:      appValues.Duration("client_idle_ttl", 30*time.Minute),
		ClientReapInterval: appValues.Duration("client_reap_interval", time.Minute),

		BaseURL: strings.TrimRight(appValues.String("base_url"), "/"),

		GoogleClientID:     appValues.String("google_client_id"),
		GoogleClientSecret: appValues.String("google_client_secret"),

		SuperAdminEmail: appValues.String("superadmin_email"),

		ChatRateLimit: appValues.Int("chat_rate_limit"),

		AuditAuth:  strings.ToLower(strings.TrimSpace(appValues.String("audit_auth"))),
		AuditAdmin: strings.ToLower(strings.TrimSpace(appValues.String("audit_admin"))),

		TimeoutShort:  appValues.Duration("timeout_short", 0),
		TimeoutMedium: appValues.Duration("timeout_medium", 0),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	switch appCfg.StoreBackend {
	case BackendMongo:
		if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
			logger.Error("invalid MongoDB URI", zap.Error(err))
			return fmt.Errorf("invalid MongoDB URI: %w", err)
		}
		if appCfg.MongoDatabase == "" {
			return errors.New("mongo_database is required")
		}
	case BackendMemory:
		if coreCfg != nil && coreCfg.Env == "prod" {
			logger.Warn("memory store backend in production; nothing will be persisted")
		}
	default:
		return fmt.Errorf("store_backend must be %q or %q, got %q", BackendMongo, BackendMemory, appCfg.StoreBackend)
	}

	if (appCfg.GoogleClientID == "") != (appCfg.GoogleClientSecret == "") {
		return errors.New("google_client_id and google_client_secret must be set together")
	}
	if appCfg.ChatRateLimit <= 0 {
		return fmt.Errorf("chat_rate_limit must be positive, got %d", appCfg.ChatRateLimit)
	}
	if appCfg.ClientIdleTTL <= 0 || appCfg.ClientReapInterval <= 0 {
		return errors.New("client_idle_ttl and client_reap_interval must be positive")
	}
	if err := auditConfig(appCfg).Validate(); err != nil {
		return err
	}
	return nil
}

func auditConfig(appCfg AppConfig) auditlog.Config {
	return auditlog.Config{Auth: appCfg.AuditAuth, Admin: appCfg.AuditAdmin}
}
