// internal/app/bootstrap/appconfig.go
package bootstrap

import "time"

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). WAFFLE's CoreConfig covers the
// framework-level settings (ports, TLS, logging, CORS); everything specific
// to admitdesk lives here.
type AppConfig struct {
	// Store backend: "mongo" (change streams; needs a replica set) or
	// "memory" (single process, nothing persisted).
	StoreBackend string

	// MongoDB connection configuration
	MongoURI         string
	MongoDatabase    string
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// Client cookie configuration
	SessionKey    string        // Secret key for signing the client cookie
	SessionName   string        // Cookie name (default: admitdesk-session)
	SessionDomain string        // Cookie domain (blank means current host)
	SessionMaxAge time.Duration // Cookie lifetime

	// Session clients with no request for this long are closed, releasing
	// their role subscription.
	ClientIdleTTL      time.Duration
	ClientReapInterval time.Duration

	// Public origin, used for the OAuth callback URL.
	BaseURL string

	// Google OAuth (optional; both or neither)
	GoogleClientID     string
	GoogleClientSecret string

	// Principals signing in with this email get the superadmin role.
	SuperAdminEmail string

	// Chat sends allowed per sender per minute.
	ChatRateLimit int

	// Audit destinations per category: all, db, log or off.
	AuditAuth  string
	AuditAdmin string

	// I/O timeouts; zero keeps the defaults.
	TimeoutShort  time.Duration
	TimeoutMedium time.Duration
}
