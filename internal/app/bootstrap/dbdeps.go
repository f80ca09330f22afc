// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/app/system/workers"
	"github.com/prometheus/client_golang/prometheus"
	"go.mongodb.org/mongo-driver/mongo"
)

// DBDeps holds the backends and long-lived services owned by the process.
// ConnectDB creates them; Shutdown releases them.
type DBDeps struct {
	// Mongo handles are nil on the memory backend.
	MongoClient   *mongo.Client
	MongoDatabase *mongo.Database

	Backend string
	Store   remote.Store

	Registry *prometheus.Registry
	Metrics  *metrics.Collector

	// Clients owns one session machine per browser client.
	Clients *session.Manager
	Reaper  *workers.ClientReaper

	ChatLimiter  *ratelimit.Limiter
	LoginLimiter *ratelimit.LoginLimiter

	Audit *auditlog.Logger
}
