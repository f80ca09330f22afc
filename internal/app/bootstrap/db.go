// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/dalemusser/admitdesk/internal/app/store/audit"
	"github.com/dalemusser/admitdesk/internal/app/store/remote/memstore"
	"github.com/dalemusser/admitdesk/internal/app/store/remote/mongostore"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/app/system/auditlog"
	"github.com/dalemusser/admitdesk/internal/app/system/indexes"
	"github.com/dalemusser/admitdesk/internal/app/system/metrics"
	"github.com/dalemusser/admitdesk/internal/app/system/ratelimit"
	"github.com/dalemusser/admitdesk/internal/app/system/session"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/app/system/validators"
	"github.com/dalemusser/admitdesk/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// ConnectDB opens the configured store backend and builds the services that
// hang off it.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	timeouts.Configure(timeouts.Config{Short: appCfg.TimeoutShort, Medium: appCfg.TimeoutMedium})

	deps := DBDeps{Backend: appCfg.StoreBackend}

	switch appCfg.StoreBackend {
	case BackendMemory:
		logger.Warn("using in-memory store; data is lost on exit")
		deps.Store = memstore.New()
	default:
		client, db, err := connectMongo(ctx, appCfg, logger)
		if err != nil {
			return DBDeps{}, err
		}
		deps.MongoClient, deps.MongoDatabase = client, db
		deps.Store = mongostore.New(db, logger)
	}

	deps.Registry = prometheus.NewRegistry()
	deps.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	deps.Metrics = metrics.NewCollector(deps.Registry)

	deps.Clients = session.NewManager(deps.Store, session.Options{
		Provisioner:      userstore.New(deps.Store).WithSuperadminEmail(appCfg.SuperAdminEmail),
		ProvisionTimeout: timeouts.Short(),
		Log:              logger.Named("session"),
		Metrics:          deps.Metrics,
	})
	deps.Reaper = workers.NewClientReaper(deps.Clients, logger, appCfg.ClientReapInterval, appCfg.ClientIdleTTL)

	deps.ChatLimiter = ratelimit.New(appCfg.ChatRateLimit, time.Minute)
	deps.LoginLimiter = ratelimit.NewLoginLimiter()

	deps.Audit = auditlog.New(audit.New(deps.Store), logger.Named("audit"), auditConfig(appCfg))

	return deps, nil
}

func connectMongo(ctx context.Context, appCfg AppConfig, logger *zap.Logger) (*mongo.Client, *mongo.Database, error) {
	opts := options.Client().
		ApplyURI(appCfg.MongoURI).
		SetMaxPoolSize(appCfg.MongoMaxPoolSize).
		SetMinPoolSize(appCfg.MongoMinPoolSize)

	cctx, cancel := context.WithTimeout(ctx, timeouts.Long())
	defer cancel()
	client, err := mongo.Connect(cctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("connect MongoDB: %w", err)
	}

	pctx, pcancel := context.WithTimeout(ctx, timeouts.Ping())
	defer pcancel()
	if err := client.Ping(pctx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	logger.Info("connected to MongoDB",
		zap.String("database", appCfg.MongoDatabase),
		zap.Uint64("max_pool", appCfg.MongoMaxPoolSize))
	return client, client.Database(appCfg.MongoDatabase), nil
}

// EnsureSchema applies collection validators and indexes. The memory
// backend has neither.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.MongoDatabase == nil {
		return nil
	}
	if err := validators.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure validators", zap.Error(err))
		return fmt.Errorf("ensure validators: %w", err)
	}
	if err := indexes.EnsureAll(ctx, deps.MongoDatabase); err != nil {
		logger.Error("ensure indexes", zap.Error(err))
		return fmt.Errorf("ensure indexes: %w", err)
	}
	logger.Info("schema ensured")
	return nil
}

// pinger reports store health for /health.
func pinger(deps DBDeps) func(ctx context.Context) error {
	if deps.MongoClient == nil {
		return func(context.Context) error { return nil }
	}
	return func(ctx context.Context) error { return deps.MongoClient.Ping(ctx, nil) }
}
