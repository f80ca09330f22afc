// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/admitdesk/internal/app/store/remote/memstore"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work, closes every session client (releasing
// their subscriptions), then disconnects the store.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if deps.Reaper != nil {
		deps.Reaper.Stop()
	}
	if deps.ChatLimiter != nil {
		deps.ChatLimiter.Stop()
	}
	if deps.LoginLimiter != nil {
		deps.LoginLimiter.Stop()
	}
	if deps.Clients != nil {
		logger.Info("closing session clients", zap.Int("clients", deps.Clients.Len()))
		deps.Clients.Close()
	}

	if ms, ok := deps.Store.(*memstore.Store); ok {
		ms.Close()
	}
	if deps.MongoClient != nil {
		logger.Info("disconnecting MongoDB client")
		if err := deps.MongoClient.Disconnect(ctx); err != nil {
			logger.Error("MongoDB disconnect failed", zap.Error(err))
			return err
		}
	}
	return nil
}
