// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/admitdesk/internal/app/store/remote"
	userstore "github.com/dalemusser/admitdesk/internal/app/store/users"
	"github.com/dalemusser/admitdesk/internal/app/system/livemirror"
	"github.com/dalemusser/admitdesk/internal/app/system/normalize"
	"github.com/dalemusser/admitdesk/internal/app/system/timeouts"
	"github.com/dalemusser/admitdesk/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// Startup runs after the store and schema are ready and before the handler
// is built. It promotes the configured superadmin and starts the idle
// client reaper.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	if appCfg.SuperAdminEmail != "" {
		if err := ensureSuperAdmin(ctx, deps.Store, appCfg.SuperAdminEmail, logger); err != nil {
			return err
		}
	}
	if deps.Reaper != nil {
		deps.Reaper.Start()
	}
	return nil
}

// ensureSuperAdmin promotes every role record carrying email. A principal
// who has not signed in yet has no record; the users store gives them the
// role when it is provisioned.
func ensureSuperAdmin(ctx context.Context, rs remote.Store, email string, logger *zap.Logger) error {
	email = normalize.Email(email)
	q := userstore.AllQuery()
	q.Filter = bson.M{"email": email}

	m, err := livemirror.Open[models.User](ctx, rs, q,
		models.Decoder[models.User](models.UsersCollection),
		livemirror.Options[models.User]{Name: "superadmin_bootstrap", Log: logger})
	if err != nil {
		return fmt.Errorf("look up superadmin: %w", err)
	}
	defer m.Close()

	lctx, cancel := context.WithTimeout(ctx, timeouts.Medium())
	defer cancel()
	snap, err := m.WaitLoaded(lctx)
	if err != nil {
		return fmt.Errorf("look up superadmin: %w", err)
	}

	users := userstore.New(rs)
	promoted := 0
	for _, u := range snap.Values() {
		if u.Role == models.RoleSuperadmin {
			continue
		}
		wctx, wcancel := context.WithTimeout(ctx, timeouts.Short())
		err := users.SetRole(wctx, u.ID, models.RoleSuperadmin)
		wcancel()
		if err != nil {
			return fmt.Errorf("promote %s: %w", u.ID, err)
		}
		promoted++
	}

	logger.Info("superadmin ensured",
		zap.String("email", email),
		zap.Int("records", snap.Len()),
		zap.Int("promoted", promoted))
	return nil
}
