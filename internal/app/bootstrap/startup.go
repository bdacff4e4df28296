// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"fmt"

	filestore "github.com/dalemusser/unigrading/internal/app/store/file"
	userstore "github.com/dalemusser/unigrading/internal/app/store/users"
	"github.com/dalemusser/unigrading/internal/app/system/authutil"
	"github.com/dalemusser/unigrading/internal/app/system/tasks"
	"github.com/dalemusser/unigrading/internal/app/system/timeouts"
	"github.com/dalemusser/unigrading/internal/domain/models"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Startup runs once after DB connections and schema/index setup are complete,
// but before the HTTP handler is built and requests are served.
//
// Returning a non-nil error aborts startup.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	timeouts.Configure(timeouts.Config{
		Ping:  appCfg.TimeoutPing,
		Short: appCfg.TimeoutShort,
		Batch: appCfg.TimeoutBatch,
	})

	if appCfg.SeedAdminLogin != "" {
		seedCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Short(), logger, "seed admin")
		err := ensureAdminUser(seedCtx, userstore.New(deps.MongoDatabase), appCfg.SeedAdminLogin, appCfg.SeedAdminName, appCfg.SeedAdminPassword, logger)
		cancel()
		if err != nil {
			logger.Error("failed to seed admin user", zap.Error(err))
			return err
		}
	}

	startTaskRunner(appCfg, deps, logger)
	return nil
}

// taskRunner is the global task runner instance, used for graceful shutdown.
var taskRunner *tasks.Runner

// startTaskRunner registers the maintenance jobs and starts them.
func startTaskRunner(appCfg AppConfig, deps DBDeps, logger *zap.Logger) {
	taskRunner = tasks.New(logger)

	if appCfg.BlobScanInterval > 0 {
		taskRunner.Register(tasks.MissingBlobScanJob(
			filestore.New(deps.MongoDatabase),
			deps.Blobs,
			appCfg.BlobScanInterval,
			logger,
		))
	}

	taskRunner.Start()
}

// ensureAdminUser makes sure an admin account exists with the given login id.
// An existing user is promoted; the password is only set on creation.
func ensureAdminUser(ctx context.Context, users *userstore.Store, loginID, name, password string, logger *zap.Logger) error {
	if name == "" {
		name = "Admin"
	}

	existing, err := users.GetByLoginID(ctx, loginID)
	switch {
	case err == nil:
		if existing.Role == models.RoleAdmin {
			logger.Debug("admin user already configured", zap.String("login_id", existing.LoginID))
			return nil
		}
		if err := users.UpdateRole(ctx, existing.ID, models.RoleAdmin); err != nil {
			return err
		}
		logger.Info("promoted existing user to admin",
			zap.String("login_id", existing.LoginID),
			zap.String("user_id", existing.ID.Hex()),
			zap.String("previous_role", existing.Role))
		return nil
	case err != mongo.ErrNoDocuments:
		return err
	}

	hash, err := authutil.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash seed admin password: %w", err)
	}
	u, err := users.Create(ctx, models.User{
		FullName:     name,
		LoginID:      loginID,
		Role:         models.RoleAdmin,
		PasswordHash: &hash,
	})
	if err != nil {
		return err
	}

	logger.Info("created admin user",
		zap.String("login_id", u.LoginID),
		zap.String("user_id", u.ID.Hex()))
	return nil
}
