// internal/app/bootstrap/db.go
package bootstrap

import (
	"context"
	"fmt"

	"github.com/dalemusser/scratchstarter/internal/app/store/migrations"
	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/dalemusser/scratchstarter/internal/app/system/envresolve"
	"github.com/dalemusser/scratchstarter/internal/app/system/timeouts"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// ConnectDB resolves the environment snapshot and opens the configured
// database engine through the selector.
func ConnectDB(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) (DBDeps, error) {
	mode := envresolve.ModeFromEnv(coreCfg.Env)

	env, err := envresolve.New(mode, appCfg.SecretsFile, envresolve.ProcessPlatform{}, logger).Resolve(ctx)
	if err != nil {
		return DBDeps{}, fmt.Errorf("resolve environment: %w", err)
	}
	timeouts.Configure(timeouts.FromLookup(env.Lookup))

	kind, err := database.ParseKind(string(appCfg.DBKind))
	if err != nil {
		return DBDeps{}, err
	}

	sel := database.NewSelector(env, mode, logger)
	openCtx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "database connect")
	defer cancel()

	h, err := sel.Select(openCtx, kind)
	if err != nil {
		logger.Error("database connect failed", zap.String("kind", string(kind)), zap.Error(err))
		return DBDeps{}, err
	}

	return DBDeps{Mode: mode, Env: env, Selector: sel, Handle: h}, nil
}

// EnsureSchema applies pending migrations to the selected database.
func EnsureSchema(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	ctx, cancel := timeouts.WithTimeout(ctx, timeouts.Long(), logger, "schema migrations")
	defer cancel()

	if err := migrations.Apply(ctx, deps.Handle.DB); err != nil {
		logger.Error("schema migrations failed", zap.Error(err))
		return err
	}
	logger.Info("schema up to date", zap.String("dialect", deps.Handle.Dialect))
	return nil
}
