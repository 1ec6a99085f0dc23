// internal/app/bootstrap/shutdown.go
package bootstrap

import (
	"context"

	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// Shutdown stops background work and closes every database handle.
func Shutdown(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	state.mu.Lock()
	cleanup, stopWatch := state.cleanup, state.stopWatch
	state.cleanup, state.stopWatch = nil, nil
	state.mu.Unlock()

	if cleanup != nil {
		cleanup.Stop()
	}
	if stopWatch != nil {
		stopWatch()
	}

	if deps.Selector != nil {
		logger.Info("closing database handles")
		if err := deps.Selector.Close(); err != nil {
			logger.Error("database close failed", zap.Error(err))
			return err
		}
	}
	return nil
}
