// internal/app/bootstrap/startup.go
package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/dalemusser/scratchstarter/internal/app/resources"
	"github.com/dalemusser/scratchstarter/internal/app/system/content"
	"github.com/dalemusser/scratchstarter/internal/app/system/viewdata"
	"github.com/dalemusser/scratchstarter/internal/app/system/workers"
	"github.com/dalemusser/waffle/config"
	"go.uber.org/zap"
)

// contentDebounce groups bursts of editor writes into one reload.
const contentDebounce = 250 * time.Millisecond

// state holds what Startup and BuildHandler create for Shutdown to release.
var state struct {
	mu        sync.Mutex
	content   *content.Facade
	stopWatch context.CancelFunc
	cleanup   *workers.SessionCleanup
}

// Startup runs one-time application initialization after DB connections and
// schema setup are complete, but before the HTTP handler is built. It loads
// the shared templates, publishes the site record to the view layer and
// prepares the content collections.
func Startup(ctx context.Context, coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) error {
	resources.LoadSharedTemplates()
	viewdata.Init(appCfg.Site)

	if !appCfg.Site.ContentEnabled() {
		logger.Info("content collections disabled")
		return nil
	}

	facade := content.NewFacade(content.Options{
		Dir:           appCfg.ContentDir,
		Locales:       appCfg.Site.LocaleCodes(),
		DefaultLocale: appCfg.Site.DefaultLocale(),
	}, logger)

	// Load both collections now so a broken file shows up at boot.
	if err := facade.Reload(); err != nil {
		logger.Warn("content load reported errors", zap.Error(err))
	}

	state.mu.Lock()
	state.content = facade
	state.mu.Unlock()

	if coreCfg.Env == "dev" {
		watchCtx, cancel := context.WithCancel(context.Background())
		if err := facade.Watch(watchCtx, contentDebounce); err != nil {
			cancel()
			logger.Warn("content watch not started", zap.Error(err))
			return nil
		}
		state.mu.Lock()
		state.stopWatch = cancel
		state.mu.Unlock()
	}
	return nil
}

func contentFacade() *content.Facade {
	state.mu.Lock()
	defer state.mu.Unlock()
	return state.content
}
