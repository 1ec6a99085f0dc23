// internal/app/bootstrap/dbdeps.go
package bootstrap

import (
	"github.com/dalemusser/scratchstarter/internal/app/system/database"
	"github.com/dalemusser/scratchstarter/internal/app/system/envresolve"
)

// DBDeps holds database/back-end dependencies for the app.
type DBDeps struct {
	Mode     envresolve.Mode
	Env      envresolve.Snapshot // secrets and connection strings
	Selector *database.Selector
	Handle   *database.Handle // the handle selected for AppConfig.DBKind
}
