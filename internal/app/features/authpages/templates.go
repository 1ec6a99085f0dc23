// internal/app/features/authpages/templates.go
package authpages

import (
	"embed"

	"github.com/dalemusser/waffle/pantry/templates"
)

//go:embed templates/*.gohtml
var FS embed.FS

func init() {
	templates.Register(templates.Set{
		Name:     "authpages",
		FS:       FS,
		Patterns: []string{"templates/*.gohtml"},
	})
}
