// internal/app/system/limits/limits.go
package limits

// Request body size limits for page forms.
// These limits help prevent memory exhaustion from oversized requests.
const (
	// MaxProfileFormSize is the maximum size for account profile submissions.
	MaxProfileFormSize = 16 << 10 // 16 KB

	// MaxLocaleFormSize is the maximum size for the language switcher form.
	MaxLocaleFormSize = 4 << 10 // 4 KB
)
