// Package htmlsanitize cleans HTML produced from markdown before it reaches
// a template.
package htmlsanitize

import (
	"regexp"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
)

func getPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		p := bluemonday.UGCPolicy()
		p.AllowElements("u", "s", "mark", "sub", "sup")

		// Heading anchors generated by the markdown renderer.
		p.AllowAttrs("id").Matching(regexp.MustCompile(`^[\w-]+$`)).
			OnElements("h1", "h2", "h3", "h4", "h5", "h6")
		// Fenced code language hints.
		p.AllowAttrs("class").Matching(regexp.MustCompile(`^language-[\w+#-]+$`)).OnElements("code")

		p.AllowAttrs("class").OnElements("table", "thead", "tbody", "tr", "th", "td")
		p.AllowAttrs("colspan", "rowspan").OnElements("th", "td")
		p.AllowStyles("text-align", "width").OnElements("table", "th", "td")
		policy = p
	})
	return policy
}

// Sanitize removes anything not on the allow-list from s.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	return getPolicy().Sanitize(s)
}

// SanitizeBytes is Sanitize for renderer output.
func SanitizeBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return getPolicy().SanitizeBytes(b)
}
