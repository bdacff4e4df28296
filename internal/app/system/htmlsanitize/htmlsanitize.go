// Package htmlsanitize cleans the rich-text descriptions professors attach to
// subjects. Descriptions keep inline formatting, lists and links; everything
// that can load content or run script is stripped.
package htmlsanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

var (
	descPolicy  *bluemonday.Policy
	stripPolicy *bluemonday.Policy
	policyOnce  sync.Once
)

func policies() (*bluemonday.Policy, *bluemonday.Policy) {
	policyOnce.Do(func() {
		p := bluemonday.NewPolicy()
		p.AllowElements("p", "br", "b", "strong", "i", "em", "u", "s", "sub", "sup",
			"ul", "ol", "li", "blockquote", "code", "pre")
		p.AllowStandardURLs()
		p.AllowAttrs("href").OnElements("a")
		p.RequireNoFollowOnLinks(true)
		p.AddTargetBlankToFullyQualifiedLinks(true)
		descPolicy = p

		stripPolicy = bluemonday.StrictPolicy()
	})
	return descPolicy, stripPolicy
}

// Description returns the trimmed, sanitized form of a subject description.
func Description(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	desc, _ := policies()
	return strings.TrimSpace(desc.Sanitize(s))
}

// IsBlank reports whether sanitized shows no text once markup is removed,
// as with "<p><br></p>" or "&nbsp;".
func IsBlank(sanitized string) bool {
	_, strip := policies()
	text := html.UnescapeString(strip.Sanitize(sanitized))
	return strings.TrimSpace(text) == ""
}
