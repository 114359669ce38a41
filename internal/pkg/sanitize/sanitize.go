package sanitize

import (
	"html"
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// AllowedTags is the inline markup that survives sanitisation.
var AllowedTags = []string{"b", "i", "u", "p", "br", "code"}

var (
	policyOnce sync.Once
	policy     *bluemonday.Policy
	plainOnce  sync.Once
	plain      *bluemonday.Policy
)

func htmlPolicy() *bluemonday.Policy {
	policyOnce.Do(func() {
		policy = bluemonday.NewPolicy()
		policy.AllowElements(AllowedTags...)
	})
	return policy
}

func plainPolicy() *bluemonday.Policy {
	plainOnce.Do(func() {
		plain = bluemonday.StrictPolicy()
	})
	return plain
}

// HTML strips every tag and attribute outside AllowedTags and trims the result.
func HTML(s string) string {
	return strings.TrimSpace(htmlPolicy().Sanitize(s))
}

// Text strips all markup and returns plain text with entities decoded. Used
// for names and titles, which are escaped on output rather than in storage.
func Text(s string) string {
	return strings.TrimSpace(html.UnescapeString(plainPolicy().Sanitize(s)))
}
