package sanitize

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// StrictPolicy removes all HTML tags and attributes.
var StrictPolicy = bluemonday.StrictPolicy()

// Text strips all HTML tags and returns plain text. Entities produced by the
// policy are decoded so "Run & Fun" survives round trips unchanged.
func Text(input string) string {
	return html.UnescapeString(StrictPolicy.Sanitize(input))
}

// DisplayName sanitizes a user-supplied label: HTML is stripped, control
// characters dropped, and runs of whitespace collapsed to single spaces.
func DisplayName(input string) string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return ' '
		}
		return r
	}, Text(input))
	return strings.Join(strings.Fields(cleaned), " ")
}

// Slug normalizes a URL slug for comparison: trimmed and lower-cased.
func Slug(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}
