package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var textPolicy = bluemonday.StrictPolicy()

// SanitizeText strips all markup from user-supplied free text and returns
// plain text. Entities bluemonday emits for text nodes are decoded, so
// quotes, ampersands and angle brackets come back as the user typed them.
func SanitizeText(input string) string {
	if input == "" {
		return ""
	}
	return strings.TrimSpace(html.UnescapeString(textPolicy.Sanitize(input)))
}
