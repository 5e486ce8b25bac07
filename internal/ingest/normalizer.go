package ingest

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

var strictPolicy = bluemonday.StrictPolicy()

// TruncateText cuts a string to at most maxRunes characters.
func TruncateText(text string, maxRunes int) string {
	if maxRunes <= 0 {
		return text
	}
	r := []rune(text)
	if len(r) <= maxRunes {
		return text
	}
	return string(r[:maxRunes])
}

// sanitizeText strips any markup that survived text extraction.
func sanitizeText(s string) string {
	return cleanText(html.UnescapeString(strictPolicy.Sanitize(s)))
}
