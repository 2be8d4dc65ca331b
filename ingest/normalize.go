package ingest

import (
	"regexp"
	"strings"
)

// Pre-compiled regexes to avoid recompilation on every document
var (
	excessNewlinesRe = regexp.MustCompile(`\n{3,}`)
	horizontalWSRe   = regexp.MustCompile(`[ \t]+`)
)

// Normalize canonicalizes extracted document text:
//
//   - line-ending variants become a single \n
//   - runs of 3+ newlines collapse to exactly two (paragraph breaks survive,
//     excess blank lines do not)
//   - runs of horizontal whitespace collapse to a single space, leaving
//     newlines untouched
//   - leading and trailing whitespace is trimmed
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = excessNewlinesRe.ReplaceAllString(s, "\n\n")
	s = horizontalWSRe.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
