package matcher

import (
	"strings"
	"unicode"
)

// normalize casefolds, trims, and collapses internal whitespace so that
// "Next  To" and "next to" compare equal.
func normalize(s string) string {
	var b strings.Builder
	space := false
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
