package familytree

import (
	"regexp"
	"strings"
)

// Printable ASCII, Latin-1 Supplement, Latin Extended-A/B and Latin Extended
// Additional survive; everything else becomes a placeholder.
var disallowedLabelRunes = regexp.MustCompile(`[^\x{20}-\x{7E}\x{A0}-\x{FF}\x{100}-\x{24F}\x{1E00}-\x{1EFF}]`)

const labelPlaceholder = "_"

// SanitizeLabel makes a display label safe for the tree-text grammar and
// the converter's command line. Parentheses delimit attributes downstream,
// a leading "+" would read as a partner marker, and line breaks would split
// an entity. An empty result falls back to fallback.
func SanitizeLabel(label, fallback string) string {
	s := disallowedLabelRunes.ReplaceAllString(label, labelPlaceholder)
	s = strings.NewReplacer("(", labelPlaceholder, ")", labelPlaceholder).Replace(s)
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "+") {
		s = labelPlaceholder + s[1:]
	}
	if s == "" {
		s = fallback
	}
	return s
}

// Labels maps member ids to display names.
type Labels map[string]string

// For returns the sanitized label for id, falling back to the id itself.
func (l Labels) For(id string) string {
	return SanitizeLabel(l[id], id)
}
