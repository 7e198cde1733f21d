package textutil

import (
	"strings"

	"golang.org/x/text/cases"
)

// Fold returns a case-folded, space-normalized form of s for comparisons.
func Fold(s string) string {
	return cases.Fold().String(NormalizeSpace(s))
}

// ContainsFold reports whether needle occurs in haystack ignoring case. A blank
// needle never matches.
func ContainsFold(haystack, needle string) bool {
	needle = Fold(needle)
	if needle == "" {
		return false
	}
	return strings.Contains(Fold(haystack), needle)
}

// NormalizeSpace collapses runs of whitespace into single spaces and trims.
func NormalizeSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// Truncate shortens s to at most limit runes, appending ellipsis when cut.
func Truncate(s string, limit int, ellipsis string) string {
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return strings.TrimRight(string(runes[:limit]), " ") + ellipsis
}

// FirstNonEmpty returns the first argument that is not blank after trimming.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
