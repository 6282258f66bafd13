package signal

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	whitespace = regexp.MustCompile(`\s+`)
	nonSlug    = regexp.MustCompile(`[^a-z0-9]+`)
)

// CollapseSpace folds whitespace runs into single spaces and trims.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

// Ellipsize returns s unchanged when it fits in max runes, otherwise the
// first max-3 runes (right-trimmed) followed by "...".
func Ellipsize(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return strings.TrimRight(string(r[:max-3]), " \t\n") + "..."
}

// Clip cuts s to at most max runes.
func Clip(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max])
}

// Slug lower-cases s, replaces non-alphanumeric runs with "-", trims
// leading and trailing dashes and caps the result at 80 characters.
func Slug(s string) string {
	slug := nonSlug.ReplaceAllString(strings.ToLower(s), "-")
	slug = strings.Trim(slug, "-")
	return Clip(slug, 80)
}
