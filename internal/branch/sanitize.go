package branch

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var nonAlphanumeric = regexp.MustCompile(`[^a-z0-9]+`)

// Sanitize lowercases name, strips a leading "origin/" and collapses every run
// of characters outside [a-z0-9] into a single "-". It is idempotent.
func Sanitize(name string) string {
	s := cases.Lower(language.Und).String(name)
	s = strings.TrimPrefix(s, "origin/")
	return nonAlphanumeric.ReplaceAllString(s, "-")
}

// Upper is the uppercase form of a sanitized tag, used by the branchtag-uc macro.
func Upper(tag string) string {
	return cases.Upper(language.Und).String(tag)
}
