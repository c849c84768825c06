package law

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 150

var (
	slugDropRe = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugSepRe  = regexp.MustCompile(`[-\s]+`)
)

// Fold removes diacritics ("Orgânica" becomes "Organica"). Compatibility
// characters are decomposed as well, so "n.º" becomes "n.o".
func Fold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// Slug builds a URL-safe identifier from a title.
func Slug(title string) string {
	s := strings.ToLower(Fold(title))
	s = slugDropRe.ReplaceAllString(s, "")
	s = strings.TrimSpace(s)
	s = slugSepRe.ReplaceAllString(s, "-")
	if len(s) > maxSlugLen {
		s = s[:maxSlugLen]
	}
	return strings.Trim(s, "-")
}
