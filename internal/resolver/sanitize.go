package resolver

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	bracketed     = regexp.MustCompile(`\s*[\(\[][^\)\]]*[\)\]]`)
	versionSuffix = regexp.MustCompile(`(?i)\s+-\s+.*\b(remaster(ed)?|version|edit|mix|live|mono|stereo|demo)\b.*$`)
	featuring     = regexp.MustCompile(`(?i)\s+(feat\.?|ft\.?|featuring|with)\s+.*$`)
)

// fold removes diacritics: "Beyoncé" becomes "Beyonce".
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// NormalizeTitle trims a title and collapses its inner whitespace. Brackets
// and punctuation are kept.
func NormalizeTitle(title string) string {
	return strings.Join(strings.Fields(title), " ")
}

// SanitizeTitle prepares a recording title for a work-title search:
// bracketed segments and version suffixes are dropped, "&" becomes "and",
// diacritics are folded and punctuation becomes whitespace.
func SanitizeTitle(title string) string {
	s := bracketed.ReplaceAllString(title, "")
	s = versionSuffix.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "&", " and ")
	s = fold(s)

	var b strings.Builder
	for _, r := range s {
		switch {
		case r == '\'' || r == '’':
			// "Don't" searches as "Dont"
		case unicode.IsLetter(r) || unicode.IsNumber(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	out := strings.Join(strings.Fields(b.String()), " ")
	if out == "" {
		return strings.TrimSpace(title)
	}
	return out
}

// PrimaryPerformer returns the first credited artist without featured
// guests, folded for search.
func PrimaryPerformer(artist string) string {
	s := featuring.ReplaceAllString(artist, "")
	for _, sep := range []string{",", " & ", " x ", " and ", ";"} {
		if i := strings.Index(s, sep); i > 0 {
			s = s[:i]
		}
	}
	return strings.TrimSpace(fold(s))
}
