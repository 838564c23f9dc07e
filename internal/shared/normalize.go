package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// featuring markers and bracketed suffixes that catalogs disagree on
var noiseMarkers = []string{" (feat.", " (ft.", " [feat.", " feat. ", " ft. ", " - remaster", " (remaster"}

// FoldText lowercases s, strips diacritics and collapses whitespace.
func FoldText(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	return strings.Join(strings.Fields(strings.ToLower(folded)), " ")
}

// CleanTitle folds title and drops featuring credits and remaster suffixes.
func CleanTitle(title string) string {
	folded := FoldText(title)
	for _, marker := range noiseMarkers {
		if idx := strings.Index(folded, marker); idx > 0 {
			folded = folded[:idx]
		}
	}
	return strings.TrimSpace(folded)
}

// NormalizeQuery builds the "artist title" search string sent to a destination catalog.
//
// Only the primary artist is used; punctuation other than apostrophes becomes whitespace.
func NormalizeQuery(title string, artists []string) string {
	var artist string
	if len(artists) > 0 {
		artist = artists[0]
	}

	raw := FoldText(artist) + " " + CleanTitle(title)
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			return r
		}
		return ' '
	}, raw)

	return strings.Join(strings.Fields(cleaned), " ")
}
