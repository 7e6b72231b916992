package search

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripDiacritics folds s to a diacritic-insensitive, case-insensitive form:
// NFD decomposition, combining-mark removal, lowercasing. Used both to
// populate the "_stripped" shadow columns at write time and to fold a
// search term identically before comparison (spec.md §4.4, invariant 10).
func StripDiacritics(s string) string {
	// The chain decomposes runes to NFD and discards combining marks, turning
	// e.g. "é" into "e". A transform.Chain keeps internal buffers between
	// calls, so each call builds its own rather than sharing one.
	stripTransform := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(stripTransform, s)
	if err != nil {
		// transform.String only errors on a transformer that reports
		// ErrShortSrc/ErrShortDst from a non-streaming call, which cannot
		// happen for this chain; fall back to the untransformed input
		// rather than lose the row entirely.
		folded = s
	}
	return strings.ToLower(folded)
}

// StripENML does a light, lossy extraction of human-readable text from an
// ENML document for full-text indexing: drops every tag together with its
// attribute values, replacing each tag with a space, and keeps the text
// content between tags. It is intentionally not a full XML parse --
// the indexed column only needs to contain the words a search term could
// match, not a faithful re-rendering.
func StripENML(enml string) string {
	var b strings.Builder
	b.Grow(len(enml))
	inTag := false
	for _, r := range enml {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteByte(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return b.String()
}
