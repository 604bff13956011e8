// Package textutil holds the string helpers shared by the normalizer, the fallback generator
// and the HTML renderer: accent stripping, slugs, tag tokens, word-boundary cuts and a
// similarity ratio for near-duplicate detection.
package textutil

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// StripAccents removes combining marks ("canción" -> "cancion", "ñ" -> "n").
func StripAccents(s string) string {
	if s == "" {
		return ""
	}
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return out
}

// CompactWhitespace trims s and collapses every whitespace run into one space.
func CompactWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// NormForCompare lower-cases, strips accents and reduces s to space-separated alphanumeric
// words so that punctuation and casing never affect comparisons.
func NormForCompare(s string) string {
	return joinAlnum(StripAccents(strings.ToLower(s)), " ")
}

// Slugify converts s to a lower-case ASCII token joined by "-", cut to max runes.
// It returns "" when s has no alphanumeric content.
func Slugify(s string, max int) string {
	return limitToken(joinAlnum(StripAccents(strings.ToLower(s)), "-"), "-", max)
}

// SnakeCase converts s to a lower-case ASCII token joined by "_", cut to max runes.
func SnakeCase(s string, max int) string {
	return limitToken(joinAlnum(StripAccents(strings.ToLower(s)), "_"), "_", max)
}

// RuneLen is the length of s in runes.
func RuneLen(s string) int {
	return utf8.RuneCountInString(s)
}

// CutAtWord shortens s to at most limit runes without splitting a word. A single word longer
// than limit is the only case that gets cut mid-word.
func CutAtWord(s string, limit int) string {
	s = CompactWhitespace(s)
	if limit <= 0 || RuneLen(s) <= limit {
		return s
	}
	rs := []rune(s)
	cut := rs[:limit]
	if !unicode.IsSpace(rs[limit]) {
		pos := -1
		for i := len(cut) - 1; i >= 0; i-- {
			if unicode.IsSpace(cut[i]) {
				pos = i
				break
			}
		}
		if pos > 0 {
			cut = cut[:pos]
		}
	}
	return strings.TrimRight(string(cut), " ,;:-–")
}

// joinAlnum keeps only ASCII letters and digits, joining the surviving runs with sep.
func joinAlnum(s, sep string) string {
	var b strings.Builder
	pending := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pending && b.Len() > 0 {
				b.WriteString(sep)
			}
			pending = false
			b.WriteRune(r)
			continue
		}
		pending = true
	}
	return b.String()
}

func limitToken(s, sep string, max int) string {
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	return strings.Trim(s, sep)
}
