// Package extract turns recognized invoice text into structured page records.
//
// Every function in this package is a pure function of its input text: the
// same text always yields the same header, totals, items and diagnostics.
// Structure is recovered from line order and label keywords only; no layout
// geometry from the recognizer is used.
package extract

import (
	"regexp"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/unicode/norm"
)

var lineBreaks = regexp.MustCompile(`[\r\n]+`)

// Normalize folds compatibility characters (full-width digits, ligatures,
// Arabic presentation forms) into their canonical equivalents.
func Normalize(text string) string {
	return norm.NFKC.String(text)
}

// SplitLines splits text on runs of line breaks, trims every line and drops
// the empty ones.
func SplitLines(text string) []string {
	parts := lineBreaks.Split(text, -1)
	lines := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}
	return lines
}

// FirstLine returns the first non-empty line of text.
func FirstLine(text string) string {
	lines := SplitLines(Normalize(text))
	if len(lines) == 0 {
		return ""
	}
	return lines[0]
}

// lower is not shared across goroutines because a Caser keeps state.
func lower(s string) string {
	return cases.Lower(language.Und).String(s)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
