package invoice

import (
	"math"
	"strconv"
	"strings"
)

// ParseAmount converts a recognized amount such as "1,262.50" or "AED 12.50"
// into a number. It reports false when nothing numeric remains.
func ParseAmount(raw string) (float64, bool) {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	cleaned := b.String()
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// AmountsBalance reports whether taxable + tax equals total within one fils.
// It returns true when any of the three is not a number.
func AmountsBalance(taxable, tax, total string) bool {
	a, okA := ParseAmount(taxable)
	b, okB := ParseAmount(tax)
	c, okC := ParseAmount(total)
	if !okA || !okB || !okC {
		return true
	}
	return math.Abs(a+b-c) <= 0.011
}
