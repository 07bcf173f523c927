package extract

import "regexp"

var (
	// A serial number followed by a stock code: "1 F121924".
	tableStart = regexp.MustCompile(`^\s*\d+\s+[A-Z]\d{4,}`)

	// "ameant in iwords" and "amount in iwords" are common misreads.
	tableEndMarkers = []string{
		"amount in words",
		"ameant in iwords",
		"amount in iwords",
		"driver name",
		"terms & conditions",
	}

	// Decimal amounts with two fraction digits, with or without thousands
	// separators.
	decimalToken = regexp.MustCompile(`\d{1,3}(?:,\d{3})+\.\d{2}|\d{1,5}\.\d{2}`)
)

// ExtractTable returns the contiguous lines forming the item table: from the
// first serial+code line up to, not including, the first end marker after it.
// It returns an empty slice when no table row is present.
func ExtractTable(lines []string) []string {
	start := -1
	for i, line := range lines {
		if tableStart.MatchString(line) {
			start = i
			break
		}
	}
	if start < 0 {
		return []string{}
	}

	end := len(lines)
	for i := start + 1; i < len(lines); i++ {
		if containsAny(lower(lines[i]), tableEndMarkers...) {
			end = i
			break
		}
	}

	table := make([]string, end-start)
	copy(table, lines[start:end])
	return table
}
