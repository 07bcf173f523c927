package extract

import (
	"regexp"
	"strings"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
)

// minNumericTokens is the fewest tail numbers a row needs: rate, discount,
// taxable, tax and total. A sixth token is the quantity.
const minNumericTokens = 5

var (
	headerLabels = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\bS\.?\s*No\b`),
		regexp.MustCompile(`(?i)\bSTOCK\s*CODE\b`),
		regexp.MustCompile(`(?i)\bDESCRIPTION\b`),
		regexp.MustCompile(`(?i)\bQTY\b`),
	}

	itemStart    = regexp.MustCompile(`^\d+\s+[A-Z]\d{4,}`)
	itemParts    = regexp.MustCompile(`^\s*(\d+)\s+([A-Z]\d{4,})\s+(.*)$`)
	numericToken = regexp.MustCompile(`-?\d{1,3}(?:,\d{3})+(?:\.\d+)?|-?\d+(?:\.\d+)?`)
	percentToken = regexp.MustCompile(`\d+(?:\.\d+)?\s*%`)
)

// IsHeaderLabel reports whether line is a table column-header line.
func IsHeaderLabel(line string) bool {
	for _, re := range headerLabels {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// ParseRows decomposes table lines into line items. Lines that do not open a
// new item extend the previous item's description. Rows that cannot be
// decomposed are dropped and reported as diagnostics.
func ParseRows(lines []string) ([]invoice.LineItem, []invoice.Diagnostic) {
	items := []invoice.LineItem{}
	var diags []invoice.Diagnostic

	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}

		if IsHeaderLabel(line) {
			diags = append(diags, rowDiagnostic(invoice.CodeHeaderLineSkipped, "column header line skipped", line))
			continue
		}

		if !itemStart.MatchString(line) {
			if n := len(items); n > 0 {
				items[n-1].Description = strings.TrimSpace(items[n-1].Description + " " + line)
				continue
			}
			diags = append(diags, rowDiagnostic(invoice.CodeRowUnmatched, "line does not start with serial and stock code", line))
			continue
		}

		item, diag, ok := parseItemLine(line)
		if !ok {
			diags = append(diags, diag)
			continue
		}
		if !invoice.AmountsBalance(item.TaxableAmount, item.TaxAmount, item.LineTotal) {
			diags = append(diags, rowDiagnostic(invoice.CodeRowChecksumMismatch, "taxable plus tax does not equal line total", line))
		}
		items = append(items, item)
	}
	return items, diags
}

func parseItemLine(line string) (invoice.LineItem, invoice.Diagnostic, bool) {
	cleaned := strings.ReplaceAll(line, "|", " ")
	m := itemParts.FindStringSubmatch(cleaned)
	if m == nil {
		return invoice.LineItem{}, rowDiagnostic(invoice.CodeRowUnmatched, "no text after stock code", line), false
	}
	serial, code, rest := m[1], m[2], m[3]

	// Percentages are the VAT column, which is constant and not positional.
	tokens := numericToken.FindAllString(percentToken.ReplaceAllString(rest, " "), -1)
	if len(tokens) < minNumericTokens {
		return invoice.LineItem{}, rowDiagnostic(invoice.CodeRowTooFewNumbers, "fewer than five numeric tokens", line), false
	}

	nums := make([]string, len(tokens))
	for i, tok := range tokens {
		nums[i] = digitsAndDots(tok)
	}
	n := len(nums)

	item := invoice.LineItem{
		SNo:            serial,
		StockCode:      code,
		Description:    descriptionOf(rest),
		Rate:           nums[n-5],
		DiscountAmount: nums[n-4],
		TaxableAmount:  nums[n-3],
		VATPercent:     invoice.VATPercent,
		TaxAmount:      nums[n-2],
		LineTotal:      nums[n-1],
	}
	if n > minNumericTokens {
		item.Qty = nums[n-6]
	}
	return item, invoice.Diagnostic{}, true
}

func descriptionOf(rest string) string {
	if loc := numericToken.FindStringIndex(rest); loc != nil {
		return strings.TrimSpace(rest[:loc[0]])
	}
	return strings.TrimSpace(rest)
}

func digitsAndDots(tok string) string {
	return strings.Map(func(r rune) rune {
		if (r >= '0' && r <= '9') || r == '.' {
			return r
		}
		return -1
	}, tok)
}

func rowDiagnostic(code, msg, line string) invoice.Diagnostic {
	return invoice.Diagnostic{Stage: invoice.StageRows, Code: code, Message: msg, Line: line}
}
