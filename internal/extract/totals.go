package extract

import (
	"github.com/MeKo-Tech/petalscan/internal/invoice"
)

// ExtractTotals finds the taxable, tax and total amounts. The last line
// mentioning the amount in words is preferred; otherwise the lowest line
// carrying at least three decimals fills whatever is still missing.
func ExtractTotals(lines []string) (invoice.Totals, []invoice.Diagnostic) {
	var totals invoice.Totals
	var diags []invoice.Diagnostic

	amountLine, found := "", false
	for _, line := range lines {
		if isAmountInWords(line) {
			amountLine, found = line, true
		}
	}
	if found {
		if tokens := decimalToken.FindAllString(amountLine, -1); len(tokens) >= 3 {
			n := len(tokens)
			totals.TotalTaxable = tokens[n-3]
			totals.TotalTax = tokens[n-2]
			totals.TotalAmount = tokens[n-1]
		}
	}

	if totals.TotalTaxable == "" || totals.TotalTax == "" || totals.TotalAmount == "" {
		for i := len(lines) - 1; i >= 0; i-- {
			tokens := decimalToken.FindAllString(lines[i], -1)
			if len(tokens) < 3 {
				continue
			}
			n := len(tokens)
			fillEmpty(&totals.TotalTaxable, tokens[n-3])
			fillEmpty(&totals.TotalTax, tokens[n-2])
			fillEmpty(&totals.TotalAmount, tokens[n-1])
			diags = append(diags, invoice.Diagnostic{
				Stage: invoice.StageTotals, Code: invoice.CodeTotalsFallback,
				Message: "totals taken from the lowest line with three decimals",
				Line:    lines[i],
			})
			break
		}
	}

	switch {
	case totals.IsEmpty():
		diags = append(diags, invoice.Diagnostic{
			Stage: invoice.StageTotals, Code: invoice.CodeMissingTotals,
			Message: "no line carries three decimal amounts",
		})
	case !invoice.AmountsBalance(totals.TotalTaxable, totals.TotalTax, totals.TotalAmount):
		diags = append(diags, invoice.Diagnostic{
			Stage: invoice.StageTotals, Code: invoice.CodeTotalsMismatch,
			Message: "taxable plus tax does not equal total",
		})
	}
	return totals, diags
}

func isAmountInWords(line string) bool {
	l := lower(line)
	return containsAny(l, "amount", "ameant") && containsAny(l, "words", "iwords")
}

func fillEmpty(field *string, value string) {
	if *field == "" {
		*field = value
	}
}
