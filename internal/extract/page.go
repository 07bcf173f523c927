package extract

import "github.com/MeKo-Tech/petalscan/internal/invoice"

// Page extracts the full record for one page of recognized text.
func Page(pageNumber int, text string) invoice.PageRecord {
	return page(pageNumber, text, true)
}

// PageWithoutItems extracts header and totals only. The item list is empty.
func PageWithoutItems(pageNumber int, text string) invoice.PageRecord {
	return page(pageNumber, text, false)
}

func page(pageNumber int, text string, withItems bool) invoice.PageRecord {
	text = Normalize(text)
	lines := SplitLines(text)

	header, diags := ExtractHeader(lines, text)
	totals, totalDiags := ExtractTotals(lines)
	diags = append(diags, totalDiags...)

	items := []invoice.LineItem{}
	if withItems {
		table := ExtractTable(lines)
		if len(table) == 0 {
			diags = append(diags, invoice.Diagnostic{
				Stage: invoice.StageTable, Code: invoice.CodeTableNotFound,
				Message: "no serial and stock code line found",
			})
		} else {
			var rowDiags []invoice.Diagnostic
			items, rowDiags = ParseRows(table)
			diags = append(diags, rowDiags...)
		}
	}

	for i := range diags {
		diags[i].Page = pageNumber
	}

	return invoice.PageRecord{
		PageNumber:  pageNumber,
		Header:      header,
		Totals:      totals,
		Items:       items,
		Diagnostics: diags,
	}
}
