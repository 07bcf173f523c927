package export

import (
	"fmt"
	"io"

	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/xuri/excelize/v2"
)

// Sheet names of the review workbook.
const (
	SheetInvoices = "Invoices"
	SheetItems    = "Items"
)

// XLSX writes a workbook with one Invoices row per page and one Items row
// per line item.
func XLSX(w io.Writer, results []*pipeline.Result) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(0), SheetInvoices); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetItems); err != nil {
		return fmt.Errorf("failed to add sheet: %w", err)
	}

	invoiceHeader := append(append([]string{}, pageColumns...), "source", "confidence", "diagnostics")
	itemHeader := append([]string{"file", "page", "invoice_number"}, itemColumns...)
	if err := setRow(f, SheetInvoices, 1, toAny(invoiceHeader)); err != nil {
		return err
	}
	if err := setRow(f, SheetItems, 1, toAny(itemHeader)); err != nil {
		return err
	}

	invRow, itemRow := 2, 2
	for _, res := range nonNil(results) {
		for _, page := range res.Pages {
			cells := toAny(pageCells(res.Name, page))
			cells[1] = page.PageNumber
			cells = append(cells, page.Source, page.Confidence, len(page.Diagnostics))
			if err := setRow(f, SheetInvoices, invRow, cells); err != nil {
				return err
			}
			invRow++

			for _, it := range page.Items {
				row := append([]any{res.Name, page.PageNumber, page.Header.InvoiceNumber}, toAny(itemCells(it))...)
				if err := setRow(f, SheetItems, itemRow, row); err != nil {
					return err
				}
				itemRow++
			}
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}

func toAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
