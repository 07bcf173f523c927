// Package export writes extraction results as JSON, CSV, plain text or an
// XLSX review workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
)

// Output formats.
const (
	FormatJSON = "json"
	FormatCSV  = "csv"
	FormatText = "text"
	FormatXLSX = "xlsx"
)

// Formats lists every supported format.
var Formats = []string{FormatJSON, FormatCSV, FormatText, FormatXLSX}

// IsBinary reports whether format must not be written to a terminal.
func IsBinary(format string) bool { return format == FormatXLSX }

// Write renders results in format.
func Write(w io.Writer, format string, results []*pipeline.Result) error {
	switch strings.ToLower(format) {
	case FormatJSON, "":
		return JSON(w, results)
	case FormatCSV:
		return CSV(w, results)
	case FormatText:
		return Text(w, results)
	case FormatXLSX:
		return XLSX(w, results)
	default:
		return fmt.Errorf("unsupported output format: %s", format)
	}
}

// JSON writes {"documents": [...]} indented.
func JSON(w io.Writer, results []*pipeline.Result) error {
	docs := struct {
		Documents []*pipeline.Result `json:"documents"`
	}{Documents: nonNil(results)}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(docs)
}

func nonNil(results []*pipeline.Result) []*pipeline.Result {
	out := make([]*pipeline.Result, 0, len(results))
	for _, r := range results {
		if r != nil {
			out = append(out, r)
		}
	}
	return out
}

var pageColumns = []string{
	"file", "page", "invoice_number", "invoice_date", "salesman",
	"total_taxable", "total_tax", "total_amount",
}

var itemColumns = []string{
	"s_no", "stock_code", "description", "qty", "rate", "discount_amount",
	"taxable_amount", "vat_percent", "tax_amount", "line_total",
}

func pageCells(name string, p invoice.PageRecord) []string {
	return []string{
		name, strconv.Itoa(p.PageNumber),
		p.Header.InvoiceNumber, p.Header.InvoiceDate, p.Header.Salesman,
		p.Totals.TotalTaxable, p.Totals.TotalTax, p.Totals.TotalAmount,
	}
}

func itemCells(it invoice.LineItem) []string {
	return []string{
		it.SNo, it.StockCode, it.Description, it.Qty, it.Rate, it.DiscountAmount,
		it.TaxableAmount, it.VATPercent, it.TaxAmount, it.LineTotal,
	}
}

// CSV writes one row per item. A page without items still gets one row with
// empty item columns.
func CSV(w io.Writer, results []*pipeline.Result) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(append(append([]string{}, pageColumns...), itemColumns...)); err != nil {
		return err
	}
	empty := make([]string, len(itemColumns))
	for _, res := range nonNil(results) {
		for _, page := range res.Pages {
			head := pageCells(res.Name, page)
			if len(page.Items) == 0 {
				if err := writer.Write(append(head, empty...)); err != nil {
					return err
				}
				continue
			}
			for _, it := range page.Items {
				row := append(append([]string{}, head...), itemCells(it)...)
				if err := writer.Write(row); err != nil {
					return err
				}
			}
		}
	}
	writer.Flush()
	return writer.Error()
}

// Text writes a human-readable summary.
func Text(w io.Writer, results []*pipeline.Result) error {
	var b strings.Builder
	for i, res := range nonNil(results) {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "# %s (%s, %d pages)\n", res.Name, res.Kind, len(res.Pages))
		for _, page := range res.Pages {
			writePageText(&b, page)
		}
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func writePageText(b *strings.Builder, p invoice.PageRecord) {
	fmt.Fprintf(b, "\nPage %d", p.PageNumber)
	if p.Source != "" {
		fmt.Fprintf(b, " [%s %.1f]", p.Source, p.Confidence)
	}
	b.WriteString("\n")
	fmt.Fprintf(b, "  Invoice:  %s\n", orDash(p.Header.InvoiceNumber))
	fmt.Fprintf(b, "  Date:     %s\n", orDash(p.Header.InvoiceDate))
	fmt.Fprintf(b, "  Salesman: %s\n", orDash(p.Header.Salesman))
	fmt.Fprintf(b, "  Items:    %d\n", len(p.Items))
	for _, it := range p.Items {
		fmt.Fprintf(b, "    %-3s %-9s %-30s qty %-5s rate %-9s vat %-8s total %s\n",
			it.SNo, it.StockCode, it.Description, orDash(it.Qty), it.Rate, it.TaxAmount, it.LineTotal)
	}
	fmt.Fprintf(b, "  Totals:   taxable %s  tax %s  amount %s\n",
		orDash(p.Totals.TotalTaxable), orDash(p.Totals.TotalTax), orDash(p.Totals.TotalAmount))
	for _, d := range p.Diagnostics {
		fmt.Fprintf(b, "  ! %s: %s\n", d.Code, d.Message)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
