package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func sampleResults() []*pipeline.Result {
	return []*pipeline.Result{{
		Name: "flora.pdf",
		Kind: "pdf",
		Pages: []invoice.PageRecord{
			{
				PageNumber: 1,
				Header:     invoice.Header{InvoiceNumber: "ABC/123", InvoiceDate: "01-OCT-2025", Salesman: "Ahmed"},
				Totals:     invoice.Totals{TotalTaxable: "250.00", TotalTax: "12.50", TotalAmount: "262.50"},
				Items: []invoice.LineItem{{
					SNo: "1", StockCode: "F121924", Description: "White Rose, Bouquet", Qty: "10",
					Rate: "25.00", DiscountAmount: "0.00", TaxableAmount: "250.00",
					VATPercent: invoice.VATPercent, TaxAmount: "12.50", LineTotal: "262.50",
				}},
				Source:     invoice.SourceOCR,
				Confidence: 88.5,
			},
			{
				PageNumber: 2,
				Items:      []invoice.LineItem{},
				Diagnostics: []invoice.Diagnostic{{
					Page: 2, Stage: invoice.StageTotals, Code: invoice.CodeMissingTotals, Message: "no totals",
				}},
			},
		},
	}, nil}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatJSON, sampleResults()))

	var out struct {
		Documents []struct {
			Name  string               `json:"name"`
			Pages []invoice.PageRecord `json:"pages"`
		} `json:"documents"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	require.Len(t, out.Documents, 1)
	assert.Equal(t, "flora.pdf", out.Documents[0].Name)
	require.Len(t, out.Documents[0].Pages, 2)
	assert.Equal(t, "5%", out.Documents[0].Pages[0].Items[0].VATPercent)
	assert.Contains(t, buf.String(), "\n  \"documents\"")
}

func TestCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatCSV, sampleResults()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "file", records[0][0])
	assert.Equal(t, "line_total", records[0][len(records[0])-1])

	assert.Equal(t, []string{"flora.pdf", "1", "ABC/123"}, records[1][:3])
	assert.Equal(t, "White Rose, Bouquet", records[1][10])
	assert.Equal(t, "262.50", records[1][17])

	assert.Equal(t, "2", records[2][1])
	assert.Empty(t, records[2][8])
}

func TestText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatText, sampleResults()))

	out := buf.String()
	assert.Contains(t, out, "# flora.pdf (pdf, 2 pages)")
	assert.Contains(t, out, "Page 1 [ocr 88.5]")
	assert.Contains(t, out, "Invoice:  ABC/123")
	assert.Contains(t, out, "F121924")
	assert.Contains(t, out, "Invoice:  -")
	assert.Contains(t, out, "! missing_totals: no totals")
}

func TestXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleResults()))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer func() { _ = f.Close() }()

	assert.Equal(t, []string{SheetInvoices, SheetItems}, f.GetSheetList())

	invoices, err := f.GetRows(SheetInvoices)
	require.NoError(t, err)
	require.Len(t, invoices, 3)
	assert.Equal(t, "invoice_number", invoices[0][2])
	assert.Equal(t, "ABC/123", invoices[1][2])
	assert.Equal(t, "262.50", invoices[1][7])

	items, err := f.GetRows(SheetItems)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "F121924", items[1][4])
}

func TestWriteUnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, "pdf", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported output format")
	assert.True(t, IsBinary(FormatXLSX))
	assert.False(t, IsBinary(FormatCSV))
}
