package invoice

// Source values for PageRecord.Source.
const (
	SourceOCR       = "ocr"
	SourceTextLayer = "text_layer"
)

// VATPercent is the fixed VAT rate printed on every supplier invoice.
const VATPercent = "5%"

// RecognizedPage is the raw recognized text of one page.
type RecognizedPage struct {
	PageNumber int     `json:"page_number"`
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Source     string  `json:"source"`
}

// Header holds the per-page invoice metadata. Missing fields are empty strings.
type Header struct {
	InvoiceNumber string `json:"invoice_number"`
	InvoiceDate   string `json:"invoice_date"`
	Salesman      string `json:"salesman"`
}

// Totals holds the trailing monetary summary as matched text.
type Totals struct {
	TotalTaxable string `json:"total_taxable"`
	TotalTax     string `json:"total_tax"`
	TotalAmount  string `json:"total_amount"`
}

// IsEmpty reports whether no total was found.
func (t Totals) IsEmpty() bool {
	return t.TotalTaxable == "" && t.TotalTax == "" && t.TotalAmount == ""
}

// LineItem is one row of the item table.
type LineItem struct {
	SNo            string `json:"s_no"`
	StockCode      string `json:"stock_code"`
	Description    string `json:"description"`
	Qty            string `json:"qty"`
	Rate           string `json:"rate"`
	DiscountAmount string `json:"discount_amount"`
	TaxableAmount  string `json:"taxable_amount"`
	VATPercent     string `json:"vat_percent"`
	TaxAmount      string `json:"tax_amount"`
	LineTotal      string `json:"line_total"`
}

// PageRecord is the structured result for one page.
type PageRecord struct {
	PageNumber  int          `json:"page_number"`
	Header      Header       `json:"header"`
	Totals      Totals       `json:"totals"`
	Items       []LineItem   `json:"items"`
	Source      string       `json:"source,omitempty"`
	Confidence  float64      `json:"confidence,omitempty"`
	Diagnostics []Diagnostic `json:"diagnostics,omitempty"`
}

// Region is a named rectangle in normalized page coordinates (x1, y1, x2, y2).
type Region struct {
	Label string     `json:"label" yaml:"label"`
	Box   [4]float64 `json:"box" yaml:"box"`
}

// Template is a supplier calibration. Only the table region is kept.
type Template struct {
	ID          string  `json:"id" yaml:"id"`
	Name        string  `json:"name" yaml:"name"`
	TableRegion *Region `json:"table_region,omitempty" yaml:"table_region,omitempty"`
}
