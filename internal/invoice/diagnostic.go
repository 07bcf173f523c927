package invoice

// Diagnostic codes emitted while extracting a page.
const (
	CodeMissingInvoiceNumber = "missing_invoice_number"
	CodeMissingDate          = "missing_date"
	CodeMissingSalesman      = "missing_salesman"
	CodeMissingTotals        = "missing_totals"
	CodeTotalsFallback       = "totals_fallback"
	CodeTotalsMismatch       = "totals_mismatch"
	CodeTableNotFound        = "table_not_found"
	CodeHeaderLineSkipped    = "header_line_skipped"
	CodeRowUnmatched         = "row_unmatched"
	CodeRowTooFewNumbers     = "row_too_few_numbers"
	CodeRowChecksumMismatch  = "row_checksum_mismatch"
	CodeImageItemsSkipped    = "image_items_skipped"
)

// Stages a Diagnostic can originate from.
const (
	StageHeader = "header"
	StageTotals = "totals"
	StageTable  = "table"
	StageRows   = "rows"
	StagePage   = "page"
)

// Diagnostic makes an absorbed extraction miss observable. Diagnostics never
// change extracted values.
type Diagnostic struct {
	Page    int    `json:"page,omitempty"`
	Stage   string `json:"stage"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Line    string `json:"line,omitempty"`
}
