package extract

import (
	"regexp"
	"strings"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
)

var (
	invoiceLabel       = regexp.MustCompile(`\b(inv\s*no|invoice\s*no)\b`)
	invNoValue         = regexp.MustCompile(`(?i)\binv\s*no\b\.?\s*[:\-]?\s*([A-Za-z0-9/\-]+)`)
	invoiceNoValue     = regexp.MustCompile(`(?i)\binvoice\s*no\b\.?\s*[:\-]?\s*([A-Za-z0-9/\-]+)`)
	invoiceLabelPrefix = regexp.MustCompile(`(?i).*\b(inv\s*no|invoice\s*no)\b[^A-Za-z0-9/\-]*`)

	salesmanLabel = regexp.MustCompile(`(?i)salesman`)
	salesmanValue = regexp.MustCompile(`(?i)salesman\s*[:\-]?\s*(.+)$`)

	// Tried in order over the whole page; the first match wins.
	datePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\d{1,2}-[A-Z]{3}-\d{2,4}`),
		regexp.MustCompile(`\d{1,2}/\d{1,2}/\d{2,4}`),
		regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
	}
)

// ExtractHeader finds the invoice number, salesman and date. Lines are the
// trimmed non-empty lines of text; the date is searched in text as a whole.
func ExtractHeader(lines []string, text string) (invoice.Header, []invoice.Diagnostic) {
	var header invoice.Header

	for _, line := range lines {
		if header.InvoiceNumber == "" && invoiceLabel.MatchString(lower(line)) {
			header.InvoiceNumber = invoiceNumberFrom(line)
			continue
		}
		if header.Salesman == "" && salesmanLabel.MatchString(line) {
			header.Salesman = salesmanFrom(line)
		}
	}

	header.InvoiceDate = findDate(text)

	var diags []invoice.Diagnostic
	if header.InvoiceNumber == "" {
		diags = append(diags, invoice.Diagnostic{
			Stage: invoice.StageHeader, Code: invoice.CodeMissingInvoiceNumber,
			Message: "no invoice number label found",
		})
	}
	if header.InvoiceDate == "" {
		diags = append(diags, invoice.Diagnostic{
			Stage: invoice.StageHeader, Code: invoice.CodeMissingDate,
			Message: "no date in a recognized format",
		})
	}
	if header.Salesman == "" {
		diags = append(diags, invoice.Diagnostic{
			Stage: invoice.StageHeader, Code: invoice.CodeMissingSalesman,
			Message: "no salesman label found",
		})
	}
	return header, diags
}

func invoiceNumberFrom(line string) string {
	for _, re := range []*regexp.Regexp{invNoValue, invoiceNoValue} {
		if m := re.FindStringSubmatch(line); m != nil {
			return m[1]
		}
	}
	return strings.TrimSpace(invoiceLabelPrefix.ReplaceAllString(line, ""))
}

func salesmanFrom(line string) string {
	m := salesmanValue.FindStringSubmatch(line)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(strings.TrimLeft(m[1], ":- \t"))
}

func findDate(text string) string {
	for _, re := range datePatterns {
		if m := re.FindString(text); m != "" {
			return m
		}
	}
	return ""
}
