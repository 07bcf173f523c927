package testutil

import (
	"fmt"
	"strings"
)

// Invoice describes a synthetic supplier invoice page.
type Invoice struct {
	Number   string
	Date     string
	Salesman string
	Items    []string
	Totals   string
}

// SampleInvoice is a well-formed single page with two items.
var SampleInvoice = Invoice{
	Number:   "ABC/123",
	Date:     "01-OCT-2025",
	Salesman: "Ahmed Ali",
	Items: []string{
		"1 F121924 White Rose Bouquet 10 25.00 0.00 250.00 12.50 262.50",
		"2 F130045 Red Carnation 5 10.00 0.00 50.00 2.50 52.50",
	},
	Totals: "300.00 15.00 315.00",
}

// Lines renders the invoice the way a recognizer would flatten it.
func (inv Invoice) Lines() []string {
	lines := []string{"FLORA TRADING LLC", "TAX INVOICE"}
	if inv.Number != "" {
		lines = append(lines, "Inv No: "+inv.Number)
	}
	if inv.Date != "" {
		lines = append(lines, "Date: "+inv.Date)
	}
	if inv.Salesman != "" {
		lines = append(lines, "Salesman: "+inv.Salesman)
	}
	lines = append(lines, "S.No Stock Code Description Qty Rate Discount Taxable VAT% VAT Total")
	lines = append(lines, inv.Items...)
	if inv.Totals != "" {
		lines = append(lines, "Amount in words: "+inv.Totals)
	}
	return append(lines, "Driver Name:", "Terms & Conditions apply")
}

// Text joins Lines with newlines.
func (inv Invoice) Text() string {
	return strings.Join(inv.Lines(), "\n")
}

// NumberedInvoice returns SampleInvoice with a page-specific invoice number.
func NumberedInvoice(page int) Invoice {
	inv := SampleInvoice
	inv.Number = fmt.Sprintf("INV-%03d", page)
	return inv
}
