package pipeline

import (
	"time"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
)

// Input is one uploaded document.
type Input struct {
	Name       string
	Data       []byte
	TemplateID string
}

// Result holds the page records of one document in page order.
type Result struct {
	Name       string               `json:"name"`
	Kind       string               `json:"kind"`
	TemplateID string               `json:"template,omitempty"`
	Pages      []invoice.PageRecord `json:"pages"`
	Processing time.Duration        `json:"processing_ns"`
}

// Diagnostics flattens the diagnostics of every page.
func (r *Result) Diagnostics() []invoice.Diagnostic {
	if r == nil {
		return nil
	}
	var out []invoice.Diagnostic
	for _, p := range r.Pages {
		out = append(out, p.Diagnostics...)
	}
	return out
}

// ItemCount returns the number of line items over all pages.
func (r *Result) ItemCount() int {
	if r == nil {
		return 0
	}
	n := 0
	for _, p := range r.Pages {
		n += len(p.Items)
	}
	return n
}
