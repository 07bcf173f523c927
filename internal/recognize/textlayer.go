package recognize

import (
	"bytes"
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/dslipak/pdf"
)

// TextLayer reads the embedded text of a digitally produced PDF.
type TextLayer struct {
	reader *pdf.Reader
}

// OpenTextLayer parses data as a PDF.
func OpenTextLayer(data []byte) (layer *TextLayer, err error) {
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			layer, err = nil, fmt.Errorf("failed to parse pdf text layer: %v", r)
		}
	}()
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to parse pdf text layer: %w", err)
	}
	return &TextLayer{reader: reader}, nil
}

// PageCount returns the number of pages.
func (l *TextLayer) PageCount() int { return l.reader.NumPage() }

// PageText returns the page's text with one line per visual row.
func (l *TextLayer) PageText(page int) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("page %d text layer: %v", page, r)
		}
	}()

	p := l.reader.Page(page)
	if p.V.IsNull() {
		return "", fmt.Errorf("page %d not found", page)
	}

	if rows := visualTextRows(p.Content().Text); len(rows) > 0 {
		var b strings.Builder
		for _, row := range rows {
			b.WriteString(joinRuns(row))
			b.WriteByte('\n')
		}
		return b.String(), nil
	}

	plain, err := p.GetPlainText(nil)
	if err != nil {
		return "", fmt.Errorf("page %d text layer: %w", page, err)
	}
	return plain, nil
}

// visualTextRows groups text runs into rows read top to bottom. Runs whose
// baselines lie within half a font size of the row's first run share a row.
func visualTextRows(runs []pdf.Text) [][]pdf.Text {
	if len(runs) == 0 {
		return nil
	}
	sorted := make([]pdf.Text, len(runs))
	copy(sorted, runs)
	// PDF y grows upwards.
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Y > sorted[j].Y })

	var rows [][]pdf.Text
	var rowY, tolerance float64
	for _, t := range sorted {
		if len(rows) == 0 || rowY-t.Y > tolerance {
			rows = append(rows, nil)
			rowY = t.Y
			tolerance = math.Max(t.FontSize, 2) / 2
		}
		rows[len(rows)-1] = append(rows[len(rows)-1], t)
	}
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].X < row[j].X })
	}
	return rows
}

// joinRuns concatenates a row's runs, inserting a space where the gap
// between two runs is wider than a fifth of the font size.
func joinRuns(row []pdf.Text) string {
	var b strings.Builder
	for i, t := range row {
		if i > 0 {
			prev := row[i-1]
			gap := t.X - (prev.X + prev.W)
			if gap > 0.2*t.FontSize && !strings.HasSuffix(prev.S, " ") && !strings.HasPrefix(t.S, " ") {
				b.WriteByte(' ')
			}
		}
		b.WriteString(t.S)
	}
	return strings.TrimRight(b.String(), " ")
}

// CountVisible counts non-space runes, the measure for an empty layer.
func CountVisible(text string) int {
	n := 0
	for _, r := range text {
		if !unicode.IsSpace(r) {
			n++
		}
	}
	return n
}
