package support

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/petalscan/internal/testutil"
	"github.com/cucumber/godog"
)

func docLines(doc *godog.DocString) []string {
	var lines []string
	for _, line := range strings.Split(doc.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func (testCtx *TestContext) aPDFWithThePage(name string, doc *godog.DocString) error {
	return testCtx.writeFile(name, testutil.TextPDF([][]string{docLines(doc)}))
}

func (testCtx *TestContext) aPDFWithNumberedPages(name string, pages int) error {
	content := make([][]string, 0, pages)
	for k := 1; k <= pages; k++ {
		content = append(content, testutil.NumberedInvoice(k).Lines())
	}
	return testCtx.writeFile(name, testutil.TextPDF(content))
}

func (testCtx *TestContext) aPDFWithTheSampleInvoice(name string) error {
	return testCtx.writeFile(name, testutil.TextPDF([][]string{testutil.SampleInvoice.Lines()}))
}

// aCalibrationFile writes a docstring verbatim; it serves plain text files too.
func (testCtx *TestContext) aCalibrationFile(name string, doc *godog.DocString) error {
	return testCtx.writeFile(name, []byte(strings.TrimSpace(doc.Content)+"\n"))
}

// records returns every page record of the last JSON extract output.
func (testCtx *TestContext) records() ([]map[string]any, error) {
	var out struct {
		Documents []struct {
			Pages []map[string]any `json:"pages"`
		} `json:"documents"`
	}
	if err := json.Unmarshal([]byte(testCtx.LastStdout), &out); err != nil {
		return nil, fmt.Errorf("output is not extract JSON: %w\n%s", err, testCtx.LastStdout)
	}
	var pages []map[string]any
	for _, d := range out.Documents {
		pages = append(pages, d.Pages...)
	}
	return pages, nil
}

func (testCtx *TestContext) record(n int) (map[string]any, error) {
	pages, err := testCtx.records()
	if err != nil {
		return nil, err
	}
	if n < 1 || n > len(pages) {
		return nil, fmt.Errorf("record %d out of range (have %d)", n, len(pages))
	}
	return pages[n-1], nil
}

func (testCtx *TestContext) theOutputShouldHaveRecords(n int) error {
	pages, err := testCtx.records()
	if err != nil {
		return err
	}
	if len(pages) != n {
		return fmt.Errorf("expected %d records, got %d", n, len(pages))
	}
	for i, p := range pages {
		if got, _ := p["page_number"].(float64); int(got) != i+1 {
			return fmt.Errorf("record %d has page_number %v", i+1, p["page_number"])
		}
	}
	return nil
}

// lookup walks a dotted path such as "items.0.qty" through decoded JSON.
func lookup(v any, path string) (any, error) {
	for _, part := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			next, ok := node[part]
			if !ok {
				return nil, fmt.Errorf("field %q not found", part)
			}
			v = next
		case []any:
			i, err := strconv.Atoi(part)
			if err != nil || i < 0 || i >= len(node) {
				return nil, fmt.Errorf("index %q out of range (have %d)", part, len(node))
			}
			v = node[i]
		default:
			return nil, fmt.Errorf("cannot descend into %q", part)
		}
	}
	return v, nil
}

func (testCtx *TestContext) recordFieldShouldBe(n int, path, want string) error {
	rec, err := testCtx.record(n)
	if err != nil {
		return err
	}
	got, err := lookup(rec, path)
	if err != nil {
		return err
	}
	if s := fmt.Sprint(got); s != want {
		return fmt.Errorf("record %d %s = %q, want %q", n, path, s, want)
	}
	return nil
}

func (testCtx *TestContext) recordShouldHaveItems(n, items int) error {
	rec, err := testCtx.record(n)
	if err != nil {
		return err
	}
	list, _ := rec["items"].([]any)
	if len(list) != items {
		return fmt.Errorf("record %d has %d items, want %d", n, len(list), items)
	}
	return nil
}

func (testCtx *TestContext) theProgressShouldPass(percent int) error {
	if !strings.Contains(testCtx.LastStderr, fmt.Sprintf("(%d%%)", percent)) {
		return fmt.Errorf("progress never reached %d%%\nstderr: %s", percent, testCtx.LastStderr)
	}
	return nil
}

func (testCtx *TestContext) theProgressShouldEndAt100() error {
	idx := strings.LastIndex(testCtx.LastStderr, "%)")
	if idx < 0 {
		return errors.New("no progress reported")
	}
	if !strings.HasSuffix(testCtx.LastStderr[:idx], "(100") {
		return fmt.Errorf("last progress is not 100%%\nstderr: %s", testCtx.LastStderr)
	}
	return nil
}

// RegisterInvoiceSteps registers fixture and extraction result steps.
func (testCtx *TestContext) RegisterInvoiceSteps(sc *godog.ScenarioContext) {
	sc.Step(`^a PDF "([^"]*)" with the page:$`, testCtx.aPDFWithThePage)
	sc.Step(`^a PDF "([^"]*)" with (\d+) numbered invoice pages$`, testCtx.aPDFWithNumberedPages)
	sc.Step(`^a PDF "([^"]*)" with the sample invoice$`, testCtx.aPDFWithTheSampleInvoice)
	sc.Step(`^a calibration file "([^"]*)":$`, testCtx.aCalibrationFile)
	sc.Step(`^a text file "([^"]*)":$`, testCtx.aCalibrationFile)

	sc.Step(`^the output should have (\d+) records?$`, testCtx.theOutputShouldHaveRecords)
	sc.Step(`^record (\d+) "([^"]*)" should be "([^"]*)"$`, testCtx.recordFieldShouldBe)
	sc.Step(`^record (\d+) should have (\d+) items?$`, testCtx.recordShouldHaveItems)
	sc.Step(`^the progress should pass (\d+)%$`, testCtx.theProgressShouldPass)
	sc.Step(`^the progress should end at 100%$`, testCtx.theProgressShouldEndAt100)
}
