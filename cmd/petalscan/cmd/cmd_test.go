package cmd

import (
	"bytes"
	"encoding/json"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/MeKo-Tech/petalscan/internal/testutil"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const calibrationCSV = "label,bbox_x,bbox_y,bbox_width,bbox_height,image_width,image_height\n" +
	"logo,0,0,100,50,1000,2000\n" +
	"table,100,400,800,600,1000,2000\n"

// resetFlags puts every flag of c and its children back to its default so
// commands can be executed repeatedly in one process.
func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		if sv, ok := f.Value.(pflag.SliceValue); ok {
			_ = sv.Replace(nil)
		} else {
			_ = f.Value.Set(f.DefValue)
		}
		f.Changed = false
	}
	c.Flags().VisitAll(reset)
	c.PersistentFlags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	t.Cleanup(func() { resetFlags(rootCmd) })

	var stdout, stderr bytes.Buffer
	rootCmd.SetOut(&stdout)
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return stdout.String(), stderr.String(), err
}

// workspace switches into a fresh directory so the default data paths are
// private to the test.
func workspace(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func sampleCalibration(t *testing.T, dir string) string {
	t.Helper()
	return testutil.WriteFile(t, dir, "calibration.csv", []byte(calibrationCSV))
}

func TestRootCommand(t *testing.T) {
	assert.Equal(t, "petalscan", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)

	names := make([]string, 0, len(rootCmd.Commands()))
	for _, c := range rootCmd.Commands() {
		names = append(names, c.Name())
	}
	for _, want := range []string{"extract", "template", "invoices", "serve", "version"} {
		assert.Contains(t, names, want)
	}
}

func TestRootCommandHelp(t *testing.T) {
	workspace(t)
	out, _, err := runCLI(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "Available Commands:")
	assert.Contains(t, out, "purchase invoices")
}

func TestVersionCommand(t *testing.T) {
	workspace(t)
	out, _, err := runCLI(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "petalscan "))
}

func TestInvalidLogLevel(t *testing.T) {
	workspace(t)
	_, _, err := runCLI(t, "version", "--log-level", "loud")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestExtractTextLayerJSON(t *testing.T) {
	dir := workspace(t)
	pdf := testutil.WriteFile(t, dir, "flora.pdf", testutil.TextPDF([][]string{
		testutil.NumberedInvoice(1).Lines(),
		testutil.NumberedInvoice(2).Lines(),
	}))

	out, stderr, err := runCLI(t, "extract", pdf, "--strategy", "text", "--engine", "none")
	require.NoError(t, err)
	assert.Contains(t, stderr, "2/2")

	var doc struct {
		Documents []pipeline.Result `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Documents, 1)
	pages := doc.Documents[0].Pages
	require.Len(t, pages, 2)
	assert.Equal(t, "INV-001", pages[0].Header.InvoiceNumber)
	assert.Equal(t, "INV-002", pages[1].Header.InvoiceNumber)
	require.Len(t, pages[0].Items, 2)
	assert.Equal(t, invoice.VATPercent, pages[0].Items[0].VATPercent)
	assert.Equal(t, "315.00", pages[0].Totals.TotalAmount)
}

func TestExtractFormats(t *testing.T) {
	dir := workspace(t)
	testutil.WriteFile(t, dir, "in/flora.pdf", testutil.TextPDF([][]string{testutil.SampleInvoice.Lines()}))
	args := []string{"extract", filepath.Join(dir, "in"), "--strategy", "text", "--engine", "none", "-q"}

	out, _, err := runCLI(t, append(args, "--format", "csv")...)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "file,page,invoice_number"))

	out, _, err = runCLI(t, append(args, "--format", "text")...)
	require.NoError(t, err)
	assert.Contains(t, out, "ABC/123")

	xlsx := filepath.Join(dir, "review.xlsx")
	_, _, err = runCLI(t, append(args, "--format", "xlsx", "--output", xlsx)...)
	require.NoError(t, err)
	assert.True(t, testutil.FileExists(xlsx))

	_, _, err = runCLI(t, append(args, "--format", "xlsx")...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--output")

	_, _, err = runCLI(t, append(args, "--format", "yaml")...)
	require.Error(t, err)
}

func TestExtractIncludeExclude(t *testing.T) {
	dir := workspace(t)
	in := filepath.Join(dir, "in")
	testutil.WriteFile(t, in, "flora.pdf", testutil.TextPDF([][]string{testutil.NumberedInvoice(1).Lines()}))
	testutil.WriteFile(t, in, "flora_draft.pdf", testutil.TextPDF([][]string{testutil.NumberedInvoice(2).Lines()}))
	testutil.WriteFile(t, in, "scan.png", []byte("not really a png"))
	args := []string{"extract", in, "--strategy", "text", "--engine", "none", "-q"}

	_, _, err := runCLI(t, args...)
	require.Error(t, err, "scan.png is not a readable document")

	out, _, err := runCLI(t, append(args, "--include", "*.PDF", "--exclude", "*_draft.pdf")...)
	require.NoError(t, err)
	var doc struct {
		Documents []pipeline.Result `json:"documents"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &doc))
	require.Len(t, doc.Documents, 1)
	assert.Equal(t, "INV-001", doc.Documents[0].Pages[0].Header.InvoiceNumber)
}

func TestExtractErrors(t *testing.T) {
	dir := workspace(t)
	pdf := testutil.WriteFile(t, dir, "flora.pdf", testutil.TextPDF([][]string{testutil.SampleInvoice.Lines()}))
	notes := testutil.WriteFile(t, dir, "notes.txt", []byte("not an invoice"))

	_, _, err := runCLI(t, "extract", pdf, "--strategy", "text", "--template", "ghost", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")

	_, _, err = runCLI(t, "extract", notes, "--strategy", "text", "-q")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported input")

	_, _, err = runCLI(t, "extract", pdf, "--strategy", "sideways")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid strategy")

	_, _, err = runCLI(t, "extract")
	require.Error(t, err)
}

func TestTemplateCommands(t *testing.T) {
	dir := workspace(t)
	csvPath := sampleCalibration(t, dir)

	out, _, err := runCLI(t, "template", "import", csvPath, "--name", "Barcellona Flowers")
	require.NoError(t, err)
	assert.Contains(t, out, "Imported template barcellona_flowers")
	assert.Contains(t, out, "Ignored label: logo")

	out, _, err = runCLI(t, "template", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "barcellona_flowers")
	assert.Contains(t, out, "0.100,0.200,0.900,0.500")

	out, _, err = runCLI(t, "template", "show", "barcellona_flowers")
	require.NoError(t, err)
	var tpl invoice.Template
	require.NoError(t, json.Unmarshal([]byte(out), &tpl))
	require.NotNil(t, tpl.TableRegion)
	assert.Equal(t, [4]float64{0.1, 0.2, 0.9, 0.5}, tpl.TableRegion.Box)

	_, _, err = runCLI(t, "template", "delete", "barcellona_flowers")
	require.NoError(t, err)
	_, _, err = runCLI(t, "template", "show", "barcellona_flowers")
	require.Error(t, err)

	_, _, err = runCLI(t, "template", "import", csvPath)
	require.Error(t, err, "--name is required")
}

func TestTemplatePreview(t *testing.T) {
	dir := workspace(t)
	_, _, err := runCLI(t, "template", "import", sampleCalibration(t, dir), "--name", "Tulip")
	require.NoError(t, err)

	img := testutil.TextImage(testutil.SampleInvoice.Lines())
	f, err := os.Create(filepath.Join(dir, "scan.png"))
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, img))
	require.NoError(t, f.Close())

	out := filepath.Join(dir, "crop.png")
	stdout, _, err := runCLI(t, "template", "preview", "tulip", filepath.Join(dir, "scan.png"), "--out", out)
	require.NoError(t, err)
	assert.Contains(t, stdout, "Wrote "+out)
	assert.True(t, testutil.FileExists(out))
}

func TestInvoicesSaveListShow(t *testing.T) {
	dir := workspace(t)
	_, _, err := runCLI(t, "template", "import", sampleCalibration(t, dir), "--name", "Tulip")
	require.NoError(t, err)

	pdf := testutil.WriteFile(t, dir, "batch.pdf", testutil.TextPDF([][]string{
		testutil.NumberedInvoice(1).Lines(),
		testutil.NumberedInvoice(2).Lines(),
	}))
	pagesFile := filepath.Join(dir, "batch.json")
	_, _, err = runCLI(t, "extract", pdf, "--strategy", "text", "-q", "--output", pagesFile)
	require.NoError(t, err)

	out, _, err := runCLI(t, "invoices", "save", pdf, "--template", "tulip", "--pages", pagesFile)
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 page(s) of batch.pdf")

	st, err := store.Open(filepath.Join(dir, "data", "petalscan.db"), logger)
	require.NoError(t, err)
	rows, err := st.List(t.Context(), 0)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, rows, 2)
	assert.Equal(t, store.StatusDraft, rows[0].Status)

	out, _, err = runCLI(t, "invoices", "list", "--limit", "1")
	require.NoError(t, err)
	assert.Equal(t, 2, len(strings.Split(strings.TrimSpace(out), "\n")))

	out, _, err = runCLI(t, "invoices", "show", rows[0].ID)
	require.NoError(t, err)
	var row store.Row
	require.NoError(t, json.Unmarshal([]byte(out), &row))
	assert.Equal(t, rows[0].ID, row.ID)
	assert.Equal(t, "tulip", row.SupplierTemplate)

	// Without --pages the document is extracted first.
	out, _, err = runCLI(t, "invoices", "save", pdf, "--template", "tulip", "--strategy", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved 2 page(s)")

	_, _, err = runCLI(t, "invoices", "save", pdf, "--template", "ghost", "--pages", pagesFile)
	require.Error(t, err)
	_, _, err = runCLI(t, "invoices", "show", "missing")
	require.Error(t, err)
}

func TestDecodePages(t *testing.T) {
	records := `[{"page_number":1,"header":{"invoice_number":"A1"}}]`
	pages, err := decodePages([]byte(records), "x.pdf")
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, "A1", pages[0].Header.InvoiceNumber)

	exported := `{"documents":[
		{"name":"a.pdf","pages":[{"page_number":1}]},
		{"name":"b.pdf","pages":[{"page_number":1},{"page_number":2}]}]}`
	pages, err = decodePages([]byte(exported), "b.pdf")
	require.NoError(t, err)
	assert.Len(t, pages, 2)

	_, err = decodePages([]byte(exported), "c.pdf")
	assert.ErrorIs(t, err, store.ErrInvalidSave)

	_, err = decodePages([]byte("{"), "a.pdf")
	assert.ErrorIs(t, err, store.ErrInvalidSave)
}
