package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/spf13/cobra"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Save and browse stored purchase invoices",
}

var invoicesSaveCmd = &cobra.Command{
	Use:   "save <file>",
	Short: "Store reviewed pages of a document",
	Long: `Copy the source document into the file store and write one draft row per
page. Pages come from --pages, which takes either a JSON array of page
records or the JSON output of "petalscan extract". Without --pages the file
is extracted first.

Examples:
  petalscan extract batch.pdf -o batch.json
  petalscan invoices save batch.pdf --template barcellona_flowers --pages batch.json`,
	Args: cobra.ExactArgs(1),
	RunE: runInvoicesSave,
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stored invoice pages, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		if limit < 0 {
			return fmt.Errorf("invalid limit %d", limit)
		}
		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		rows, err := st.List(cmd.Context(), limit)
		if err != nil {
			return err
		}
		printRows(cmd, rows)
		return nil
	},
}

var invoicesShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one stored invoice page as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore(GetConfig())
		if err != nil {
			return err
		}
		defer func() { _ = st.Close() }()

		row, err := st.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(row)
	},
}

func init() {
	rootCmd.AddCommand(invoicesCmd)
	invoicesCmd.AddCommand(invoicesSaveCmd, invoicesListCmd, invoicesShowCmd)

	invoicesSaveCmd.Flags().StringP("template", "t", "", "supplier template id")
	invoicesSaveCmd.Flags().String("pages", "", "JSON file with the reviewed page records")
	_ = invoicesSaveCmd.MarkFlagRequired("template")
	addPipelineFlags(invoicesSaveCmd)

	invoicesListCmd.Flags().Int("limit", store.DefaultListLimit, "maximum rows (0 for the default)")
}

func runInvoicesSave(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig(cmd)
	if err != nil {
		return err
	}
	templateID, _ := cmd.Flags().GetString("template")
	pagesFile, _ := cmd.Flags().GetString("pages")

	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	if _, err := reg.Get(templateID); err != nil {
		return err
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[0], err)
	}
	name := filepath.Base(args[0])

	var pages []invoice.PageRecord
	if pagesFile != "" {
		raw, err := os.ReadFile(pagesFile) //nolint:gosec // user-selected input
		if err != nil {
			return fmt.Errorf("failed to read pages: %w", err)
		}
		if pages, err = decodePages(raw, name); err != nil {
			return err
		}
	} else {
		p, err := buildPipeline(cfg)
		if err != nil {
			return err
		}
		res, err := p.Process(cmd.Context(), pipeline.Input{Name: name, Data: data, TemplateID: templateID},
			pipeline.NewConsoleProgressCallback(cmd.ErrOrStderr(), name+": "))
		if err != nil {
			return err
		}
		pages = res.Pages
	}

	files, err := openFileStore(cfg)
	if err != nil {
		return err
	}
	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	fileURL, err := files.Put(filepath.Ext(name), data)
	if err != nil {
		return err
	}
	rows, err := st.SaveBatch(cmd.Context(), store.SaveRequest{TemplateID: templateID, FileURL: fileURL, Pages: pages})
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved %d page(s) of %s as batch %s\n", len(rows), name, rows[0].BatchID)
	printRows(cmd, rows)
	return nil
}

// decodePages accepts a JSON array of page records or extract's JSON output.
// For the latter, the document named like the saved file wins; a single
// document is taken as is.
func decodePages(raw []byte, name string) ([]invoice.PageRecord, error) {
	var pages []invoice.PageRecord
	if err := json.Unmarshal(raw, &pages); err == nil {
		return pages, nil
	}

	var doc struct {
		Documents []pipeline.Result `json:"documents"`
	}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("%w: pages must be a JSON array of page records: %w", store.ErrInvalidSave, err)
	}
	for _, d := range doc.Documents {
		if d.Name == name {
			return d.Pages, nil
		}
	}
	if len(doc.Documents) == 1 {
		return doc.Documents[0].Pages, nil
	}
	return nil, errors.Join(store.ErrInvalidSave, fmt.Errorf("no document named %s in pages file", name))
}

func printRows(cmd *cobra.Command, rows []store.Row) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tTEMPLATE\tPAGE\tINVOICE\tDATE\tTOTAL\tITEMS\tSTATUS")
	for _, r := range rows {
		total := "-"
		if r.TotalAmount != nil {
			total = fmt.Sprintf("%.2f", *r.TotalAmount)
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\t%s\t%d\t%s\n",
			r.ID, r.SupplierTemplate, r.PageNumber, deref(r.InvoiceNumber), deref(r.InvoiceDate),
			total, len(r.Items), r.Status)
	}
	_ = w.Flush()
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}
