package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/batch"
	"github.com/MeKo-Tech/petalscan/internal/export"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/spf13/cobra"
)

// consoleRefresh limits how often the progress bar is redrawn.
const consoleRefresh = 100 * time.Millisecond

// extractCmd represents the extract command.
var extractCmd = &cobra.Command{
	Use:   "extract <file|dir>...",
	Short: "Extract invoice pages from PDFs and images",
	Long: `Extract header, totals and line items from supplier invoices.

Each PDF page becomes one record; an image becomes exactly one record.
Directories are searched for .pdf, .png, .jpg, .jpeg, .tif, .tiff, .bmp and
.webp files. Progress is drawn on stderr.

Examples:
  petalscan extract invoice.pdf
  petalscan extract scans/ --recursive --format csv --output items.csv
  petalscan extract scans/ --include '*.pdf' --exclude '*_draft.pdf'
  petalscan extract digital.pdf --strategy text --engine none`,
	Args: cobra.MinimumNArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("template", "t", "", "supplier template id (must exist)")
	extractCmd.Flags().StringP("format", "f", export.FormatJSON, "output format ("+strings.Join(export.Formats, ", ")+")")
	extractCmd.Flags().StringP("output", "o", "", "output file (default: stdout)")
	extractCmd.Flags().BoolP("recursive", "r", false, "search directories recursively")
	extractCmd.Flags().StringSlice("include", nil, "file name patterns to pick up in directories (default: all supported types)")
	extractCmd.Flags().StringSlice("exclude", nil, "file name patterns to skip (e.g. '*_draft.pdf')")
	extractCmd.Flags().BoolP("quiet", "q", false, "do not draw progress")
	addPipelineFlags(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := pipelineConfig(cmd)
	if err != nil {
		return err
	}
	overrideString(cmd, "format", &cfg.Output.Format)
	overrideString(cmd, "output", &cfg.Output.File)
	format := strings.ToLower(cfg.Output.Format)
	if !slices.Contains(export.Formats, format) {
		return fmt.Errorf("unsupported format %q (must be one of: %s)", format, strings.Join(export.Formats, ", "))
	}
	if export.IsBinary(format) && cfg.Output.File == "" {
		return errors.New("xlsx output needs --output")
	}

	templateID, _ := cmd.Flags().GetString("template")
	if templateID != "" {
		reg, err := openRegistry(cfg)
		if err != nil {
			return err
		}
		if _, err := reg.Get(templateID); err != nil {
			return err
		}
	}

	p, err := buildPipeline(cfg)
	if err != nil {
		return err
	}

	recursive, _ := cmd.Flags().GetBool("recursive")
	include, _ := cmd.Flags().GetStringSlice("include")
	exclude, _ := cmd.Flags().GetStringSlice("exclude")
	quiet, _ := cmd.Flags().GetBool("quiet")

	batchCfg := batch.Config{
		TemplateID:      templateID,
		Recursive:       recursive,
		IncludePatterns: include,
		ExcludePatterns: exclude,
		Logger:          logger,
	}
	if !quiet {
		stderr := cmd.ErrOrStderr()
		batchCfg.Progress = func(path string) pipeline.ProgressCallback {
			return pipeline.NewMultiProgressCallback(
				pipeline.NewThrottledProgressCallback(
					pipeline.NewConsoleProgressCallback(stderr, filepath.Base(path)+": "),
					consoleRefresh,
				),
				pipeline.NewLogProgressCallback(logger, path),
			)
		}
	}

	res, err := batch.ProcessBatch(cmd.Context(), p, args, batchCfg)
	if err != nil {
		return err
	}
	return writeResults(cmd.OutOrStdout(), format, cfg.Output.File, res.Documents)
}

// writeResults writes to the output file, or to out when none is given.
func writeResults(out io.Writer, format, outputFile string, docs []*pipeline.Result) error {
	if outputFile == "" {
		return export.Write(out, format, docs)
	}

	f, err := os.Create(outputFile) //nolint:gosec // user-selected output path
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := export.Write(f, format, docs); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to write output file: %w", err)
	}
	logger.Info().Str("file", outputFile).Str("format", format).Int("documents", len(docs)).Msg("results written")
	return nil
}
