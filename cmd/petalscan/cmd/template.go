package cmd

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"text/tabwriter"

	"github.com/MeKo-Tech/petalscan/internal/raster"
	"github.com/MeKo-Tech/petalscan/internal/templates"
	"github.com/disintegration/imaging"
	"github.com/spf13/cobra"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Manage supplier templates",
	Long: `Import supplier templates from calibration CSV files and inspect them.

A calibration CSV lists labelled boxes (label, bbox_x, bbox_y, bbox_width,
bbox_height, image_width, image_height). The "table" box becomes the
template's item table region.`,
}

var templateImportCmd = &cobra.Command{
	Use:   "import <calibration.csv>",
	Short: "Import a template from a calibration CSV",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name, _ := cmd.Flags().GetString("name")
		reg, err := openRegistry(GetConfig())
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open calibration file: %w", err)
		}
		defer func() { _ = f.Close() }()

		tpl, ignored, err := reg.Import(name, f)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(out, "Imported template %s (%s)\n", tpl.ID, tpl.Name)
		if tpl.TableRegion == nil {
			_, _ = fmt.Fprintln(out, "Warning: no table region in calibration")
		}
		for _, label := range ignored {
			_, _ = fmt.Fprintf(out, "Ignored label: %s\n", label)
		}
		return nil
	},
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List imported templates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := openRegistry(GetConfig())
		if err != nil {
			return err
		}
		list, err := reg.List()
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		_, _ = fmt.Fprintln(w, "ID\tNAME\tTABLE REGION")
		for _, tpl := range list {
			region := "-"
			if tpl.TableRegion != nil {
				b := tpl.TableRegion.Box
				region = fmt.Sprintf("%.3f,%.3f,%.3f,%.3f", b[0], b[1], b[2], b[3])
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", tpl.ID, tpl.Name, region)
		}
		return w.Flush()
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print one template as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(GetConfig())
		if err != nil {
			return err
		}
		tpl, err := reg.Get(args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(tpl)
	},
}

var templateDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Remove a template",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := openRegistry(GetConfig())
		if err != nil {
			return err
		}
		if err := reg.Delete(args[0]); err != nil {
			return err
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted template %s\n", args[0])
		return nil
	},
}

var templatePreviewCmd = &cobra.Command{
	Use:   "preview <id> <file>",
	Short: "Crop a template's table region out of a page",
	Long: `Render one page of a PDF (or load an image), cut the template's table
region out of it and save the crop as an image. Useful to check a
calibration against a real invoice.`,
	Args: cobra.ExactArgs(2),
	RunE: runTemplatePreview,
}

func init() {
	rootCmd.AddCommand(templateCmd)
	templateCmd.AddCommand(templateImportCmd, templateListCmd, templateShowCmd, templateDeleteCmd, templatePreviewCmd)

	templateImportCmd.Flags().StringP("name", "n", "", "supplier name (the template id is derived from it)")
	_ = templateImportCmd.MarkFlagRequired("name")

	templatePreviewCmd.Flags().Int("page", 1, "PDF page to render")
	templatePreviewCmd.Flags().String("out", "table.png", "output image (format from the extension)")
	templatePreviewCmd.Flags().Float64("zoom", raster.DefaultZoom, "PDF render zoom factor")
}

func runTemplatePreview(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()
	reg, err := openRegistry(cfg)
	if err != nil {
		return err
	}
	tpl, err := reg.Get(args[0])
	if err != nil {
		return err
	}
	if tpl.TableRegion == nil {
		return fmt.Errorf("template %s has no table region: %w", tpl.ID, templates.ErrInvalidCalibration)
	}

	data, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", args[1], err)
	}
	page, _ := cmd.Flags().GetInt("page")
	zoom, _ := cmd.Flags().GetFloat64("zoom")

	img, err := loadPage(cmd, data, page, raster.Options{Zoom: zoom, TempDir: cfg.Pipeline.TempDir})
	if err != nil {
		return err
	}

	out, _ := cmd.Flags().GetString("out")
	crop := templates.Crop(img, *tpl.TableRegion)
	if err := imaging.Save(crop, out); err != nil {
		return fmt.Errorf("failed to save preview: %w", err)
	}
	b := crop.Bounds()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s (%dx%d)\n", out, b.Dx(), b.Dy())
	return nil
}

// loadPage returns the requested page of a PDF, or the image itself.
func loadPage(cmd *cobra.Command, data []byte, page int, opts raster.Options) (image.Image, error) {
	switch raster.DetectKind(data) {
	case raster.KindPDF:
		doc, err := raster.Open(data, opts)
		if err != nil {
			return nil, err
		}
		defer func() { _ = doc.Close() }()
		return doc.Render(cmd.Context(), page)
	case raster.KindImage:
		img, _, err := raster.DecodeImage(data)
		return img, err
	default:
		return nil, fmt.Errorf("%w: not a PDF or image", raster.ErrUnreadableDocument)
	}
}
