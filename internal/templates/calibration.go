// Package templates reads supplier calibrations exported from an annotation
// tool and keeps them in a file registry.
package templates

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
)

// ErrInvalidCalibration is returned for calibration files that cannot be
// turned into a template.
var ErrInvalidCalibration = errors.New("invalid calibration")

// Labels that mark the item table region.
var tableLabels = map[string]bool{
	"table":        true,
	"items":        true,
	"items table":  true,
	"table region": true,
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// TemplateID derives a registry ID from a display name.
func TemplateID(name string) string {
	return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
}

type columns struct {
	label, x, y, w, h, iw, ih int
}

func locateColumns(header []string) (columns, error) {
	find := func(key string) int {
		for i, h := range header {
			if strings.Contains(strings.ToLower(h), key) {
				return i
			}
		}
		return -1
	}
	c := columns{
		label: find("label"),
		x:     find("bbox_x"),
		y:     find("bbox_y"),
		w:     find("bbox_width"),
		h:     find("bbox_height"),
		iw:    find("image_width"),
		ih:    find("image_height"),
	}
	var missing []string
	for name, idx := range map[string]int{
		"label": c.label, "bbox_x": c.x, "bbox_y": c.y, "bbox_width": c.w,
		"bbox_height": c.h, "image_width": c.iw, "image_height": c.ih,
	} {
		if idx < 0 {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return c, fmt.Errorf("%w: missing columns %s", ErrInvalidCalibration, strings.Join(missing, ", "))
	}
	return c, nil
}

// ParseCalibrationCSV builds a template from a bounding-box CSV. It returns
// the labels it did not use alongside the template.
func ParseCalibrationCSV(name string, r io.Reader) (invoice.Template, []string, error) {
	id := TemplateID(name)
	if id == "" {
		return invoice.Template{}, nil, fmt.Errorf("%w: template name is required", ErrInvalidCalibration)
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true
	records, err := reader.ReadAll()
	if err != nil {
		return invoice.Template{}, nil, fmt.Errorf("%w: %w", ErrInvalidCalibration, err)
	}
	if len(records) < 2 {
		return invoice.Template{}, nil, fmt.Errorf("%w: need a header and at least one row", ErrInvalidCalibration)
	}

	header := records[0]
	cols, err := locateColumns(header)
	if err != nil {
		return invoice.Template{}, nil, err
	}

	tpl := invoice.Template{ID: id, Name: strings.TrimSpace(name)}
	if tpl.Name == "" {
		tpl.Name = id
	}

	var ignored []string
	for i, row := range records[1:] {
		if len(row) < len(header) {
			continue
		}
		label := strings.TrimSpace(row[cols.label])
		if label == "" {
			continue
		}

		box, err := normalizedBox(row, cols)
		if err != nil {
			return invoice.Template{}, nil, fmt.Errorf("%w: row %d (%s): %w", ErrInvalidCalibration, i+2, label, err)
		}

		if tableLabels[strings.ToLower(label)] {
			tpl.TableRegion = &invoice.Region{Label: label, Box: box}
		} else {
			ignored = append(ignored, label)
		}
	}
	return tpl, ignored, nil
}

func normalizedBox(row []string, c columns) ([4]float64, error) {
	var v [6]float64
	for i, idx := range []int{c.x, c.y, c.w, c.h, c.iw, c.ih} {
		f, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
		if err != nil {
			return [4]float64{}, fmt.Errorf("non-numeric value %q", row[idx])
		}
		v[i] = f
	}
	x, y, w, h, iw, ih := v[0], v[1], v[2], v[3], v[4], v[5]
	if iw == 0 || ih == 0 {
		return [4]float64{}, errors.New("image size is zero")
	}
	return [4]float64{x / iw, y / ih, (x + w) / iw, (y + h) / ih}, nil
}
