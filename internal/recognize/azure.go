package recognize

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/Azure/azure-sdk-for-go/services/cognitiveservices/v3.0/computervision"
	"github.com/Azure/go-autorest/autorest"
)

// DefaultAzureLanguage lets the service detect the script per region.
const DefaultAzureLanguage = "unk"

type printedTextClient interface {
	RecognizePrintedTextInStream(ctx context.Context, detectOrientation bool, image io.ReadCloser, language computervision.OcrLanguages) (computervision.OcrResult, error)
}

// Azure recognizes text with the Computer Vision OCR service.
type Azure struct {
	client   printedTextClient
	language computervision.OcrLanguages
}

// NewAzure returns an Azure recognizer for the given endpoint and key.
func NewAzure(endpoint, key, language string) (*Azure, error) {
	if endpoint == "" || key == "" {
		return nil, fmt.Errorf("%w: azure endpoint and key are required", ErrEngineUnavailable)
	}
	client := computervision.New(endpoint)
	client.Authorizer = autorest.NewCognitiveServicesAuthorizer(key)
	return newAzureWithClient(client, language), nil
}

func newAzureWithClient(client printedTextClient, language string) *Azure {
	if language == "" {
		language = DefaultAzureLanguage
	}
	return &Azure{client: client, language: computervision.OcrLanguages(language)}
}

// Recognize implements Recognizer.
func (a *Azure) Recognize(ctx context.Context, img image.Image) (Result, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return Result{}, fmt.Errorf("failed to encode image: %w", err)
	}

	result, err := a.client.RecognizePrintedTextInStream(ctx, true, io.NopCloser(&buf), a.language)
	if err != nil {
		return Result{}, fmt.Errorf("azure ocr: %w", err)
	}
	return Result{Text: strings.Join(visualRows(ocrLines(result)), "\n")}, nil
}

type ocrLine struct {
	text      string
	x, y, h   int
	hasBounds bool
}

func ocrLines(result computervision.OcrResult) []ocrLine {
	var lines []ocrLine
	if result.Regions == nil {
		return lines
	}
	for _, region := range *result.Regions {
		if region.Lines == nil {
			continue
		}
		for _, line := range *region.Lines {
			var words []string
			if line.Words != nil {
				for _, w := range *line.Words {
					if w.Text != nil {
						words = append(words, *w.Text)
					}
				}
			}
			if len(words) == 0 {
				continue
			}
			l := ocrLine{text: strings.Join(words, " ")}
			if line.BoundingBox != nil {
				l.x, l.y, l.h, l.hasBounds = parseBoundingBox(*line.BoundingBox)
			}
			lines = append(lines, l)
		}
	}
	return lines
}

// parseBoundingBox reads "left,top,width,height".
func parseBoundingBox(s string) (x, y, h int, ok bool) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return 0, 0, 0, false
	}
	vals := make([]int, 4)
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, false
		}
		vals[i] = v
	}
	return vals[0], vals[1], vals[3], true
}

// visualRows regroups lines that share a baseline band. The service returns
// table columns as separate regions; joining them left to right restores the
// printed row.
func visualRows(lines []ocrLine) []string {
	if len(lines) == 0 {
		return nil
	}
	if !allBounded(lines) {
		out := make([]string, len(lines))
		for i, l := range lines {
			out[i] = l.text
		}
		return out
	}

	sorted := make([]ocrLine, len(lines))
	copy(sorted, lines)
	sort.SliceStable(sorted, func(i, j int) bool { return center(sorted[i]) < center(sorted[j]) })

	var rows [][]ocrLine
	for _, l := range sorted {
		if n := len(rows); n > 0 {
			anchor := rows[n-1][0]
			if abs(center(l)-center(anchor))*2 <= max(anchor.h, l.h) {
				rows[n-1] = append(rows[n-1], l)
				continue
			}
		}
		rows = append(rows, []ocrLine{l})
	}

	out := make([]string, 0, len(rows))
	for _, row := range rows {
		sort.SliceStable(row, func(i, j int) bool { return row[i].x < row[j].x })
		texts := make([]string, len(row))
		for i, l := range row {
			texts[i] = l.text
		}
		out = append(out, strings.Join(texts, " "))
	}
	return out
}

func allBounded(lines []ocrLine) bool {
	for _, l := range lines {
		if !l.hasBounds {
			return false
		}
	}
	return true
}

func center(l ocrLine) int { return l.y + l.h/2 }

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
