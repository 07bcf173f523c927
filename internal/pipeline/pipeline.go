// Package pipeline drives a document through rasterization, recognition and
// extraction, one page at a time.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/raster"
	"github.com/MeKo-Tech/petalscan/internal/recognize"
	"github.com/rs/zerolog"
)

// Strategies for choosing where page text comes from.
const (
	StrategyOCR  = "ocr"
	StrategyText = "text"
	StrategyAuto = "auto"
)

// DefaultMinTextLayerChars is the number of visible characters a text layer
// page needs before StrategyAuto trusts it.
const DefaultMinTextLayerChars = 40

// ErrUnsupportedInput is returned for data that is neither a PDF nor an image.
var ErrUnsupportedInput = errors.New("unsupported input type")

// Config holds the pipeline settings.
type Config struct {
	Zoom              float64
	Strategy          string
	MinTextLayerChars int
	Enhance           bool
	ImageItems        bool // parse item rows from single-image uploads
	TempDir           string
}

// DefaultConfig returns OCR-first settings at the default zoom.
func DefaultConfig() Config {
	return Config{
		Zoom:              raster.DefaultZoom,
		Strategy:          StrategyOCR,
		MinTextLayerChars: DefaultMinTextLayerChars,
	}
}

// Validate rejects settings the pipeline cannot run with.
func (c Config) Validate() error {
	if c.Zoom <= 0 {
		return fmt.Errorf("invalid zoom: %v (must be positive)", c.Zoom)
	}
	switch c.Strategy {
	case StrategyOCR, StrategyText, StrategyAuto:
	default:
		return fmt.Errorf("invalid strategy: %q (must be one of ocr, text, auto)", c.Strategy)
	}
	if c.MinTextLayerChars < 0 {
		return fmt.Errorf("invalid min_text_layer_chars: %d", c.MinTextLayerChars)
	}
	return nil
}

// Rasterizer renders the pages of one PDF.
type Rasterizer interface {
	PageCount() int
	Render(ctx context.Context, page int) (image.Image, error)
	Close() error
}

// TextSource reads the embedded text of one PDF.
type TextSource interface {
	PageCount() int
	PageText(page int) (string, error)
}

// RasterOpener opens a PDF for rendering.
type RasterOpener func(data []byte, opts raster.Options) (Rasterizer, error)

// TextOpener opens a PDF's text layer.
type TextOpener func(data []byte) (TextSource, error)

func openRaster(data []byte, opts raster.Options) (Rasterizer, error) {
	return raster.Open(data, opts)
}

func openTextLayer(data []byte) (TextSource, error) {
	return recognize.OpenTextLayer(data)
}

// Pipeline extracts invoice pages from documents. A Pipeline is safe for
// concurrent use when its recognizer is.
type Pipeline struct {
	cfg        Config
	recognizer recognize.Recognizer
	openRaster RasterOpener
	openText   TextOpener
	logger     zerolog.Logger
}

// Config returns the pipeline settings.
func (p *Pipeline) Config() Config { return p.cfg }

// Builder constructs a Pipeline with fluent configuration.
type Builder struct {
	cfg        Config
	recognizer recognize.Recognizer
	openRaster RasterOpener
	openText   TextOpener
	logger     zerolog.Logger
}

// NewBuilder creates a builder with defaults and a disabled logger.
func NewBuilder() *Builder {
	return &Builder{
		cfg:        DefaultConfig(),
		openRaster: openRaster,
		openText:   openTextLayer,
		logger:     zerolog.Nop(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.cfg = cfg
	return b
}

// WithZoom sets the render zoom.
func (b *Builder) WithZoom(zoom float64) *Builder {
	if zoom > 0 {
		b.cfg.Zoom = zoom
	}
	return b
}

// WithStrategy selects where page text comes from.
func (b *Builder) WithStrategy(strategy string) *Builder {
	if strategy != "" {
		b.cfg.Strategy = strings.ToLower(strategy)
	}
	return b
}

// WithMinTextLayerChars sets the auto strategy threshold.
func (b *Builder) WithMinTextLayerChars(n int) *Builder {
	b.cfg.MinTextLayerChars = n
	return b
}

// WithEnhance toggles contrast enhancement before recognition.
func (b *Builder) WithEnhance(enabled bool) *Builder {
	b.cfg.Enhance = enabled
	return b
}

// WithImageItems toggles item parsing for single-image uploads.
func (b *Builder) WithImageItems(enabled bool) *Builder {
	b.cfg.ImageItems = enabled
	return b
}

// WithTempDir sets the scratch directory for rendering.
func (b *Builder) WithTempDir(dir string) *Builder {
	b.cfg.TempDir = dir
	return b
}

// WithRecognizer sets the recognition engine.
func (b *Builder) WithRecognizer(r recognize.Recognizer) *Builder {
	b.recognizer = r
	return b
}

// WithRasterOpener overrides how PDFs are opened for rendering.
func (b *Builder) WithRasterOpener(open RasterOpener) *Builder {
	if open != nil {
		b.openRaster = open
	}
	return b
}

// WithTextOpener overrides how text layers are opened.
func (b *Builder) WithTextOpener(open TextOpener) *Builder {
	if open != nil {
		b.openText = open
	}
	return b
}

// WithLogger sets the logger.
func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// Build validates the configuration and constructs the pipeline. A missing
// recognizer is only accepted for the text strategy.
func (b *Builder) Build() (*Pipeline, error) {
	if err := b.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline configuration: %w", err)
	}
	rec := b.recognizer
	if rec == nil {
		if b.cfg.Strategy != StrategyText {
			return nil, fmt.Errorf("strategy %q needs a recognizer: %w", b.cfg.Strategy, recognize.ErrEngineUnavailable)
		}
		rec = recognize.Unavailable{}
	}
	return &Pipeline{
		cfg:        b.cfg,
		recognizer: rec,
		openRaster: b.openRaster,
		openText:   b.openText,
		logger:     b.logger.With().Str("component", "pipeline").Logger(),
	}, nil
}

func since(start time.Time) float64 { return time.Since(start).Seconds() }
