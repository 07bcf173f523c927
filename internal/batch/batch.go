// Package batch runs many invoice documents through the extraction pipeline.
package batch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/rs/zerolog"
)

// ErrNoDocuments is returned when discovery finds nothing to process.
var ErrNoDocuments = errors.New("no documents found")

// Extractor processes one document.
type Extractor interface {
	Process(ctx context.Context, in pipeline.Input, progress pipeline.ProgressCallback) (*pipeline.Result, error)
}

// Config holds batch settings.
type Config struct {
	TemplateID string

	// File discovery
	Recursive       bool
	IncludePatterns []string
	ExcludePatterns []string

	// Progress returns the callback for one document. Nil disables progress.
	Progress func(path string) pipeline.ProgressCallback

	Logger zerolog.Logger
}

// Result holds the documents of one batch in discovery order.
type Result struct {
	Documents []*pipeline.Result
	Paths     []string
	Duration  time.Duration
}

// Pages returns the number of page records across all documents.
func (r *Result) Pages() int {
	n := 0
	for _, doc := range r.Documents {
		n += len(doc.Pages)
	}
	return n
}

// ProcessBatch discovers documents under args and extracts them one by one.
// The first failing document stops the batch.
func ProcessBatch(ctx context.Context, ext Extractor, args []string, cfg Config) (*Result, error) {
	files, err := Discover(args, cfg.Recursive, cfg.IncludePatterns, cfg.ExcludePatterns)
	if err != nil {
		return nil, fmt.Errorf("failed to discover documents: %w", err)
	}
	if len(files) == 0 {
		return nil, ErrNoDocuments
	}

	start := time.Now()
	docs := make([]*pipeline.Result, 0, len(files))
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := processFile(ctx, ext, path, cfg)
		if err != nil {
			return nil, err
		}
		docs = append(docs, res)
	}

	result := &Result{Documents: docs, Paths: files, Duration: time.Since(start)}
	cfg.Logger.Info().
		Int("documents", len(docs)).
		Int("pages", result.Pages()).
		Dur("duration", result.Duration).
		Msg("batch completed")
	return result, nil
}

func processFile(ctx context.Context, ext Extractor, path string, cfg Config) (*pipeline.Result, error) {
	data, err := os.ReadFile(path) //nolint:gosec // paths come from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var progress pipeline.ProgressCallback
	if cfg.Progress != nil {
		progress = cfg.Progress(path)
	}

	res, err := ext.Process(ctx, pipeline.Input{
		Name:       filepath.Base(path),
		Data:       data,
		TemplateID: cfg.TemplateID,
	}, progress)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	cfg.Logger.Debug().Str("document", path).Int("pages", len(res.Pages)).Msg("document extracted")
	return res, nil
}
