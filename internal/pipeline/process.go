package pipeline

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/extract"
	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/raster"
	"github.com/MeKo-Tech/petalscan/internal/recognize"
)

// Process extracts one record per page of a PDF, or exactly one record for an
// image. Any render or recognition failure aborts the whole document and no
// partial result is returned.
func (p *Pipeline) Process(ctx context.Context, in Input, progress ProgressCallback) (*Result, error) {
	if progress == nil {
		progress = NoOpProgressCallback{}
	}
	start := time.Now()
	kind := raster.DetectKind(in.Data)

	var (
		pages []invoice.PageRecord
		err   error
	)
	switch kind {
	case raster.KindPDF:
		pages, err = p.processPDF(ctx, in, progress)
	case raster.KindImage:
		pages, err = p.processImage(ctx, in, progress)
	default:
		err = fmt.Errorf("%s: %w", in.Name, ErrUnsupportedInput)
		progress.OnError(0, err)
	}
	if err != nil {
		documentsProcessed.WithLabelValues(kind.String(), "error").Inc()
		return nil, err
	}
	documentsProcessed.WithLabelValues(kind.String(), "ok").Inc()

	res := &Result{
		Name:       in.Name,
		Kind:       kind.String(),
		TemplateID: in.TemplateID,
		Pages:      pages,
		Processing: time.Since(start),
	}
	p.logger.Info().
		Str("document", in.Name).
		Str("kind", res.Kind).
		Str("template", in.TemplateID).
		Int("pages", len(pages)).
		Int("items", res.ItemCount()).
		Int("diagnostics", len(res.Diagnostics())).
		Dur("duration", res.Processing).
		Msg("document extracted")
	return res, nil
}

func (p *Pipeline) processPDF(ctx context.Context, in Input, progress ProgressCallback) ([]invoice.PageRecord, error) {
	var text TextSource
	if p.cfg.Strategy != StrategyOCR {
		layer, err := p.openText(in.Data)
		switch {
		case err == nil:
			text = layer
		case p.cfg.Strategy == StrategyText:
			err = fmt.Errorf("%w: %w", raster.ErrUnreadableDocument, err)
			progress.OnError(0, err)
			return nil, err
		default:
			p.logger.Warn().Err(err).Str("document", in.Name).Msg("text layer unavailable, using recognition")
		}
	}

	var rast Rasterizer
	if p.cfg.Strategy != StrategyText {
		r, err := p.openRaster(in.Data, raster.Options{Zoom: p.cfg.Zoom, TempDir: p.cfg.TempDir})
		if err != nil {
			progress.OnError(0, err)
			return nil, err
		}
		defer func() { _ = r.Close() }()
		rast = r
	}

	var total int
	if rast != nil {
		total = rast.PageCount()
	} else {
		total = text.PageCount()
	}

	progress.OnStart(total)
	pages := make([]invoice.PageRecord, 0, total)
	for k := 1; k <= total; k++ {
		if err := ctx.Err(); err != nil {
			progress.OnError(k, err)
			return nil, err
		}
		rp, err := p.recognizePage(ctx, k, rast, text)
		if err != nil {
			err = fmt.Errorf("page %d: %w", k, err)
			progress.OnError(k, err)
			return nil, err
		}
		pages = append(pages, p.extractPage(rp, true))
		progress.OnProgress(k, total)
	}
	progress.OnComplete()
	return pages, nil
}

func (p *Pipeline) processImage(ctx context.Context, in Input, progress ProgressCallback) ([]invoice.PageRecord, error) {
	img, _, err := raster.DecodeImage(in.Data)
	if err != nil {
		err = fmt.Errorf("%w: %w", raster.ErrUnreadableDocument, err)
		progress.OnError(0, err)
		return nil, err
	}
	progress.OnStart(1)
	rp, err := p.recognizeImage(ctx, 1, img)
	if err != nil {
		progress.OnError(1, err)
		return nil, err
	}
	record := p.extractPage(rp, p.cfg.ImageItems)
	if !p.cfg.ImageItems {
		record.Diagnostics = append(record.Diagnostics, invoice.Diagnostic{
			Page: 1, Stage: invoice.StagePage, Code: invoice.CodeImageItemsSkipped,
			Message: "item rows are not parsed for single images",
		})
	}
	if record.Header.InvoiceNumber == "" {
		if first := extract.FirstLine(extract.Normalize(rp.Text)); first != "" {
			record.Header.InvoiceNumber = first
			record.Diagnostics = dropCode(record.Diagnostics, invoice.CodeMissingInvoiceNumber)
		}
	}
	progress.OnProgress(1, 1)
	progress.OnComplete()
	return []invoice.PageRecord{record}, nil
}

// recognizePage prefers the text layer when the strategy allows it and the
// page carries enough text, and renders and recognizes the page otherwise.
func (p *Pipeline) recognizePage(ctx context.Context, page int, rast Rasterizer, text TextSource) (invoice.RecognizedPage, error) {
	if text != nil {
		start := time.Now()
		t, err := text.PageText(page)
		stageDuration.WithLabelValues(stageTextLayer).Observe(since(start))
		switch {
		case err != nil && p.cfg.Strategy == StrategyText:
			return invoice.RecognizedPage{}, err
		case err != nil:
			p.logger.Warn().Err(err).Int("page", page).Msg("text layer read failed, using recognition")
		case p.cfg.Strategy == StrategyText || recognize.CountVisible(t) >= p.cfg.MinTextLayerChars:
			return invoice.RecognizedPage{
				PageNumber: page,
				Text:       t,
				Confidence: 100,
				Source:     invoice.SourceTextLayer,
			}, nil
		default:
			p.logger.Debug().Int("page", page).Int("chars", recognize.CountVisible(t)).Msg("sparse text layer, using recognition")
		}
	}

	start := time.Now()
	img, err := rast.Render(ctx, page)
	stageDuration.WithLabelValues(stageRender).Observe(since(start))
	if err != nil {
		return invoice.RecognizedPage{}, err
	}
	return p.recognizeImage(ctx, page, img)
}

func (p *Pipeline) recognizeImage(ctx context.Context, page int, img image.Image) (invoice.RecognizedPage, error) {
	if p.cfg.Enhance {
		img = raster.Enhance(img)
	}
	start := time.Now()
	res, err := p.recognizer.Recognize(ctx, img)
	stageDuration.WithLabelValues(stageRecognize).Observe(since(start))
	if err != nil {
		return invoice.RecognizedPage{}, fmt.Errorf("recognition failed: %w", err)
	}
	return invoice.RecognizedPage{
		PageNumber: page,
		Text:       res.Text,
		Confidence: res.Confidence,
		Source:     invoice.SourceOCR,
	}, nil
}

func (p *Pipeline) extractPage(rp invoice.RecognizedPage, withItems bool) invoice.PageRecord {
	start := time.Now()
	var record invoice.PageRecord
	if withItems {
		record = extract.Page(rp.PageNumber, rp.Text)
	} else {
		record = extract.PageWithoutItems(rp.PageNumber, rp.Text)
	}
	stageDuration.WithLabelValues(stageExtract).Observe(since(start))

	record.Source = rp.Source
	record.Confidence = rp.Confidence

	pagesProcessed.WithLabelValues(rp.Source).Inc()
	itemsExtracted.Add(float64(len(record.Items)))
	for _, d := range record.Diagnostics {
		diagnosticsEmitted.WithLabelValues(d.Code).Inc()
	}
	p.logger.Debug().
		Int("page", rp.PageNumber).
		Str("source", rp.Source).
		Int("items", len(record.Items)).
		Int("diagnostics", len(record.Diagnostics)).
		Dur("duration", time.Since(start)).
		Msg("page extracted")
	return record
}

func dropCode(diags []invoice.Diagnostic, code string) []invoice.Diagnostic {
	out := diags[:0]
	for _, d := range diags {
		if d.Code != code {
			out = append(out, d)
		}
	}
	return out
}
