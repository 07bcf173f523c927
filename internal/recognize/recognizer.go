// Package recognize wraps text-recognition engines behind one interface so
// extraction never depends on a particular engine.
package recognize

import (
	"context"
	"errors"
	"fmt"
	"image"
	"strings"
	"time"
)

// DefaultLanguage is the Tesseract language hint for bilingual invoices.
const DefaultLanguage = "eng+ara"

// Engine names accepted by New.
const (
	EngineTesseract = "tesseract"
	EngineAzure     = "azure"
	EngineNone      = "none"
)

// ErrEngineUnavailable is returned when the configured engine cannot run in
// this build or environment.
var ErrEngineUnavailable = errors.New("recognition engine unavailable")

// Result is the flattened text of one image. Confidence is in 0..100; zero
// means the engine does not report one.
type Result struct {
	Text       string
	Confidence float64
}

// Recognizer turns a bitmap into text.
type Recognizer interface {
	Recognize(ctx context.Context, img image.Image) (Result, error)
}

// Func adapts a plain function to Recognizer.
type Func func(ctx context.Context, img image.Image) (Result, error)

// Recognize calls f.
func (f Func) Recognize(ctx context.Context, img image.Image) (Result, error) {
	return f(ctx, img)
}

// Config selects and configures an engine.
type Config struct {
	Engine        string
	Language      string
	Timeout       time.Duration
	AzureEndpoint string
	AzureKey      string
	AzureLanguage string
}

// New builds the configured recognizer, wrapped with the timeout if one is set.
func New(cfg Config) (Recognizer, error) {
	var (
		r   Recognizer
		err error
	)
	switch strings.ToLower(cfg.Engine) {
	case "", EngineTesseract:
		r, err = NewTesseract(cfg.Language)
	case EngineAzure:
		r, err = NewAzure(cfg.AzureEndpoint, cfg.AzureKey, cfg.AzureLanguage)
	case EngineNone:
		r = Unavailable{}
	default:
		return nil, fmt.Errorf("unknown recognition engine %q", cfg.Engine)
	}
	if err != nil {
		return nil, err
	}
	return WithTimeout(r, cfg.Timeout), nil
}

// Unavailable always fails with ErrEngineUnavailable. It serves text-layer
// only setups.
type Unavailable struct{}

// Recognize implements Recognizer.
func (Unavailable) Recognize(context.Context, image.Image) (Result, error) {
	return Result{}, ErrEngineUnavailable
}

type timeoutRecognizer struct {
	next    Recognizer
	timeout time.Duration
}

// WithTimeout bounds every Recognize call by d. A zero or negative d returns
// r unchanged.
func WithTimeout(r Recognizer, d time.Duration) Recognizer {
	if d <= 0 {
		return r
	}
	return &timeoutRecognizer{next: r, timeout: d}
}

type outcome struct {
	res Result
	err error
}

func (t *timeoutRecognizer) Recognize(ctx context.Context, img image.Image) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	// Engines backed by cgo do not observe ctx, so the call runs aside.
	done := make(chan outcome, 1)
	go func() {
		res, err := t.next.Recognize(ctx, img)
		done <- outcome{res: res, err: err}
	}()

	select {
	case o := <-done:
		return o.res, o.err
	case <-ctx.Done():
		return Result{}, fmt.Errorf("recognition aborted after %s: %w", t.timeout, ctx.Err())
	}
}
