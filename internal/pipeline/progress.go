package pipeline

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ProgressCallback receives page-level progress for one document.
type ProgressCallback interface {
	// OnStart is called once the page count is known.
	OnStart(total int)

	// OnProgress is called after page current of total has been extracted.
	OnProgress(current, total int)

	// OnComplete is called when every page has been extracted.
	OnComplete()

	// OnError is called when page current aborts the document.
	OnError(current int, err error)
}

// Percent converts page progress to a whole percentage.
func Percent(current, total int) int {
	if total <= 0 {
		return 100
	}
	return int(math.Round(float64(current) / float64(total) * 100))
}

// NoOpProgressCallback discards all progress.
type NoOpProgressCallback struct{}

func (NoOpProgressCallback) OnStart(int)         {}
func (NoOpProgressCallback) OnProgress(int, int) {}
func (NoOpProgressCallback) OnComplete()         {}
func (NoOpProgressCallback) OnError(int, error)  {}

// PercentProgressCallback forwards whole percentages to a sink: the rounded
// share of pages done after each page and exactly 100 on completion.
type PercentProgressCallback struct {
	sink func(percent int)
}

// NewPercentProgressCallback wraps sink.
func NewPercentProgressCallback(sink func(percent int)) *PercentProgressCallback {
	return &PercentProgressCallback{sink: sink}
}

func (p *PercentProgressCallback) OnStart(int) {}

func (p *PercentProgressCallback) OnProgress(current, total int) {
	p.sink(Percent(current, total))
}

func (p *PercentProgressCallback) OnComplete() { p.sink(100) }

func (p *PercentProgressCallback) OnError(int, error) {}

// ConsoleProgressCallback draws a page progress bar.
type ConsoleProgressCallback struct {
	writer    io.Writer
	prefix    string
	width     int
	mutex     sync.Mutex
	startTime time.Time
}

// NewConsoleProgressCallback creates a console progress bar on writer,
// stderr when nil.
func NewConsoleProgressCallback(writer io.Writer, prefix string) *ConsoleProgressCallback {
	if writer == nil {
		writer = os.Stderr
	}
	return &ConsoleProgressCallback{writer: writer, prefix: prefix, width: 30}
}

// WithWidth sets the bar width in cells.
func (c *ConsoleProgressCallback) WithWidth(width int) *ConsoleProgressCallback {
	if width > 0 {
		c.width = width
	}
	return c
}

func (c *ConsoleProgressCallback) OnStart(total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.startTime = time.Now()
	_, _ = fmt.Fprintf(c.writer, "%s0/%d pages\n", c.prefix, total)
}

func (c *ConsoleProgressCallback) OnProgress(current, total int) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	if total <= 0 {
		return
	}
	filled := c.width * current / total
	bar := strings.Repeat("█", filled) + strings.Repeat("░", c.width-filled)
	_, _ = fmt.Fprintf(c.writer, "\r%s[%s] %d/%d (%d%%)", c.prefix, bar, current, total, Percent(current, total))
}

func (c *ConsoleProgressCallback) OnComplete() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sdone in %v\n", c.prefix, time.Since(c.startTime).Round(time.Millisecond))
}

func (c *ConsoleProgressCallback) OnError(current int, err error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	_, _ = fmt.Fprintf(c.writer, "\n%sfailed at page %d: %v\n", c.prefix, current, err)
}

// LogProgressCallback logs progress through zerolog.
type LogProgressCallback struct {
	logger    zerolog.Logger
	document  string
	startTime time.Time
}

// NewLogProgressCallback logs progress for the named document.
func NewLogProgressCallback(logger zerolog.Logger, document string) *LogProgressCallback {
	return &LogProgressCallback{logger: logger, document: document}
}

func (l *LogProgressCallback) OnStart(total int) {
	l.startTime = time.Now()
	l.logger.Info().Str("document", l.document).Int("pages", total).Msg("extraction started")
}

func (l *LogProgressCallback) OnProgress(current, total int) {
	l.logger.Debug().
		Str("document", l.document).
		Int("page", current).
		Int("pages", total).
		Int("percent", Percent(current, total)).
		Msg("page extracted")
}

func (l *LogProgressCallback) OnComplete() {
	l.logger.Info().Str("document", l.document).Dur("duration", time.Since(l.startTime)).Msg("extraction completed")
}

func (l *LogProgressCallback) OnError(current int, err error) {
	l.logger.Error().Err(err).Str("document", l.document).Int("page", current).Msg("extraction failed")
}

// MultiProgressCallback fans progress out to several callbacks.
type MultiProgressCallback struct {
	callbacks []ProgressCallback
}

// NewMultiProgressCallback creates a fan-out callback.
func NewMultiProgressCallback(callbacks ...ProgressCallback) *MultiProgressCallback {
	return &MultiProgressCallback{callbacks: callbacks}
}

// Add appends a callback.
func (m *MultiProgressCallback) Add(callback ProgressCallback) {
	m.callbacks = append(m.callbacks, callback)
}

func (m *MultiProgressCallback) OnStart(total int) {
	for _, cb := range m.callbacks {
		cb.OnStart(total)
	}
}

func (m *MultiProgressCallback) OnProgress(current, total int) {
	for _, cb := range m.callbacks {
		cb.OnProgress(current, total)
	}
}

func (m *MultiProgressCallback) OnComplete() {
	for _, cb := range m.callbacks {
		cb.OnComplete()
	}
}

func (m *MultiProgressCallback) OnError(current int, err error) {
	for _, cb := range m.callbacks {
		cb.OnError(current, err)
	}
}

// ThrottledProgressCallback drops intermediate updates that arrive faster
// than minInterval. The last page always passes.
type ThrottledProgressCallback struct {
	wrapped     ProgressCallback
	minInterval time.Duration
	lastUpdate  time.Time
	mutex       sync.Mutex
}

// NewThrottledProgressCallback wraps another callback.
func NewThrottledProgressCallback(wrapped ProgressCallback, minInterval time.Duration) *ThrottledProgressCallback {
	return &ThrottledProgressCallback{wrapped: wrapped, minInterval: minInterval}
}

func (t *ThrottledProgressCallback) OnStart(total int) { t.wrapped.OnStart(total) }

func (t *ThrottledProgressCallback) OnProgress(current, total int) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	now := time.Now()
	if current == total || t.lastUpdate.IsZero() || now.Sub(t.lastUpdate) >= t.minInterval {
		t.lastUpdate = now
		t.wrapped.OnProgress(current, total)
	}
}

func (t *ThrottledProgressCallback) OnComplete() { t.wrapped.OnComplete() }

func (t *ThrottledProgressCallback) OnError(current int, err error) { t.wrapped.OnError(current, err) }

// ProgressTracker keeps a snapshot of the running document for status
// endpoints. A failure clears Done even when OnStart never ran.
type ProgressTracker struct {
	mutex     sync.RWMutex
	startTime time.Time
	total     int
	current   int
	failed    bool
	done      bool
}

// ProgressSnapshot is a point-in-time copy of a ProgressTracker.
type ProgressSnapshot struct {
	Total   int           `json:"total_pages"`
	Current int           `json:"current_page"`
	Percent int           `json:"percent"`
	Failed  bool          `json:"failed"`
	Done    bool          `json:"done"`
	Elapsed time.Duration `json:"elapsed_ns"`
}

// NewProgressTracker returns an idle tracker.
func NewProgressTracker() *ProgressTracker {
	return &ProgressTracker{}
}

func (pt *ProgressTracker) OnStart(total int) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.startTime, pt.total, pt.current, pt.failed, pt.done = time.Now(), total, 0, false, false
}

func (pt *ProgressTracker) OnProgress(current, total int) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.current, pt.total = current, total
}

func (pt *ProgressTracker) OnComplete() {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.done = true
}

func (pt *ProgressTracker) OnError(current int, _ error) {
	pt.mutex.Lock()
	defer pt.mutex.Unlock()
	pt.current, pt.failed, pt.done = current, true, false
}

// Snapshot returns the current state.
func (pt *ProgressTracker) Snapshot() ProgressSnapshot {
	pt.mutex.RLock()
	defer pt.mutex.RUnlock()

	percent := Percent(pt.current, pt.total)
	if !pt.done && pt.total == 0 {
		percent = 0
	}
	if pt.done {
		percent = 100
	}
	var elapsed time.Duration
	if !pt.startTime.IsZero() {
		elapsed = time.Since(pt.startTime)
	}
	return ProgressSnapshot{
		Total:   pt.total,
		Current: pt.current,
		Percent: percent,
		Failed:  pt.failed,
		Done:    pt.done,
		Elapsed: elapsed,
	}
}
