package batch

import (
	"context"
	"errors"
	"testing"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubExtractor struct {
	failOn string
	inputs []pipeline.Input
}

func (s *stubExtractor) Process(_ context.Context, in pipeline.Input, progress pipeline.ProgressCallback) (*pipeline.Result, error) {
	s.inputs = append(s.inputs, in)
	if in.Name == s.failOn {
		return nil, pipeline.ErrUnsupportedInput
	}
	if progress != nil {
		progress.OnStart(1)
		progress.OnProgress(1, 1)
		progress.OnComplete()
	}
	return &pipeline.Result{
		Name:  in.Name,
		Kind:  "pdf",
		Pages: []invoice.PageRecord{{PageNumber: 1}, {PageNumber: 2}},
	}, nil
}

func TestProcessBatch(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "b.pdf", []byte("%PDF"))
	testutil.WriteFile(t, dir, "a.pdf", []byte("%PDF"))

	ext := &stubExtractor{}
	trackers := map[string]*pipeline.ProgressTracker{}
	res, err := ProcessBatch(context.Background(), ext, []string{dir}, Config{
		TemplateID: "tulip",
		Progress: func(path string) pipeline.ProgressCallback {
			tr := pipeline.NewProgressTracker()
			trackers[path] = tr
			return tr
		},
		Logger: zerolog.Nop(),
	})
	require.NoError(t, err)

	require.Len(t, res.Documents, 2)
	assert.Equal(t, "a.pdf", res.Documents[0].Name)
	assert.Equal(t, "b.pdf", res.Documents[1].Name)
	assert.Equal(t, 4, res.Pages())
	assert.Len(t, res.Paths, 2)

	for _, in := range ext.inputs {
		assert.Equal(t, "tulip", in.TemplateID)
		assert.Equal(t, []byte("%PDF"), in.Data)
	}
	require.Len(t, trackers, 2)
	for _, tr := range trackers {
		assert.True(t, tr.Snapshot().Done)
	}
}

func TestProcessBatch_NoDocuments(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "notes.txt", []byte("x"))

	_, err := ProcessBatch(context.Background(), &stubExtractor{}, []string{dir}, Config{})
	assert.ErrorIs(t, err, ErrNoDocuments)
}

func TestProcessBatch_StopsOnFailure(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.pdf", []byte("%PDF"))
	testutil.WriteFile(t, dir, "b.pdf", []byte("%PDF"))
	testutil.WriteFile(t, dir, "c.pdf", []byte("%PDF"))

	ext := &stubExtractor{failOn: "b.pdf"}
	res, err := ProcessBatch(context.Background(), ext, []string{dir}, Config{})
	require.Error(t, err)
	assert.Nil(t, res)
	assert.True(t, errors.Is(err, pipeline.ErrUnsupportedInput))
	assert.Contains(t, err.Error(), "b.pdf")
	assert.Len(t, ext.inputs, 2)
}

func TestProcessBatch_Cancelled(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "a.pdf", []byte("%PDF"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := ProcessBatch(ctx, &stubExtractor{}, []string{dir}, Config{})
	assert.ErrorIs(t, err, context.Canceled)
}

// A digital PDF through the real pipeline.
func TestProcessBatch_TextLayerPDF(t *testing.T) {
	dir := t.TempDir()
	testutil.WriteFile(t, dir, "flora.pdf", testutil.TextPDF([][]string{
		testutil.NumberedInvoice(1).Lines(),
		testutil.NumberedInvoice(2).Lines(),
	}))

	p, err := pipeline.NewBuilder().WithStrategy(pipeline.StrategyText).Build()
	require.NoError(t, err)

	res, err := ProcessBatch(context.Background(), p, []string{dir}, Config{})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)
	require.Len(t, res.Documents[0].Pages, 2)
	assert.Equal(t, "INV-002", res.Documents[0].Pages[1].Header.InvoiceNumber)
}
