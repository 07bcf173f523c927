package store

import (
	"context"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "db", "petalscan.db"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func samplePages() []invoice.PageRecord {
	return []invoice.PageRecord{
		{
			PageNumber: 1,
			Header:     invoice.Header{InvoiceNumber: "ABC/123", InvoiceDate: "01-OCT-2025", Salesman: "Ahmed"},
			Totals:     invoice.Totals{TotalTaxable: "1,250.00", TotalTax: "62.50", TotalAmount: "1,312.50"},
			Items: []invoice.LineItem{{
				SNo: "1", StockCode: "F121924", Description: "White Rose", Qty: "10",
				Rate: "25.00", DiscountAmount: "0.00", TaxableAmount: "250.00",
				VATPercent: invoice.VATPercent, TaxAmount: "12.50", LineTotal: "262.50",
			}},
		},
		{
			PageNumber: 2,
			Items:      []invoice.LineItem{},
		},
	}
}

func TestSaveBatch(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	rows, err := s.SaveBatch(ctx, SaveRequest{TemplateID: "tulip", FileURL: "/files/a.pdf", Pages: samplePages()})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, rows[0].BatchID, rows[1].BatchID)
	assert.NotEqual(t, rows[0].ID, rows[1].ID)

	first, err := s.Get(ctx, rows[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "tulip", first.SupplierTemplate)
	require.NotNil(t, first.InvoiceNumber)
	assert.Equal(t, "ABC/123", *first.InvoiceNumber)
	require.NotNil(t, first.TotalAmount)
	assert.InDelta(t, 1312.50, *first.TotalAmount, 1e-9)
	assert.InDelta(t, 1250.00, *first.TotalTaxableAmount, 1e-9)
	require.Len(t, first.Items, 1)
	assert.Equal(t, "262.50", first.Items[0].LineTotal)
	assert.Equal(t, StatusDraft, first.Status)
	assert.Equal(t, 1, first.PageNumber)
	assert.WithinDuration(t, time.Now(), first.CreatedAt, time.Minute)

	second, err := s.Get(ctx, rows[1].ID)
	require.NoError(t, err)
	assert.Nil(t, second.InvoiceNumber)
	assert.Nil(t, second.Salesman)
	assert.Nil(t, second.TotalAmount)
	assert.Nil(t, second.Items)
	assert.Equal(t, "/files/a.pdf", second.FileURL)
}

func TestSaveBatchRejectsInvalid(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SaveRequest
	}{
		{"no template", SaveRequest{FileURL: "f", Pages: samplePages()}},
		{"no file", SaveRequest{TemplateID: "t", Pages: samplePages()}},
		{"no pages", SaveRequest{TemplateID: "t", FileURL: "f"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := s.SaveBatch(ctx, tt.req)
			require.ErrorIs(t, err, ErrInvalidSave)
		})
	}

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestListNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC)
	for i, tpl := range []string{"old", "mid", "new"} {
		s.now = func() time.Time { return base.Add(time.Duration(i) * time.Hour) }
		_, err := s.SaveBatch(ctx, SaveRequest{TemplateID: tpl, FileURL: "f", Pages: samplePages()[:1]})
		require.NoError(t, err)
	}

	list, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "new", list[0].SupplierTemplate)
	assert.Equal(t, "old", list[2].SupplierTemplate)

	limited, err := s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)
}

func TestGetNotFound(t *testing.T) {
	s := openTestStore(t)
	_, err := s.Get(context.Background(), "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestFileStorePut(t *testing.T) {
	dir := t.TempDir()
	name := regexp.MustCompile(`^invoice-batch-\d+-[0-9a-f]{12}\.pdf$`)

	t.Run("path", func(t *testing.T) {
		fs, err := NewFileStore(dir, "")
		require.NoError(t, err)

		loc, err := fs.Put(".PDF", []byte("%PDF-1.4"))
		require.NoError(t, err)
		assert.Regexp(t, name, filepath.Base(loc))

		data, err := os.ReadFile(loc)
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.4", string(data))
	})

	t.Run("public url", func(t *testing.T) {
		fs, err := NewFileStore(dir, "https://files.example.com/invoices/")
		require.NoError(t, err)

		loc, err := fs.Put("pdf", []byte("x"))
		require.NoError(t, err)
		assert.Regexp(t, `^https://files\.example\.com/invoices/invoice-batch-`, loc)
	})

	t.Run("odd extension", func(t *testing.T) {
		fs, err := NewFileStore(dir, "")
		require.NoError(t, err)

		loc, err := fs.Put("../", []byte("x"))
		require.NoError(t, err)
		assert.Equal(t, dir, filepath.Dir(loc))
		assert.Equal(t, ".bin", filepath.Ext(loc))
	})
}
