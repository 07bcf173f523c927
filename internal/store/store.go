// Package store persists reviewed invoice pages in SQLite and keeps the
// uploaded source files on disk.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when no row has the requested ID.
	ErrNotFound = errors.New("invoice not found")
	// ErrInvalidSave is returned for save requests missing a template, a file
	// or pages.
	ErrInvalidSave = errors.New("invalid save request")
)

// StatusDraft is the status of freshly saved rows.
const StatusDraft = "draft"

// DefaultListLimit caps List when no limit is given.
const DefaultListLimit = 100

const schema = `
CREATE TABLE IF NOT EXISTS purchase_invoices (
  id TEXT PRIMARY KEY,
  batch_id TEXT NOT NULL,
  supplier_template TEXT NOT NULL,
  invoice_number TEXT,
  invoice_date TEXT,
  salesman TEXT,
  total_amount REAL,
  total_taxable_amount REAL,
  total_tax_amount REAL,
  items_json TEXT,
  file_url TEXT NOT NULL,
  page_number INTEGER NOT NULL,
  status TEXT NOT NULL DEFAULT 'draft',
  created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_purchase_invoices_created ON purchase_invoices(created_at);
CREATE INDEX IF NOT EXISTS idx_purchase_invoices_batch ON purchase_invoices(batch_id);
`

// Row is one stored invoice page. Nil pointers are SQL NULLs.
type Row struct {
	ID                 string             `json:"id"`
	BatchID            string             `json:"batch_id"`
	SupplierTemplate   string             `json:"supplier_template"`
	InvoiceNumber      *string            `json:"invoice_number"`
	InvoiceDate        *string            `json:"invoice_date"`
	Salesman           *string            `json:"salesman"`
	TotalAmount        *float64           `json:"total_amount"`
	TotalTaxableAmount *float64           `json:"total_taxable_amount"`
	TotalTaxAmount     *float64           `json:"total_tax_amount"`
	Items              []invoice.LineItem `json:"items_json"`
	FileURL            string             `json:"file_url"`
	PageNumber         int                `json:"page_number"`
	Status             string             `json:"status"`
	CreatedAt          time.Time          `json:"created_at"`
}

// SaveRequest is one reviewed document.
type SaveRequest struct {
	TemplateID string
	FileURL    string
	Pages      []invoice.PageRecord
}

// Store is the SQLite-backed invoice table.
type Store struct {
	db     *sql.DB
	logger zerolog.Logger
	now    func() time.Time
}

// Open opens or creates the database at path in WAL mode.
func Open(path string, logger zerolog.Logger) (*Store, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One writer keeps SQLite free of busy errors and lets :memory: work.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Store{
		db:     db,
		logger: logger.With().Str("component", "store").Logger(),
		now:    time.Now,
	}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// SaveBatch stores one row per page in a single transaction. The rows share a
// fresh batch ID.
func (s *Store) SaveBatch(ctx context.Context, req SaveRequest) ([]Row, error) {
	switch {
	case req.TemplateID == "":
		return nil, fmt.Errorf("%w: template is required", ErrInvalidSave)
	case req.FileURL == "":
		return nil, fmt.Errorf("%w: file is required", ErrInvalidSave)
	case len(req.Pages) == 0:
		return nil, fmt.Errorf("%w: no pages to save", ErrInvalidSave)
	}

	batchID := uuid.NewString()
	createdAt := s.now().UTC()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO purchase_invoices (
  id, batch_id, supplier_template, invoice_number, invoice_date, salesman,
  total_amount, total_taxable_amount, total_tax_amount, items_json,
  file_url, page_number, status, created_at
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	rows := make([]Row, 0, len(req.Pages))
	for _, page := range req.Pages {
		row := rowFromPage(page)
		row.ID = uuid.NewString()
		row.BatchID = batchID
		row.SupplierTemplate = req.TemplateID
		row.FileURL = req.FileURL
		row.Status = StatusDraft
		row.CreatedAt = createdAt

		items, err := encodeItems(row.Items)
		if err != nil {
			return nil, err
		}
		if _, err := stmt.ExecContext(ctx,
			row.ID, row.BatchID, row.SupplierTemplate,
			row.InvoiceNumber, row.InvoiceDate, row.Salesman,
			row.TotalAmount, row.TotalTaxableAmount, row.TotalTaxAmount, items,
			row.FileURL, row.PageNumber, row.Status, createdAt.Format(time.RFC3339Nano),
		); err != nil {
			return nil, fmt.Errorf("failed to insert page %d: %w", page.PageNumber, err)
		}
		rows = append(rows, row)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit batch: %w", err)
	}
	s.logger.Info().
		Str("batch", batchID).
		Str("template", req.TemplateID).
		Int("pages", len(rows)).
		Msg("invoice batch saved")
	return rows, nil
}

func rowFromPage(page invoice.PageRecord) Row {
	row := Row{
		InvoiceNumber:      optionalString(page.Header.InvoiceNumber),
		InvoiceDate:        optionalString(page.Header.InvoiceDate),
		Salesman:           optionalString(page.Header.Salesman),
		TotalAmount:        optionalAmount(page.Totals.TotalAmount),
		TotalTaxableAmount: optionalAmount(page.Totals.TotalTaxable),
		TotalTaxAmount:     optionalAmount(page.Totals.TotalTax),
		PageNumber:         page.PageNumber,
	}
	if len(page.Items) > 0 {
		row.Items = page.Items
	}
	return row
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func optionalAmount(raw string) *float64 {
	v, ok := invoice.ParseAmount(raw)
	if !ok {
		return nil
	}
	return &v
}

func encodeItems(items []invoice.LineItem) (any, error) {
	if len(items) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to encode items: %w", err)
	}
	return string(data), nil
}

const selectColumns = `
SELECT id, batch_id, supplier_template, invoice_number, invoice_date, salesman,
  total_amount, total_taxable_amount, total_tax_amount, items_json,
  file_url, page_number, status, created_at
FROM purchase_invoices`

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(sc scanner) (Row, error) {
	var (
		row                    Row
		number, date, salesman sql.NullString
		total, taxable, tax    sql.NullFloat64
		items                  sql.NullString
		createdAt              string
	)
	if err := sc.Scan(&row.ID, &row.BatchID, &row.SupplierTemplate, &number, &date, &salesman,
		&total, &taxable, &tax, &items, &row.FileURL, &row.PageNumber, &row.Status, &createdAt); err != nil {
		return Row{}, err
	}
	row.InvoiceNumber = nullString(number)
	row.InvoiceDate = nullString(date)
	row.Salesman = nullString(salesman)
	row.TotalAmount = nullFloat(total)
	row.TotalTaxableAmount = nullFloat(taxable)
	row.TotalTaxAmount = nullFloat(tax)
	if items.Valid {
		if err := json.Unmarshal([]byte(items.String), &row.Items); err != nil {
			return Row{}, fmt.Errorf("failed to decode items of %s: %w", row.ID, err)
		}
	}
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		return Row{}, fmt.Errorf("bad created_at on %s: %w", row.ID, err)
	}
	row.CreatedAt = t
	return row, nil
}

func nullString(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	return &ns.String
}

func nullFloat(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	return &nf.Float64
}

// List returns up to limit rows, newest first. A non-positive limit means
// DefaultListLimit.
func (s *Store) List(ctx context.Context, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	rs, err := s.db.QueryContext(ctx, selectColumns+` ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	defer func() { _ = rs.Close() }()

	out := []Row{}
	for rs.Next() {
		row, err := scanRow(rs)
		if err != nil {
			return nil, err
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return out, nil
}

// Get returns one row.
func (s *Store) Get(ctx context.Context, id string) (Row, error) {
	row, err := scanRow(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Row{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Row{}, fmt.Errorf("failed to get invoice %s: %w", id, err)
	}
	return row, nil
}
