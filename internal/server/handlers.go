package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/gorilla/mux"
)

// HealthResponse is returned by /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version,omitempty"`
	Time    string `json:"time"`

	LastExtraction *pipeline.ProgressSnapshot `json:"last_extraction,omitempty"`
}

// TemplatesResponse is returned by GET /templates.
type TemplatesResponse struct {
	Templates []invoice.Template `json:"templates"`
	Count     int                `json:"count"`
}

// TemplateCreatedResponse is returned by POST /templates.
type TemplateCreatedResponse struct {
	Template      invoice.Template `json:"template"`
	IgnoredLabels []string         `json:"ignored_labels"`
}

// InvoicesResponse is returned by GET /invoices and POST /invoices.
type InvoicesResponse struct {
	Invoices []store.Row `json:"invoices"`
	Count    int         `json:"count"`
}

func (s *Server) healthHandler(w http.ResponseWriter, _ *http.Request) {
	resp := HealthResponse{
		Status:  "healthy",
		Version: s.cfg.Version,
		Time:    time.Now().UTC().Format(time.RFC3339),
	}
	if snap := s.lastExtraction.Snapshot(); snap.Total > 0 || snap.Done || snap.Failed {
		resp.LastExtraction = &snap
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) listTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	list, err := s.templates.List()
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TemplatesResponse{Templates: list, Count: len(list)})
}

func (s *Server) getTemplateHandler(w http.ResponseWriter, r *http.Request) {
	tpl, err := s.templates.Get(mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tpl)
}

func (s *Server) createTemplateHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		s.fail(w, r, fmt.Errorf("%w: name is required", errBadRequest))
		return
	}
	data, _, err := readFormFile(r, "file")
	if err != nil {
		s.fail(w, r, err)
		return
	}

	tpl, ignored, err := s.templates.Import(name, bytes.NewReader(data))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if ignored == nil {
		ignored = []string{}
	}
	writeJSON(w, http.StatusCreated, TemplateCreatedResponse{Template: tpl, IgnoredLabels: ignored})
}

// extractHandler runs one uploaded document through the pipeline and
// returns its page records.
func (s *Server) extractHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	data, name, err := readFormFile(r, "file")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	templateID := strings.TrimSpace(r.FormValue("template"))
	if err := s.checkTemplate(templateID); err != nil {
		s.fail(w, r, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.Timeout)
	defer cancel()

	res, err := s.extractor.Process(ctx, pipeline.Input{Name: name, Data: data, TemplateID: templateID}, s.lastExtraction)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// saveInvoicesHandler stores the reviewed pages of one document along with
// its source file.
func (s *Server) saveInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	if err := s.parseUpload(w, r); err != nil {
		s.fail(w, r, err)
		return
	}
	templateID := strings.TrimSpace(r.FormValue("template"))
	if templateID == "" {
		s.fail(w, r, fmt.Errorf("%w: template is required", store.ErrInvalidSave))
		return
	}
	if err := s.checkTemplate(templateID); err != nil {
		s.fail(w, r, err)
		return
	}

	var pages []invoice.PageRecord
	if err := json.Unmarshal([]byte(r.FormValue("pages")), &pages); err != nil {
		s.fail(w, r, fmt.Errorf("%w: pages must be a JSON array of page records: %w", errBadRequest, err))
		return
	}
	if len(pages) == 0 {
		s.fail(w, r, fmt.Errorf("%w: no pages to save", store.ErrInvalidSave))
		return
	}

	data, name, err := readFormFile(r, "file")
	if err != nil {
		s.fail(w, r, err)
		return
	}
	fileURL, err := s.files.Put(filepath.Ext(name), data)
	if err != nil {
		s.fail(w, r, err)
		return
	}

	rows, err := s.invoices.SaveBatch(r.Context(), store.SaveRequest{TemplateID: templateID, FileURL: fileURL, Pages: pages})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, InvoicesResponse{Invoices: rows, Count: len(rows)})
}

func (s *Server) listInvoicesHandler(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.fail(w, r, fmt.Errorf("%w: invalid limit %q", errBadRequest, raw))
			return
		}
		limit = n
	}
	rows, err := s.invoices.List(r.Context(), limit)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, InvoicesResponse{Invoices: rows, Count: len(rows)})
}

func (s *Server) getInvoiceHandler(w http.ResponseWriter, r *http.Request) {
	row, err := s.invoices.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

// checkTemplate verifies that a named template exists. An empty ID passes.
func (s *Server) checkTemplate(id string) error {
	if id == "" {
		return nil
	}
	_, err := s.templates.Get(id)
	return err
}

// parseUpload limits the body and parses the multipart form.
func (s *Server) parseUpload(w http.ResponseWriter, r *http.Request) error {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes())
	if err := r.ParseMultipartForm(s.maxUploadBytes()); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: failed to parse form data: %w", errBadRequest, err)
	}
	return nil
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, "", fmt.Errorf("%w: no %s provided", errBadRequest, field)
	}
	defer func() { _ = file.Close() }()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s: %w", field, err)
	}
	uploadSizeBytes.Observe(float64(len(data)))
	return data, header.Filename, nil
}
