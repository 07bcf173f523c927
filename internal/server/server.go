// Package server exposes extraction, templates and stored invoices over HTTP.
package server

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Extractor runs documents through the extraction pipeline.
type Extractor interface {
	Process(ctx context.Context, in pipeline.Input, progress pipeline.ProgressCallback) (*pipeline.Result, error)
}

// TemplateRegistry stores supplier templates.
type TemplateRegistry interface {
	List() ([]invoice.Template, error)
	Get(id string) (invoice.Template, error)
	Import(name string, csvData io.Reader) (invoice.Template, []string, error)
}

// InvoiceStore persists reviewed pages.
type InvoiceStore interface {
	SaveBatch(ctx context.Context, req store.SaveRequest) ([]store.Row, error)
	List(ctx context.Context, limit int) ([]store.Row, error)
	Get(ctx context.Context, id string) (store.Row, error)
}

// FileSaver keeps uploaded source files.
type FileSaver interface {
	Put(ext string, data []byte) (string, error)
}

// Config holds server settings.
type Config struct {
	CORSOrigin  string
	MaxUploadMB int64
	Timeout     time.Duration
	Version     string
}

// Deps are the components the handlers call.
type Deps struct {
	Extractor Extractor
	Templates TemplateRegistry
	Invoices  InvoiceStore
	Files     FileSaver
	Logger    zerolog.Logger
}

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	cfg       Config
	extractor Extractor
	templates TemplateRegistry
	invoices  InvoiceStore
	files     FileSaver
	logger    zerolog.Logger

	// pongWait bounds how long a websocket may stay silent between requests.
	pongWait time.Duration
	// lastExtraction follows the most recently started extraction.
	lastExtraction *pipeline.ProgressTracker
}

// New creates a server. Zero config values fall back to defaults.
func New(cfg Config, deps Deps) *Server {
	if cfg.CORSOrigin == "" {
		cfg.CORSOrigin = "*"
	}
	if cfg.MaxUploadMB <= 0 {
		cfg.MaxUploadMB = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	return &Server{
		cfg:       cfg,
		extractor: deps.Extractor,
		templates: deps.Templates,
		invoices:  deps.Invoices,
		files:     deps.Files,
		logger:    deps.Logger.With().Str("component", "server").Logger(),
		pongWait:  wsPongWait,

		lastExtraction: pipeline.NewProgressTracker(),
	}
}

// Routes returns the router with every endpoint and middleware attached.
// CORS wraps the router so preflight requests are answered for any path.
func (s *Server) Routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.requestMiddleware)

	r.HandleFunc("/health", s.healthHandler).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	r.HandleFunc("/templates", s.listTemplatesHandler).Methods(http.MethodGet)
	r.HandleFunc("/templates", s.createTemplateHandler).Methods(http.MethodPost)
	r.HandleFunc("/templates/{id}", s.getTemplateHandler).Methods(http.MethodGet)

	r.HandleFunc("/invoices/extract", s.extractHandler).Methods(http.MethodPost)
	r.HandleFunc("/ws/extract", s.extractWebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/invoices", s.saveInvoicesHandler).Methods(http.MethodPost)
	r.HandleFunc("/invoices", s.listInvoicesHandler).Methods(http.MethodGet)
	r.HandleFunc("/invoices/{id}", s.getInvoiceHandler).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return s.corsMiddleware(r)
}

func (s *Server) maxUploadBytes() int64 {
	return s.cfg.MaxUploadMB * 1024 * 1024
}
