package support

import (
	"net/http/httptest"
	"path/filepath"

	"github.com/MeKo-Tech/petalscan/internal/pipeline"
	"github.com/MeKo-Tech/petalscan/internal/server"
	"github.com/MeKo-Tech/petalscan/internal/store"
	"github.com/MeKo-Tech/petalscan/internal/templates"
	"github.com/rs/zerolog"
)

// APIServer is an in-process petalscan API with its data under one
// directory. Pages come from the text layer, so no OCR engine is needed.
type APIServer struct {
	HTTP  *httptest.Server
	store *store.Store
}

// StartAPIServer wires the real components behind httptest.
func StartAPIServer(dataDir string) (*APIServer, error) {
	p, err := pipeline.NewBuilder().WithStrategy(pipeline.StrategyText).Build()
	if err != nil {
		return nil, err
	}
	reg, err := templates.NewRegistry(filepath.Join(dataDir, "templates"), zerolog.Nop())
	if err != nil {
		return nil, err
	}
	files, err := store.NewFileStore(filepath.Join(dataDir, "files"), "")
	if err != nil {
		return nil, err
	}
	st, err := store.Open(filepath.Join(dataDir, "petalscan.db"), zerolog.Nop())
	if err != nil {
		return nil, err
	}

	srv := server.New(server.Config{Version: "acceptance"}, server.Deps{
		Extractor: p,
		Templates: reg,
		Invoices:  st,
		Files:     files,
		Logger:    zerolog.Nop(),
	})
	return &APIServer{HTTP: httptest.NewServer(srv.Routes()), store: st}, nil
}

// URL returns the server's base URL.
func (s *APIServer) URL() string { return s.HTTP.URL }

// Close stops the server and closes the store.
func (s *APIServer) Close() {
	s.HTTP.Close()
	_ = s.store.Close()
}
