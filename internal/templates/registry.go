package templates

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/MeKo-Tech/petalscan/internal/invoice"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// ErrNotFound is returned when no template has the requested ID.
var ErrNotFound = errors.New("template not found")

const fileExt = ".yaml"

// Registry stores one YAML file per template in a directory.
type Registry struct {
	dir    string
	logger zerolog.Logger
	mu     sync.RWMutex
}

// NewRegistry opens (and creates if needed) a registry rooted at dir.
func NewRegistry(dir string, logger zerolog.Logger) (*Registry, error) {
	if dir == "" {
		return nil, errors.New("templates directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create templates directory: %w", err)
	}
	return &Registry{dir: dir, logger: logger.With().Str("component", "templates").Logger()}, nil
}

// Dir returns the registry directory.
func (r *Registry) Dir() string { return r.dir }

func (r *Registry) path(id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: bad template id %q", ErrInvalidCalibration, id)
	}
	return filepath.Join(r.dir, id+fileExt), nil
}

// Import parses a calibration CSV, saves the resulting template and logs the
// labels it ignored.
func (r *Registry) Import(name string, csvData io.Reader) (invoice.Template, []string, error) {
	tpl, ignored, err := ParseCalibrationCSV(name, csvData)
	if err != nil {
		return invoice.Template{}, nil, err
	}
	for _, label := range ignored {
		r.logger.Info().Str("template", tpl.ID).Str("label", label).Msg("ignored calibration label")
	}
	if tpl.TableRegion == nil {
		r.logger.Warn().Str("template", tpl.ID).Msg("calibration has no table region")
	}
	if err := r.Save(tpl); err != nil {
		return invoice.Template{}, nil, err
	}
	return tpl, ignored, nil
}

// Save writes tpl, replacing any template with the same ID.
func (r *Registry) Save(tpl invoice.Template) error {
	path, err := r.path(tpl.ID)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(tpl)
	if err != nil {
		return fmt.Errorf("failed to encode template %s: %w", tpl.ID, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write template %s: %w", tpl.ID, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to write template %s: %w", tpl.ID, err)
	}
	r.logger.Debug().Str("template", tpl.ID).Str("path", path).Msg("template saved")
	return nil
}

// Get loads one template.
func (r *Registry) Get(id string) (invoice.Template, error) {
	path, err := r.path(id)
	if err != nil {
		return invoice.Template{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return readTemplate(path, id)
}

func readTemplate(path, id string) (invoice.Template, error) {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is built from a validated id
	if errors.Is(err, os.ErrNotExist) {
		return invoice.Template{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return invoice.Template{}, fmt.Errorf("failed to read template %s: %w", id, err)
	}
	var tpl invoice.Template
	if err := yaml.Unmarshal(data, &tpl); err != nil {
		return invoice.Template{}, fmt.Errorf("failed to decode template %s: %w", id, err)
	}
	return tpl, nil
}

// List returns every template sorted by name.
func (r *Registry) List() ([]invoice.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list templates: %w", err)
	}
	out := []invoice.Template{}
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != fileExt {
			continue
		}
		id := strings.TrimSuffix(e.Name(), fileExt)
		tpl, err := readTemplate(filepath.Join(r.dir, e.Name()), id)
		if err != nil {
			r.logger.Warn().Err(err).Str("template", id).Msg("skipping unreadable template")
			continue
		}
		out = append(out, tpl)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Name == out[j].Name {
			return out[i].ID < out[j].ID
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// Delete removes a template.
func (r *Registry) Delete(id string) error {
	path, err := r.path(id)
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return fmt.Errorf("failed to delete template %s: %w", id, err)
	}
	return nil
}
