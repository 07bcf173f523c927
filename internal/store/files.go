package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

// FileStore keeps uploaded invoice files in a directory.
type FileStore struct {
	dir     string
	baseURL string
	now     func() time.Time
}

// NewFileStore creates dir if needed. When baseURL is set, Put returns
// public URLs under it instead of file paths.
func NewFileStore(dir, baseURL string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("files directory is required")
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create files directory: %w", err)
	}
	return &FileStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), now: time.Now}, nil
}

// Put writes data under a fresh batch file name and returns where it can be
// found.
func (f *FileStore) Put(ext string, data []byte) (string, error) {
	name := fmt.Sprintf("invoice-batch-%d-%s.%s", f.now().UnixMilli(), randomSuffix(), cleanExt(ext))
	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to store file: %w", err)
	}
	if f.baseURL != "" {
		return f.baseURL + "/" + name, nil
	}
	return path, nil
}

func randomSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

func cleanExt(ext string) string {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	ext = strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			return r
		}
		return -1
	}, ext)
	if ext == "" {
		return "bin"
	}
	return ext
}
