package batch

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// DocumentPatterns are the file names picked up when a directory is walked.
var DocumentPatterns = []string{
	"*.pdf", "*.png", "*.jpg", "*.jpeg", "*.tif", "*.tiff", "*.bmp", "*.webp",
}

// Discover expands the arguments into document paths. Files named directly
// are kept unless excluded; directories are walked for the include patterns
// (DocumentPatterns when none are given).
func Discover(args []string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	if len(includePatterns) == 0 {
		includePatterns = DocumentPatterns
	}

	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			found, err := discoverInDirectory(arg, recursive, includePatterns, excludePatterns)
			if err != nil {
				return nil, err
			}
			files = append(files, found...)
		} else if !matchesAnyPattern(arg, excludePatterns) {
			files = append(files, arg)
		}
	}

	return files, nil
}

// discoverInDirectory returns matching files below dir in lexical order.
func discoverInDirectory(dir string, recursive bool, includePatterns, excludePatterns []string) ([]string, error) {
	var files []string

	walkFn := func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			if !recursive && path != dir {
				return filepath.SkipDir
			}
			return nil
		}

		if shouldIncludeFile(path, includePatterns, excludePatterns) {
			files = append(files, path)
		}
		return nil
	}

	if err := filepath.WalkDir(dir, walkFn); err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(files)
	return files, nil
}

func shouldIncludeFile(path string, includePatterns, excludePatterns []string) bool {
	if matchesAnyPattern(path, excludePatterns) {
		return false
	}
	return matchesAnyPattern(path, includePatterns)
}

// matchesAnyPattern matches the base name case-insensitively, so scans
// named PAGE1.PDF are found too.
func matchesAnyPattern(path string, patterns []string) bool {
	base := strings.ToLower(filepath.Base(path))
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(strings.ToLower(pattern), base); matched {
			return true
		}
	}
	return false
}
