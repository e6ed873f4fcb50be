// Package local implements a local filesystem result sink.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Sink writes job result payloads under a base directory and returns
// file:// URIs.
type Sink struct {
	baseDir string
}

// New creates a filesystem-backed sink rooted at baseDir, creating the
// directory if needed and verifying it is writable up front so jobs do
// not discover a bad data root mid-scrape.
func New(baseDir string) (*Sink, error) {
	if strings.TrimSpace(baseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(baseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	testFile := filepath.Join(baseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("clean up test file: %w", err)
	}

	return &Sink{baseDir: baseDir}, nil
}

// Put writes data to a file below the base directory and returns its
// file:// URI. Path separators in the relative path create subdirectories
// (one per task family); traversal outside the base directory is rejected.
func (s *Sink) Put(ctx context.Context, path string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("sink write canceled: %w", err)
	}

	cleaned := filepath.Clean(strings.TrimPrefix(path, "/"))
	if cleaned == "." || strings.HasPrefix(cleaned, "..") {
		return "", fmt.Errorf("invalid sink path %q", path)
	}

	full := filepath.Join(s.baseDir, cleaned)
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return "", fmt.Errorf("create result directory: %w", err)
	}
	if err := os.WriteFile(full, data, 0o640); err != nil {
		return "", fmt.Errorf("write result file: %w", err)
	}

	abs, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("resolve result path: %w", err)
	}
	return "file://" + abs, nil
}
