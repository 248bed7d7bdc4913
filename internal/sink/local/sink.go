// Package local implements a local filesystem artifact sink.
package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Config captures the parameters for the local filesystem sink.
type Config struct {
	// BaseDir is the root directory where captures will be stored.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Sink writes capture artifacts to the local filesystem.
type Sink struct {
	baseDir string
}

// New creates a new local filesystem-backed sink.
func New(cfg Config) (*Sink, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if os.IsNotExist(err) {
			if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
				return nil, fmt.Errorf("failed to create base directory: %w", mkErr)
			}
		} else {
			return nil, fmt.Errorf("failed to stat base directory: %w", err)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}

	// Check for write permissions.
	testFile := filepath.Join(cfg.BaseDir, ".writable_test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return nil, fmt.Errorf("base directory is not writable: %w", err)
	}
	if err := os.Remove(testFile); err != nil {
		return nil, fmt.Errorf("failed to clean up test file: %w", err)
	}

	return &Sink{baseDir: cfg.BaseDir}, nil
}

// Put writes data to a file under the base directory and returns a file:// URI.
func (s *Sink) Put(_ context.Context, name string, data []byte) (string, error) {
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("name is required")
	}

	fullPath := filepath.Join(s.baseDir, name)

	// Clean the path and verify it's within baseDir to prevent path traversal.
	cleanBaseDir := filepath.Clean(s.baseDir)
	cleanFullPath := filepath.Clean(fullPath)
	if !strings.HasPrefix(cleanFullPath, cleanBaseDir+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}

	dir := filepath.Dir(fullPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create parent directories: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0o600); err != nil {
		return "", fmt.Errorf("failed to write file: %w", err)
	}

	return fmt.Sprintf("file://%s", fullPath), nil
}

// Close implements tag.ArtifactSink; it performs no action.
func (s *Sink) Close() error {
	return nil
}
