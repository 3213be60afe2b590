package archive

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FolderStrategy writes containers as plain directory trees
type FolderStrategy struct{}

// NewFolderStrategy creates a folder strategy
func NewFolderStrategy() *FolderStrategy {
	return &FolderStrategy{}
}

// SupportsConcurrentStreams is true: every path is its own file
func (s *FolderStrategy) SupportsConcurrentStreams() bool {
	return true
}

// Setup creates the container directory
func (s *FolderStrategy) Setup(c Container) error {
	if err := os.MkdirAll(c.Root, 0755); err != nil {
		return fmt.Errorf("failed to create container directory: %w", err)
	}
	return nil
}

// CreateOutputStream creates the file and any missing parent directory
func (s *FolderStrategy) CreateOutputStream(c Container, path string) (io.WriteCloser, error) {
	full := filepath.Join(c.Root, filepath.FromSlash(path))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	f, err := os.Create(full)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	return f, nil
}

// Finish has nothing to flush for plain folders
func (s *FolderStrategy) Finish(c Container) error {
	return nil
}
