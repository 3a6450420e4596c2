// Package storage handles image files on disk under the gallery's
// images directory.
package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

// Manager writes image files and tracks what is present on disk.
// Filenames are derived from remote ids upstream, so a name collision
// means the same image, never two different ones.
type Manager struct {
	imagesDir string
	files     map[string]bool
	mu        sync.RWMutex
}

// NewManager creates a storage manager rooted at the given images
// directory, creating it if needed and scanning existing files.
func NewManager(imagesDir string) (*Manager, error) {
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	manager := &Manager{
		imagesDir: imagesDir,
		files:     make(map[string]bool),
	}

	if err := manager.scanExisting(); err != nil {
		return nil, fmt.Errorf("failed to scan images directory: %w", err)
	}
	return manager, nil
}

// scanExisting records files already present in the images directory
func (m *Manager) scanExisting() error {
	entries, err := os.ReadDir(m.imagesDir)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}

	for _, entry := range entries {
		if !entry.IsDir() {
			m.files[entry.Name()] = true
		}
	}
	return nil
}

// Exists checks whether a file with the given name is already on disk
func (m *Manager) Exists(filename string) bool {
	m.mu.RLock()
	cached := m.files[filename]
	m.mu.RUnlock()
	if cached {
		return true
	}

	if _, err := os.Stat(filepath.Join(m.imagesDir, filename)); err == nil {
		m.mu.Lock()
		m.files[filename] = true
		m.mu.Unlock()
		return true
	}
	return false
}

// Save writes image bytes under the given name. Write goes to a temp
// file first and is renamed into place, so an interrupted save never
// leaves a half-written image behind.
func (m *Manager) Save(r io.Reader, filename string) error {
	path := filepath.Join(m.imagesDir, filename)
	tempPath := path + ".tmp"

	out, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to write image data: %w", err)
	}
	if closeErr != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.files[filename] = true
	m.mu.Unlock()

	return nil
}

// ImagesDir returns the managed directory path
func (m *Manager) ImagesDir() string {
	return m.imagesDir
}

// Count returns the number of image files on disk
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}
