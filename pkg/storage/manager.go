package storage

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Manager handles image file storage and duplicate detection. Files are
// organized under the images directory by quilt block:
//
//	<imagesDir>/block_<suffix>/<filename>
type Manager struct {
	imagesDir  string
	downloaded map[string]bool
	mu         sync.RWMutex
}

// NewManager creates a manager rooted at imagesDir, scanning existing
// files so previously downloaded images are skipped.
func NewManager(imagesDir string) (*Manager, error) {
	if err := os.MkdirAll(imagesDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create images directory: %w", err)
	}

	m := &Manager{
		imagesDir:  imagesDir,
		downloaded: make(map[string]bool),
	}

	if err := m.scanExistingFiles(); err != nil {
		return nil, fmt.Errorf("failed to scan existing files: %w", err)
	}

	return m, nil
}

// scanExistingFiles walks the images tree and records every image file
func (m *Manager) scanExistingFiles() error {
	return filepath.WalkDir(m.imagesDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || strings.HasSuffix(path, ".tmp") {
			return nil
		}
		m.downloaded[d.Name()] = true
		return nil
	})
}

// ImagePath returns the path an image from url for itemID would be saved to
func (m *Manager) ImagePath(itemID, url string) string {
	return filepath.Join(m.blockDir(itemID), SafeFilename(url, itemID))
}

// IsDownloaded checks whether the image for this item and URL already
// exists on disk.
func (m *Manager) IsDownloaded(itemID, url string) bool {
	name := SafeFilename(url, itemID)

	m.mu.RLock()
	cached := m.downloaded[name]
	m.mu.RUnlock()
	if cached {
		return true
	}

	if _, err := os.Stat(m.ImagePath(itemID, url)); err == nil {
		m.mu.Lock()
		m.downloaded[name] = true
		m.mu.Unlock()
		return true
	}

	return false
}

// SaveImage writes image bytes to a temporary file and atomically renames
// it into place, returning the final path.
func (m *Manager) SaveImage(data []byte, itemID, url string) (string, error) {
	dir := m.blockDir(itemID)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create block directory: %w", err)
	}

	name := SafeFilename(url, itemID)
	filename := filepath.Join(dir, name)
	tempFile := filename + ".tmp"

	if err := os.WriteFile(tempFile, data, 0644); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to write image data: %w", err)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return "", fmt.Errorf("failed to rename temporary file: %w", err)
	}

	m.mu.Lock()
	m.downloaded[name] = true
	m.mu.Unlock()

	return filename, nil
}

// Remove deletes a saved image, used when validation rejects the bytes
// after the fact.
func (m *Manager) Remove(itemID, url string) error {
	name := SafeFilename(url, itemID)

	m.mu.Lock()
	delete(m.downloaded, name)
	m.mu.Unlock()

	err := os.Remove(m.ImagePath(itemID, url))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove image: %w", err)
	}
	return nil
}

// ImagesDir returns the root images directory
func (m *Manager) ImagesDir() string {
	return m.imagesDir
}

// DownloadedCount returns the number of known image files
func (m *Manager) DownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}

// blockDir maps an item id to its block directory, using the raw id
// suffix so afc2019048_0001 lands in block_0001.
func (m *Manager) blockDir(itemID string) string {
	suffix := itemID
	if idx := strings.LastIndex(itemID, "_"); idx >= 0 && idx < len(itemID)-1 {
		suffix = itemID[idx+1:]
	}
	return filepath.Join(m.imagesDir, "block_"+suffix)
}
