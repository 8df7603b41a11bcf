package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// VideoExt is the extension of mirrored videos.
const VideoExt = ".mp4"

// Manager owns the library layout: one folder per item holding
// <folder>/<folder>.mp4 plus its metadata files.
type Manager struct {
	root       string
	downloaded map[string]bool
	mu         sync.RWMutex
}

// NewManager creates the library root if needed and indexes the items that
// already have a video.
func NewManager(root string) (*Manager, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create library root: %w", err)
	}

	m := &Manager{
		root:       root,
		downloaded: make(map[string]bool),
	}
	if err := m.scanExistingItems(); err != nil {
		return nil, fmt.Errorf("failed to scan library: %w", err)
	}
	return m, nil
}

func (m *Manager) scanExistingItems() error {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return fmt.Errorf("failed to read directory: %w", err)
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		if info, err := os.Stat(m.VideoPath(entry.Name())); err == nil && !info.IsDir() {
			m.downloaded[entry.Name()] = true
		}
	}
	return nil
}

// Root returns the library root.
func (m *Manager) Root() string {
	return m.root
}

// ItemDir returns the folder of an item.
func (m *Manager) ItemDir(folder string) string {
	return filepath.Join(m.root, folder)
}

// VideoPath returns where an item's video lives.
func (m *Manager) VideoPath(folder string) string {
	return filepath.Join(m.root, folder, folder+VideoExt)
}

// EnsureItemDir creates an item's folder.
func (m *Manager) EnsureItemDir(folder string) error {
	if err := os.MkdirAll(m.ItemDir(folder), 0755); err != nil {
		return fmt.Errorf("failed to create item folder: %w", err)
	}
	return nil
}

// HasVideo reports whether the item's video is in the library.
func (m *Manager) HasVideo(folder string) bool {
	m.mu.RLock()
	known := m.downloaded[folder]
	m.mu.RUnlock()
	if known {
		return true
	}

	if info, err := os.Stat(m.VideoPath(folder)); err == nil && !info.IsDir() {
		m.MarkDownloaded(folder)
		return true
	}
	return false
}

// MarkDownloaded records that an item's video is complete.
func (m *Manager) MarkDownloaded(folder string) {
	m.mu.Lock()
	m.downloaded[folder] = true
	m.mu.Unlock()
}

// GetDownloadedCount returns the number of items with a video.
func (m *Manager) GetDownloadedCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.downloaded)
}

// Items lists the item folders in the library, sorted.
func (m *Manager) Items() ([]string, error) {
	entries, err := os.ReadDir(m.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read library: %w", err)
	}
	var items []string
	for _, entry := range entries {
		if entry.IsDir() {
			items = append(items, entry.Name())
		}
	}
	sort.Strings(items)
	return items, nil
}

// ReadFile reads a file from an item's folder.
func (m *Manager) ReadFile(folder, name string) ([]byte, error) {
	return os.ReadFile(filepath.Join(m.ItemDir(folder), name))
}

// Save writes r to name inside an item's folder through a temporary file
// and a rename.
func (m *Manager) Save(r io.Reader, folder, name string) error {
	if err := m.EnsureItemDir(folder); err != nil {
		return err
	}
	filename := filepath.Join(m.ItemDir(folder), name)

	tempFile := filename + ".tmp"
	out, err := os.Create(tempFile)
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}

	_, err = io.Copy(out, r)
	closeErr := out.Close()

	if err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if closeErr != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to close file: %w", closeErr)
	}

	if err := os.Rename(tempFile, filename); err != nil {
		os.Remove(tempFile)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}
