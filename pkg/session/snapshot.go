package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mediamirror/pkg/logger"
)

// SnapshotVersion is the only snapshot layout Load accepts.
const SnapshotVersion = 1

// ErrIncompatibleSnapshot is returned for snapshots written in another layout.
var ErrIncompatibleSnapshot = errors.New("incompatible session snapshot")

// Snapshot is the persisted credential state of a session.
type Snapshot struct {
	Version  int            `json:"version"`
	SavedAt  time.Time      `json:"saved_at"`
	Username string         `json:"username"`
	Cookies  []CookieRecord `json:"cookies"`
}

// CookieRecord is one cookie together with the URL that set it.
type CookieRecord struct {
	URL      string    `json:"url"`
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// SnapshotStore persists a session snapshot between runs.
type SnapshotStore interface {
	// Load returns nil, nil when nothing is stored.
	Load() (*Snapshot, error)
	Save(s *Snapshot) error
	Delete() error
}

// FileStore keeps the snapshot in a single JSON file.
type FileStore struct {
	path   string
	logger logger.Logger
}

// NewFileStore creates a store at path.
func NewFileStore(path string, log logger.Logger) *FileStore {
	return &FileStore{path: path, logger: logger.OrNop(log)}
}

// Path returns the snapshot location.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the snapshot
func (f *FileStore) Load() (*Snapshot, error) {
	file, err := os.Open(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open session snapshot: %w", err)
	}
	defer file.Close()

	var snap Snapshot
	if err := json.NewDecoder(file).Decode(&snap); err != nil {
		return nil, fmt.Errorf("failed to decode session snapshot: %w", err)
	}
	if snap.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: version %d", ErrIncompatibleSnapshot, snap.Version)
	}

	f.logger.DebugWithFields("Session snapshot loaded", map[string]interface{}{
		"path":     f.path,
		"cookies":  len(snap.Cookies),
		"saved_at": snap.SavedAt,
	})

	return &snap, nil
}

// Save writes the snapshot to disk atomically
func (f *FileStore) Save(snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	tempPath := f.path + ".tmp"
	file, err := os.OpenFile(tempPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to create temporary snapshot file: %w", err)
	}

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snap); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to encode session snapshot: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(tempPath)
		return fmt.Errorf("failed to sync session snapshot: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to close session snapshot: %w", err)
	}

	if err := os.Rename(tempPath, f.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to replace session snapshot: %w", err)
	}

	f.logger.DebugWithFields("Session snapshot saved", map[string]interface{}{
		"path":    f.path,
		"cookies": len(snap.Cookies),
	})

	return nil
}

// Delete removes the snapshot file
func (f *FileStore) Delete() error {
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}
