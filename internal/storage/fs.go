package storage

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/starford/waypoint/internal/apperr"
	"github.com/starford/waypoint/internal/checksum"
	"github.com/starford/waypoint/internal/models"
)

// Ext is the file extension of trip documents.
const Ext = ".json"

var validID = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

// FS implements Provider with one <id>.json file per trip in a directory.
type FS struct {
	root string // absolute path to the data directory
}

// NewFS creates a new FS provider rooted at the given directory.
// The directory must already exist.
func NewFS(root string) (*FS, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("storage: resolve root: %w", err)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("storage: stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("storage: root is not a directory: %s", abs)
	}
	return &FS{root: abs}, nil
}

// Root returns the absolute data directory.
func (f *FS) Root() string { return f.root }

// ValidID reports whether id can name a trip document.
func ValidID(id string) bool { return validID.MatchString(id) }

// IDFromPath returns the trip id of an absolute document path inside the root.
func (f *FS) IDFromPath(path string) (string, bool) {
	if filepath.Dir(path) != f.root || !strings.HasSuffix(path, Ext) {
		return "", false
	}
	id := strings.TrimSuffix(filepath.Base(path), Ext)
	if !ValidID(id) {
		return "", false
	}
	return id, true
}

// docPath maps a trip id to its file and rejects ids that could escape the root.
func (f *FS) docPath(id string) (string, error) {
	if !ValidID(id) {
		return "", fmt.Errorf("storage: invalid trip id %q: %w", id, apperr.ErrInvalid)
	}
	return filepath.Join(f.root, id+Ext), nil
}

// List returns metadata for every trip document in the root.
func (f *FS) List() ([]models.DocMeta, error) {
	entries, err := os.ReadDir(f.root)
	if err != nil {
		return nil, fmt.Errorf("storage: list: %w", err)
	}
	var out []models.DocMeta
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		id, ok := f.IDFromPath(filepath.Join(f.root, e.Name()))
		if !ok {
			continue
		}
		info, err := e.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		data, err := os.ReadFile(filepath.Join(f.root, e.Name()))
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("storage: list: %w", err)
		}
		out = append(out, models.DocMeta{
			ID:        id,
			Checksum:  checksum.Sum(data),
			UpdatedAt: info.ModTime(),
		})
	}
	return out, nil
}

// Read returns the raw bytes of a trip document.
func (f *FS) Read(id string) ([]byte, error) {
	abs, err := f.docPath(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("storage: trip %s: %w", id, apperr.ErrNotFound)
		}
		return nil, fmt.Errorf("storage: read %s: %w", id, err)
	}
	return data, nil
}

// Write atomically writes content: tmp file → fsync → rename.
func (f *FS) Write(id string, content []byte) error {
	abs, err := f.docPath(id)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.root, ".waypoint-tmp-*")
	if err != nil {
		return fmt.Errorf("storage: create temp: %w", err)
	}
	tmpName := tmp.Name()

	// Clean up on any failure path.
	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("storage: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("storage: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: close temp: %w", err)
	}
	if err := os.Rename(tmpName, abs); err != nil {
		return fmt.Errorf("storage: rename: %w", err)
	}
	success = true
	return nil
}

// Delete removes a trip document.
func (f *FS) Delete(id string) error {
	abs, err := f.docPath(id)
	if err != nil {
		return err
	}
	if err := os.Remove(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("storage: trip %s: %w", id, apperr.ErrNotFound)
		}
		return fmt.Errorf("storage: delete %s: %w", id, err)
	}
	return nil
}
