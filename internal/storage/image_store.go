package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// ImageStore persists uploaded product images under generated unique names.
type ImageStore interface {
	// Save writes content into the store under a generated unique name and
	// returns that name. A failed save must abort the enclosing mutation.
	Save(content io.Reader, originalName string) (string, error)
	// Remove deletes a previously stored image. An empty name is a no-op and
	// a missing file is not an error; removal is idempotent.
	Remove(storedName string) error
}

// DiskStore is a file-system backed ImageStore rooted at a fixed directory.
type DiskStore struct {
	dir string
}

// NewDiskStore creates the backing directory if needed and returns a store
// rooted there.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create image directory: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save writes the content under a random unique name. The original file name
// is kept as a suffix so stored files stay recognizable.
func (s *DiskStore) Save(content io.Reader, originalName string) (string, error) {
	// filepath.Base guards against path traversal in client-supplied names.
	name := strings.ReplaceAll(uuid.NewString(), "-", "") + filepath.Base(originalName)
	path := filepath.Join(s.dir, name)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create image file: %w", err)
	}

	if _, err := io.Copy(f, content); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write image file: %w", err)
	}

	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to close image file: %w", err)
	}

	return name, nil
}

// Remove deletes the named image from the store directory.
func (s *DiskStore) Remove(storedName string) error {
	if strings.TrimSpace(storedName) == "" {
		return nil
	}

	path := filepath.Join(s.dir, filepath.Base(storedName))
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to remove image file: %w", err)
	}

	return nil
}
