// Package blob stores book PDFs on the local filesystem, keyed by book id.
package blob

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

type Store struct {
	dir string
}

func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create blob dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Path(bookID int64) string {
	return filepath.Join(s.dir, fmt.Sprintf("%d.pdf", bookID))
}

// Save writes the PDF via a temp file and rename, so a failed upload never
// leaves a half-written blob at the final path.
func (s *Store) Save(bookID int64, r io.Reader) (string, error) {
	dst := s.Path(bookID)

	tmp, err := os.CreateTemp(s.dir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("failed to create temp file: %w", err)
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to write blob: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), dst); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("failed to finalize blob: %w", err)
	}
	return dst, nil
}

func (s *Store) Exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes the blob; a missing file is not an error.
func (s *Store) Remove(path string) error {
	if path == "" {
		return nil
	}
	err := os.Remove(path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
