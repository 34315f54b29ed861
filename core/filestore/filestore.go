// Package filestore keeps uploaded documents on local disk under random
// names, exposing the opaque reference the document record carries.
package filestore

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/uuid/v5"
)

type DiskStore struct {
	dir string
}

func NewDiskStore(dir string) (*DiskStore, error) {
	if strings.TrimSpace(dir) == "" {
		dir = "data/uploads"
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir}, nil
}

// Save streams the upload to disk and returns the storage reference. The
// original extension is kept so the compliance extractor can dispatch on it.
func (s *DiskStore) Save(originalName string, r io.Reader) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", err
	}
	name := id.String() + strings.ToLower(filepath.Ext(originalName))
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create upload: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return name, nil
}

// Remove is best-effort: a reference whose file is already gone is not an
// error.
func (s *DiskStore) Remove(ref string) error {
	if strings.TrimSpace(ref) == "" {
		return nil
	}
	err := os.Remove(s.PathFor(ref))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

func (s *DiskStore) PathFor(ref string) string {
	return filepath.Join(s.dir, filepath.Base(ref))
}
