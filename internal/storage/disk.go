package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// DiskStore writes images to a directory as {dealId}-{unixMillis}{ext}.
// The reference is the bare file name.
type DiskStore struct {
	dir string
	now func() time.Time
}

// NewDiskStore creates the upload directory if needed.
func NewDiskStore(dir string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
	}
	return &DiskStore{dir: dir, now: time.Now}, nil
}

// Store writes data to a new file and returns its name.
func (s *DiskStore) Store(_ context.Context, dealID uint, filename, contentType string, data []byte) (string, error) {
	ts := s.now().UnixMilli()
	ext := extension(filename, contentType)
	// Several files of one upload can share a millisecond; bump until free.
	for i := 0; i < 1000; i++ {
		name := fmt.Sprintf("%d-%d%s", dealID, ts+int64(i), ext)
		f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("failed to create image file: %w", err)
		}
		if _, err := f.Write(data); err != nil {
			f.Close()
			return "", fmt.Errorf("failed to write image file %s: %w", name, err)
		}
		if err := f.Close(); err != nil {
			return "", fmt.Errorf("failed to close image file %s: %w", name, err)
		}
		return name, nil
	}
	return "", fmt.Errorf("no free file name for deal %d", dealID)
}

// Resolve reads the referenced file.
func (s *DiskStore) Resolve(_ context.Context, ref string) (*Image, error) {
	path, err := s.path(ref)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("image %s: %w", ref, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read image %s: %w", ref, err)
	}
	contentType := mime.TypeByExtension(filepath.Ext(ref))
	return &Image{ContentType: DetectContentType(contentType, data), Data: data}, nil
}

// Delete removes the referenced file. Missing files are not an error.
func (s *DiskStore) Delete(_ context.Context, ref string) error {
	path, err := s.path(ref)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete image %s: %w", ref, err)
	}
	return nil
}

// path keeps references inside the upload directory.
func (s *DiskStore) path(ref string) (string, error) {
	if ref == "" || ref != filepath.Base(ref) || strings.HasPrefix(ref, ".") {
		return "", fmt.Errorf("image %q: %w", ref, ErrNotFound)
	}
	return filepath.Join(s.dir, ref), nil
}
