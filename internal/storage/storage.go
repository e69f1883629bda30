// Package storage keeps deal images behind a single reference abstraction.
// Handlers and services only ever see the opaque reference string.
package storage

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrNotFound is returned when a reference does not resolve to stored bytes.
var ErrNotFound = errors.New("image not found")

// Image is a resolved image.
type Image struct {
	ContentType string
	Data        []byte
}

// ImageStore persists image bytes and hands back a reference for the deal row.
type ImageStore interface {
	Store(ctx context.Context, dealID uint, filename, contentType string, data []byte) (string, error)
	Resolve(ctx context.Context, ref string) (*Image, error)
	Delete(ctx context.Context, ref string) error
}

// DetectContentType prefers the declared type and falls back to sniffing the bytes.
func DetectContentType(declared string, data []byte) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	return http.DetectContentType(data)
}

// IsImage reports whether contentType is an image media type.
func IsImage(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && strings.HasPrefix(mediaType, "image/")
}

// extension picks a file extension from the original name, then from the content type.
func extension(filename, contentType string) string {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != "" {
		return ext
	}
	switch contentType {
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	case "image/webp":
		return ".webp"
	}
	if exts, err := mime.ExtensionsByType(contentType); err == nil && len(exts) > 0 {
		return exts[0]
	}
	return ".bin"
}
