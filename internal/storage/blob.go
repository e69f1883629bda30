package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dealhub/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const blobPrefix = "blob:"

// BlobStore keeps image bytes in the deal_images table.
// References look like "blob:<uuid>".
type BlobStore struct {
	db *gorm.DB
}

// NewBlobStore creates a BlobStore on an already migrated database.
func NewBlobStore(db *gorm.DB) *BlobStore {
	return &BlobStore{db: db}
}

// Store inserts a new image row.
func (s *BlobStore) Store(ctx context.Context, _ uint, _ string, contentType string, data []byte) (string, error) {
	img := models.DealImage{
		ID:          uuid.NewString(),
		ContentType: DetectContentType(contentType, data),
		Data:        data,
	}
	if err := s.db.WithContext(ctx).Create(&img).Error; err != nil {
		return "", fmt.Errorf("failed to store image blob: %w", err)
	}
	return blobPrefix + img.ID, nil
}

// Resolve loads the referenced image row.
func (s *BlobStore) Resolve(ctx context.Context, ref string) (*Image, error) {
	id, err := blobID(ref)
	if err != nil {
		return nil, err
	}
	var img models.DealImage
	if err := s.db.WithContext(ctx).First(&img, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("image %s: %w", ref, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load image %s: %w", ref, err)
	}
	return &Image{ContentType: img.ContentType, Data: img.Data}, nil
}

// Delete removes the referenced row. Missing rows are not an error.
func (s *BlobStore) Delete(ctx context.Context, ref string) error {
	id, err := blobID(ref)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Delete(&models.DealImage{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("failed to delete image %s: %w", ref, err)
	}
	return nil
}

func blobID(ref string) (string, error) {
	id, ok := strings.CutPrefix(ref, blobPrefix)
	if !ok {
		return "", fmt.Errorf("image %q: %w", ref, ErrNotFound)
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", fmt.Errorf("image %q: %w", ref, ErrNotFound)
	}
	return id, nil
}
