package repositories

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"dealhub/internal/models"

	"gorm.io/gorm"
)

// GORMDealRepository is a GORM implementation of DealRepository.
type GORMDealRepository struct {
	db *gorm.DB
}

// NewGORMDealRepository creates a new instance of GORMDealRepository.
func NewGORMDealRepository(db *gorm.DB) *GORMDealRepository {
	return &GORMDealRepository{
		db: db,
	}
}

// likeEscaper neutralises LIKE wildcards in user input.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// titleFilter applies the case-insensitive substring match on title.
// It matches against title_key so every driver folds case the same way.
// The same scope feeds the page query and the count query.
func titleFilter(name string) func(*gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if name == "" {
			return db
		}
		pattern := "%" + likeEscaper.Replace(models.FoldTitle(name)) + "%"
		return db.Where(`title_key LIKE ? ESCAPE '\'`, pattern)
	}
}

// List retrieves one page of deals and the filtered total count.
func (r *GORMDealRepository) List(ctx context.Context, query models.DealQuery) ([]models.Deal, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).Model(&models.Deal{}).Scopes(titleFilter(query.Name)).Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count deals: %w", err)
	}

	deals := make([]models.Deal, 0, query.PageSize)
	err := r.db.WithContext(ctx).
		Scopes(titleFilter(query.Name)).
		Order("id asc").
		Offset(query.Offset()).
		Limit(query.PageSize).
		Find(&deals).Error
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list deals: %w", err)
	}
	return deals, total, nil
}

// GetByID retrieves a single deal by its ID from the database.
func (r *GORMDealRepository) GetByID(ctx context.Context, id uint) (*models.Deal, error) {
	var deal models.Deal
	if err := r.db.WithContext(ctx).First(&deal, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("deal with ID %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get deal by ID %d: %w", id, err)
	}
	return &deal, nil
}

// Create creates a new deal in the database.
func (r *GORMDealRepository) Create(ctx context.Context, deal *models.Deal) error {
	deal.TitleKey = models.FoldTitle(deal.Title)
	if err := r.db.WithContext(ctx).Create(deal).Error; err != nil {
		return fmt.Errorf("failed to create deal: %w", err)
	}
	return nil
}

// Update writes the given columns of the deal row.
func (r *GORMDealRepository) Update(ctx context.Context, id uint, fields map[string]any) error {
	if title, ok := fields["title"].(string); ok {
		withKey := make(map[string]any, len(fields)+1)
		for k, v := range fields {
			withKey[k] = v
		}
		withKey["title_key"] = models.FoldTitle(title)
		fields = withKey
	}
	res := r.db.WithContext(ctx).Model(&models.Deal{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return fmt.Errorf("failed to update deal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deal with ID %d: %w", id, ErrNotFound)
	}
	return nil
}

// Delete deletes a deal by its ID from the database.
func (r *GORMDealRepository) Delete(ctx context.Context, id uint) error {
	res := r.db.WithContext(ctx).Delete(&models.Deal{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete deal: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("deal with ID %d: %w", id, ErrNotFound)
	}
	return nil
}
