package repositories

import (
	"context"

	"dealhub/internal/models"
)

// DealRepository defines the interface for deal data access.
type DealRepository interface {
	// List returns one page of deals and the number of deals matching the filter.
	List(ctx context.Context, query models.DealQuery) ([]models.Deal, int64, error)
	GetByID(ctx context.Context, id uint) (*models.Deal, error)
	Create(ctx context.Context, deal *models.Deal) error
	// Update writes only the given columns.
	Update(ctx context.Context, id uint, fields map[string]any) error
	Delete(ctx context.Context, id uint) error
}
