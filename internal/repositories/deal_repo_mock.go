package repositories

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"dealhub/internal/models"
)

// MockDealRepository is an in-memory implementation of DealRepository.
type MockDealRepository struct {
	deals  map[uint]models.Deal
	nextID uint
	mu     sync.RWMutex
}

// NewMockDealRepository creates a new instance of MockDealRepository.
func NewMockDealRepository() *MockDealRepository {
	return &MockDealRepository{
		deals: make(map[uint]models.Deal),
	}
}

// List returns one page of deals, filtered like the SQL implementation.
func (r *MockDealRepository) List(_ context.Context, query models.DealQuery) ([]models.Deal, int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	needle := models.FoldTitle(query.Name)
	matched := make([]models.Deal, 0, len(r.deals))
	for _, d := range r.deals {
		if needle == "" || strings.Contains(models.FoldTitle(d.Title), needle) {
			matched = append(matched, d)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	total := int64(len(matched))
	start := query.Offset()
	if start >= len(matched) {
		return []models.Deal{}, total, nil
	}
	end := start + query.PageSize
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// GetByID returns a deal by its ID.
func (r *MockDealRepository) GetByID(_ context.Context, id uint) (*models.Deal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	deal, ok := r.deals[id]
	if !ok {
		return nil, fmt.Errorf("deal with ID %d: %w", id, ErrNotFound)
	}
	return &deal, nil
}

// Create adds a new deal and assigns its ID.
func (r *MockDealRepository) Create(_ context.Context, deal *models.Deal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	deal.ID = r.nextID
	r.deals[deal.ID] = *deal
	return nil
}

// Update applies the given columns to an existing deal.
func (r *MockDealRepository) Update(_ context.Context, id uint, fields map[string]any) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	deal, ok := r.deals[id]
	if !ok {
		return fmt.Errorf("deal with ID %d: %w", id, ErrNotFound)
	}
	for column, value := range fields {
		if err := applyDealColumn(&deal, column, value); err != nil {
			return err
		}
	}
	r.deals[id] = deal
	return nil
}

// Delete removes a deal by its ID.
func (r *MockDealRepository) Delete(_ context.Context, id uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.deals[id]; !ok {
		return fmt.Errorf("deal with ID %d: %w", id, ErrNotFound)
	}
	delete(r.deals, id)
	return nil
}

func applyDealColumn(d *models.Deal, column string, value any) error {
	var ok bool
	switch column {
	case "title":
		d.Title, ok = value.(string)
	case "description":
		d.Description, ok = value.(string)
	case "start_date":
		d.StartDate, ok = value.(*time.Time)
	case "end_date":
		d.EndDate, ok = value.(*time.Time)
	case "price":
		d.Price, ok = value.(float64)
	case "base_price":
		d.BasePrice, ok = value.(float64)
	case "shipping_cost":
		d.ShippingCost, ok = value.(float64)
	case "link":
		d.Link, ok = value.(string)
	case "brand":
		d.Brand, ok = value.(string)
	case "image1":
		d.Image1, ok = value.(string)
	case "image2":
		d.Image2, ok = value.(string)
	case "image3":
		d.Image3, ok = value.(string)
	case "permanent":
		d.Permanent, ok = value.(bool)
	case "creator_id":
		d.CreatorID, ok = value.(uint)
	default:
		return fmt.Errorf("unknown deal column %q", column)
	}
	if !ok {
		return fmt.Errorf("invalid value %T for deal column %q", value, column)
	}
	return nil
}
