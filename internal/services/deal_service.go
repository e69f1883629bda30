package services

import (
	"context"
	"errors"
	"fmt"

	"dealhub/internal/metrics"
	"dealhub/internal/models"
	"dealhub/internal/repositories"
	"dealhub/internal/storage"
	"dealhub/pkg/rabbitmq"

	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

// Paging limits of the deal listing.
const (
	DefaultPageSize = 2
	MaxPageSize     = 100
)

// ImageFile is an uploaded image before it reaches the image store.
type ImageFile struct {
	Name        string
	ContentType string
	Data        []byte
}

// DealService handles business logic related to deals and their images.
type DealService struct {
	dealRepo       repositories.DealRepository
	images         storage.ImageStore
	events         EventPublisher
	cleanup        *ImageCleanup
	validate       *validator.Validate
	strategy       string
	ownershipCheck bool
}

// DealServiceConfig holds the collaborators of a DealService.
type DealServiceConfig struct {
	Deals  repositories.DealRepository
	Images storage.ImageStore
	// Events may be nil. Without a broker, images are removed inline on delete.
	Events EventPublisher
	// Strategy names the image store in metrics, e.g. "disk" or "blob".
	Strategy       string
	OwnershipCheck bool
}

// NewDealService creates a new DealService.
func NewDealService(cfg DealServiceConfig) *DealService {
	return &DealService{
		dealRepo:       cfg.Deals,
		images:         cfg.Images,
		events:         cfg.Events,
		cleanup:        NewImageCleanup(cfg.Images),
		validate:       NewValidator(),
		strategy:       cfg.Strategy,
		ownershipCheck: cfg.OwnershipCheck,
	}
}

// List returns one page of deals whose title contains name.
func (s *DealService) List(ctx context.Context, page, pageSize int, name string) (*models.DealPage, error) {
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", ErrValidation)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		return nil, fmt.Errorf("%w: pageSize must be between 1 and %d", ErrValidation, MaxPageSize)
	}

	deals, total, err := s.dealRepo.List(ctx, models.DealQuery{Page: page, PageSize: pageSize, Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to list deals: %w", err)
	}
	return &models.DealPage{
		Deals:      deals,
		TotalPages: int((total + int64(pageSize) - 1) / int64(pageSize)),
	}, nil
}

// Get returns a deal by id.
func (s *DealService) Get(ctx context.Context, id uint) (*models.Deal, error) {
	deal, err := s.dealRepo.GetByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return deal, nil
}

// Create stores a new deal owned by caller and attaches up to three images.
// If an image cannot be stored the deal and any stored images are removed.
func (s *DealService) Create(ctx context.Context, caller *models.Claims, in models.DealInput, files []ImageFile) (*models.Deal, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.Title == nil || *in.Title == "" {
		return nil, fmt.Errorf("%w: title is required", ErrValidation)
	}
	if err := checkImages(files); err != nil {
		return nil, err
	}

	deal := &models.Deal{CreatorID: s.creatorID(caller, in)}
	if err := in.ApplyTo(deal); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := s.dealRepo.Create(ctx, deal); err != nil {
		return nil, fmt.Errorf("failed to create deal: %w", err)
	}

	if len(files) > 0 {
		refs, err := s.storeImages(ctx, deal.ID, files)
		if err == nil {
			err = s.dealRepo.Update(ctx, deal.ID, slotColumns(refs))
		}
		if err != nil {
			s.discard(ctx, deal.ID, refs)
			return nil, err
		}
		for i, ref := range refs {
			deal.SetImage(i+1, ref)
		}
	}

	metrics.DealEvents.WithLabelValues("created").Inc()
	event := rabbitmq.NewEvent(models.EventDealCreated)
	event.DealID = deal.ID
	event.UserID = deal.CreatorID
	publish(ctx, s.events, event)
	logrus.WithFields(logrus.Fields{"deal_id": deal.ID, "creator_id": deal.CreatorID, "images": len(files)}).Info("Deal created")
	return deal, nil
}

// Update writes the supplied fields. Supplied images replace the slots they
// land in, in order, and the replaced images are deleted.
func (s *DealService) Update(ctx context.Context, caller *models.Claims, id uint, in models.DealInput, files []ImageFile) (*models.Deal, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, validationError(err)
	}
	if in.Title != nil && *in.Title == "" {
		return nil, fmt.Errorf("%w: title must not be empty", ErrValidation)
	}
	if err := checkImages(files); err != nil {
		return nil, err
	}

	deal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(caller, deal); err != nil {
		return nil, err
	}

	cols, err := in.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if !s.ownershipCheck && in.CreatorID != nil {
		cols["creator_id"] = *in.CreatorID
	}

	var stored, replaced []string
	if len(files) > 0 {
		stored, err = s.storeImages(ctx, id, files)
		if err != nil {
			s.deleteImages(ctx, id, stored)
			return nil, err
		}
		old := deal.Images()
		for slot, ref := range slotColumns(stored) {
			cols[slot] = ref
		}
		for i := range stored {
			if old[i] != "" {
				replaced = append(replaced, old[i])
			}
		}
	}

	if len(cols) > 0 {
		if err := s.dealRepo.Update(ctx, id, cols); err != nil {
			s.deleteImages(ctx, id, stored)
			return nil, notFound(err)
		}
	}
	s.deleteImages(ctx, id, replaced)

	metrics.DealEvents.WithLabelValues("updated").Inc()
	event := rabbitmq.NewEvent(models.EventDealUpdated)
	event.DealID = id
	event.UserID = deal.CreatorID
	publish(ctx, s.events, event)
	return s.Get(ctx, id)
}

// Delete removes a deal. Its images are cleaned up by the event consumer when
// a broker is configured, and inline otherwise.
func (s *DealService) Delete(ctx context.Context, caller *models.Claims, id uint) error {
	deal, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorize(caller, deal); err != nil {
		return err
	}
	if err := s.dealRepo.Delete(ctx, id); err != nil {
		return notFound(err)
	}

	var refs []string
	for _, ref := range deal.Images() {
		if ref != "" {
			refs = append(refs, ref)
		}
	}

	metrics.DealEvents.WithLabelValues("deleted").Inc()
	if s.events == nil {
		s.deleteImages(ctx, id, refs)
	} else {
		event := rabbitmq.NewEvent(models.EventDealDeleted)
		event.DealID = id
		event.UserID = deal.CreatorID
		event.ImageRefs = refs
		publish(ctx, s.events, event)
	}
	logrus.WithField("deal_id", id).Info("Deal deleted")
	return nil
}

// UploadImages stores up to three images. When dealID is non-zero the
// references are also recorded on that deal, in slot order.
func (s *DealService) UploadImages(ctx context.Context, caller *models.Claims, dealID uint, files []ImageFile) ([]string, error) {
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no images uploaded", ErrValidation)
	}
	if err := checkImages(files); err != nil {
		return nil, err
	}

	var deal *models.Deal
	if dealID != 0 {
		var err error
		if deal, err = s.Get(ctx, dealID); err != nil {
			return nil, err
		}
		if err := s.authorize(caller, deal); err != nil {
			return nil, err
		}
	}

	refs, err := s.storeImages(ctx, dealID, files)
	if err != nil {
		s.deleteImages(ctx, dealID, refs)
		return nil, err
	}
	if deal != nil {
		if err := s.dealRepo.Update(ctx, dealID, slotColumns(refs)); err != nil {
			s.deleteImages(ctx, dealID, refs)
			return nil, notFound(err)
		}
		old := deal.Images()
		s.deleteImages(ctx, dealID, nonEmpty(old[:len(refs)]))
	}
	return refs, nil
}

// ResolveImage returns the image stored in the 1-based slot of a deal.
func (s *DealService) ResolveImage(ctx context.Context, id uint, slot int) (*storage.Image, error) {
	if slot < 1 || slot > models.MaxDealImages {
		return nil, fmt.Errorf("%w: image slot must be between 1 and %d", ErrValidation, models.MaxDealImages)
	}
	deal, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	ref := deal.Images()[slot-1]
	if ref == "" {
		return nil, fmt.Errorf("%w: deal %d has no image in slot %d", ErrNotFound, id, slot)
	}
	img, err := s.images.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrNotFound, err)
		}
		return nil, fmt.Errorf("failed to resolve image %s: %w", ref, err)
	}
	return img, nil
}

func (s *DealService) creatorID(caller *models.Claims, in models.DealInput) uint {
	if !s.ownershipCheck && in.CreatorID != nil {
		return *in.CreatorID
	}
	if caller == nil {
		return 0
	}
	return caller.ID
}

func (s *DealService) authorize(caller *models.Claims, deal *models.Deal) error {
	if !s.ownershipCheck {
		return nil
	}
	if caller == nil || caller.ID != deal.GetUserID() {
		return fmt.Errorf("%w: deal %d belongs to another user", ErrForbidden, deal.ID)
	}
	return nil
}

// storeImages writes files in order. On failure it returns the references
// stored so far together with the error.
func (s *DealService) storeImages(ctx context.Context, dealID uint, files []ImageFile) ([]string, error) {
	refs := make([]string, 0, len(files))
	for _, f := range files {
		ref, err := s.images.Store(ctx, dealID, f.Name, storage.DetectContentType(f.ContentType, f.Data), f.Data)
		if err != nil {
			return refs, fmt.Errorf("failed to store image %q: %w", f.Name, err)
		}
		metrics.ImagesStored.WithLabelValues(s.strategy).Inc()
		refs = append(refs, ref)
	}
	return refs, nil
}

// discard rolls back a half-created deal.
func (s *DealService) discard(ctx context.Context, dealID uint, refs []string) {
	s.deleteImages(ctx, dealID, refs)
	if err := s.dealRepo.Delete(ctx, dealID); err != nil {
		logrus.WithError(err).WithField("deal_id", dealID).Error("Failed to roll back deal")
	}
}

func (s *DealService) deleteImages(ctx context.Context, dealID uint, refs []string) {
	if err := s.cleanup.deleteRefs(ctx, dealID, refs); err != nil {
		logrus.WithError(err).WithField("deal_id", dealID).Warn("Failed to delete images")
	}
}

// checkImages enforces the image count limit and the image/* content type.
func checkImages(files []ImageFile) error {
	if len(files) > models.MaxDealImages {
		return fmt.Errorf("%w: at most %d images are allowed, got %d", ErrValidation, models.MaxDealImages, len(files))
	}
	for _, f := range files {
		if len(f.Data) == 0 {
			return fmt.Errorf("%w: image %q is empty", ErrValidation, f.Name)
		}
		if ct := storage.DetectContentType(f.ContentType, f.Data); !storage.IsImage(ct) {
			return fmt.Errorf("%w: %q is %s, not an image", ErrValidation, f.Name, ct)
		}
	}
	return nil
}

// slotColumns maps references onto image1..image3 in order.
func slotColumns(refs []string) map[string]any {
	cols := make(map[string]any, len(refs))
	for i, ref := range refs {
		cols[fmt.Sprintf("image%d", i+1)] = ref
	}
	return cols
}

func nonEmpty(refs []string) []string {
	out := make([]string, 0, len(refs))
	for _, r := range refs {
		if r != "" {
			out = append(out, r)
		}
	}
	return out
}
