package services

import (
	"context"
	"errors"
	"fmt"

	"dealhub/internal/models"
	"dealhub/internal/storage"
	"dealhub/pkg/rabbitmq"

	"github.com/sirupsen/logrus"
)

// EventPublisher sends lifecycle events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, event models.Event) error
}

var _ EventPublisher = (*rabbitmq.Client)(nil)

// publish sends event if a publisher is configured. Failures are logged and
// never reach the caller.
func publish(ctx context.Context, p EventPublisher, event models.Event) {
	if p == nil {
		return
	}
	if err := p.Publish(ctx, event); err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"event_id": event.ID,
			"type":     event.Type,
			"deal_id":  event.DealID,
			"user_id":  event.UserID,
		}).Warn("Failed to publish event")
	}
}

// ImageCleanup deletes the stored images of deleted deals.
type ImageCleanup struct {
	images storage.ImageStore
}

// NewImageCleanup creates a new ImageCleanup.
func NewImageCleanup(images storage.ImageStore) *ImageCleanup {
	return &ImageCleanup{images: images}
}

// Handle processes one event. Events other than deal.deleted are ignored.
func (h *ImageCleanup) Handle(ctx context.Context, event models.Event) error {
	if event.Type != models.EventDealDeleted {
		return nil
	}
	return h.deleteRefs(ctx, event.DealID, event.ImageRefs)
}

func (h *ImageCleanup) deleteRefs(ctx context.Context, dealID uint, refs []string) error {
	var errs []error
	for _, ref := range refs {
		if ref == "" {
			continue
		}
		if err := h.images.Delete(ctx, ref); err != nil {
			errs = append(errs, fmt.Errorf("image %s: %w", ref, err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to clean up images of deal %d: %w", dealID, err)
	}
	logrus.WithFields(logrus.Fields{"deal_id": dealID, "images": len(refs)}).Debug("Cleaned up deal images")
	return nil
}
