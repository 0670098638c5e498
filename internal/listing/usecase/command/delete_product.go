package command

import (
	"context"
	"fmt"

	"github.com/tair/marketplace-listing/internal/listing/domain"
	"github.com/tair/marketplace-listing/kafka"
	"github.com/tair/marketplace-listing/pkg/logger"
)

// EventPublisher publishes listing lifecycle events
type EventPublisher interface {
	PublishProductDeleted(ctx context.Context, event kafka.ProductDeletedEvent) error
}

// DeleteProductCommand represents the command to delete a product
type DeleteProductCommand struct {
	ProductID   string
	RequesterID string
	IsAdmin     bool
}

// DeleteProductHandler handles product deletion command
type DeleteProductHandler struct {
	repo      domain.ProductRepository
	publisher EventPublisher
}

// NewDeleteProductHandler creates a new delete product handler
func NewDeleteProductHandler(repo domain.ProductRepository, publisher EventPublisher) *DeleteProductHandler {
	return &DeleteProductHandler{repo: repo, publisher: publisher}
}

// Handle executes the delete product command. Only the listing owner or an
// admin may remove a listing.
func (h *DeleteProductHandler) Handle(ctx context.Context, cmd DeleteProductCommand) error {
	if cmd.ProductID == "" {
		return fmt.Errorf("invalid product id")
	}
	if cmd.RequesterID == "" {
		return domain.ErrAuthRequired
	}

	product, err := h.repo.FindByID(ctx, cmd.ProductID)
	if err != nil {
		return err
	}

	if product.UserID != cmd.RequesterID && !cmd.IsAdmin {
		return domain.ErrForbidden
	}

	if err := h.repo.Delete(ctx, cmd.ProductID); err != nil {
		return fmt.Errorf("failed to delete product: %w", err)
	}

	if h.publisher != nil {
		event := kafka.ProductDeletedEvent{
			ProductID: product.ID,
			UserID:    product.UserID,
			DeletedBy: cmd.RequesterID,
			Category:  product.Category,
		}
		if err := h.publisher.PublishProductDeleted(ctx, event); err != nil {
			// The listing is gone either way; downstream caches will age out.
			logger.Logger.Warn().
				Err(err).
				Str("product_id", product.ID).
				Msg("Failed to publish product deleted event")
		}
	}

	return nil
}
