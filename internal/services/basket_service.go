package services

import (
	"context"
	"fmt"
	"log/slog"

	"costindex/internal/core"
	"costindex/internal/ports"
)

// RefreshPublisher requests an asynchronous download of series.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, seriesIDs []string, reason string) error
}

// Purger drops cached results.
type Purger interface {
	Purge()
}

// BasketService validates and stores baskets and asks the refresh worker to
// fetch any series a new basket references.
type BasketService struct {
	store     ports.BasketStore
	publisher RefreshPublisher
	cache     Purger
}

// NewBasketService creates the service. publisher and cache may be nil.
func NewBasketService(store ports.BasketStore, publisher RefreshPublisher, cache Purger) *BasketService {
	return &BasketService{
		store:     store,
		publisher: publisher,
		cache:     cache,
	}
}

// Create validates b, stores it and publishes a refresh request. A failed
// publish is logged and does not fail the call since the basket is saved.
func (s *BasketService) Create(ctx context.Context, b core.Basket) (core.Basket, error) {
	b = b.Normalize()
	if err := b.Validate(); err != nil {
		return core.Basket{}, err
	}

	created, err := s.store.CreateBasket(ctx, b)
	if err != nil {
		return core.Basket{}, fmt.Errorf("save basket: %w", err)
	}

	if s.cache != nil {
		s.cache.Purge()
	}

	if err := s.publishRefresh(ctx, created); err != nil {
		slog.ErrorContext(ctx, "Failed to publish refresh message",
			"basket_id", created.ID, "error", err)
	}

	return created, nil
}

func (s *BasketService) List(ctx context.Context) ([]core.Basket, error) {
	baskets, err := s.store.ListBaskets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list baskets: %w", err)
	}
	return baskets, nil
}

func (s *BasketService) Get(ctx context.Context, id string) (core.Basket, error) {
	return s.store.GetBasket(ctx, id)
}

func (s *BasketService) publishRefresh(ctx context.Context, b core.Basket) error {
	if s.publisher == nil {
		slog.DebugContext(ctx, "AMQP client not available, skipping refresh message")
		return nil
	}
	return s.publisher.PublishRefresh(ctx, b.SeriesIDs(), "basket_created")
}
