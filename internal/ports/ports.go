package ports

import (
	"context"
	"errors"

	"costindex/internal/core"
)

var (
	ErrBasketNotFound = errors.New("basket not found")
	// ErrStorageUnavailable wraps errors from a store that cannot be reached
	// or is temporarily busy.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrUpstreamUnavailable wraps fetch failures that may succeed on retry:
	// network errors, rate limiting and 5xx responses.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

// Ports for outbound adapters.
type (
	BasketStore interface {
		// ListBaskets returns all baskets, newest first.
		ListBaskets(ctx context.Context) ([]core.Basket, error)
		GetBasket(ctx context.Context, id string) (core.Basket, error)
		// CreateBasket assigns an id and creation time and stores the basket.
		CreateBasket(ctx context.Context, b core.Basket) (core.Basket, error)
	}

	// SeriesReader returns stored observations in ascending date order.
	SeriesReader interface {
		ListPoints(ctx context.Context, seriesID string) ([]core.Point, error)
	}

	// SeriesWriter inserts or replaces observations keyed by series and date.
	SeriesWriter interface {
		UpsertPoints(ctx context.Context, seriesID string, points []core.Point) (int, error)
	}

	// SeriesLister reports which series have stored observations.
	SeriesLister interface {
		SeriesIDs(ctx context.Context) ([]string, error)
	}

	// SeriesRevisioner returns a token that changes whenever stored
	// observations change.
	SeriesRevisioner interface {
		SeriesRevision(ctx context.Context) (string, error)
	}

	Pinger interface {
		Ping(ctx context.Context) error
	}
)
