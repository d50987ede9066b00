package port

import (
	"context"

	"github.com/zeshalondrag/sorapc-checkout/internal/core/domain"
)

type CatalogStore interface {
	// GetByArticle retrieves a stock record, nil if the article is unknown
	GetByArticle(ctx context.Context, article string) (*domain.StockRecord, error)

	// ReconcileStock decrements availability and bumps sales counters for
	// every item atomically; on any article failing the check nothing is
	// applied and the error wraps domain.ErrArticleNotFound or
	// domain.ErrInsufficientStock with the offending article
	ReconcileStock(ctx context.Context, items []domain.LineItem) error

	// Quantities re-reads current availability for the given articles
	Quantities(ctx context.Context, articles []string) (map[string]int, error)
}

type OrderStore interface {
	// Append persists a new order snapshot; orders are never updated
	Append(ctx context.Context, order domain.Order) error

	// ListByUser returns the buyer's order history, newest first
	ListByUser(ctx context.Context, userID string) ([]domain.Order, error)

	// HasPurchased reports whether any of the buyer's orders contains the article
	HasPurchased(ctx context.Context, userID, article string) (bool, error)
}

type CartStore interface {
	// Items returns the buyer's cart as line items enriched from the catalog
	Items(ctx context.Context, userID string) ([]domain.LineItem, error)

	// Put upserts one cart entry with the given quantity
	Put(ctx context.Context, userID, article string, quantity int) error

	// Remove deletes one cart entry
	Remove(ctx context.Context, userID, article string) error

	// Clear empties the buyer's cart
	Clear(ctx context.Context, userID string) error
}
