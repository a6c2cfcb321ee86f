package cart

import (
	"context"

	"pharmamart/internal/domain"
)

// Repository is the remote item store for carts. Rows are keyed by
// (user, product); a quantity below one is never stored.
type Repository interface {
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
	Upsert(ctx context.Context, userID, productID string, quantity int) error
	Delete(ctx context.Context, userID, productID string) error
	DeleteAll(ctx context.Context, userID string) error
}
