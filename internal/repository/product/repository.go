package product

import (
	"context"

	"github.com/shopspring/decimal"

	"pharmamart/internal/domain"
)

// Sort orders accepted by List.
const (
	SortNewest    = "newest"
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortName      = "name"
)

// Filter narrows a catalog listing. Zero values mean "no filter".
type Filter struct {
	CategorySlug    string
	VendorID        string
	Search          string
	MinPrice        *decimal.Decimal
	MaxPrice        *decimal.Decimal
	InStockOnly     bool
	IncludeInactive bool
	Sort            string
	Limit           int
	Offset          int
}

type Repository interface {
	List(ctx context.Context, f Filter) ([]domain.Product, int, error)
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error)
	Create(ctx context.Context, p domain.Product) (*domain.Product, error)
	Update(ctx context.Context, p domain.Product) (*domain.Product, error)
	Delete(ctx context.Context, vendorID, id string) error
	UpsertBySlug(ctx context.Context, p domain.Product) (*domain.Product, error)
}
