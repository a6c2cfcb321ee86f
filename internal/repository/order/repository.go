package order

import (
	"context"

	"pharmamart/internal/domain"
)

// Line is one product and quantity requested at checkout.
type Line struct {
	ProductID string
	Quantity  int
}

// CreateInput describes an order to be placed. Prices are read inside the
// creating transaction, never taken from the caller.
type CreateInput struct {
	OrderNumber     string
	UserID          string
	ShippingAddress domain.Address
	Phone           string
	Lines           []Line
}

type Repository interface {
	// Create locks the products, checks stock, snapshots prices and
	// decrements stock atomically.
	Create(ctx context.Context, in CreateInput) (*domain.Order, error)
	GetByID(ctx context.Context, id string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)
	// UpdateStatus moves the order from -> to, failing with
	// domain.ErrInvalidTransition when the stored status is no longer from.
	// Cancelling restores stock.
	UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error)
	VendorOwnsItem(ctx context.Context, orderID, vendorID string) (bool, error)
}
