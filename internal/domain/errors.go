package domain

import "errors"

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists indicates a uniqueness constraint was violated.
	ErrAlreadyExists = errors.New("already exists")
	// ErrForbidden indicates the caller may not act on the entity.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidTransition indicates an order status change the machine rejects.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrEmptyCart is returned when checking out a cart with no lines.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock is returned when checkout asks for more than is on hand.
	ErrInsufficientStock = errors.New("insufficient stock")
)
