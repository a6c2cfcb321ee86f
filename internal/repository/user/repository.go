package user

import (
	"context"

	"pharmamart/internal/domain"
)

// CreateInput carries a new identity and the fields seeded into its profile.
type CreateInput struct {
	Email        string
	PasswordHash string
	FullName     string
	Phone        string
	Metadata     domain.Metadata
}

type Repository interface {
	// Create inserts the user and a consumer profile in one transaction.
	Create(ctx context.Context, in CreateInput) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	GetByID(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, limit, offset int) ([]domain.User, error)
}
