package profile

import (
	"context"

	"pharmamart/internal/domain"
)

// Update holds the self-service profile fields.
type Update struct {
	FullName string
	Phone    string
	Address  domain.Address
}

type Repository interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
	Update(ctx context.Context, userID string, u Update) (*domain.Profile, error)
	SetRole(ctx context.Context, userID string, role domain.Role, approved bool) (*domain.Profile, error)
	// List returns profiles ordered by creation; an empty role matches all.
	List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error)
}
