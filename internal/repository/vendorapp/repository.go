package vendorapp

import (
	"context"

	"pharmamart/internal/domain"
)

// Review is an admin decision on a pending application.
type Review struct {
	ApplicationID string
	Approve       bool
	Note          string
}

type Repository interface {
	// Create fails with domain.ErrAlreadyExists while the user has a
	// pending application.
	Create(ctx context.Context, app domain.VendorApplication) (*domain.VendorApplication, error)
	Get(ctx context.Context, id string) (*domain.VendorApplication, error)
	// List filters by status; an empty status matches all.
	List(ctx context.Context, status domain.ApplicationStatus) ([]domain.VendorApplication, error)
	// Review settles a pending application. Approval also promotes the
	// applicant's profile to an approved vendor in the same transaction.
	Review(ctx context.Context, r Review) (*domain.VendorApplication, error)
}
