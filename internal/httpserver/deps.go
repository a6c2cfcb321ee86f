package httpserver

import (
	"context"
	"errors"
	"io"

	"pharmamart/internal/domain"
	"pharmamart/internal/service/auth"
	"pharmamart/internal/service/catalog"
	"pharmamart/internal/service/order"
	"pharmamart/internal/service/profile"
	"pharmamart/internal/service/vendor"
	"pharmamart/internal/session"
)

type AuthService interface {
	SignUp(ctx context.Context, in auth.SignUpInput) (*domain.User, error)
	SignIn(ctx context.Context, email, password string) (*domain.User, auth.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (auth.Tokens, error)
	SignOut(ctx context.Context, id auth.Identity, refreshToken string) error
	Verify(accessToken string) (auth.Identity, error)
	ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error)
}

// SessionStore hands out the live session of a verified caller.
type SessionStore interface {
	Get(ctx context.Context, id auth.Identity) (*session.Session, error)
}

type CatalogService interface {
	List(ctx context.Context, in catalog.ListInput) (catalog.Page, error)
	Get(ctx context.Context, id string) (*domain.Product, error)
	VendorProducts(ctx context.Context, vendorID string, limit, offset int) (catalog.Page, error)
	Categories(ctx context.Context) ([]domain.Category, error)
	UpsertCategory(ctx context.Context, c domain.Category) (*domain.Category, error)
	CreateProduct(ctx context.Context, vendorID string, in catalog.ProductInput) (*domain.Product, error)
	UpdateProduct(ctx context.Context, vendorID, id string, in catalog.ProductInput) (*domain.Product, error)
	DeleteProduct(ctx context.Context, vendorID, id string) error
	AddImage(ctx context.Context, vendorID, id, filename string, r io.Reader, size int64, contentType string) (*domain.Product, error)
	RemoveImage(ctx context.Context, vendorID, id, url string) (*domain.Product, error)
}

type ProfileService interface {
	UpdateMine(ctx context.Context, userID string, in profile.UpdateInput) (*domain.Profile, error)
	List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error)
	SetRole(ctx context.Context, userID string, in profile.SetRoleInput) (*domain.Profile, error)
}

type OrderService interface {
	Checkout(ctx context.Context, sess *session.Session, in order.ShippingInput) (*domain.Order, error)
	ListMine(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error)
	Get(ctx context.Context, actor order.Actor, id string) (*domain.Order, error)
	UpdateStatus(ctx context.Context, actor order.Actor, id string, to domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, userID, id string) (*domain.Order, error)
}

type VendorService interface {
	Submit(ctx context.Context, userID string, in vendor.SubmitInput) (*domain.VendorApplication, error)
	List(ctx context.Context, status domain.ApplicationStatus) ([]domain.VendorApplication, error)
	Approve(ctx context.Context, id, note string) (*domain.VendorApplication, error)
	Reject(ctx context.Context, id, note string) (*domain.VendorApplication, error)
}

// Deps groups the services the router needs.
type Deps struct {
	Auth     AuthService
	Sessions SessionStore
	Catalog  CatalogService
	Profiles ProfileService
	Orders   OrderService
	Vendors  VendorService
}

func (d Deps) validate() error {
	switch {
	case d.Auth == nil:
		return errors.New("auth service required")
	case d.Sessions == nil:
		return errors.New("session store required")
	case d.Catalog == nil:
		return errors.New("catalog service required")
	case d.Profiles == nil:
		return errors.New("profile service required")
	case d.Orders == nil:
		return errors.New("order service required")
	case d.Vendors == nil:
		return errors.New("vendor service required")
	}
	return nil
}
