package httpserver

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmamart/internal/cartsync"
	"pharmamart/internal/domain"
	"pharmamart/internal/service/auth"
	"pharmamart/internal/service/catalog"
	"pharmamart/internal/service/order"
	"pharmamart/internal/service/profile"
	"pharmamart/internal/service/vendor"
	"pharmamart/internal/session"
)

type stubAuth struct {
	identities map[string]auth.Identity
	signInErr  error
	signUpErr  error
	signedOut  []string
}

func (s *stubAuth) SignUp(_ context.Context, in auth.SignUpInput) (*domain.User, error) {
	if s.signUpErr != nil {
		return nil, s.signUpErr
	}
	return &domain.User{ID: "new-user", Email: in.Email}, nil
}

func (s *stubAuth) SignIn(_ context.Context, email, _ string) (*domain.User, auth.Tokens, error) {
	if s.signInErr != nil {
		return nil, auth.Tokens{}, s.signInErr
	}
	return &domain.User{ID: "u1", Email: email}, auth.Tokens{AccessToken: "access", RefreshToken: "refresh", TokenType: "Bearer", ExpiresIn: 3600}, nil
}

func (s *stubAuth) Refresh(context.Context, string) (auth.Tokens, error) {
	return auth.Tokens{}, auth.ErrInvalidToken
}

func (s *stubAuth) SignOut(_ context.Context, id auth.Identity, _ string) error {
	s.signedOut = append(s.signedOut, id.UserID)
	return nil
}

func (s *stubAuth) Verify(token string) (auth.Identity, error) {
	id, ok := s.identities[token]
	if !ok {
		return auth.Identity{}, auth.ErrInvalidToken
	}
	return id, nil
}

func (s *stubAuth) ListUsers(context.Context, int, int) ([]domain.User, error) {
	return []domain.User{{ID: "u1", Email: "a@example.my"}}, nil
}

// profileTable serves profiles to sessions; a missing entry keeps the
// session's profile pending.
type profileTable map[string]domain.Profile

func (p profileTable) Get(_ context.Context, userID string) (*domain.Profile, error) {
	pr, ok := p[userID]
	if !ok {
		return nil, errors.New("profile service unavailable")
	}
	return &pr, nil
}

type memCartStore struct {
	mu       sync.Mutex
	rows     map[string]map[string]int
	failNext bool
}

func (m *memCartStore) List(_ context.Context, userID string) ([]domain.CartLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.CartLine
	for pid, q := range m.rows[userID] {
		out = append(out, domain.CartLine{ProductID: pid, Quantity: q})
	}
	return out, nil
}

func (m *memCartStore) Upsert(_ context.Context, userID, productID string, qty int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext {
		m.failNext = false
		return errors.New("connection reset")
	}
	if m.rows == nil {
		m.rows = map[string]map[string]int{}
	}
	if m.rows[userID] == nil {
		m.rows[userID] = map[string]int{}
	}
	m.rows[userID][productID] = qty
	return nil
}

func (m *memCartStore) Delete(_ context.Context, userID, productID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows[userID], productID)
	return nil
}

func (m *memCartStore) DeleteAll(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, userID)
	return nil
}

type stubCatalog struct {
	products map[string]domain.Product
	created  *catalog.ProductInput
}

func (s *stubCatalog) List(context.Context, catalog.ListInput) (catalog.Page, error) {
	return catalog.Page{Items: []domain.Product{}, Limit: 20}, nil
}

func (s *stubCatalog) Get(_ context.Context, id string) (*domain.Product, error) {
	p, ok := s.products[id]
	if !ok || !p.IsActive {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (s *stubCatalog) Products(_ context.Context, ids []string) ([]domain.Product, error) {
	var out []domain.Product
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *stubCatalog) VendorProducts(context.Context, string, int, int) (catalog.Page, error) {
	return catalog.Page{Items: []domain.Product{}}, nil
}

func (s *stubCatalog) Categories(context.Context) ([]domain.Category, error) { return nil, nil }

func (s *stubCatalog) UpsertCategory(_ context.Context, c domain.Category) (*domain.Category, error) {
	return &c, nil
}

func (s *stubCatalog) CreateProduct(_ context.Context, vendorID string, in catalog.ProductInput) (*domain.Product, error) {
	s.created = &in
	return &domain.Product{ID: "new", VendorID: vendorID, Name: in.Name}, nil
}

func (s *stubCatalog) UpdateProduct(context.Context, string, string, catalog.ProductInput) (*domain.Product, error) {
	return nil, domain.ErrForbidden
}

func (s *stubCatalog) DeleteProduct(context.Context, string, string) error { return nil }

func (s *stubCatalog) AddImage(_ context.Context, vendorID, id, filename string, r io.Reader, _ int64, _ string) (*domain.Product, error) {
	if _, err := io.ReadAll(r); err != nil {
		return nil, err
	}
	return &domain.Product{ID: id, VendorID: vendorID, ImageURLs: []string{"https://cdn.example.my/" + filename}}, nil
}

func (s *stubCatalog) RemoveImage(context.Context, string, string, string) (*domain.Product, error) {
	return nil, domain.ErrNotFound
}

type stubProfiles struct{}

func (stubProfiles) UpdateMine(_ context.Context, userID string, in profile.UpdateInput) (*domain.Profile, error) {
	return &domain.Profile{UserID: userID, FullName: in.FullName}, nil
}

func (stubProfiles) List(context.Context, domain.Role, int, int) ([]domain.Profile, error) {
	return []domain.Profile{}, nil
}

func (stubProfiles) SetRole(_ context.Context, userID string, in profile.SetRoleInput) (*domain.Profile, error) {
	return &domain.Profile{UserID: userID, Role: in.Role, IsApproved: in.Approved}, nil
}

type stubOrders struct {
	checkoutErr error
}

func (s *stubOrders) Checkout(_ context.Context, sess *session.Session, _ order.ShippingInput) (*domain.Order, error) {
	if s.checkoutErr != nil {
		return nil, s.checkoutErr
	}
	return &domain.Order{ID: "o1", UserID: sess.Identity.UserID, Status: domain.OrderPending}, nil
}

func (s *stubOrders) ListMine(context.Context, string, int, int) ([]domain.Order, error) {
	return []domain.Order{}, nil
}

func (s *stubOrders) Get(context.Context, order.Actor, string) (*domain.Order, error) {
	return nil, domain.ErrNotFound
}

func (s *stubOrders) UpdateStatus(_ context.Context, actor order.Actor, id string, to domain.OrderStatus) (*domain.Order, error) {
	if actor.Role == domain.RoleVendor && to == domain.OrderCancelled {
		return nil, domain.ErrForbidden
	}
	return &domain.Order{ID: id, Status: to}, nil
}

func (s *stubOrders) Cancel(context.Context, string, string) (*domain.Order, error) {
	return nil, domain.ErrInvalidTransition
}

type stubVendors struct{}

func (stubVendors) Submit(_ context.Context, userID string, in vendor.SubmitInput) (*domain.VendorApplication, error) {
	return &domain.VendorApplication{ID: "app-1", UserID: userID, BusinessName: in.BusinessName, Status: domain.ApplicationPending}, nil
}

func (stubVendors) List(context.Context, domain.ApplicationStatus) ([]domain.VendorApplication, error) {
	return []domain.VendorApplication{}, nil
}

func (stubVendors) Approve(_ context.Context, id, _ string) (*domain.VendorApplication, error) {
	return &domain.VendorApplication{ID: id, Status: domain.ApplicationApproved}, nil
}

func (stubVendors) Reject(_ context.Context, id, note string) (*domain.VendorApplication, error) {
	return &domain.VendorApplication{ID: id, Status: domain.ApplicationRejected, ReviewNote: note}, nil
}

// testEnv is a router backed by a real session registry over in-memory
// collaborators. Tokens are "tok-<userID>".
type testEnv struct {
	router   *gin.Engine
	auth     *stubAuth
	store    *memCartStore
	catalog  *stubCatalog
	orders   *stubOrders
	profiles profileTable
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	products := map[string]domain.Product{
		"p-panadol": {ID: "p-panadol", Name: "Panadol", Price: decimal.RequireFromString("5.50"), Stock: 50, IsActive: true},
		"p-vitc":    {ID: "p-vitc", Name: "Vitamin C", Price: decimal.RequireFromString("34.50"), Stock: 5, IsActive: true},
		"p-retired": {ID: "p-retired", Name: "Old syrup", Price: decimal.RequireFromString("9.00")},
	}
	env := &testEnv{
		auth:     &stubAuth{identities: map[string]auth.Identity{}},
		store:    &memCartStore{},
		catalog:  &stubCatalog{products: products},
		orders:   &stubOrders{},
		profiles: profileTable{},
	}
	registry := session.NewRegistry(env.profiles, env.store, env.catalog, zap.NewNop())
	t.Cleanup(registry.Close)

	router, err := buildRouter(zap.NewNop(), nil, Deps{
		Auth:     env.auth,
		Sessions: registry,
		Catalog:  env.catalog,
		Profiles: stubProfiles{},
		Orders:   env.orders,
		Vendors:  stubVendors{},
	}, nil)
	if err != nil {
		t.Fatalf("build router: %v", err)
	}
	env.router = router
	return env
}

// user registers a caller and returns its bearer token. A nil profile
// leaves the session's profile pending.
func (e *testEnv) user(id string, p *domain.Profile) string {
	token := "tok-" + id
	e.auth.identities[token] = auth.Identity{UserID: id, Email: id + "@example.my"}
	if p != nil {
		p.UserID = id
		e.profiles[id] = *p
	}
	return token
}

var _ cartsync.Catalog = (*stubCatalog)(nil)
