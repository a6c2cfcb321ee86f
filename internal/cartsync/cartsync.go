// Package cartsync keeps a session's in-memory cart consistent with the
// remote cart_items table and derives item and price totals from it.
//
// Every mutation is applied to memory first and then written through to the
// Store under the session mutex. A failed write restores the previous
// in-memory state and returns an error wrapping ErrRemoteWrite, so memory
// never claims a change the store did not accept. After a failed Load the
// cart is marked stale: the next mutation or EnsureLoaded retries the read
// before touching the store, so a blank cart never overwrites stored
// quantities. Writes from other
// sessions of the same user are not observed until the next Load; the
// store resolves them last-write-wins.
package cartsync

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

var (
	// ErrRemoteWrite wraps any store failure during a mutation.
	ErrRemoteWrite = errors.New("cart write failed")
	// ErrNoUser is returned by mutations on a synchronizer that has not
	// been loaded for a signed-in user.
	ErrNoUser = errors.New("cart has no signed-in user")
	// ErrInvalidQuantity is returned when adding fewer than one unit.
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
)

// FetchError reports a failed Load. The cart is left empty.
type FetchError struct {
	UserID string
	Err    error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("load cart for user %s: %v", e.UserID, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Store is the remote per-user item table keyed by (user, product).
type Store interface {
	List(ctx context.Context, userID string) ([]domain.CartLine, error)
	Upsert(ctx context.Context, userID, productID string, quantity int) error
	Delete(ctx context.Context, userID, productID string) error
	DeleteAll(ctx context.Context, userID string) error
}

// Catalog supplies live product data by id. Products missing from the
// result are treated as unavailable.
type Catalog interface {
	Products(ctx context.Context, ids []string) ([]domain.Product, error)
}

// View is a priced snapshot of the cart taken from one catalog read.
type View struct {
	Lines      []domain.CartLine `json:"lines"`
	TotalItems int               `json:"totalItems"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
}

// Synchronizer is the cart of one session. It is safe for concurrent use.
type Synchronizer struct {
	store   Store
	catalog Catalog
	logger  *zap.Logger
	now     func() time.Time

	mu     sync.Mutex
	userID string
	lines  []domain.CartLine
	stale  bool
}

func New(store Store, catalog Catalog, logger *zap.Logger) *Synchronizer {
	return &Synchronizer{
		store:   store,
		catalog: catalog,
		logger:  logging.OrNop(logger).Named("cartsync"),
		now:     time.Now,
	}
}

// Load replaces the in-memory cart with the store's rows for userID.
func (s *Synchronizer) Load(ctx context.Context, userID string) error {
	if userID == "" {
		return ErrNoUser
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.userID = userID
	s.lines = nil
	s.stale = true
	return s.reload(ctx)
}

// EnsureLoaded retries a failed Load. It does nothing once the cart holds
// the store's rows.
func (s *Synchronizer) EnsureLoaded(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return ErrNoUser
	}
	return s.reload(ctx)
}

// Stale reports whether the last Load failed and has not been retried
// successfully.
func (s *Synchronizer) Stale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stale
}

func (s *Synchronizer) reload(ctx context.Context) error {
	if !s.stale {
		return nil
	}
	lines, err := s.store.List(ctx, s.userID)
	if err != nil {
		s.logger.Warn("cart load failed", zap.String("user_id", s.userID), zap.Error(err))
		return &FetchError{UserID: s.userID, Err: err}
	}
	s.lines = lines
	s.stale = false
	s.logger.Debug("cart loaded", zap.String("user_id", s.userID), zap.Int("lines", len(lines)))
	return nil
}

// AddItem increments the line for productID by quantity, appending a new
// line when the product is not yet in the cart.
func (s *Synchronizer) AddItem(ctx context.Context, productID string, quantity int) error {
	if quantity < 1 {
		return ErrInvalidQuantity
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return ErrNoUser
	}
	if err := s.reload(ctx); err != nil {
		return err
	}

	prev := s.snapshot()
	var newQty int
	if i := s.index(productID); i >= 0 {
		s.lines[i].Quantity += quantity
		newQty = s.lines[i].Quantity
	} else {
		s.lines = append(s.lines, domain.CartLine{ProductID: productID, Quantity: quantity, AddedAt: s.now()})
		newQty = quantity
	}

	if err := s.store.Upsert(ctx, s.userID, productID, newQty); err != nil {
		s.lines = prev
		return s.writeFailed("add", productID, err)
	}
	return nil
}

// UpdateQuantity sets the quantity of an existing line. A quantity of zero
// or less removes the line.
func (s *Synchronizer) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return ErrNoUser
	}
	if err := s.reload(ctx); err != nil {
		return err
	}
	if quantity <= 0 {
		return s.remove(ctx, productID)
	}

	i := s.index(productID)
	if i < 0 {
		return fmt.Errorf("cart line %s: %w", productID, domain.ErrNotFound)
	}
	prev := s.snapshot()
	s.lines[i].Quantity = quantity

	if err := s.store.Upsert(ctx, s.userID, productID, quantity); err != nil {
		s.lines = prev
		return s.writeFailed("update", productID, err)
	}
	return nil
}

// RemoveItem drops the line for productID. Removing an absent product is
// not an error.
func (s *Synchronizer) RemoveItem(ctx context.Context, productID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return ErrNoUser
	}
	if err := s.reload(ctx); err != nil {
		return err
	}
	return s.remove(ctx, productID)
}

func (s *Synchronizer) remove(ctx context.Context, productID string) error {
	prev := s.snapshot()
	if i := s.index(productID); i >= 0 {
		s.lines = slices.Delete(s.lines, i, i+1)
	}
	if err := s.store.Delete(ctx, s.userID, productID); err != nil {
		s.lines = prev
		return s.writeFailed("remove", productID, err)
	}
	return nil
}

// Clear empties the cart, in memory and in the store.
func (s *Synchronizer) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return ErrNoUser
	}

	prev := s.snapshot()
	s.lines = nil
	if err := s.store.DeleteAll(ctx, s.userID); err != nil {
		s.lines = prev
		return s.writeFailed("clear", "", err)
	}
	s.stale = false
	return nil
}

// Reset forgets the user and the in-memory lines without touching the store.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.userID = ""
	s.lines = nil
	s.stale = false
	s.mu.Unlock()
}

// UserID returns the user the cart was loaded for.
func (s *Synchronizer) UserID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.userID
}

// Lines returns a copy of the cart lines in insertion order.
func (s *Synchronizer) Lines() []domain.CartLine {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// TotalItems is the sum of all line quantities.
func (s *Synchronizer) TotalItems() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, l := range s.lines {
		total += l.Quantity
	}
	return total
}

// TotalPrice sums quantity times the current catalog price of each line.
// Prices are fetched on every call.
func (s *Synchronizer) TotalPrice(ctx context.Context) (decimal.Decimal, error) {
	v, err := s.View(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return v.TotalPrice, nil
}

// View returns the lines with live product data attached and the totals
// computed from that same data.
func (s *Synchronizer) View(ctx context.Context) (View, error) {
	lines := s.Lines()
	v := View{Lines: lines, TotalPrice: decimal.Zero}
	if len(lines) == 0 {
		v.Lines = []domain.CartLine{}
		return v, nil
	}

	ids := make([]string, 0, len(lines))
	for _, l := range lines {
		ids = append(ids, l.ProductID)
	}
	products, err := s.catalog.Products(ctx, ids)
	if err != nil {
		return View{}, fmt.Errorf("price cart: %w", err)
	}
	byID := make(map[string]domain.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	for i := range v.Lines {
		l := &v.Lines[i]
		v.TotalItems += l.Quantity
		p, ok := byID[l.ProductID]
		if !ok {
			l.Product = nil
			s.logger.Warn("cart line without product", zap.String("product_id", l.ProductID))
			continue
		}
		l.Product = &p
		v.TotalPrice = v.TotalPrice.Add(p.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return v, nil
}

func (s *Synchronizer) index(productID string) int {
	return slices.IndexFunc(s.lines, func(l domain.CartLine) bool { return l.ProductID == productID })
}

func (s *Synchronizer) snapshot() []domain.CartLine {
	return slices.Clone(s.lines)
}

func (s *Synchronizer) writeFailed(op, productID string, err error) error {
	s.logger.Warn("cart write failed, change reverted",
		zap.String("op", op), zap.String("user_id", s.userID), zap.String("product_id", productID), zap.Error(err))
	if productID == "" {
		return fmt.Errorf("%w: %s: %w", ErrRemoteWrite, op, err)
	}
	return fmt.Errorf("%w: %s %s: %w", ErrRemoteWrite, op, productID, err)
}
