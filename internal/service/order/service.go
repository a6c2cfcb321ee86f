// Package order turns carts into orders and moves them through their
// lifecycle.
package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmamart/internal/domain"
	"pharmamart/internal/events"
	"pharmamart/internal/logging"
	orderrepo "pharmamart/internal/repository/order"
	"pharmamart/internal/session"
	"pharmamart/internal/validate"
)

const (
	defaultLimit = 20
	maxLimit     = 100
)

// Actor is the caller of a status change, with the role from their profile.
type Actor struct {
	UserID string
	Role   domain.Role
}

type Service struct {
	repo      orderrepo.Repository
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

func New(repo orderrepo.Repository, publisher events.Publisher, logger *zap.Logger) *Service {
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Service{
		repo:      repo,
		publisher: publisher,
		logger:    logging.OrNop(logger).Named("order"),
		now:       time.Now,
	}
}

// ShippingInput is the checkout form. Empty fields fall back to the
// buyer's profile.
type ShippingInput struct {
	Address *domain.Address `json:"address"`
	Phone   string          `json:"phone"`
}

// Checkout places an order for everything in the session's cart and then
// clears the cart. A cart whose last load failed is re-read first. Prices
// are snapshotted by the repository at creation.
func (s *Service) Checkout(ctx context.Context, sess *session.Session, in ShippingInput) (*domain.Order, error) {
	if err := sess.Cart.EnsureLoaded(ctx); err != nil {
		return nil, err
	}
	lines := sess.Cart.Lines()
	if len(lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	addr, phone := s.shipping(sess, in)
	fe := validate.FieldErrors{}
	validate.Address(addr, "address.", fe)
	switch {
	case phone == "":
		fe.Add("phone", "required")
	case !validate.Phone(phone):
		fe.Add("phone", "not a Malaysian phone number")
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	req := orderrepo.CreateInput{
		OrderNumber:     s.orderNumber(),
		UserID:          sess.Identity.UserID,
		ShippingAddress: addr,
		Phone:           validate.FormatPhone(phone),
		Lines:           make([]orderrepo.Line, 0, len(lines)),
	}
	for _, l := range lines {
		req.Lines = append(req.Lines, orderrepo.Line{ProductID: l.ProductID, Quantity: l.Quantity})
	}

	o, err := s.repo.Create(ctx, req)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order placed",
		zap.String("order_id", o.ID),
		zap.String("order_number", o.OrderNumber),
		zap.String("user_id", o.UserID),
		zap.String("total", o.Total.StringFixed(2)))

	if err := sess.Cart.Clear(ctx); err != nil {
		s.logger.Warn("cart not cleared after checkout", zap.String("order_id", o.ID), zap.Error(err))
	}
	if err := s.publisher.OrderCreated(ctx, *o); err != nil {
		s.logger.Warn("publish order created", zap.String("order_id", o.ID), zap.Error(err))
	}
	return o, nil
}

func (s *Service) shipping(sess *session.Session, in ShippingInput) (domain.Address, string) {
	var addr domain.Address
	phone := strings.TrimSpace(in.Phone)
	p, loaded := sess.Profile()
	if in.Address != nil {
		addr = *in.Address
	} else if loaded {
		addr = p.Address
	}
	if phone == "" && loaded {
		phone = p.Phone
	}
	addr.State = strings.ToUpper(strings.TrimSpace(addr.State))
	addr.PostalCode = strings.TrimSpace(addr.PostalCode)
	return addr, phone
}

// orderNumber formats PM-<yyyymmdd>-<6 hex>.
func (s *Service) orderNumber() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return fmt.Sprintf("PM-%s-%s", s.now().UTC().Format("20060102"), strings.ToUpper(id[:6]))
}

// ListMine returns the user's orders, newest first.
func (s *Service) ListMine(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.repo.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Order{}
	}
	return out, nil
}

// Get returns an order visible to actor: the buyer, an admin or a vendor
// with an item in it. Others see ErrNotFound.
func (s *Service) Get(ctx context.Context, actor Actor, id string) (*domain.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID == actor.UserID || actor.Role == domain.RoleAdmin {
		return o, nil
	}
	if actor.Role == domain.RoleVendor {
		owns, err := s.repo.VendorOwnsItem(ctx, id, actor.UserID)
		if err != nil {
			return nil, err
		}
		if owns {
			return o, nil
		}
	}
	return nil, domain.ErrNotFound
}

// UpdateStatus moves an order forward. Admins may make any allowed
// transition; vendors may only advance orders containing their products
// and may not cancel.
func (s *Service) UpdateStatus(ctx context.Context, actor Actor, id string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, validate.FieldErrors{"status": "unknown status"}
	}
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case domain.RoleAdmin:
	case domain.RoleVendor:
		owns, err := s.repo.VendorOwnsItem(ctx, id, actor.UserID)
		if err != nil {
			return nil, err
		}
		if !owns {
			return nil, domain.ErrNotFound
		}
		if to == domain.OrderCancelled {
			return nil, domain.ErrForbidden
		}
	default:
		return nil, domain.ErrForbidden
	}
	return s.transition(ctx, o, to)
}

// Cancel lets the buyer cancel a pending or confirmed order.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*domain.Order, error) {
	o, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return s.transition(ctx, o, domain.OrderCancelled)
}

func (s *Service) transition(ctx context.Context, o *domain.Order, to domain.OrderStatus) (*domain.Order, error) {
	from := o.Status
	if !from.CanTransitionTo(to) {
		return nil, fmt.Errorf("%w: %s to %s", domain.ErrInvalidTransition, from, to)
	}
	updated, err := s.repo.UpdateStatus(ctx, o.ID, from, to)
	if err != nil {
		return nil, err
	}
	s.logger.Info("order status changed",
		zap.String("order_id", o.ID),
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	if err := s.publisher.OrderStatusChanged(ctx, *updated, from); err != nil {
		s.logger.Warn("publish order status changed", zap.String("order_id", o.ID), zap.Error(err))
	}
	return updated, nil
}

func (s *Service) load(ctx context.Context, id string) (*domain.Order, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.repo.GetByID(ctx, id)
}
