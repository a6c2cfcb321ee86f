// Package session holds the per-user state a signed-in caller carries
// between requests: identity, profile and cart.
package session

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"pharmamart/internal/cartsync"
	"pharmamart/internal/domain"
	"pharmamart/internal/guard"
	"pharmamart/internal/logging"
	"pharmamart/internal/service/auth"
)

// ErrDisposed is returned by Init on a session that was already disposed.
var ErrDisposed = errors.New("session disposed")

// ProfileSource loads the profile row for a user.
type ProfileSource interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

// Session is one user's live state. Init must run before use and Dispose
// when the user signs out.
type Session struct {
	Identity auth.Identity
	Cart     *cartsync.Synchronizer

	profiles ProfileSource
	logger   *zap.Logger

	mu       sync.RWMutex
	profile  *domain.Profile
	disposed bool
}

// New builds an uninitialised session.
func New(id auth.Identity, profiles ProfileSource, cart *cartsync.Synchronizer, logger *zap.Logger) *Session {
	return &Session{
		Identity: id,
		Cart:     cart,
		profiles: profiles,
		logger:   logging.OrNop(logger).With(zap.String("user_id", id.UserID)),
	}
}

// Init fetches the profile and loads the cart. Failures leave the session
// usable: a missing profile keeps it pending and a failed cart load leaves
// the cart empty. The returned error joins both failures for reporting.
func (s *Session) Init(ctx context.Context) error {
	s.mu.RLock()
	disposed := s.disposed
	s.mu.RUnlock()
	if disposed {
		return ErrDisposed
	}

	profileErr := s.RefreshProfile(ctx)
	if profileErr != nil {
		s.logger.Warn("profile fetch failed, profile stays pending", zap.Error(profileErr))
	}
	cartErr := s.Cart.Load(ctx, s.Identity.UserID)
	if cartErr != nil {
		s.logger.Warn("cart load failed, starting with empty cart", zap.Error(cartErr))
	}
	return errors.Join(profileErr, cartErr)
}

// RefreshProfile re-reads the profile. On failure the previous profile is
// kept.
func (s *Session) RefreshProfile(ctx context.Context) error {
	p, err := s.profiles.Get(ctx, s.Identity.UserID)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.profile = p
	s.mu.Unlock()
	return nil
}

// ReloadCart re-reads the stored cart, replacing the in-memory lines.
func (s *Session) ReloadCart(ctx context.Context) error {
	if s.Disposed() {
		return ErrDisposed
	}
	return s.Cart.Load(ctx, s.Identity.UserID)
}

// Profile returns a copy of the loaded profile, or false while pending.
func (s *Session) Profile() (domain.Profile, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.profile == nil {
		return domain.Profile{}, false
	}
	return *s.profile, true
}

// Snapshot is the guard input for this session.
func (s *Session) Snapshot() guard.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.disposed {
		return guard.Snapshot{}
	}
	snap := guard.Snapshot{Authenticated: true}
	if s.profile != nil {
		snap.ProfileLoaded = true
		snap.Role = s.profile.Role
		snap.Approved = s.profile.IsApproved
	}
	return snap
}

// Dispose drops the profile and the in-memory cart. The stored cart is kept.
func (s *Session) Dispose() {
	s.mu.Lock()
	s.disposed = true
	s.profile = nil
	s.mu.Unlock()
	s.Cart.Reset()
}

// Disposed reports whether Dispose has run.
func (s *Session) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}
