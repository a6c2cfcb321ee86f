// Package profile reads and edits marketplace profiles.
package profile

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"pharmamart/internal/cache"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
	profilerepo "pharmamart/internal/repository/profile"
	"pharmamart/internal/validate"
)

const (
	defaultLimit = 50
	maxLimit     = 100
)

type Service struct {
	repo   profilerepo.Repository
	cache  cache.Cache
	ttl    time.Duration
	logger *zap.Logger

	mu       sync.RWMutex
	onChange []func(ctx context.Context, userID string)
}

func New(repo profilerepo.Repository, c cache.Cache, ttl time.Duration, logger *zap.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	return &Service{
		repo:   repo,
		cache:  c,
		ttl:    ttl,
		logger: logging.OrNop(logger).Named("profile"),
	}
}

// OnChange registers fn to run after a profile is written.
func (s *Service) OnChange(fn func(ctx context.Context, userID string)) {
	s.mu.Lock()
	s.onChange = append(s.onChange, fn)
	s.mu.Unlock()
}

func cacheKey(userID string) string {
	return "profile:" + userID
}

// Get returns the profile, served from the cache when possible. Cache
// errors fall through to the database.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	var p domain.Profile
	found, err := s.cache.Get(ctx, cacheKey(userID), &p)
	if err != nil {
		s.logger.Warn("profile cache read", zap.String("user_id", userID), zap.Error(err))
	}
	if found {
		return &p, nil
	}

	fresh, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, cacheKey(userID), fresh, s.ttl); err != nil {
		s.logger.Warn("profile cache write", zap.String("user_id", userID), zap.Error(err))
	}
	return fresh, nil
}

// UpdateInput is the self-service part of a profile.
type UpdateInput struct {
	FullName string         `json:"fullName"`
	Phone    string         `json:"phone"`
	Address  domain.Address `json:"address"`
}

// UpdateMine validates and stores the caller's own profile fields. The
// phone is stored in its canonical form. An all-empty address is allowed.
func (s *Service) UpdateMine(ctx context.Context, userID string, in UpdateInput) (*domain.Profile, error) {
	fe := validate.FieldErrors{}
	name := strings.TrimSpace(in.FullName)
	if name == "" {
		fe.Add("fullName", "required")
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != "" {
		if !validate.Phone(phone) {
			fe.Add("phone", "not a Malaysian phone number")
		} else {
			phone = validate.FormatPhone(phone)
		}
	}
	addr := trimAddress(in.Address)
	if addr != (domain.Address{}) {
		validate.Address(addr, "address.", fe)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	p, err := s.repo.Update(ctx, userID, profilerepo.Update{FullName: name, Phone: phone, Address: addr})
	if err != nil {
		return nil, err
	}
	s.changed(ctx, userID)
	return p, nil
}

// List returns profiles for the admin console; an empty role matches all.
func (s *Service) List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error) {
	if role != "" && !role.Valid() {
		return nil, validate.FieldErrors{"role": "unknown role"}
	}
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	out, err := s.repo.List(ctx, role, limit, offset)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Profile{}
	}
	return out, nil
}

// SetRoleInput is an admin change to role and approval.
type SetRoleInput struct {
	Role     domain.Role `json:"role"`
	Approved bool        `json:"isApproved"`
}

// SetRole changes a user's role and approval flag.
func (s *Service) SetRole(ctx context.Context, userID string, in SetRoleInput) (*domain.Profile, error) {
	if !in.Role.Valid() {
		return nil, validate.FieldErrors{"role": "unknown role"}
	}
	p, err := s.repo.SetRole(ctx, userID, in.Role, in.Approved)
	if err != nil {
		return nil, err
	}
	s.logger.Info("role changed",
		zap.String("user_id", userID),
		zap.String("role", string(in.Role)),
		zap.Bool("approved", in.Approved))
	s.changed(ctx, userID)
	return p, nil
}

// Invalidate drops the cached profile and notifies listeners. Callers that
// change profiles outside this service use it.
func (s *Service) Invalidate(ctx context.Context, userID string) {
	s.changed(ctx, userID)
}

func (s *Service) changed(ctx context.Context, userID string) {
	if err := s.cache.Delete(ctx, cacheKey(userID)); err != nil {
		s.logger.Warn("profile cache invalidate", zap.String("user_id", userID), zap.Error(err))
	}
	s.mu.RLock()
	fns := s.onChange
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ctx, userID)
	}
}

func trimAddress(a domain.Address) domain.Address {
	return domain.Address{
		Line1:      strings.TrimSpace(a.Line1),
		Line2:      strings.TrimSpace(a.Line2),
		City:       strings.TrimSpace(a.City),
		State:      strings.ToUpper(strings.TrimSpace(a.State)),
		PostalCode: strings.TrimSpace(a.PostalCode),
	}
}
