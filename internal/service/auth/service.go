// Package auth is the identity provider: email/password accounts, JWT
// access tokens, rotating refresh tokens and sign-in/sign-out events.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
	tokenrepo "pharmamart/internal/repository/token"
	userrepo "pharmamart/internal/repository/user"
	"pharmamart/internal/validate"
)

const issuer = "pharmamart"

var (
	// ErrInvalidCredentials is returned when email/password do not match.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrInvalidToken indicates the provided token could not be validated.
	ErrInvalidToken = errors.New("invalid token")
)

// EventKind names an auth state change.
type EventKind string

const (
	SignedIn  EventKind = "signed_in"
	SignedOut EventKind = "signed_out"
)

// Event is delivered to subscribers on every sign-in and sign-out.
type Event struct {
	Kind   EventKind
	UserID string
	Email  string
	At     time.Time
}

// Identity is the authenticated caller carried by an access token.
type Identity struct {
	UserID string
	Email  string
	Role   domain.Role
}

// Tokens is the credential pair returned on sign-in and refresh.
type Tokens struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	TokenType    string `json:"tokenType"`
	ExpiresIn    int    `json:"expiresIn"`
}

type claims struct {
	Email string `json:"email"`
	Role  string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type profileReader interface {
	Get(ctx context.Context, userID string) (*domain.Profile, error)
}

// Options configures token signing and lifetimes.
type Options struct {
	Secret     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Logger     *zap.Logger
}

// Service handles sign-up, sign-in, refresh and sign-out.
type Service struct {
	users       userrepo.Repository
	profiles    profileReader
	refresh     *refreshTokens
	secret      []byte
	accessTTL   time.Duration
	refreshTTL  time.Duration
	passwordMin int
	logger      *zap.Logger
	now         func() time.Time

	mu      sync.RWMutex
	subs    map[int]func(Event)
	nextSub int
}

// New creates a Service. Zero TTLs fall back to one hour and thirty days.
func New(users userrepo.Repository, profiles profileReader, tokens tokenrepo.Repository, opts Options) *Service {
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = time.Hour
	}
	if opts.RefreshTTL <= 0 {
		opts.RefreshTTL = 30 * 24 * time.Hour
	}
	s := &Service{
		users:       users,
		profiles:    profiles,
		secret:      []byte(opts.Secret),
		accessTTL:   opts.AccessTTL,
		refreshTTL:  opts.RefreshTTL,
		passwordMin: 8,
		logger:      logging.OrNop(opts.Logger).Named("auth"),
		now:         time.Now,
		subs:        make(map[int]func(Event)),
	}
	s.refresh = &refreshTokens{repo: tokens, now: func() time.Time { return s.now() }}
	return s
}

// SignUpInput captures fields expected by the sign-up endpoint.
type SignUpInput struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	FullName string          `json:"fullName"`
	Phone    string          `json:"phone"`
	Metadata domain.Metadata `json:"metadata"`
}

// SignUp registers a new account with a consumer profile.
func (s *Service) SignUp(ctx context.Context, in SignUpInput) (*domain.User, error) {
	fe := validate.FieldErrors{}
	email := strings.TrimSpace(strings.ToLower(in.Email))
	if email == "" {
		fe.Add("email", "required")
	} else if _, err := mail.ParseAddress(email); err != nil {
		fe.Add("email", "not a valid address")
	}
	password := strings.TrimSpace(in.Password)
	if err := validatePassword(password, s.passwordMin); err != nil {
		fe.Add("password", err.Error())
	}
	phone := strings.TrimSpace(in.Phone)
	if phone != "" {
		if !validate.Phone(phone) {
			fe.Add("phone", "not a Malaysian phone number")
		}
		phone = validate.FormatPhone(phone)
	}
	if err := fe.Err(); err != nil {
		return nil, err
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, userrepo.CreateInput{
		Email:        email,
		PasswordHash: string(hashed),
		FullName:     strings.TrimSpace(in.FullName),
		Phone:        phone,
		Metadata:     in.Metadata,
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("user signed up", zap.String("user_id", u.ID))
	return u, nil
}

// SignIn validates credentials and returns a fresh token pair.
func (s *Service) SignIn(ctx context.Context, email, password string) (*domain.User, Tokens, error) {
	u, err := s.users.GetByEmail(ctx, strings.TrimSpace(email))
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, Tokens{}, ErrInvalidCredentials
		}
		return nil, Tokens{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(strings.TrimSpace(password))); err != nil {
		return nil, Tokens{}, ErrInvalidCredentials
	}

	tokens, err := s.issue(ctx, u)
	if err != nil {
		return nil, Tokens{}, err
	}
	s.publish(Event{Kind: SignedIn, UserID: u.ID, Email: u.Email, At: s.now()})
	return u, tokens, nil
}

// Refresh redeems a refresh token and returns a new pair. The old refresh
// token stops working.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Tokens, error) {
	if refreshToken == "" {
		return Tokens{}, ErrInvalidToken
	}
	userID, err := s.refresh.Redeem(ctx, refreshToken)
	if err != nil {
		return Tokens{}, err
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Tokens{}, ErrInvalidToken
		}
		return Tokens{}, err
	}
	return s.issue(ctx, u)
}

// SignOut revokes the given refresh token, or every refresh token of the
// user when none is given, and notifies subscribers. A refresh token that
// belongs to someone else fails with ErrInvalidToken.
func (s *Service) SignOut(ctx context.Context, id Identity, refreshToken string) error {
	if refreshToken != "" {
		if err := s.refresh.Revoke(ctx, refreshToken, id.UserID); err != nil {
			return err
		}
	} else if err := s.refresh.repo.DeleteByUser(ctx, id.UserID); err != nil {
		return err
	}
	s.publish(Event{Kind: SignedOut, UserID: id.UserID, Email: id.Email, At: s.now()})
	return nil
}

// Verify parses an access token.
func (s *Service) Verify(accessToken string) (Identity, error) {
	var c claims
	_, err := jwt.ParseWithClaims(accessToken, &c, func(*jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || c.Subject == "" {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return Identity{UserID: c.Subject, Email: c.Email, Role: domain.Role(c.Role)}, nil
}

// ListUsers returns accounts newest first.
func (s *Service) ListUsers(ctx context.Context, limit, offset int) ([]domain.User, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.users.List(ctx, limit, offset)
}

// Subscribe registers fn for auth events and returns a function that
// removes it. Events are delivered synchronously.
func (s *Service) Subscribe(fn func(Event)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// AccessTTLSeconds exposes the access token lifetime in seconds.
func (s *Service) AccessTTLSeconds() int {
	return int(s.accessTTL.Seconds())
}

func (s *Service) publish(ev Event) {
	s.mu.RLock()
	fns := make([]func(Event), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.RUnlock()
	for _, fn := range fns {
		fn(ev)
	}
	s.logger.Debug("auth event", zap.String("kind", string(ev.Kind)), zap.String("user_id", ev.UserID))
}

func (s *Service) issue(ctx context.Context, u *domain.User) (Tokens, error) {
	role := ""
	if p, err := s.profiles.Get(ctx, u.ID); err == nil {
		role = string(p.Role)
	} else if !errors.Is(err, domain.ErrNotFound) {
		s.logger.Warn("profile lookup for token failed", zap.String("user_id", u.ID), zap.Error(err))
	}

	now := s.now()
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Email: u.Email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}).SignedString(s.secret)
	if err != nil {
		return Tokens{}, err
	}
	refresh, err := s.refresh.Issue(ctx, u.ID, s.refreshTTL)
	if err != nil {
		return Tokens{}, err
	}
	return Tokens{
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    "Bearer",
		ExpiresIn:    s.AccessTTLSeconds(),
	}, nil
}

func validatePassword(p string, min int) error {
	if len(p) < min {
		return fmt.Errorf("password must be at least %d characters", min)
	}
	hasUpper := false
	hasLower := false
	hasDigit := false
	for _, r := range p {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return errors.New("password must contain at least 1 uppercase letter, 1 lowercase letter, and 1 number")
	}
	return nil
}
