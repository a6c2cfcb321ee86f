package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"pharmamart/internal/domain"
	tokenrepo "pharmamart/internal/repository/token"
)

// refreshTokens issues and redeems opaque, single-use refresh tokens.
type refreshTokens struct {
	repo tokenrepo.Repository
	now  func() time.Time
}

func (m *refreshTokens) Issue(ctx context.Context, userID string, ttl time.Duration) (string, error) {
	expiresAt := m.now().Add(ttl)
	for i := 0; i < 5; i++ {
		token, err := randomToken()
		if err != nil {
			return "", err
		}
		err = m.repo.Create(ctx, tokenrepo.Token{
			Token:     token,
			UserID:    userID,
			ExpiresAt: expiresAt,
		})
		if err == nil {
			return token, nil
		}
		if errors.Is(err, domain.ErrAlreadyExists) {
			continue
		}
		return "", err
	}
	return "", errors.New("token collision")
}

// Redeem deletes the token and returns its owner if it was still valid.
func (m *refreshTokens) Redeem(ctx context.Context, token string) (string, error) {
	t, err := m.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if err := m.repo.Delete(ctx, token); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return "", ErrInvalidToken
		}
		return "", err
	}
	if t.Expired(m.now()) {
		return "", ErrInvalidToken
	}
	return t.UserID, nil
}

// Revoke deletes a token owned by userID. An unknown token is already
// revoked; a token of another user is rejected and left in place.
func (m *refreshTokens) Revoke(ctx context.Context, token, userID string) error {
	t, err := m.repo.Get(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return err
	}
	if t.UserID != userID {
		return ErrInvalidToken
	}
	if err := m.repo.Delete(ctx, token); err != nil && !errors.Is(err, domain.ErrNotFound) {
		return err
	}
	return nil
}

func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
