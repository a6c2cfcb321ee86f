package token

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
)

type postgresRepo struct {
	db db.DBTX
}

func NewPostgres(conn db.DBTX) Repository {
	return &postgresRepo{db: conn}
}

func (r *postgresRepo) Create(ctx context.Context, token Token) error {
	const q = `
INSERT INTO refresh_tokens (token, user_id, expires_at)
VALUES ($1, $2, $3)
`
	if _, err := r.db.Exec(ctx, q, token.Token, token.UserID, token.ExpiresAt); err != nil {
		if db.IsUniqueViolation(err) {
			return domain.ErrAlreadyExists
		}
		return err
	}
	return nil
}

func (r *postgresRepo) Get(ctx context.Context, token string) (*Token, error) {
	const q = `
SELECT token, user_id::text, expires_at, created_at
FROM refresh_tokens
WHERE token = $1
`
	var out Token
	if err := r.db.QueryRow(ctx, q, token).Scan(&out.Token, &out.UserID, &out.ExpiresAt, &out.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &out, nil
}

func (r *postgresRepo) Delete(ctx context.Context, token string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE token = $1`, token)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *postgresRepo) DeleteByUser(ctx context.Context, userID string) error {
	_, err := r.db.Exec(ctx, `DELETE FROM refresh_tokens WHERE user_id = $1`, userID)
	return err
}
