package user

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

const columns = `id::text, email, password_hash, metadata, created_at`

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("user_repo")}
}

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.User, error) {
	meta := in.Metadata
	if meta == nil {
		meta = domain.Metadata{}
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var u domain.User
	err = tx.QueryRow(ctx, `
INSERT INTO users (email, password_hash, metadata)
VALUES ($1, $2, $3)
RETURNING `+columns, in.Email, in.PasswordHash, meta).
		Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Metadata, &u.CreatedAt)
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	if _, err := tx.Exec(ctx, `
INSERT INTO profiles (user_id, email, full_name, phone)
VALUES ($1, $2, $3, $4)
`, u.ID, u.Email, in.FullName, in.Phone); err != nil {
		return nil, fmt.Errorf("insert profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("created user", zap.String("user_id", u.ID))
	return &u, nil
}

func (r *postgresRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM users WHERE lower(email) = lower($1)`, email)
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, `SELECT `+columns+` FROM users WHERE id = $1`, id)
}

func (r *postgresRepo) getOne(ctx context.Context, q string, arg string) (*domain.User, error) {
	var u domain.User
	if err := r.db.QueryRow(ctx, q, arg).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Metadata, &u.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *postgresRepo) List(ctx context.Context, limit, offset int) ([]domain.User, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+columns+`
FROM users
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := []domain.User{}
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Metadata, &u.CreatedAt); err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	return users, rows.Err()
}
