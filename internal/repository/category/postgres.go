package category

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

const columns = `id::text, name, slug, COALESCE(description, ''), created_at`

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("category_repo")}
}

func (r *postgresRepo) List(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT `+columns+` FROM categories ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *postgresRepo) GetBySlug(ctx context.Context, slug string) (*domain.Category, error) {
	var c domain.Category
	err := r.db.QueryRow(ctx, `SELECT `+columns+` FROM categories WHERE slug = $1`, slug).
		Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &c, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, c domain.Category) (*domain.Category, error) {
	const q = `
INSERT INTO categories (name, slug, description)
VALUES ($1, $2, NULLIF($3, ''))
ON CONFLICT (slug) DO UPDATE
SET name = EXCLUDED.name,
    description = COALESCE(EXCLUDED.description, categories.description)
RETURNING ` + columns
	var out domain.Category
	err := r.db.QueryRow(ctx, q, c.Name, c.Slug, c.Description).
		Scan(&out.ID, &out.Name, &out.Slug, &out.Description, &out.CreatedAt)
	if err != nil {
		r.logger.Error("upsert category", zap.String("slug", c.Slug), zap.Error(err))
		return nil, err
	}
	r.logger.Info("upserted category", zap.String("id", out.ID), zap.String("slug", out.Slug))
	return &out, nil
}
