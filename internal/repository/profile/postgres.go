package profile

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

const columns = `user_id::text, email, full_name, phone, role, is_approved, address, created_at`

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("profile_repo")}
}

func scan(row pgx.Row) (*domain.Profile, error) {
	var p domain.Profile
	if err := row.Scan(&p.UserID, &p.Email, &p.FullName, &p.Phone, &p.Role, &p.IsApproved, &p.Address, &p.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) Get(ctx context.Context, userID string) (*domain.Profile, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM profiles WHERE user_id = $1`, userID))
}

func (r *postgresRepo) Update(ctx context.Context, userID string, u Update) (*domain.Profile, error) {
	const q = `
UPDATE profiles
SET full_name = $2, phone = $3, address = $4
WHERE user_id = $1
RETURNING ` + columns
	p, err := scan(r.db.QueryRow(ctx, q, userID, u.FullName, u.Phone, u.Address))
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		r.logger.Error("update profile", zap.String("user_id", userID), zap.Error(err))
	}
	return p, err
}

func (r *postgresRepo) SetRole(ctx context.Context, userID string, role domain.Role, approved bool) (*domain.Profile, error) {
	const q = `
UPDATE profiles
SET role = $2, is_approved = $3
WHERE user_id = $1
RETURNING ` + columns
	p, err := scan(r.db.QueryRow(ctx, q, userID, string(role), approved))
	if err != nil {
		return nil, err
	}
	r.logger.Info("profile role changed",
		zap.String("user_id", userID), zap.String("role", string(role)), zap.Bool("approved", approved))
	return p, nil
}

func (r *postgresRepo) List(ctx context.Context, role domain.Role, limit, offset int) ([]domain.Profile, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+columns+`
FROM profiles
WHERE $1 = '' OR role = $1
ORDER BY created_at DESC, user_id
LIMIT $2 OFFSET $3
`, string(role), limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.Profile{}
	for rows.Next() {
		p, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}
