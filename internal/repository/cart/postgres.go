package cart

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
	"pharmamart/internal/repository/product"
)

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("cart_repo")}
}

func (r *postgresRepo) List(ctx context.Context, userID string) ([]domain.CartLine, error) {
	q := `
SELECT c.product_id::text, c.quantity, c.added_at, ` + product.Columns + `
FROM cart_items c
JOIN products p ON p.id = c.product_id
WHERE c.user_id = $1
ORDER BY c.added_at ASC, c.product_id ASC
`
	rows, err := r.db.Query(ctx, q, userID)
	if err != nil {
		r.logger.Error("list cart", zap.String("user_id", userID), zap.Error(err))
		return nil, err
	}
	defer rows.Close()

	lines := []domain.CartLine{}
	for rows.Next() {
		var (
			line domain.CartLine
			row  product.Row
		)
		dest := append([]any{&line.ProductID, &line.Quantity, &line.AddedAt}, row.Targets()...)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		p, err := row.Product()
		if err != nil {
			return nil, err
		}
		line.Product = &p
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

func (r *postgresRepo) Upsert(ctx context.Context, userID, productID string, quantity int) error {
	if quantity < 1 {
		return fmt.Errorf("cart quantity must be positive, got %d", quantity)
	}
	if _, err := uuid.Parse(productID); err != nil {
		return domain.ErrNotFound
	}
	const q = `
INSERT INTO cart_items (user_id, product_id, quantity)
VALUES ($1, $2, $3)
ON CONFLICT (user_id, product_id) DO UPDATE
SET quantity = EXCLUDED.quantity
`
	if _, err := r.db.Exec(ctx, q, userID, productID, quantity); err != nil {
		if db.IsForeignKeyViolation(err) {
			return domain.ErrNotFound
		}
		r.logger.Error("upsert cart item",
			zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
		return err
	}
	return nil
}

// Delete is a no-op for ids that cannot name a product.
func (r *postgresRepo) Delete(ctx context.Context, userID, productID string) error {
	if _, err := uuid.Parse(productID); err != nil {
		return nil
	}
	_, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		r.logger.Error("delete cart item",
			zap.String("user_id", userID), zap.String("product_id", productID), zap.Error(err))
	}
	return err
}

func (r *postgresRepo) DeleteAll(ctx context.Context, userID string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID)
	if err != nil {
		r.logger.Error("clear cart", zap.String("user_id", userID), zap.Error(err))
		return err
	}
	r.logger.Debug("cleared cart", zap.String("user_id", userID), zap.Int64("rows", cmd.RowsAffected()))
	return nil
}
