package order

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

const orderColumns = `id::text, order_number, user_id::text, status, total::text, shipping_address, phone, created_at, updated_at`

const itemColumns = `id::text, order_id::text, product_id::text, vendor_id::text, product_name, unit_price::text, quantity, subtotal::text`

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("order_repo")}
}

type lockedProduct struct {
	vendorID string
	name     string
	price    decimal.Decimal
	stock    int
	active   bool
}

func (r *postgresRepo) Create(ctx context.Context, in CreateInput) (*domain.Order, error) {
	if len(in.Lines) == 0 {
		return nil, domain.ErrEmptyCart
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]string, 0, len(in.Lines))
	for _, l := range in.Lines {
		ids = append(ids, l.ProductID)
	}
	locked, err := lockProducts(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	items := make([]domain.OrderItem, 0, len(in.Lines))
	total := decimal.Zero
	for _, l := range in.Lines {
		p, ok := locked[l.ProductID]
		if !ok || !p.active {
			return nil, fmt.Errorf("product %s: %w", l.ProductID, domain.ErrNotFound)
		}
		if p.stock < l.Quantity {
			return nil, fmt.Errorf("%s has %d left: %w", p.name, p.stock, domain.ErrInsufficientStock)
		}
		subtotal := p.price.Mul(decimal.NewFromInt(int64(l.Quantity)))
		total = total.Add(subtotal)
		items = append(items, domain.OrderItem{
			ProductID:   l.ProductID,
			VendorID:    p.vendorID,
			ProductName: p.name,
			UnitPrice:   p.price,
			Quantity:    l.Quantity,
			Subtotal:    subtotal,
		})
	}

	o, err := scanOrder(tx.QueryRow(ctx, `
INSERT INTO orders (order_number, user_id, status, total, shipping_address, phone)
VALUES ($1, $2, 'pending', $3::numeric, $4, $5)
RETURNING `+orderColumns,
		in.OrderNumber, in.UserID, total.String(), in.ShippingAddress, in.Phone))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		return nil, fmt.Errorf("insert order: %w", err)
	}

	for i := range items {
		it := &items[i]
		it.OrderID = o.ID
		if err := tx.QueryRow(ctx, `
INSERT INTO order_items (order_id, product_id, vendor_id, product_name, unit_price, quantity, subtotal)
VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric)
RETURNING id::text
`, o.ID, it.ProductID, it.VendorID, it.ProductName, it.UnitPrice.String(), it.Quantity, it.Subtotal.String()).Scan(&it.ID); err != nil {
			return nil, fmt.Errorf("insert order item: %w", err)
		}
		if _, err := tx.Exec(ctx, `UPDATE products SET stock = stock - $2 WHERE id = $1`, it.ProductID, it.Quantity); err != nil {
			return nil, fmt.Errorf("decrement stock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	o.Items = items
	r.logger.Info("order created",
		zap.String("order_id", o.ID), zap.String("order_number", o.OrderNumber),
		zap.String("total", o.Total.StringFixed(2)), zap.Int("items", len(items)))
	return o, nil
}

func lockProducts(ctx context.Context, tx pgx.Tx, ids []string) (map[string]lockedProduct, error) {
	rows, err := tx.Query(ctx, `
SELECT id::text, vendor_id::text, name, price::text, stock, is_active
FROM products
WHERE id = ANY($1::uuid[])
ORDER BY id
FOR UPDATE
`, ids)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}
	defer rows.Close()

	out := make(map[string]lockedProduct, len(ids))
	for rows.Next() {
		var (
			id    string
			price string
			p     lockedProduct
		)
		if err := rows.Scan(&id, &p.vendorID, &p.name, &price, &p.stock, &p.active); err != nil {
			return nil, err
		}
		if p.price, err = decimal.NewFromString(price); err != nil {
			return nil, fmt.Errorf("decode price: %w", err)
		}
		out[id] = p
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var (
		o     domain.Order
		total string
	)
	if err := row.Scan(&o.ID, &o.OrderNumber, &o.UserID, &o.Status, &total, &o.ShippingAddress, &o.Phone, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, err
	}
	t, err := decimal.NewFromString(total)
	if err != nil {
		return nil, fmt.Errorf("decode total: %w", err)
	}
	o.Total = t
	o.Items = []domain.OrderItem{}
	return &o, nil
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Order, error) {
	o, err := scanOrder(r.db.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	if err := r.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]domain.Order, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+orderColumns+`
FROM orders
WHERE user_id = $1
ORDER BY created_at DESC, id
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, err
	}
	var ptrs []*domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		ptrs = append(ptrs, o)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	out := make([]domain.Order, 0, len(ptrs))
	for _, o := range ptrs {
		out = append(out, *o)
	}
	return out, nil
}

func (r *postgresRepo) loadItems(ctx context.Context, orders []*domain.Order) error {
	if len(orders) == 0 {
		return nil
	}
	byID := make(map[string]*domain.Order, len(orders))
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		byID[o.ID] = o
		ids = append(ids, o.ID)
	}

	rows, err := r.db.Query(ctx, `
SELECT `+itemColumns+`
FROM order_items
WHERE order_id = ANY($1::uuid[])
ORDER BY product_name, id
`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			it             domain.OrderItem
			unit, subtotal string
		)
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VendorID, &it.ProductName, &unit, &it.Quantity, &subtotal); err != nil {
			return err
		}
		if it.UnitPrice, err = decimal.NewFromString(unit); err != nil {
			return err
		}
		if it.Subtotal, err = decimal.NewFromString(subtotal); err != nil {
			return err
		}
		if o := byID[it.OrderID]; o != nil {
			o.Items = append(o.Items, it)
		}
	}
	return rows.Err()
}

func (r *postgresRepo) UpdateStatus(ctx context.Context, id string, from, to domain.OrderStatus) (*domain.Order, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	o, err := scanOrder(tx.QueryRow(ctx, `
UPDATE orders
SET status = $3, updated_at = now()
WHERE id = $1 AND status = $2
RETURNING `+orderColumns, id, string(from), string(to)))
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM orders WHERE id = $1)`, id).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrInvalidTransition
	}

	if to == domain.OrderCancelled {
		if _, err := tx.Exec(ctx, `
UPDATE products p
SET stock = p.stock + oi.quantity
FROM order_items oi
WHERE oi.order_id = $1 AND oi.product_id = p.id
`, id); err != nil {
			return nil, fmt.Errorf("restore stock: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("order status changed",
		zap.String("order_id", id), zap.String("from", string(from)), zap.String("to", string(to)))

	if err := r.loadItems(ctx, []*domain.Order{o}); err != nil {
		return nil, err
	}
	return o, nil
}

func (r *postgresRepo) VendorOwnsItem(ctx context.Context, orderID, vendorID string) (bool, error) {
	var owns bool
	err := r.db.QueryRow(ctx, `
SELECT EXISTS (SELECT 1 FROM order_items WHERE order_id = $1 AND vendor_id = $2)
`, orderID, vendorID).Scan(&owns)
	return owns, err
}
