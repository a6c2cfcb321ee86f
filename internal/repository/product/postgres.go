package product

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

// Columns selects a product aliased as p, in the order Row scans them.
const Columns = `p.id::text, p.vendor_id::text, p.category_id::text, p.name, p.slug, COALESCE(p.description, ''),
       p.price::text, p.stock, p.mal_number, p.image_urls, p.requires_prescription, p.is_active, p.created_at`

// Row holds scan targets for Columns. Price travels as text so the
// decimal is parsed without driver-specific numeric handling.
type Row struct {
	p     domain.Product
	price string
}

// Targets returns the destinations matching Columns.
func (r *Row) Targets() []any {
	return []any{
		&r.p.ID, &r.p.VendorID, &r.p.CategoryID, &r.p.Name, &r.p.Slug, &r.p.Description,
		&r.price, &r.p.Stock, &r.p.MALNumber, &r.p.ImageURLs, &r.p.RequiresPrescription, &r.p.IsActive, &r.p.CreatedAt,
	}
}

// Product finishes decoding the scanned row.
func (r *Row) Product() (domain.Product, error) {
	price, err := decimal.NewFromString(r.price)
	if err != nil {
		return domain.Product{}, fmt.Errorf("decode price %q: %w", r.price, err)
	}
	out := r.p
	out.Price = price
	if out.ImageURLs == nil {
		out.ImageURLs = []string{}
	}
	return out, nil
}

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("product_repo")}
}

func (r *postgresRepo) List(ctx context.Context, f Filter) ([]domain.Product, int, error) {
	var (
		where []string
		args  []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if !f.IncludeInactive {
		where = append(where, "p.is_active")
	}
	if f.CategorySlug != "" {
		where = append(where, "p.category_id = (SELECT id FROM categories WHERE slug = "+arg(f.CategorySlug)+")")
	}
	if f.VendorID != "" {
		where = append(where, "p.vendor_id = "+arg(f.VendorID)+"::uuid")
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		pattern := "%" + s + "%"
		where = append(where, "(p.name ILIKE "+arg(pattern)+" OR p.description ILIKE "+arg(pattern)+")")
	}
	if f.MinPrice != nil {
		where = append(where, "p.price >= "+arg(f.MinPrice.String())+"::numeric")
	}
	if f.MaxPrice != nil {
		where = append(where, "p.price <= "+arg(f.MaxPrice.String())+"::numeric")
	}
	if f.InStockOnly {
		where = append(where, "p.stock > 0")
	}

	q := "SELECT " + Columns + ", count(*) OVER ()\nFROM products p"
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY " + orderBy(f.Sort)
	q += "\nLIMIT " + arg(f.Limit) + " OFFSET " + arg(f.Offset)

	rows, err := r.db.Query(ctx, q, args...)
	if err != nil {
		r.logger.Error("list products", zap.Error(err))
		return nil, 0, err
	}
	defer rows.Close()

	var (
		result []domain.Product
		total  int
	)
	for rows.Next() {
		var row Row
		if err := rows.Scan(append(row.Targets(), &total)...); err != nil {
			return nil, 0, err
		}
		p, err := row.Product()
		if err != nil {
			return nil, 0, err
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		r.logger.Error("list products rows", zap.Error(err))
		return nil, 0, err
	}
	r.logger.Debug("listed products", zap.Int("count", len(result)), zap.Int("total", total))
	return result, total, nil
}

func orderBy(sort string) string {
	switch sort {
	case SortPriceAsc:
		return "p.price ASC, p.name ASC"
	case SortPriceDesc:
		return "p.price DESC, p.name ASC"
	case SortName:
		return "p.name ASC"
	default:
		return "p.created_at DESC, p.id"
	}
}

func (r *postgresRepo) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	q := "SELECT " + Columns + "\nFROM products p\nWHERE p.id = $1"
	var row Row
	if err := r.db.QueryRow(ctx, q, id).Scan(row.Targets()...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		r.logger.Error("get product", zap.String("id", id), zap.Error(err))
		return nil, err
	}
	p, err := row.Product()
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *postgresRepo) GetByIDs(ctx context.Context, ids []string) ([]domain.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	q := "SELECT " + Columns + "\nFROM products p\nWHERE p.id = ANY($1::uuid[])"
	rows, err := r.db.Query(ctx, q, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Product
	for rows.Next() {
		var row Row
		if err := rows.Scan(row.Targets()...); err != nil {
			return nil, err
		}
		p, err := row.Product()
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Create(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
WITH p AS (
    INSERT INTO products (vendor_id, category_id, name, slug, description, price, stock, mal_number, image_urls, requires_prescription, is_active)
    VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::numeric, $7, $8, $9, $10, $11)
    RETURNING *
)
SELECT ` + Columns + ` FROM p`
	return r.writeOne(ctx, "create", q,
		p.VendorID, p.CategoryID, p.Name, p.Slug, p.Description, p.Price.String(), p.Stock,
		p.MALNumber, imageURLs(p.ImageURLs), p.RequiresPrescription, p.IsActive)
}

func (r *postgresRepo) Update(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
WITH p AS (
    UPDATE products
    SET category_id = $3,
        name = $4,
        slug = $5,
        description = NULLIF($6, ''),
        price = $7::numeric,
        stock = $8,
        mal_number = $9,
        image_urls = $10,
        requires_prescription = $11,
        is_active = $12
    WHERE id = $1 AND vendor_id = $2
    RETURNING *
)
SELECT ` + Columns + ` FROM p`
	return r.writeOne(ctx, "update", q,
		p.ID, p.VendorID, p.CategoryID, p.Name, p.Slug, p.Description, p.Price.String(), p.Stock,
		p.MALNumber, imageURLs(p.ImageURLs), p.RequiresPrescription, p.IsActive)
}

func (r *postgresRepo) UpsertBySlug(ctx context.Context, p domain.Product) (*domain.Product, error) {
	q := `
WITH p AS (
    INSERT INTO products (vendor_id, category_id, name, slug, description, price, stock, mal_number, image_urls, requires_prescription, is_active)
    VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6::numeric, $7, $8, $9, $10, $11)
    ON CONFLICT (slug) DO UPDATE SET
        category_id = EXCLUDED.category_id,
        name = EXCLUDED.name,
        description = EXCLUDED.description,
        price = EXCLUDED.price,
        stock = EXCLUDED.stock,
        mal_number = EXCLUDED.mal_number,
        image_urls = EXCLUDED.image_urls,
        requires_prescription = EXCLUDED.requires_prescription,
        is_active = EXCLUDED.is_active
    RETURNING *
)
SELECT ` + Columns + ` FROM p`
	return r.writeOne(ctx, "upsert", q,
		p.VendorID, p.CategoryID, p.Name, p.Slug, p.Description, p.Price.String(), p.Stock,
		p.MALNumber, imageURLs(p.ImageURLs), p.RequiresPrescription, p.IsActive)
}

func (r *postgresRepo) writeOne(ctx context.Context, op, q string, args ...any) (*domain.Product, error) {
	var row Row
	if err := r.db.QueryRow(ctx, q, args...).Scan(row.Targets()...); err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows):
			return nil, domain.ErrNotFound
		case db.IsUniqueViolation(err):
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error(op+" product", zap.Error(err))
		return nil, err
	}
	p, err := row.Product()
	if err != nil {
		return nil, err
	}
	r.logger.Info(op+" product", zap.String("id", p.ID), zap.String("slug", p.Slug))
	return &p, nil
}

func (r *postgresRepo) Delete(ctx context.Context, vendorID, id string) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM products WHERE id = $1 AND vendor_id = $2`, id, vendorID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func imageURLs(urls []string) []string {
	if urls == nil {
		return []string{}
	}
	return urls
}
