package vendorapp

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
)

const columns = `id::text, user_id::text, business_name, registration_number, pharmacy_license, phone, address, status, review_note, created_at, reviewed_at`

type postgresRepo struct {
	db     db.DBTX
	logger *zap.Logger
}

func NewPostgres(conn db.DBTX, logger *zap.Logger) Repository {
	return &postgresRepo{db: conn, logger: logging.OrNop(logger).Named("vendorapp_repo")}
}

func scan(row pgx.Row) (*domain.VendorApplication, error) {
	var a domain.VendorApplication
	err := row.Scan(&a.ID, &a.UserID, &a.BusinessName, &a.RegistrationNumber, &a.PharmacyLicense,
		&a.Phone, &a.Address, &a.Status, &a.ReviewNote, &a.CreatedAt, &a.ReviewedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return &a, nil
}

func (r *postgresRepo) Create(ctx context.Context, app domain.VendorApplication) (*domain.VendorApplication, error) {
	const q = `
INSERT INTO vendor_applications (user_id, business_name, registration_number, pharmacy_license, phone, address)
VALUES ($1, $2, $3, $4, $5, $6)
RETURNING ` + columns
	out, err := scan(r.db.QueryRow(ctx, q, app.UserID, app.BusinessName, app.RegistrationNumber,
		app.PharmacyLicense, app.Phone, app.Address))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return nil, domain.ErrAlreadyExists
		}
		r.logger.Error("create vendor application", zap.String("user_id", app.UserID), zap.Error(err))
		return nil, err
	}
	r.logger.Info("vendor application submitted", zap.String("id", out.ID), zap.String("user_id", out.UserID))
	return out, nil
}

func (r *postgresRepo) Get(ctx context.Context, id string) (*domain.VendorApplication, error) {
	return scan(r.db.QueryRow(ctx, `SELECT `+columns+` FROM vendor_applications WHERE id = $1`, id))
}

func (r *postgresRepo) List(ctx context.Context, status domain.ApplicationStatus) ([]domain.VendorApplication, error) {
	rows, err := r.db.Query(ctx, `
SELECT `+columns+`
FROM vendor_applications
WHERE $1 = '' OR status = $1
ORDER BY created_at ASC, id
`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []domain.VendorApplication{}
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *a)
	}
	return out, rows.Err()
}

func (r *postgresRepo) Review(ctx context.Context, rv Review) (*domain.VendorApplication, error) {
	status := domain.ApplicationRejected
	if rv.Approve {
		status = domain.ApplicationApproved
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	app, err := scan(tx.QueryRow(ctx, `
UPDATE vendor_applications
SET status = $2, review_note = $3, reviewed_at = now()
WHERE id = $1 AND status = 'pending'
RETURNING `+columns, rv.ApplicationID, string(status), rv.Note))
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return nil, err
		}
		if _, getErr := scan(tx.QueryRow(ctx, `SELECT `+columns+` FROM vendor_applications WHERE id = $1`, rv.ApplicationID)); getErr != nil {
			return nil, getErr
		}
		return nil, domain.ErrInvalidTransition
	}

	if rv.Approve {
		if _, err := tx.Exec(ctx, `
UPDATE profiles
SET role = 'vendor', is_approved = true, phone = CASE WHEN phone = '' THEN $2 ELSE phone END
WHERE user_id = $1
`, app.UserID, app.Phone); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	r.logger.Info("vendor application reviewed", zap.String("id", app.ID), zap.String("status", string(status)))
	return app, nil
}
