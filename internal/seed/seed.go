// Package seed loads demo categories, a vendor with products and an admin
// account. Running it twice changes nothing.
package seed

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/logging"
	categoryrepo "pharmamart/internal/repository/category"
	productrepo "pharmamart/internal/repository/product"
	profilerepo "pharmamart/internal/repository/profile"
	userrepo "pharmamart/internal/repository/user"
)

// Options names the seeded accounts.
type Options struct {
	AdminEmail     string
	AdminPassword  string
	VendorEmail    string
	VendorPassword string
}

type productSeed struct {
	Name         string
	Slug         string
	Category     string
	Description  string
	Price        string
	Stock        int
	MALNumber    string
	Prescription bool
}

var categories = []domain.Category{
	{Name: "Pain Relief", Slug: "pain-relief", Description: "Analgesics and anti-inflammatories"},
	{Name: "Cough & Cold", Slug: "cough-cold", Description: "Lozenges, syrups and decongestants"},
	{Name: "Vitamins & Supplements", Slug: "vitamins", Description: "Daily vitamins and minerals"},
	{Name: "Antibiotics", Slug: "antibiotics", Description: "Prescription only"},
}

var products = []productSeed{
	{Name: "Panadol Actifast 500mg", Slug: "panadol-actifast-500mg", Category: "pain-relief", Description: "Paracetamol, 20 caplets", Price: "12.90", Stock: 120, MALNumber: "MAL19984521A"},
	{Name: "Strepsils Honey & Lemon", Slug: "strepsils-honey-lemon", Category: "cough-cold", Description: "Throat lozenges, 16s", Price: "9.90", Stock: 80, MALNumber: "MAL19876543X"},
	{Name: "Redoxon Vitamin C 1000mg", Slug: "redoxon-vitamin-c-1000mg", Category: "vitamins", Description: "Effervescent tablets, 15s", Price: "24.50", Stock: 60, MALNumber: "MAL20034567NC"},
	{Name: "Amoxicillin 500mg", Slug: "amoxicillin-500mg", Category: "antibiotics", Description: "Capsules, 21s", Price: "28.50", Stock: 30, MALNumber: "MAL20011234AZ", Prescription: true},
}

// Apply writes the seed data through the repositories.
func Apply(ctx context.Context, conn db.DBTX, opts Options, logger *zap.Logger) error {
	logger = logging.OrNop(logger).Named("seed")
	users := userrepo.NewPostgres(conn, logger)
	profiles := profilerepo.NewPostgres(conn, logger)
	cats := categoryrepo.NewPostgres(conn, logger)
	prods := productrepo.NewPostgres(conn, logger)

	categoryIDs := make(map[string]string, len(categories))
	for _, c := range categories {
		saved, err := cats.Upsert(ctx, c)
		if err != nil {
			return fmt.Errorf("upsert category %s: %w", c.Slug, err)
		}
		categoryIDs[c.Slug] = saved.ID
	}

	if _, err := ensureUser(ctx, users, profiles, opts.AdminEmail, opts.AdminPassword, "Pharmamart Admin", domain.RoleAdmin); err != nil {
		return fmt.Errorf("ensure admin: %w", err)
	}
	vendorID, err := ensureUser(ctx, users, profiles, opts.VendorEmail, opts.VendorPassword, "Farmasi Demo", domain.RoleVendor)
	if err != nil {
		return fmt.Errorf("ensure vendor: %w", err)
	}

	for _, p := range products {
		categoryID := categoryIDs[p.Category]
		_, err := prods.UpsertBySlug(ctx, domain.Product{
			VendorID:             vendorID,
			CategoryID:           &categoryID,
			Name:                 p.Name,
			Slug:                 p.Slug,
			Description:          p.Description,
			Price:                decimal.RequireFromString(p.Price),
			Stock:                p.Stock,
			MALNumber:            p.MALNumber,
			RequiresPrescription: p.Prescription,
			IsActive:             true,
		})
		if err != nil {
			return fmt.Errorf("upsert product %s: %w", p.Slug, err)
		}
	}

	logger.Info("seed applied",
		zap.Int("categories", len(categories)),
		zap.Int("products", len(products)))
	return nil
}

// ensureUser creates the account when missing and always resets its role
// to an approved role.
func ensureUser(ctx context.Context, users userrepo.Repository, profiles profilerepo.Repository, email, password, name string, role domain.Role) (string, error) {
	u, err := users.GetByEmail(ctx, email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
		if err != nil {
			return "", err
		}
		u, err = users.Create(ctx, userrepo.CreateInput{Email: email, PasswordHash: string(hash), FullName: name})
		if err != nil {
			return "", err
		}
	case err != nil:
		return "", err
	}
	if _, err := profiles.SetRole(ctx, u.ID, role, true); err != nil {
		return "", err
	}
	return u.ID, nil
}
