package product

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"pharmamart/internal/domain"
	"pharmamart/internal/testutil"
)

func TestPostgres_ListAndGet(t *testing.T) {
	ctx := context.Background()
	pool := testutil.Postgres(t)

	vendorID := testutil.InsertUser(ctx, t, pool, "vendor@example.my", "vendor", true)
	cheap := testutil.InsertProduct(ctx, t, pool, vendorID, "Panadol", "5.50", 10)
	testutil.InsertProduct(ctx, t, pool, vendorID, "Vitamin C", "25.00", 0)

	repo := NewPostgres(pool, nil)

	list, total, err := repo.List(ctx, Filter{Sort: SortPriceAsc, Limit: 10})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if total != 2 || len(list) != 2 {
		t.Fatalf("expected 2 products, got %d (total %d)", len(list), total)
	}
	if list[0].ID != cheap {
		t.Fatalf("expected cheapest first, got %+v", list[0])
	}

	list, total, err = repo.List(ctx, Filter{InStockOnly: true, Limit: 10})
	if err != nil {
		t.Fatalf("List in stock: %v", err)
	}
	if total != 1 || list[0].ID != cheap {
		t.Fatalf("unexpected in-stock listing %+v", list)
	}

	minPrice := decimal.RequireFromString("10")
	list, _, err = repo.List(ctx, Filter{MinPrice: &minPrice, Search: "vitamin", Limit: 10})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(list) != 1 || list[0].Name != "Vitamin C" {
		t.Fatalf("unexpected filtered listing %+v", list)
	}

	got, err := repo.GetByID(ctx, cheap)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if !got.Price.Equal(decimal.RequireFromString("5.5")) || got.VendorID != vendorID {
		t.Fatalf("unexpected product %+v", got)
	}

	if _, err := repo.GetByID(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPostgres_CreateUpdateDelete(t *testing.T) {
	ctx := context.Background()
	pool := testutil.Postgres(t)

	vendorID := testutil.InsertUser(ctx, t, pool, "vendor@example.my", "vendor", true)
	otherVendor := testutil.InsertUser(ctx, t, pool, "other@example.my", "vendor", true)
	repo := NewPostgres(pool, nil)

	created, err := repo.Create(ctx, domain.Product{
		VendorID:  vendorID,
		Name:      "Zyrtec 10mg",
		Slug:      "zyrtec-10mg",
		Price:     decimal.RequireFromString("18.90"),
		Stock:     5,
		MALNumber: "MAL19876543AZ",
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID == "" || created.Description != "" || len(created.ImageURLs) != 0 {
		t.Fatalf("unexpected created product %+v", created)
	}

	if _, err := repo.Create(ctx, domain.Product{VendorID: vendorID, Name: "dup", Slug: "zyrtec-10mg", MALNumber: "MAL19876543AZ"}); !errors.Is(err, domain.ErrAlreadyExists) {
		t.Fatalf("expected ErrAlreadyExists, got %v", err)
	}

	created.Price = decimal.RequireFromString("17.50")
	created.ImageURLs = []string{"https://img.example/zyrtec.png"}
	updated, err := repo.Update(ctx, *created)
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !updated.Price.Equal(decimal.RequireFromString("17.50")) || len(updated.ImageURLs) != 1 {
		t.Fatalf("unexpected updated product %+v", updated)
	}

	foreign := *created
	foreign.VendorID = otherVendor
	if _, err := repo.Update(ctx, foreign); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign vendor, got %v", err)
	}
	if err := repo.Delete(ctx, otherVendor, created.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting foreign product, got %v", err)
	}
	if err := repo.Delete(ctx, vendorID, created.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
}

func TestPostgres_UpsertBySlug(t *testing.T) {
	ctx := context.Background()
	pool := testutil.Postgres(t)

	vendorID := testutil.InsertUser(ctx, t, pool, "vendor@example.my", "vendor", true)
	repo := NewPostgres(pool, nil)

	p := domain.Product{
		VendorID:  vendorID,
		Name:      "Strepsils",
		Slug:      "strepsils",
		Price:     decimal.RequireFromString("9.90"),
		Stock:     3,
		MALNumber: "MAL12345678X",
		IsActive:  true,
	}
	first, err := repo.UpsertBySlug(ctx, p)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	p.Stock = 8
	second, err := repo.UpsertBySlug(ctx, p)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if first.ID != second.ID || second.Stock != 8 {
		t.Fatalf("expected same row updated, got %+v then %+v", first, second)
	}

	got, err := repo.GetByIDs(ctx, []string{first.ID})
	if err != nil {
		t.Fatalf("GetByIDs: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 product, got %d", len(got))
	}
}
