// Package testutil provides a migrated Postgres for integration tests.
package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"pharmamart/internal/migrate"
)

// Postgres returns a pool against TEST_DB_DSN, or against a throwaway
// container when the variable is unset. Migrations are applied and every
// table truncated. The test is skipped under -short.
func Postgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("integration test skipped in -short mode")
	}
	ctx := context.Background()

	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = startContainer(ctx, t)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := migrate.Apply(ctx, pool); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	Reset(ctx, t, pool)
	return pool
}

// Reset truncates every application table.
func Reset(ctx context.Context, t *testing.T, pool *pgxpool.Pool) {
	t.Helper()
	const q = `TRUNCATE vendor_applications, order_items, orders, cart_items, products, categories, refresh_tokens, profiles, users RESTART IDENTITY CASCADE`
	if _, err := pool.Exec(ctx, q); err != nil {
		t.Fatalf("truncate tables: %v", err)
	}
}

// InsertUser creates a user and its profile row and returns the id.
func InsertUser(ctx context.Context, t *testing.T, pool *pgxpool.Pool, email, role string, approved bool) string {
	t.Helper()
	var id string
	if err := pool.QueryRow(ctx, `INSERT INTO users (email, password_hash) VALUES ($1, 'x') RETURNING id::text`, email).Scan(&id); err != nil {
		t.Fatalf("insert user: %v", err)
	}
	if _, err := pool.Exec(ctx, `INSERT INTO profiles (user_id, email, role, is_approved) VALUES ($1, $2, $3, $4)`, id, email, role, approved); err != nil {
		t.Fatalf("insert profile: %v", err)
	}
	return id
}

// InsertProduct creates an active product for vendorID and returns its id.
func InsertProduct(ctx context.Context, t *testing.T, pool *pgxpool.Pool, vendorID, name, price string, stock int) string {
	t.Helper()
	var id string
	err := pool.QueryRow(ctx, `
INSERT INTO products (vendor_id, name, slug, price, stock, mal_number)
VALUES ($1, $2, $3, $4::numeric, $5, 'MAL19876543AZ')
RETURNING id::text
`, vendorID, name, fmt.Sprintf("%s-%d", name, time.Now().UnixNano()), price, stock).Scan(&id)
	if err != nil {
		t.Fatalf("insert product: %v", err)
	}
	return id
}

func startContainer(ctx context.Context, t *testing.T) string {
	t.Helper()
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "pharmamart",
			"POSTGRES_PASSWORD": "pharmamart",
			"POSTGRES_DB":       "pharmamart_test",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return fmt.Sprintf("postgres://pharmamart:pharmamart@%s:%s/pharmamart_test?sslmode=disable", host, port.Port())
}
