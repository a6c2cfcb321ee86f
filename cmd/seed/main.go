package main

import (
	"context"
	"os"

	"go.uber.org/zap"

	"pharmamart/internal/config"
	"pharmamart/internal/db"
	"pharmamart/internal/logging"
	"pharmamart/internal/migrate"
	"pharmamart/internal/seed"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect db", zap.Error(err))
	}
	defer pool.Close()

	if _, err := migrate.Apply(ctx, pool); err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}

	opts := seed.Options{
		AdminEmail:     envOrDefault("SEED_ADMIN_EMAIL", "admin@pharmamart.my"),
		AdminPassword:  envOrDefault("SEED_ADMIN_PASSWORD", "Admin123!"),
		VendorEmail:    envOrDefault("SEED_VENDOR_EMAIL", "vendor@pharmamart.my"),
		VendorPassword: envOrDefault("SEED_VENDOR_PASSWORD", "Vendor123!"),
	}
	if err := seed.Apply(ctx, pool, opts, logger); err != nil {
		logger.Fatal("seed apply", zap.Error(err))
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
