package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"pharmamart/internal/config"
	"pharmamart/internal/db"
	"pharmamart/internal/domain"
	"pharmamart/internal/importer"
	"pharmamart/internal/logging"
	categoryrepo "pharmamart/internal/repository/category"
	productrepo "pharmamart/internal/repository/product"
	profilerepo "pharmamart/internal/repository/profile"
	userrepo "pharmamart/internal/repository/user"
)

func main() {
	var (
		filePath string
		vendor   string
	)
	flag.StringVar(&filePath, "file", "", "Path to a product or category CSV file")
	flag.StringVar(&vendor, "vendor", "", "Vendor email or user id owning imported products")
	flag.Parse()

	if filePath == "" {
		flag.Usage()
		os.Exit(2)
	}

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

	f, err := os.Open(filePath)
	if err != nil {
		logger.Fatal("open file", zap.Error(err))
	}
	defer f.Close()

	kind, err := importer.DetectKind(f)
	if err != nil {
		logger.Fatal("detect file kind", zap.Error(err))
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		logger.Fatal("rewind file", zap.Error(err))
	}

	var vendorID string
	if kind == importer.KindProducts {
		if vendor == "" {
			logger.Fatal("-vendor is required for product files")
		}
		vendorID, err = resolveVendor(ctx, userrepo.NewPostgres(pool, logger), profilerepo.NewPostgres(pool, logger), vendor)
		if err != nil {
			logger.Fatal("resolve vendor", zap.String("vendor", vendor), zap.Error(err))
		}
	}

	imp := importer.NewCSVImporter(f, productrepo.NewPostgres(pool, logger), categoryrepo.NewPostgres(pool, logger), vendorID, logger)

	start := time.Now()
	var count int
	if kind == importer.KindCategories {
		count, err = imp.RunCategories(ctx)
	} else {
		count, err = imp.Run(ctx)
	}
	if err != nil {
		logger.Fatal("import failed", zap.Error(err))
	}

	fmt.Printf("Imported %d %s in %s\n", count, kind, time.Since(start).Truncate(time.Millisecond))
}

// resolveVendor accepts an email or a user id and checks the account is an
// approved vendor.
func resolveVendor(ctx context.Context, users userrepo.Repository, profiles profilerepo.Repository, ref string) (string, error) {
	id := ref
	if _, err := uuid.Parse(ref); err != nil {
		u, err := users.GetByEmail(ctx, ref)
		if err != nil {
			return "", err
		}
		id = u.ID
	}
	p, err := profiles.Get(ctx, id)
	if err != nil {
		return "", err
	}
	if p.Role != domain.RoleVendor || !p.IsApproved {
		return "", fmt.Errorf("user %s is not an approved vendor", id)
	}
	return id, nil
}
