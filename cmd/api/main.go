package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"pharmamart/internal/cache"
	"pharmamart/internal/config"
	"pharmamart/internal/db"
	"pharmamart/internal/events"
	"pharmamart/internal/httpserver"
	"pharmamart/internal/logging"
	"pharmamart/internal/migrate"
	cartrepo "pharmamart/internal/repository/cart"
	categoryrepo "pharmamart/internal/repository/category"
	orderrepo "pharmamart/internal/repository/order"
	productrepo "pharmamart/internal/repository/product"
	profilerepo "pharmamart/internal/repository/profile"
	tokenrepo "pharmamart/internal/repository/token"
	userrepo "pharmamart/internal/repository/user"
	vendorapprepo "pharmamart/internal/repository/vendorapp"
	authsvc "pharmamart/internal/service/auth"
	catalogsvc "pharmamart/internal/service/catalog"
	ordersvc "pharmamart/internal/service/order"
	profilesvc "pharmamart/internal/service/profile"
	vendorsvc "pharmamart/internal/service/vendor"
	"pharmamart/internal/session"
	"pharmamart/internal/storage"
)

func main() {
	cfg := config.FromEnv()
	logger, err := logging.New(cfg.AppEnv, cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()
	dbpool, err := db.Connect(ctx, cfg.DBConnString)
	if err != nil {
		logger.Fatal("connect to db", zap.Error(err))
	}
	defer dbpool.Close()

	version, err := migrate.Apply(ctx, dbpool)
	if err != nil {
		logger.Fatal("apply migrations", zap.Error(err))
	}
	logger.Info("schema ready", zap.Uint("version", version))

	images := newImages(ctx, cfg, logger)
	profileCache := newCache(ctx, cfg, logger)
	publisher := newPublisher(cfg, logger)
	for _, v := range []any{profileCache, publisher} {
		if c, ok := v.(io.Closer); ok {
			defer c.Close()
		}
	}

	userRepo := userrepo.NewPostgres(dbpool, logger)
	profileRepo := profilerepo.NewPostgres(dbpool, logger)
	productRepo := productrepo.NewPostgres(dbpool, logger)
	categoryRepo := categoryrepo.NewPostgres(dbpool, logger)
	cartRepo := cartrepo.NewPostgres(dbpool, logger)
	orderRepo := orderrepo.NewPostgres(dbpool, logger)
	vendorAppRepo := vendorapprepo.NewPostgres(dbpool, logger)

	profileService := profilesvc.New(profileRepo, profileCache, cfg.ProfileCacheTTL, logger)
	catalogService := catalogsvc.New(productRepo, categoryRepo, images, logger)
	authService := authsvc.New(userRepo, profileService, tokenrepo.NewPostgres(dbpool), authsvc.Options{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTTL,
		RefreshTTL: cfg.RefreshTTL,
		Logger:     logger,
	})
	orderService := ordersvc.New(orderRepo, publisher, logger)
	vendorService := vendorsvc.New(vendorAppRepo, profileService, logger)

	sessions := session.NewRegistry(profileService, cartRepo, catalogService, logger,
		session.WithIdleTimeout(cfg.SessionIdle))
	defer sessions.Close()
	sweepCtx, stopSweep := context.WithCancel(ctx)
	defer stopSweep()
	if cfg.SessionIdle > 0 {
		go sessions.Run(sweepCtx, time.Minute)
	}
	unsubscribe := authService.Subscribe(sessions.HandleAuthEvent)
	defer unsubscribe()
	profileService.OnChange(sessions.RefreshProfile)

	srv, err := httpserver.New(cfg.HTTPAddr, logger, dbpool, httpserver.Deps{
		Auth:     authService,
		Sessions: sessions,
		Catalog:  catalogService,
		Profiles: profileService,
		Orders:   orderService,
		Vendors:  vendorService,
	}, cfg.CORSOrigins)
	if err != nil {
		logger.Fatal("init server", zap.Error(err))
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("starting http server", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	case err := <-serverErr:
		logger.Error("server error", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	} else {
		logger.Info("server stopped")
	}
}

// newImages returns MinIO storage when an endpoint is configured.
func newImages(ctx context.Context, cfg config.Config, logger *zap.Logger) storage.Images {
	if cfg.MinioEndpoint == "" {
		logger.Info("image storage disabled")
		return storage.Disabled{}
	}
	m, err := storage.NewMinio(storage.Config{
		Endpoint:  cfg.MinioEndpoint,
		AccessKey: cfg.MinioAccessKey,
		SecretKey: cfg.MinioSecretKey,
		Bucket:    cfg.MinioBucket,
		UseSSL:    cfg.MinioUseSSL,
		PublicURL: cfg.MinioPublicURL,
	}, logger)
	if err != nil {
		logger.Fatal("init image storage", zap.Error(err))
	}
	if err := m.EnsureBucket(ctx); err != nil {
		logger.Fatal("ensure image bucket", zap.Error(err))
	}
	return m
}

// newCache falls back to no caching when Redis is unset or unreachable.
func newCache(ctx context.Context, cfg config.Config, logger *zap.Logger) cache.Cache {
	if cfg.RedisAddr == "" {
		return cache.Nop{}
	}
	r, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, "pharmamart:")
	if err != nil {
		logger.Warn("redis unavailable, profile cache disabled", zap.Error(err))
		return cache.Nop{}
	}
	return r
}

func newPublisher(cfg config.Config, logger *zap.Logger) events.Publisher {
	if cfg.AMQPURL == "" {
		return events.Nop{}
	}
	r, err := events.DialRabbit(cfg.AMQPURL, cfg.AMQPExchange, logger)
	if err != nil {
		logger.Warn("rabbitmq unavailable, order events disabled", zap.Error(err))
		return events.Nop{}
	}
	return r
}
