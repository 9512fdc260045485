package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"readingnook/internal/auth"
	"readingnook/internal/book"
	"readingnook/internal/catalog"
	"readingnook/internal/config"
	"readingnook/internal/covers"
	"readingnook/internal/enrich"
	"readingnook/internal/httpx"
	"readingnook/internal/library"
	"readingnook/internal/logging"
	"readingnook/internal/platform/googlebooks"
	"readingnook/internal/preferences"
	"readingnook/internal/store"
)

func main() {
	config.LoadEnvFiles()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.Env)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	primary, err := store.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("cannot open storage", zap.Error(err))
	}
	defer primary.Close()

	books := book.NewStore(primary.Repo, store.Fallback(cfg), logger)

	creds, err := auth.LoadCredentials(cfg.CredentialsFile)
	if err != nil {
		logger.Fatal("cannot load credentials", zap.String("path", cfg.CredentialsFile), zap.Error(err))
	}

	prefs := preferences.NewService(openPreferences(ctx, cfg, logger))

	deps := library.Deps{Prefs: prefs}
	var mirror enrich.CoverMirror
	if cfg.MinIO.Enabled() {
		objects, err := covers.NewMinioStore(ctx, cfg.MinIO.Endpoint, cfg.MinIO.AccessKey, cfg.MinIO.SecretKey, cfg.MinIO.Bucket, cfg.MinIO.UseSSL)
		if err != nil {
			logger.Warn("cover storage unavailable", zap.Error(err))
		} else {
			cache := covers.NewCache(objects, nil, logger)
			deps.Covers = cache
			mirror = cache
		}
	}
	volumes := googlebooks.NewClient(cfg.GoogleBooksAPIKey, "readingnook/1.0", 1, 3)
	deps.Enricher = enrich.NewService(volumes, mirror, enrich.Config{}, logger)

	lib := library.NewService(books, catalog.New(), deps, logger)
	lib.Load(ctx)

	handler := newRouter(routerDeps{
		library:     library.NewHTTPHandler(lib),
		auth:        auth.NewHTTPHandler(auth.NewService(cfg.JWTSecret, cfg.TokenTTL, creds)),
		preferences: preferences.NewHTTPHandler(prefs),
		ready:       books.Ping,
		jwtSecret:   cfg.JWTSecret,
		log:         logger,
		rateLimit:   httpx.NewRateLimitMiddleware(ctx, cfg.RateLimitRPS, cfg.RateLimitBurst),
		corsOrigins: cfg.CORSAllowedOrigins,
		maxBody:     cfg.MaxBodyBytes,
		hsts:        !cfg.IsDev(),
	})

	httpServer := &http.Server{
		Addr:         cfg.Addr,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", zap.Error(err))
		}
	}()

	logger.Info("starting server",
		zap.String("addr", cfg.Addr),
		zap.String("store", cfg.StoreDriver),
		zap.Int("books", lib.Len()),
	)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal("server error", zap.Error(err))
	}
}

func openPreferences(ctx context.Context, cfg config.Config, logger *zap.Logger) preferences.Store {
	if cfg.RedisAddr == "" {
		return preferences.NewMemoryStore()
	}
	rs, err := preferences.NewRedisStore(cfg.RedisAddr)
	if err == nil {
		err = rs.Ping(ctx)
	}
	if err != nil {
		logger.Warn("redis unavailable, preferences kept in memory", zap.Error(err))
		return preferences.NewMemoryStore()
	}
	return rs
}
