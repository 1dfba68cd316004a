package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hiroshi75/photoword/internal/pkg/middleware"
	"github.com/hiroshi75/photoword/internal/pkg/router"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/codec"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/config"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/extract"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/rest"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/service"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/session"
	"github.com/hiroshi75/photoword/internal/services/photoword/internal/store"
	"github.com/joho/godotenv"
)

func run(ctx context.Context) error {
	cfg := config.FromEnv()

	logger := newLogger(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(logger)
	slog.Info("starting photoword service", "db", cfg.DB.Driver, "sessions", cfg.Session.Backend)

	extCfg := cfg.Extractor
	if extCfg.ConfigFile != "" {
		var err error
		extCfg, err = config.LoadExtractorFile(extCfg.ConfigFile, cfg.Extractor)
		if err != nil {
			return fmt.Errorf("failed to load extractor config: %w", err)
		}
	}

	db, dialect, err := openDB(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect to db: %w", err)
	}
	defer db.Close()

	if err := store.Migrate(db, dialect); err != nil {
		return fmt.Errorf("failed to migrate db: %w", err)
	}

	ds := store.New(db)

	sessions, err := openSessions(ctx, cfg)
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer sessions.Close()

	provider, err := extract.NewProvider(extCfg.Provider, extract.ProviderConfig{
		Model:   extCfg.Model,
		BaseURL: extCfg.BaseURL,
		APIKey:  extCfg.APIKey,
	})
	if err != nil {
		return fmt.Errorf("failed to create extractor: %w", err)
	}
	if extCfg.APIKey == "" {
		slog.Warn("extractor api key is not set", "provider", provider.Name())
	}

	ext := extract.New(provider,
		extract.WithTimeout(extCfg.Timeout),
		extract.WithMaxRetries(extCfg.MaxRetries),
		extract.WithMaxTokens(extCfg.MaxTokens),
		extract.WithLanguages(extCfg.SourceLang, extCfg.TargetLang),
		extract.WithLogger(logger),
	)

	srv := service.NewPhotoService(
		service.WithStore(ds),
		service.WithExtractor(ext),
		service.WithImageLimits(codec.Limits{MaxWidth: cfg.Image.MaxWidth, MaxHeight: cfg.Image.MaxHeight}),
		service.WithOwnerCache(cfg.UserCacheKeys, cfg.UserCacheCost),
		service.WithLogger(logger),
	)
	defer srv.Close()

	rt := router.New()
	rt.Use(middleware.Recover(), middleware.RequestID(), middleware.LogWith(logger))

	rt.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	rt.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		if err := ds.Ping(r.Context()); err != nil {
			slog.Warn("readiness check failed", "error", err)
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	api := rt.SubRouter("/api/v1")
	if cfg.AuthSecret != "" {
		api.Use(middleware.Auth([]byte(cfg.AuthSecret)))
	} else {
		slog.Warn("AUTH_SECRET is not set, serving every request as the default user", "user", cfg.DefaultUser)
		api.Use(middleware.StaticOwner(cfg.DefaultUser))
	}
	api.Handle("/", rest.NewAPI(srv, sessions, rest.APIConfig{MaxImageSize: cfg.Image.MaxSize}))

	httpSrv := &http.Server{
		Addr:         cfg.Http.ListenAddr,
		IdleTimeout:  cfg.Http.IdleTimeout,
		ReadTimeout:  cfg.Http.ReadTimeout,
		WriteTimeout: cfg.Http.WriteTimeout,
		Handler:      rt,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server starting", "addr", httpSrv.Addr, "extractor", ext.Provider())
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down HTTP server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Http.ShutdownTimeout)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func openDB(cfg config.Config) (*sql.DB, store.Dialect, error) {
	if cfg.DB.Driver == string(store.Postgres) {
		db, err := store.NewPostgresDB(store.PostgresConfig{
			Host:     cfg.DB.Host,
			Port:     cfg.DB.Port,
			User:     cfg.DB.User,
			Password: cfg.DB.Password,
			DB:       cfg.DB.Name,
			SSLMode:  cfg.DB.SSLMode,
		})
		return db, store.Postgres, err
	}

	db, err := store.NewSQLiteDB(cfg.DB.Path)
	return db, store.SQLite, err
}

func openSessions(ctx context.Context, cfg config.Config) (session.Store, error) {
	switch cfg.Session.Backend {
	case "redis":
		rs := session.NewRedis(session.RedisConfig{
			Addr:     cfg.Session.Redis.Addr,
			Password: cfg.Session.Redis.Password,
			DB:       cfg.Session.Redis.DB,
			TTL:      cfg.Session.TTL,
		})
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, err
		}
		return rs, nil
	case "bolt":
		bs, err := session.NewBolt(cfg.Session.BoltPath, cfg.Session.TTL)
		if err != nil {
			return nil, err
		}
		return bs, nil
	}
	return session.NewMemory(cfg.Session.TTL), nil
}

func newLogger(w io.Writer, level, format string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to load .env file", "error", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		slog.Error("photoword service terminated with error", "error", err)
		os.Exit(1)
	}
}
