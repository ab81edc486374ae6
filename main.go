package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/icco/animeportal/handlers"
	"github.com/icco/animeportal/lib/account"
	"github.com/icco/animeportal/lib/activity"
	"github.com/icco/animeportal/lib/cache"
	"github.com/icco/animeportal/lib/catalog"
	"github.com/icco/animeportal/lib/community"
	"github.com/icco/animeportal/lib/config"
	"github.com/icco/animeportal/lib/db"
	"github.com/icco/animeportal/lib/library"
	"github.com/icco/animeportal/lib/lock"
	"github.com/icco/animeportal/lib/news"
	"github.com/icco/animeportal/lib/rating"
	"github.com/icco/animeportal/lib/recommend"
	"github.com/icco/animeportal/lib/session"
	"github.com/icco/animeportal/lib/suggest"
	"github.com/icco/animeportal/lib/validation"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel(),
	})))
	logger := slog.Default()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Connecting to database", slog.String("driver", cfg.Database.Driver))
	gormDB, err := db.Open(cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}()

	fl := lock.NewFileLock(cfg.Database.LockDir, logger)
	if err := db.RunMigrations(ctx, gormDB, fl, logger); err != nil {
		return err
	}

	c, err := cache.New(cfg.Cache.TTL, logger)
	if err != nil {
		return err
	}
	defer c.Close()

	store, err := session.NewStore(session.Options{
		Type:      session.StoreType(cfg.Session.Store),
		Path:      cfg.Session.Path,
		RedisAddr: cfg.Session.RedisAddr,
	})
	if err != nil {
		return fmt.Errorf("failed to open session store: %w", err)
	}
	defer store.Close()

	v := validation.New()
	reserved := cfg.Catalog.ReservedGenres
	lib := library.NewService(gormDB, logger)
	cat := catalog.NewService(gormDB, c, lib, v, reserved, logger)
	accounts := account.NewService(gormDB, v, cfg.Security.MinPasswordSize, logger)

	if err := accounts.EnsureAdmin(ctx, cfg.Security.AdminUsername, cfg.Security.AdminPassword); err != nil {
		return err
	}

	s := &handlers.Services{
		DB:           gormDB,
		Config:       cfg,
		Sessions:     session.NewManager(store, cfg.Session.TTL, cfg.Session.CookieName, cfg.Security.CookieSecure, logger),
		SessionStore: store,
		Accounts:     accounts,
		Catalog:      cat,
		Ratings:      rating.NewService(gormDB, c, logger),
		Recommend:    recommend.New(gormDB, logger, cfg.Recommend.TopGenreLimit, cfg.Recommend.ItemLimit, reserved),
		Library:      lib,
		Community:    community.NewService(gormDB, v, cfg.Security.MinPasswordSize, logger),
		News:         news.NewService(gormDB, v, logger),
		Activity:     activity.New(gormDB, logger),
		Suggest:      suggest.New(cfg.OpenAI, cat, logger),
		Logger:       logger,
	}
	if !s.Suggest.Enabled() {
		logger.Info("OPENAI_API_KEY not set, genre suggestions disabled")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      handlers.NewRouter(s),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", slog.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to serve: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
