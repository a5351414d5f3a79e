package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	appauth "github.com/example/linkstash/internal/auth"
	"github.com/example/linkstash/internal/cache"
	"github.com/example/linkstash/internal/config"
	httpserver "github.com/example/linkstash/internal/http"
	"github.com/example/linkstash/internal/logger"
	"github.com/example/linkstash/internal/notify"
	"github.com/example/linkstash/internal/store"
	"github.com/example/linkstash/internal/ui"
)

const sessionSweepInterval = time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	log := logger.New(cfg.Log.Level, cfg.Log.Pretty)
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		log.Fatal("failed to create db pool", logger.Error(err))
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool); err != nil {
		log.Fatal("failed to apply migrations", logger.Error(err))
	}

	stor := store.New(pool)

	listCache, err := cache.New(cfg, log)
	if err != nil {
		log.Fatal("failed to connect to redis", logger.Error(err))
	}
	defer func() { _ = listCache.Close() }()

	hub := notify.NewHub()
	listener := notify.NewListener(cfg.DB.DSN, hub, log)
	listener.OnEvent(func(ev notify.Event) {
		// A change in the database invalidates that user's cached list
		// before any subscriber re-fetches it.
		listCache.Invalidate(ctx, ev.UserID)
	})
	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("change listener stopped", logger.Error(err))
		}
	}()

	go sweepSessions(ctx, stor, log)

	sessionManager := appauth.NewSessionManager(cfg)
	authService, err := appauth.NewService(ctx, cfg, stor, sessionManager, log)
	if err != nil {
		log.Fatal("failed to initialize auth service", logger.Error(err))
	}

	uiHandler := ui.NewHandler(cfg, stor, authService, hub, listCache, log)
	r := httpserver.NewRouter(cfg, stor, authService, uiHandler, log)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // SSE streams stay open indefinitely
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("server listening", logger.String("addr", cfg.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", logger.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", logger.Error(err))
	}
}

// sweepSessions periodically prunes expired session rows.
func sweepSessions(ctx context.Context, stor *store.Store, log logger.Logger) {
	ticker := time.NewTicker(sessionSweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := stor.Sessions.DeleteExpired(ctx)
			if err != nil {
				log.Error("session sweep failed", logger.Error(err))
				continue
			}
			if n > 0 {
				log.Info("expired sessions removed", logger.Int("count", int(n)))
			}
		}
	}
}
