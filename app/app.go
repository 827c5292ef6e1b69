// File: app/app.go
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"go-websecurity-api/config"
	"go-websecurity-api/db"
	"go-websecurity-api/handler"
	"go-websecurity-api/logger"
	"go-websecurity-api/repository"
	"go-websecurity-api/router"
	"go-websecurity-api/service"
	"net/http"
	"os"
	"os/signal"
	"syscall"
)

// App is the fully wired application without its listener.
type App struct {
	Config  *config.Config
	Repos   *repository.Repositories
	Tokens  *service.TokenService
	Refresh *service.RefreshTokenService
	Limiter *service.RateLimiter
	Router  http.Handler
}

// New wires services, handlers and the router on top of the given stores.
// A nil cache disables the notes cache. It fails when the signing secret
// is too weak.
func New(cfg *config.Config, repos *repository.Repositories, cache service.ICacheClient) (*App, error) {
	tokens, err := service.NewTokenService(cfg.JWT.Secret, cfg.AccessTTL(), cfg.RefreshTTL())
	if err != nil {
		return nil, err
	}

	cookies := service.NewCookieService(service.CookieConfig{
		AccessName:  cfg.JWT.Access.CookieName,
		RefreshName: cfg.JWT.Refresh.CookieName,
		RefreshPath: cfg.JWT.Refresh.CookiePath,
		Secure:      cfg.Cookie.Secure,
		SameSite:    service.ParseSameSite(cfg.Cookie.SameSite),
		AccessTTL:   cfg.AccessTTL(),
		RefreshTTL:  cfg.RefreshTTL(),
	})

	refresh := service.NewRefreshTokenService(repos.Tokens, repos.Users, tokens, cookies, service.RefreshTokenConfig{
		Pepper: cfg.JWT.Refresh.HashPepper,
		TTL:    cfg.RefreshTTL(),
	})
	auth := service.NewAuthService(repos.Users, cfg.Security.BcryptCost)
	notes := service.NewNoteService(repos.Notes, cache, cfg.Cache.NotesTTL)
	limiter := service.NewRateLimiter(cfg.RateLimit.Capacity, cfg.RateLimit.Window, cfg.RateLimit.IdleTTL)

	r := router.NewRouter(router.Dependencies{
		Auth:              handler.NewAuthHandler(auth, tokens, refresh, cookies),
		Notes:             handler.NewNoteHandler(notes),
		Authenticator:     handler.NewAuthenticator(tokens, cookies),
		Limiter:           limiter,
		RateLimitPrefixes: cfg.RateLimit.Prefixes,
	})

	return &App{
		Config:  cfg,
		Repos:   repos,
		Tokens:  tokens,
		Refresh: refresh,
		Limiter: limiter,
		Router:  r,
	}, nil
}

func openStorage(cfg *config.Config) (*repository.Repositories, func(), error) {
	switch cfg.Storage.Driver {
	case "memory":
		logger.Log.Warn("Using in-memory storage; data is lost on restart")
		return repository.NewMemoryRepositories(), func() {}, nil
	case "postgres", "":
		database, err := db.Connect(cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := db.RunMigrations(cfg.Database.MigrationsPath, db.ConnectionURL(cfg)); err != nil {
			database.Close()
			return nil, nil, err
		}
		return repository.NewPostgresRepositories(database), func() { closeDB(database) }, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}

func closeDB(database *sql.DB) {
	if err := database.Close(); err != nil {
		logger.Log.WithError(err).Warn("Error closing database")
	}
}

func Run() {
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Error loading configuration: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.Log.Info("Configuration loaded successfully")

	repos, closeStorage, err := openStorage(cfg)
	if err != nil {
		logger.Log.Fatalf("Error opening storage: %v", err)
	}
	defer closeStorage()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var cache service.ICacheClient
	if cfg.Redis.Enabled {
		rdb, err := db.ConnectRedis(ctx, cfg)
		if err != nil {
			logger.Log.Fatalf("Error connecting to Redis: %v", err)
		}
		defer rdb.Close()
		cache = rdb
	}

	application, err := New(cfg, repos, cache)
	if err != nil {
		logger.Log.Fatalf("Error wiring application: %v", err)
	}
	application.Limiter.StartSweeper(ctx, cfg.RateLimit.SweepInterval)

	port := cfg.Server.Port
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: application.Router,
	}

	go func() {
		logger.Log.Infof("Server starting on port :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Log.Warn("Shutdown signal received. Starting graceful shutdown...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Errorf("Server forced to shutdown: %v", err)
		return
	}

	logger.Log.Info("Server exited properly")
}
