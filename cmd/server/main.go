package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/orbitcrm/orbit/internal/api"
	"github.com/orbitcrm/orbit/internal/auth"
	"github.com/orbitcrm/orbit/internal/config"
	"github.com/orbitcrm/orbit/internal/database"
	"github.com/orbitcrm/orbit/internal/gateway"
	"github.com/orbitcrm/orbit/internal/onboarding"
	"github.com/orbitcrm/orbit/internal/organization"
	"github.com/orbitcrm/orbit/internal/policy"
	"github.com/orbitcrm/orbit/internal/principal"
	"github.com/orbitcrm/orbit/internal/ratelimit"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	setupLogger(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	db, err := database.New(ctx, cfg.DatabaseURL)
	cancel()
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	keyRepo := auth.NewKeyRepository(db.Pool())
	orgRepo := organization.NewRepository(db.Pool())
	principalRepo := principal.NewRepository(db.Pool())

	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTokenTTL)
	authService := auth.NewService(keyRepo, principalRepo, orgRepo, tokens)

	bootstrapCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if _, err := authService.BootstrapMasterKey(bootstrapCtx); err != nil {
		cancel()
		slog.Error("failed to bootstrap master key", "error", err)
		os.Exit(1)
	}
	cancel()

	gatewayService := gateway.NewService(gateway.NewPostgresStore(db.Pool()), policy.Default())
	onboardingService := onboarding.NewService(db)
	limiter := ratelimit.NewLimiter(newRateLimitStore(cfg), cfg.RateLimitMax, cfg.RateLimitWindow)

	router := api.NewRouter(api.RouterDeps{
		DBPinger:      db,
		Version:       cfg.Version,
		AuthService:   authService,
		Tokens:        tokens,
		KeyRepo:       keyRepo,
		OrgRepo:       orgRepo,
		PrincipalRepo: principalRepo,
		Gateway:       gatewayService,
		Onboarding:    onboardingService,
		Limiter:       limiter,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.Info("starting orbit server", "port", cfg.Port, "version", cfg.Version)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		slog.Info("shutting down server", "signal", sig.String())
	case err := <-serverErr:
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}

func setupLogger(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})
	slog.SetDefault(slog.New(handler))
}

// newRateLimitStore picks the counter store: Redis when configured, the
// process-local store otherwise.
func newRateLimitStore(cfg *config.Config) ratelimit.Store {
	if cfg.RedisURL == "" {
		slog.Info("rate limiter using in-process counter store")
		return ratelimit.NewMemoryStore()
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		slog.Warn("invalid REDIS_URL; falling back to in-process counter store", "error", err)
		return ratelimit.NewMemoryStore()
	}

	slog.Info("rate limiter using redis counter store")
	return ratelimit.NewRedisStore(redis.NewClient(opts))
}
