package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/splax/taskhub/internal/app/jobs"
	"github.com/splax/taskhub/internal/app/migrate"
	httpx "github.com/splax/taskhub/internal/http"
	"github.com/splax/taskhub/internal/repository"
	"github.com/splax/taskhub/internal/repository/memory"
	"github.com/splax/taskhub/internal/repository/postgres"
	"github.com/splax/taskhub/internal/service/analytics"
	"github.com/splax/taskhub/internal/service/auth"
	"github.com/splax/taskhub/internal/service/membership"
	"github.com/splax/taskhub/internal/service/notification"
	"github.com/splax/taskhub/internal/service/project"
	"github.com/splax/taskhub/internal/service/task"
	"github.com/splax/taskhub/internal/service/template"
	"github.com/splax/taskhub/internal/service/user"
	"github.com/splax/taskhub/pkg/config"
	"github.com/splax/taskhub/pkg/logger"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		slog.Error("failed to read .env", "error", err)
		os.Exit(1)
	}
	cfg := config.LoadAPIConfig()
	log := logger.NewWithFile("api", logger.ParseLevel(cfg.LogLevel), logger.FileOptions{
		Path:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, dbHealth, closeStore, err := openStore(ctx, cfg, log)
	if err != nil {
		log.Error("failed to open store", "driver", cfg.StoreDriver, "error", err)
		os.Exit(1)
	}
	defer closeStore()

	notifySvc := notification.New(store, log, notification.Config{
		Retention:       cfg.NotificationRetention,
		BreakerFailures: uint32(max(cfg.NotifyBreakerFailures, 0)),
		BreakerCooldown: cfg.NotifyBreakerCooldown,
	})
	services := httpx.Services{
		Auth:          auth.New(store, log, auth.Config{Secret: cfg.JWTSecret, TokenTTL: cfg.AccessTokenTTL}),
		Projects:      project.New(store, notifySvc, log),
		Members:       membership.New(store, notifySvc, log),
		Tasks:         task.New(store, notifySvc, log),
		Users:         user.New(store, log),
		Analytics:     analytics.New(store, log),
		Notifications: notifySvc,
		Templates:     template.New(store, notifySvc, log),
	}

	runner := jobs.New(notifySvc, log, jobs.Config{
		SweepEvery:  cfg.NotificationSweepEvery,
		RemindEvery: cfg.DeadlineReminderEvery,
	})
	go runner.Run(ctx)

	var limiter httpx.RateLimiter = httpx.NewMemoryRateLimiter()
	if addr := strings.TrimSpace(cfg.RateLimitRedisAddr); addr != "" {
		redisLimiter, err := httpx.NewRedisRateLimiter(addr, cfg.RateLimitRedisPass, cfg.RateLimitRedisDB, log)
		if err != nil {
			log.Warn("redis rate limiter unavailable", "error", err)
		} else {
			limiter.Close()
			limiter = redisLimiter
		}
	}

	router := httpx.NewRouter(log, services, limiter, dbHealth)
	defer router.Close()

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errorCh := make(chan error, 1)
	go func() {
		log.Info("api server starting", "addr", cfg.Addr, "env", cfg.Environment, "store", cfg.StoreDriver)
		errorCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", "error", err)
		}
		log.Info("api server stopped")
	case err := <-errorCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}
}

// openStore returns the configured store, its health probe and a closer.
// The memory driver keeps everything in process and has no probe.
func openStore(ctx context.Context, cfg config.APIConfig, log *slog.Logger) (repository.Store, func(context.Context) error, func(), error) {
	switch strings.ToLower(strings.TrimSpace(cfg.StoreDriver)) {
	case "memory":
		log.Warn("using in-memory store; data is lost on restart")
		return memory.New(), nil, func() {}, nil
	case "postgres", "":
	default:
		return nil, nil, nil, errors.New("unknown STORE_DRIVER " + cfg.StoreDriver)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, err
	}
	if cfg.DBMaxConns > 0 {
		poolCfg.MaxConns = int32(cfg.DBMaxConns)
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}

	runner, err := migrate.New(cfg.DatabaseURL, cfg.MigrationsDir, log)
	if err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	defer runner.Close()
	if err := runner.Up(ctx); err != nil {
		pool.Close()
		return nil, nil, nil, err
	}
	return postgres.New(pool, cfg.DBAcquireTimeout), pool.Ping, pool.Close, nil
}
