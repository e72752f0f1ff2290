package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"storefront/backend/internal/backend"
	"storefront/backend/internal/cache"
	"storefront/backend/internal/catalog"
	"storefront/backend/internal/config"
	"storefront/backend/internal/domain"
	"storefront/backend/internal/httpapi"
	"storefront/backend/internal/metrics"
	"storefront/backend/internal/rotation"
	"storefront/backend/internal/service"
	"storefront/backend/internal/store"
	"storefront/backend/internal/store/memory"
	pgstore "storefront/backend/internal/store/postgres"
	redisstore "storefront/backend/internal/store/redis"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logrus.WithError(err).Fatal("storefront exited")
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:   "storefront",
		Usage:  "storefront API: promotional rotation, seller dashboards and order management",
		Action: serve,
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "run the HTTP API",
				Action: serve,
			},
			{
				Name:   "rotation",
				Usage:  "print the current promotional pair and its countdown",
				Action: printRotation,
			},
		},
	}
}

func serve(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stdout)

	startCtx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	rotationStore, closers, err := openRotationStore(startCtx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAll(closers, log)

	summaries, summaryClosers := openSummaryCache(startCtx, cfg, log)
	defer closeAll(summaryClosers, log)

	client, err := backend.NewClient(cfg.BackendURL, cfg.BackendTimeout(), backend.WithLogger(log))
	if err != nil {
		return err
	}

	engine := rotation.NewEngine(rotationStore, catalog.PromotionalCodes(),
		rotation.WithWindow(cfg.RotationWindow()),
		rotation.WithLogger(log),
	)
	svc := service.New(client, engine,
		service.WithSummaryCache(summaries, cfg.DashboardCacheTTL()),
		service.WithLogger(log),
	)
	auth := httpapi.NewAuthManager(cfg.AuthSecret, client)
	if cfg.AuthSecret == "" {
		log.Warn("AUTH_SECRET not set, token signatures are not verified locally")
	}
	api := httpapi.New(svc, auth, cfg.AllowedOrigin,
		httpapi.WithLogger(log),
		httpapi.WithMetrics(metrics.NewHTTPMetrics("api")),
	)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	runCtx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// keeps the stored pair fresh even when no client is watching
	go func() {
		if err := engine.Run(runCtx, nil); err != nil && !errors.Is(err, context.Canceled) {
			log.WithError(err).Warn("rotation loop stopped")
		}
	}()

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", cfg.Address()).Info("storefront listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-runCtx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown error")
	}
	log.Info("server stopped")
	return nil
}

func printRotation(c *cli.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := newLogger(cfg, os.Stderr)

	ctx, cancel := context.WithTimeout(c.Context, 10*time.Second)
	defer cancel()

	rotationStore, closers, err := openRotationStore(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer closeAll(closers, log)

	engine := rotation.NewEngine(rotationStore, catalog.PromotionalCodes(),
		rotation.WithWindow(cfg.RotationWindow()),
		rotation.WithLogger(log),
	)
	return writeRotation(c.App.Writer, engine.Snapshot(ctx))
}

func writeRotation(w io.Writer, snap domain.RotationSnapshot) error {
	for _, code := range snap.Codes {
		if _, err := fmt.Fprintf(w, "%-10s %3d%%  %s\n", code.Code, code.Percentage, code.Title); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "next rotation in %s (at %s)\n", snap.Countdown, snap.ExpiresAt.Format(time.RFC3339))
	return err
}

func newLogger(cfg config.Config, out io.Writer) *logrus.Logger {
	log := logrus.New()
	log.SetOutput(out)
	log.SetFormatter(&logrus.JSONFormatter{})
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(level)
	}
	return log
}

// openRotationStore prefers Postgres, then Redis, then process memory. A
// configured database that cannot be reached is fatal; an unreachable Redis
// falls back to memory.
func openRotationStore(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (store.RotationStore, []func() error, error) {
	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL, cfg.RotationKey)
		if err != nil {
			return nil, nil, fmt.Errorf("postgres unavailable and DATABASE_URL is set: %w", err)
		}
		if err := pg.EnsureSchema(ctx); err != nil {
			_ = pg.Close()
			return nil, nil, fmt.Errorf("ensure rotation schema: %w", err)
		}
		log.WithField("store", "postgres").Info("rotation store ready")
		return pg, []func() error{pg.Close}, nil
	}

	if cfg.RedisAddr != "" {
		rs := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RotationKey)
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			log.WithError(err).Warn("redis unavailable, rotation kept in memory")
		} else {
			log.WithField("store", "redis").Info("rotation store ready")
			return rs, []func() error{rs.Close}, nil
		}
	}

	log.WithField("store", "memory").Info("rotation store ready")
	return memory.New(), nil, nil
}

func openSummaryCache(ctx context.Context, cfg config.Config, log logrus.FieldLogger) (cache.SummaryCache, []func() error) {
	if cfg.DashboardCacheTTLSeconds == 0 {
		return cache.NoopSummaryCache{}, nil
	}
	if cfg.RedisAddr != "" {
		rc := cache.NewRedisSummaryCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RotationKey+":summary")
		if err := rc.Ping(ctx); err == nil {
			log.WithField("cache", "redis").Info("dashboard cache ready")
			return rc, []func() error{rc.Close}
		}
		_ = rc.Close()
		log.Warn("redis unavailable, dashboard cache kept in memory")
	}
	return cache.NewMemorySummaryCache(), nil
}

func closeAll(closers []func() error, log logrus.FieldLogger) {
	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			log.WithError(err).Warn("close error")
		}
	}
}
