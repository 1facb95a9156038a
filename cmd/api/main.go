package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/multierr"

	"github.com/fieldworkbook/backend/api/controllers"
	"github.com/fieldworkbook/backend/api/routes"
	"github.com/fieldworkbook/backend/internal/amountrequests"
	"github.com/fieldworkbook/backend/internal/attachments"
	"github.com/fieldworkbook/backend/internal/auth"
	"github.com/fieldworkbook/backend/internal/expenses"
	"github.com/fieldworkbook/backend/internal/ledger"
	"github.com/fieldworkbook/backend/internal/reports"
	"github.com/fieldworkbook/backend/internal/teams"
	"github.com/fieldworkbook/backend/internal/users"
	"github.com/fieldworkbook/backend/pkg/auth/session"
	"github.com/fieldworkbook/backend/pkg/config"
	"github.com/fieldworkbook/backend/pkg/db"
	"github.com/fieldworkbook/backend/pkg/logger"
	"github.com/fieldworkbook/backend/pkg/metrics"
	"github.com/fieldworkbook/backend/pkg/migrate"
	"github.com/fieldworkbook/backend/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Env:         cfg.App.Env,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger) (err error) {
	dbClient, err := db.New(ctx, cfg.DB, cfg.FeatureFlags.UseSQLite, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, redisClient.Close()) }()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	gdb := dbClient.DB()
	ledgerSvc, err := ledger.NewService(ledger.NewRepository(gdb), metrics.NewLedgerMetrics(registry))
	if err != nil {
		return err
	}

	store, err := attachments.NewStore(ctx, cfg, logg)
	if err != nil {
		return err
	}
	attachmentSvc, err := attachments.NewService(store, cfg.Attachments.MaxUploadBytes(), logg)
	if err != nil {
		return err
	}

	userRepo := users.NewRepository(gdb)
	usersSvc, err := users.NewService(users.ServiceParams{
		Repo:           userRepo,
		Tx:             dbClient,
		PasswordConfig: cfg.Password,
		Logger:         logg,
		Sessions:       sessionManager,
	})
	if err != nil {
		return err
	}
	authSvc, err := auth.NewService(auth.ServiceParams{
		UserRepo:       userRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		Logger:         logg,
	})
	if err != nil {
		return err
	}
	teamsSvc, err := teams.NewService(teams.NewRepository(gdb), dbClient, ledgerSvc, logg)
	if err != nil {
		return err
	}
	expensesSvc, err := expenses.NewService(expenses.NewRepository(gdb), dbClient, ledgerSvc, attachmentSvc, logg)
	if err != nil {
		return err
	}
	requestsSvc, err := amountrequests.NewService(amountrequests.NewRepository(gdb), dbClient, ledgerSvc, logg)
	if err != nil {
		return err
	}
	reportsSvc, err := reports.NewService(reports.NewRepository(gdb))
	if err != nil {
		return err
	}

	handler := routes.NewRouter(routes.Dependencies{
		Config:         cfg,
		Logger:         logg,
		HTTPMetrics:    metrics.NewHTTPMetrics(registry),
		MetricsHandler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
		Readiness: map[string]controllers.Pinger{
			"database": dbClient,
			"redis":    redisClient,
		},
		Sessions:       sessionManager,
		Idempotency:    redisClient,
		RateLimits:     redisClient,
		Auth:           authSvc,
		Teams:          teamsSvc,
		Expenses:       expensesSvc,
		AmountRequests: requestsSvc,
		Users:          usersSvc,
		Reports:        reportsSvc,
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port

	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	logCtx := logg.WithFields(ctx, map[string]any{
		"addr":                addr,
		"attachments_backend": cfg.Attachments.Backend,
		"sqlite":              cfg.FeatureFlags.UseSQLite,
	})
	logg.Info(logCtx, "starting api server")

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logg.Info(logCtx, "api server stopped")
	return nil
}
