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

	"github.com/bwmarrin/snowflake"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/errgroup"

	"github.com/josh-kwaku/digital-banking/api"
	"github.com/josh-kwaku/digital-banking/internal/config"
	"github.com/josh-kwaku/digital-banking/internal/domain"
	"github.com/josh-kwaku/digital-banking/internal/events"
	"github.com/josh-kwaku/digital-banking/internal/handler"
	"github.com/josh-kwaku/digital-banking/internal/logging"
	"github.com/josh-kwaku/digital-banking/internal/middleware"
	"github.com/josh-kwaku/digital-banking/internal/repository"
	"github.com/josh-kwaku/digital-banking/internal/scheduler"
	"github.com/josh-kwaku/digital-banking/internal/service"
	"github.com/josh-kwaku/digital-banking/internal/service/ledger"
)

const (
	serviceName     = "digital-banking"
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger := logging.Init(serviceName, cfg.LogLevel, cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := repository.NewPostgresDB(ctx, cfg.DatabaseURL, repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
		PingAttempts:     30,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer db.Close()

	if err := repository.RunMigrations(ctx, db, cfg.MigrationsDir); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}

	publisher := events.Connect(cfg.RabbitMQURL, cfg.EventsExchange, logger)
	defer publisher.Close()

	customerRepo := repository.NewCustomerRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	operationRepo := repository.NewOperationRepository(db)
	userRepo := repository.NewUserRepository(db)
	tokenRepo := repository.NewRefreshTokenRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	ledgerSvc := ledger.NewService(db, accountRepo, operationRepo, customerRepo, publisher, node, ledger.Options{
		MaxPageSize: cfg.HistoryMaxPageSize,
	})
	customerSvc := service.NewCustomerService(db, customerRepo, accountRepo, publisher)
	authSvc := service.NewAuthService(userRepo, tokenRepo, cfg.JWTSecret, cfg.JWTExpiry, cfg.RefreshTokenExpiry)

	jobs := scheduler.NewJobs(ledgerSvc, idempotencyRepo, tokenRepo, logger.With("component", "scheduler"))
	sched := scheduler.New(jobs, logger, scheduler.Schedules{
		Reconcile: cfg.ReconcileSchedule,
		Cleanup:   cfg.CleanupSchedule,
	})

	mux := routes(cfg, handlers{
		health:     handler.NewHealthHandler(db, version),
		auth:       handler.NewAuthHandler(authSvc),
		users:      handler.NewUserHandler(authSvc),
		customers:  handler.NewCustomerHandler(customerSvc),
		accounts:   handler.NewAccountHandler(ledgerSvc),
		operations: handler.NewOperationHandler(ledgerSvc),
	}, idempotencyRepo)

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           otelhttp.NewHandler(middleware.Chain(mux, middleware.Tracing, middleware.Logging, middleware.Recovery), serviceName),
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := sched.Start(); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		slog.Info("server started", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		<-sched.Stop().Done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		slog.Info("server stopped")
		return nil
	})

	return g.Wait()
}

type handlers struct {
	health     *handler.HealthHandler
	auth       *handler.AuthHandler
	users      *handler.UserHandler
	customers  *handler.CustomerHandler
	accounts   *handler.AccountHandler
	operations *handler.OperationHandler
}

func routes(cfg *config.Config, h handlers, idempotency *repository.IdempotencyRepository) *http.ServeMux {
	authed := middleware.Auth(cfg.JWTSecret)
	protect := func(fn http.HandlerFunc) http.Handler { return authed(fn) }
	idempotent := func(fn http.HandlerFunc) http.Handler {
		return authed(middleware.Idempotency(idempotency)(fn))
	}
	staff := func(fn http.HandlerFunc) http.Handler {
		return authed(middleware.RequireRole(domain.RoleAdmin, domain.RoleManager)(fn))
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", h.health.Liveness)
	mux.HandleFunc("GET /health/ready", h.health.Readiness)
	mux.HandleFunc("GET /docs", handler.ServeDocs("Digital Banking Ledger API", "/docs/openapi.yaml"))
	mux.HandleFunc("GET /docs/openapi.yaml", handler.ServeSpec(api.Spec))

	mux.HandleFunc("POST /api/auth/register", h.auth.Register)
	mux.HandleFunc("POST /api/auth/login", h.auth.Login)
	mux.HandleFunc("POST /api/auth/refresh-token", h.auth.Refresh)
	mux.Handle("POST /api/auth/logout", protect(h.auth.Logout))
	mux.Handle("GET /api/auth/me", protect(h.users.Me))

	mux.Handle("GET /api/v1/customers", protect(h.customers.List))
	mux.Handle("GET /api/v1/customers/search", protect(h.customers.Search))
	mux.Handle("GET /api/v1/customers/{id}", protect(h.customers.Get))
	mux.Handle("POST /api/v1/customers", protect(h.customers.Create))
	mux.Handle("PUT /api/v1/customers/{id}", protect(h.customers.Update))
	mux.Handle("DELETE /api/v1/customers/{id}", protect(h.customers.Delete))
	mux.Handle("GET /api/v1/customers/{id}/accounts", protect(h.accounts.ListForCustomer))

	mux.Handle("GET /api/v1/accounts", protect(h.accounts.List))
	mux.Handle("GET /api/v1/accounts/{id}", protect(h.accounts.Get))
	mux.Handle("POST /api/v1/accounts/current", protect(h.accounts.OpenCurrent))
	mux.Handle("POST /api/v1/accounts/saving", protect(h.accounts.OpenSaving))
	mux.Handle("GET /api/v1/accounts/{id}/history", protect(h.accounts.History))
	mux.Handle("GET /api/v1/accounts/{id}/pageHistory", protect(h.accounts.PageHistory))
	mux.Handle("PATCH /api/v1/accounts/{id}/status", staff(h.accounts.ChangeStatus))

	mux.Handle("POST /api/v1/accounts/debit", idempotent(h.operations.Debit))
	mux.Handle("POST /api/v1/accounts/credit", idempotent(h.operations.Credit))
	mux.Handle("POST /api/v1/accounts/transfer", idempotent(h.operations.Transfer))

	return mux
}
