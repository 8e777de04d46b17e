package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"golang.org/x/sync/errgroup"

	"github.com/shopcore/shopcore/internal/app"
	"github.com/shopcore/shopcore/internal/auth"
	"github.com/shopcore/shopcore/internal/observability"
	"github.com/shopcore/shopcore/internal/orders"
	"github.com/shopcore/shopcore/internal/platform/cache"
	"github.com/shopcore/shopcore/internal/platform/db"
	"github.com/shopcore/shopcore/internal/products"
	"github.com/shopcore/shopcore/internal/rbac"
	"github.com/shopcore/shopcore/internal/shared"
	"github.com/shopcore/shopcore/internal/users"
	"github.com/shopcore/shopcore/jobs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	policy := rbac.DefaultPolicy()
	if cfg.RBACPolicyPath != "" {
		policy, err = rbac.LoadPolicy(cfg.RBACPolicyPath)
		if err != nil {
			logger.Error("load role policy", slog.Any("error", err))
			os.Exit(1)
		}
	}
	guard := rbac.NewGuard(policy)
	rbacMiddleware := rbac.Middleware{Guard: guard, Logger: logger}

	tokenStore := auth.NewTokenStore(redisClient, cfg.TokenTTL)
	authMiddleware := &auth.Middleware{Store: tokenStore, Logger: logger}

	auditLogger := shared.NewAuditLogger(pool)
	metrics := observability.NewMetrics()

	jobClient, err := jobs.NewClient(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	productsRepo := products.NewRepository(pool)
	productsService := products.NewService(productsRepo, guard, auditLogger)
	productsHandler := products.NewHandler(logger, productsService, rbacMiddleware)

	ordersRepo := orders.NewRepository(pool)
	ordersService := orders.NewService(ordersRepo, productsRepo, guard, auditLogger, jobClient)
	ordersHandler := orders.NewHandler(logger, ordersService, rbacMiddleware, metrics)

	usersRepo := users.NewRepository(pool)
	usersService := users.NewService(usersRepo, guard, auditLogger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	permissionsHandler := rbac.NewPermissionsHandler(guard, rbacMiddleware)

	inspector := asynq.NewInspector(asynq.RedisClientOpt{Addr: cfg.RedisAddr})
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:             logger,
		Config:             cfg,
		Auth:               authMiddleware,
		ProductsHandler:    productsHandler,
		OrdersHandler:      ordersHandler,
		UsersHandler:       usersHandler,
		PermissionsHandler: permissionsHandler,
		JobHandler:         jobHandler,
		Metrics:            metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("server exit", slog.Any("error", err))
		os.Exit(1)
	}
}
