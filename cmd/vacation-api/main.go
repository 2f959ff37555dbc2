package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/noah-isme/vacation-api/internal/handler"
	"github.com/noah-isme/vacation-api/internal/middleware"
	"github.com/noah-isme/vacation-api/internal/repository"
	"github.com/noah-isme/vacation-api/internal/router"
	"github.com/noah-isme/vacation-api/internal/service"
	"github.com/noah-isme/vacation-api/pkg/cache"
	"github.com/noah-isme/vacation-api/pkg/config"
	"github.com/noah-isme/vacation-api/pkg/database"
	"github.com/noah-isme/vacation-api/pkg/logger"
	"github.com/noah-isme/vacation-api/pkg/tracing"
)

// @title Vacation Dashboard API
// @version 1.0.0
// @description Vacation requests, approvals and yearly balances
// @BasePath /
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if err := run(cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(cfg *config.Config, logr *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
		if cfg.JWT.Secret == "" || cfg.JWT.Secret == "dev_secret" {
			return errors.New("JWT_SECRET must be set in production")
		}
	}

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing, cfg.Env, logr)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logr.Warn("tracing shutdown failed", zap.Error(err))
		}
	}()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer db.Close()

	if cfg.Migrations.AutoMigrate {
		if err := database.Migrate(db, cfg.Migrations.Path, logr); err != nil {
			return err
		}
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, continuing without cache", zap.Error(err))
			redisClient = nil
		} else {
			defer redisClient.Close()
		}
	}

	validate := validator.New()
	metrics := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	employeeRepo := repository.NewEmployeeRepository(db)
	vacationRepo := repository.NewVacationRepository(db)
	balanceRepo := repository.NewBalanceRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient)
	txManager := repository.NewTxManager(db)

	calendarCache := service.NewCalendarCache(cacheRepo, metrics, cfg.Vacation.CalendarCacheTTL, logr, redisClient != nil)
	auditSvc := service.NewAuditService(auditRepo, metrics, logr, service.AuditConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
	})
	auditSvc.Start(ctx)
	defer auditSvc.Stop()

	balanceSvc := service.NewBalanceService(balanceRepo, employeeRepo, logr, service.BalanceConfig{
		DefaultEntitledDays: cfg.Vacation.DefaultEntitledDays,
		TeamScope:           cfg.Vacation.EnforceTeamScope,
	})
	vacationSvc := service.NewVacationService(vacationRepo, employeeRepo, balanceSvc, txManager, auditSvc, calendarCache, metrics, validate, logr, service.VacationConfig{
		TeamScope: cfg.Vacation.EnforceTeamScope,
	})
	authSvc := service.NewAuthService(userRepo, employeeRepo, balanceSvc, txManager, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             cfg.JWT.Issuer,
	})
	userSvc := service.NewUserService(userRepo, employeeRepo, balanceSvc, txManager, auditSvc, validate, logr)
	employeeSvc := service.NewEmployeeService(employeeRepo, userRepo, balanceSvc, txManager, auditSvc, validate, logr, cfg.Vacation.EnforceTeamScope)
	exportSvc := service.NewExportService(vacationSvc, auditSvc, logr)

	if cfg.Seed.AdminEmail != "" && cfg.Seed.AdminPassword != "" {
		if err := authSvc.SeedAdmin(ctx, cfg.Seed.AdminEmail, cfg.Seed.AdminPassword, cfg.Seed.AdminName); err != nil {
			return fmt.Errorf("seed admin: %w", err)
		}
	}

	authLimiter, err := middleware.NewLimiter(cfg.RateLimit.Auth, redisClient)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
	}

	engine := router.New(cfg, router.Handlers{
		Auth:      handler.NewAuthHandler(authSvc),
		Users:     handler.NewUserHandler(userSvc),
		Employees: handler.NewEmployeeHandler(employeeSvc),
		Vacations: handler.NewVacationHandler(vacationSvc, exportSvc),
		Balances:  handler.NewBalanceHandler(balanceSvc),
		Audit:     handler.NewAuditHandler(auditSvc, exportSvc),
		Health:    handler.NewHealthHandler(metrics.Handler(), checks),
	}, router.Deps{
		Tokens:      authSvc,
		Metrics:     metrics,
		AuthLimiter: authLimiter,
		Logger:      logr,
	})

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      otelhttp.NewHandler(engine, "vacation-api"),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("prefix", cfg.APIPrefix))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	logr.Info("server stopped")
	return nil
}
