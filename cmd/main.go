package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"reviewdesk/internal/authclient"
	"reviewdesk/internal/caching"
	"reviewdesk/internal/config"
	"reviewdesk/internal/handlers"
	"reviewdesk/internal/jobs"
	"reviewdesk/internal/jobs/background"
	"reviewdesk/internal/logger"
	"reviewdesk/internal/metrics"
	"reviewdesk/internal/middleware"
	"reviewdesk/internal/repositories"
	"reviewdesk/internal/services"
	"reviewdesk/pkg/database"

	"github.com/hibiken/asynq"
	"github.com/labstack/echo/v4"
	echoMiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}
	log := logger.Init(cfg.Server.LogLevel, cfg.Server.Env)
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.Database.MigrateOnStart {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			return err
		}
	}
	pool, err := database.NewPool(ctx, cfg.Database.URL, cfg.Database.MaxConns)
	if err != nil {
		return err
	}
	defer pool.Close()

	redisClient := caching.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	defer redisClient.Close()
	cache := caching.NewRedisCacheService(redisClient)
	if err := cache.Ping(ctx); err != nil {
		log.Warn("redis not reachable at startup, cache and realtime will retry", zap.Error(err))
	}

	storage, err := services.NewMinioStorage(cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.Bucket, cfg.Storage.UseSSL)
	if err != nil {
		return fmt.Errorf("object storage: %w", err)
	}

	verifier, err := authclient.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.JWKSURL, cfg.Auth.Audience)
	if err != nil {
		return err
	}
	defer verifier.Close()
	auth := authclient.New(cfg.Auth.URL, cfg.Auth.AnonKey, cfg.Auth.ServiceKey)

	redisOpt := asynq.RedisClientOpt{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}
	queueClient := asynq.NewClient(redisOpt)
	defer queueClient.Close()

	// Repositories
	tenantRepo := repositories.NewTenantRepo(pool)
	profileRepo := repositories.NewProfileRepo(pool)
	invitationRepo := repositories.NewInvitationRepo(pool)
	reviewRepo := repositories.NewReviewRepo(pool)
	invoiceRepo := repositories.NewInvoiceRepo(pool)
	settingsRepo := repositories.NewSettingsRepo(pool)
	auditRepo := repositories.NewAuditLogsRepo(pool)

	// Services
	links := services.InvitationLinks{
		BaseURL: cfg.Server.SiteURL,
		TTL:     cfg.Invitations.TTL,
		Mailer:  jobs.NewInvitationQueue(queueClient),
	}
	auditSvc := services.NewAuditLogsService(auditRepo)
	tenantSvc := services.NewTenantService(tenantRepo, cache, auditSvc, links, cfg.Cache.TenantStatusTTL)
	invitationSvc := services.NewInvitationService(invitationRepo, profileRepo, tenantRepo, auth, cache, auditSvc, links)
	resolver := services.NewProfileResolver(profileRepo, invitationSvc, cache, cfg.Cache.ProfileTTL)
	profileAdminSvc := services.NewProfileAdminService(profileRepo, auth, resolver, auditSvc)
	hub := services.NewReviewHub(caching.NewRedisBroker(redisClient))
	reviewSvc := services.NewReviewService(reviewRepo, tenantRepo, cache, hub, services.RateLimit{
		Limit:  cfg.RateLimit.PublicReviews,
		Window: cfg.RateLimit.Window,
	})
	invoiceSvc := services.NewInvoiceService(invoiceRepo, settingsRepo, storage, cfg.Storage.PresignTTL)
	settingsSvc := services.NewSettingsService(settingsRepo, storage, cfg.Storage.PresignTTL)

	// Background work
	worker, mux := jobs.NewWorker(redisOpt, cfg.Queuing, jobs.NewInvitationMailer(auth))
	if err := worker.Start(mux); err != nil {
		return fmt.Errorf("task worker: %w", err)
	}
	defer worker.Shutdown()

	scheduler, err := background.NewJobScheduler(invitationRepo, tenantRepo, invoiceRepo, cfg.Jobs, cfg.Invitations.PurgeAfter)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() {
		if err := scheduler.Stop(); err != nil {
			log.Warn("scheduler shutdown", zap.Error(err))
		}
	}()

	// HTTP
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	versions := middleware.NewVersionMiddleware()
	e.Pre(echoMiddleware.RemoveTrailingSlash())
	e.Use(echoMiddleware.RequestID())
	e.Use(logger.Middleware(log))
	e.Use(echoMiddleware.Recover())
	e.Use(echoMiddleware.CORSWithConfig(echoMiddleware.CORSConfig{
		AllowOrigins:     cfg.Server.CORSOrigins,
		AllowCredentials: true,
	}))
	e.Use(metrics.Middleware)
	e.Use(versions.APIVersionResolver())

	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	h := &handlers.Handlers{
		Auth:        handlers.NewAuthHandlers(auth, verifier, invitationSvc, resolver, cfg.Server.SiteURL),
		Tenants:     handlers.NewTenantHandlers(tenantSvc),
		Users:       handlers.NewUserHandlers(profileAdminSvc),
		Invitations: handlers.NewInvitationHandlers(invitationSvc),
		Reviews:     handlers.NewReviewHandlers(reviewSvc, settingsSvc),
		Invoices:    handlers.NewInvoiceHandlers(invoiceSvc),
		Settings:    handlers.NewSettingsHandlers(settingsSvc),
		AuditLogs:   handlers.NewAuditLogsHandlers(auditSvc),
		Jobs:        handlers.NewJobHandlers(scheduler),
		Health:      handlers.NewHealthHandlers(pool, cache, version),
	}
	handlers.RegisterRoutes(e, h, handlers.RouteDeps{
		Tokens:  verifier,
		Guard:   middleware.NewRouteGuard(resolver, tenantSvc, cfg.Server.PublicEntryURL),
		Audit:   middleware.NewAuditMiddleware(auditSvc),
		Version: versions,
	})

	errCh := make(chan error, 1)
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		log.Info("reviewdesk starting", zap.String("version", version), zap.String("addr", addr), zap.String("env", cfg.Server.Env))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
