package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	billingapp "github.com/clubledger/backend/internal/application/billing"
	membershipapp "github.com/clubledger/backend/internal/application/membership"
	"github.com/clubledger/backend/internal/domain/billing"
	"github.com/clubledger/backend/internal/domain/membership"
	"github.com/clubledger/backend/internal/infrastructure/auth"
	"github.com/clubledger/backend/internal/infrastructure/cache"
	"github.com/clubledger/backend/internal/infrastructure/config"
	"github.com/clubledger/backend/internal/infrastructure/event"
	"github.com/clubledger/backend/internal/infrastructure/gateway"
	"github.com/clubledger/backend/internal/infrastructure/logger"
	"github.com/clubledger/backend/internal/infrastructure/persistence"
	"github.com/clubledger/backend/internal/infrastructure/storage"
	"github.com/clubledger/backend/internal/infrastructure/telemetry"
	"github.com/clubledger/backend/internal/interfaces/http/handler"
	"github.com/clubledger/backend/internal/interfaces/http/middleware"
	"github.com/clubledger/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting clubledger",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx := context.Background()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.ConfigFromApp(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	mp, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFromApp(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to initialize metrics", zap.Error(err))
	}
	lp, err := telemetry.NewLoggerProvider(ctx, telemetry.LogsConfigFromApp(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to initialize log export", zap.Error(err))
	}
	log = lp.Bridge(log, logger.ParseLevel(cfg.Log.Level))

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfigFromApp(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if profiler.IsEnabled() {
		tp.EnableSpanProfiles()
	}

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level), cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfigFromApp(cfg.Telemetry, cfg.Database.DBName), log); err != nil {
		log.Fatal("Failed to register database tracing", zap.Error(err))
	}
	log.Info("Database connected successfully")

	// Committed domain events fan out to metrics and the audit log
	eventBus := event.NewInMemoryEventBus(log)
	metrics, err := telemetry.NewBillingMetrics(telemetry.BillingMetricsConfig{
		Meter:  mp.Meter(telemetry.TracerName),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create billing metrics", zap.Error(err))
	}
	eventBus.Subscribe(metrics)
	eventBus.Subscribe(event.NewLoggingHandler(log))

	idempotency := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	if closer, ok := idempotency.(io.Closer); ok {
		defer func() { _ = closer.Close() }()
	}

	var archive billingapp.PayloadArchive
	if cfg.Archive.Enabled {
		s3Archive, err := storage.NewS3Archive(ctx, cfg.Archive, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to initialize webhook archive", zap.Error(err))
		}
		archive = s3Archive
	}

	billingUOW := persistence.NewBillingUnitOfWork(db.DB)
	ledger := billingapp.NewLedgerService(billingapp.LedgerServiceConfig{
		UnitOfWork:    billingUOW,
		Publisher:     eventBus,
		Logger:        log,
		InvoicePrefix: cfg.Billing.InvoicePrefix,
	})
	coupons := billingapp.NewCouponService(billingapp.CouponServiceConfig{
		UnitOfWork: billingUOW,
		Publisher:  eventBus,
		Logger:     log,
	})
	processor := billingapp.NewWebhookProcessor(billingapp.WebhookProcessorConfig{
		Gateways: []billing.PaymentGateway{
			gateway.NewStripe(gateway.StripeConfig{
				WebhookSecret: cfg.Webhook.SecretFor(gateway.StripeName),
				Tolerance:     cfg.Webhook.Tolerance,
			}),
		},
		Events:           persistence.NewGormWebhookEventRepository(db.DB),
		UnitOfWork:       billingUOW,
		Ledger:           ledger,
		IdempotencyStore: idempotency,
		IdempotencyTTL:   cfg.Redis.KeyTTL,
		Archive:          archive,
		Observer:         metrics,
		Logger:           log,
	})
	lifecycle := membershipapp.NewLifecycleService(membershipapp.LifecycleServiceConfig{
		UnitOfWork: persistence.NewMembershipUnitOfWork(db.DB),
		Proration:  membership.NoProration{},
		Publisher:  eventBus,
		Logger:     log,
	})

	engine, err := router.New(router.Config{
		Logger:     log,
		JWTService: auth.NewJWTService(cfg.JWT),
		Tracing: middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     tp.IsEnabled(),
			SkipPaths:   []string{"/health"},
		},
		MaxBodySize:    cfg.HTTP.MaxBodySize,
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Handlers: router.Handlers{
			Invoice:    handler.NewInvoiceHandler(ledger, log),
			Membership: handler.NewMembershipHandler(lifecycle, log),
			Coupon:     handler.NewCouponHandler(coupons, log),
			Webhook:    handler.NewWebhookHandler(processor, cfg.Webhook.MaxBodySize, log),
			Health: handler.NewHealthHandler(cfg.App.Name, version, map[string]handler.Pinger{
				"database": handler.PingFunc(db.Ping),
			}),
		},
	})
	if err != nil {
		log.Fatal("Failed to build router", zap.Error(err))
	}

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	// flush telemetry after in-flight requests have finished
	if err := tp.Shutdown(shutdownCtx); err != nil {
		log.Error("Tracer shutdown failed", zap.Error(err))
	}
	if err := mp.Shutdown(shutdownCtx); err != nil {
		log.Error("Meter shutdown failed", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Error("Profiler shutdown failed", zap.Error(err))
	}
	log.Info("Server exited gracefully")
	if err := lp.Shutdown(shutdownCtx); err != nil {
		log.Error("Log export shutdown failed", zap.Error(err))
	}
}
