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

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	appleakage "github.com/spendaudit/backend/internal/application/leakage"
	"github.com/spendaudit/backend/internal/domain/leakage"
	"github.com/spendaudit/backend/internal/infrastructure/cache"
	"github.com/spendaudit/backend/internal/infrastructure/config"
	"github.com/spendaudit/backend/internal/infrastructure/event"
	csvimport "github.com/spendaudit/backend/internal/infrastructure/import"
	"github.com/spendaudit/backend/internal/infrastructure/lock"
	"github.com/spendaudit/backend/internal/infrastructure/logger"
	"github.com/spendaudit/backend/internal/infrastructure/persistence"
	"github.com/spendaudit/backend/internal/infrastructure/reference"
	"github.com/spendaudit/backend/internal/infrastructure/scheduler"
	"github.com/spendaudit/backend/internal/infrastructure/telemetry"
	"github.com/spendaudit/backend/internal/interfaces/http/handler"
	"github.com/spendaudit/backend/internal/interfaces/http/middleware"
	"github.com/spendaudit/backend/internal/interfaces/http/router"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			Spend Audit API
//	@version		1.0
//	@description	Financial leakage detection: invoice reconciliation and leakage case management
//	@BasePath		/api/v1

// referenceSource is a reference provider that also accepts ledger uploads
type referenceSource interface {
	leakage.ReferenceProvider
	csvimport.PaymentSink
}

// pingFunc adapts a context-aware check to handler.Pinger
type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting leakage engine",
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
		zap.String("database", cfg.Database.Driver),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handler.Pinger{}

	// Stores
	var (
		caseRepo   leakage.CaseRepository
		resultRepo leakage.ResultRepository
		db         *persistence.Database
	)
	if cfg.Database.Driver == "memory" {
		caseRepo = persistence.NewInMemoryCaseRepository()
		resultRepo = persistence.NewInMemoryResultRepository()
		log.Warn("Using in-memory stores; cases and results are lost on restart")
	} else {
		gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
		db, err = persistence.NewDatabaseWithLogger(&cfg.Database, gormLog)
		if err != nil {
			log.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer func() {
			if err := db.Close(); err != nil {
				log.Error("Error closing database", zap.Error(err))
			}
		}()
		if db.Driver() == "sqlite" {
			if err := db.AutoMigrate(); err != nil {
				log.Fatal("Failed to migrate sqlite schema", zap.Error(err))
			}
		}
		caseRepo = persistence.NewGormCaseRepository(db.DB)
		resultRepo = persistence.NewGormResultRepository(db.DB)
		checks["database"] = pingFunc(func(context.Context) error { return db.Ping() })
		log.Info("Database connected", zap.String("driver", db.Driver()))
	}

	// Redis backs the reference cache and the distributed case lock when enabled
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(ctx, cfg.Redis)
		if err != nil {
			log.Warn("Redis unavailable, using process-local cache and locks", zap.Error(err))
			redisClient = nil
		} else {
			defer func() { _ = redisClient.Close() }()
			checks["redis"] = pingFunc(func(ctx context.Context) error { return redisClient.Ping(ctx).Err() })
		}
	}

	var refCache cache.Cache
	if redisClient != nil {
		refCache = cache.NewRedisCache(redisClient, "")
	} else {
		refCache = cache.NewInMemoryCache(time.Minute)
		defer func() { _ = refCache.Close() }()
	}

	var locker appleakage.Locker = lock.NewLocalLocker()
	if cfg.Lock.Backend == "redis" {
		if redisClient == nil {
			log.Warn("Redis lock backend requested but Redis is unavailable; using local locks")
		} else {
			locker = lock.NewRedisLocker(redisClient, lock.RedisLockerConfig{
				TTL:           cfg.Lock.TTL,
				RetryInterval: cfg.Lock.RetryInterval,
				RetryLimit:    cfg.Lock.RetryLimit,
			})
		}
	}

	// Reference data
	refs, err := openReferences(cfg, db)
	if err != nil {
		log.Fatal("Failed to open reference data", zap.Error(err))
	}
	cachedRefs := reference.NewCachedProvider(refs, refCache, cfg.Reference.CacheTTL, log)

	// Traces and metrics
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.TraceConfigFrom(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfigFrom(cfg.Telemetry, version), log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()
	if db != nil {
		if err := db.EnableTracing(telemetry.DBTracingConfigFrom(cfg.Telemetry, cfg.Database.DBName), log); err != nil {
			log.Warn("Failed to enable store tracing", zap.Error(err))
		}
		dbMetrics, err := telemetry.RegisterDBMetrics(ctx, db.DB, meterProvider, telemetry.DefaultDBMetricsConfig(), log)
		if err != nil {
			log.Warn("Failed to register store metrics", zap.Error(err))
		} else if dbMetrics != nil {
			defer dbMetrics.Stop()
		}
	}
	leakageMetrics, err := telemetry.NewLeakageMetrics(telemetry.LeakageMetricsConfig{
		Meter:  meterProvider.Meter("spendaudit/leakage"),
		Logger: log,
		Cases:  caseRepo,
	})
	if err != nil {
		log.Fatal("Failed to initialize leakage metrics", zap.Error(err))
	}
	leakageMetrics.StartPeriodicCollection(ctx)
	defer leakageMetrics.Stop()

	// Domain events
	bus := event.NewInMemoryEventBus(log)
	bus.Subscribe(appleakage.NewCaseAuditLogHandler(log))
	bus.Subscribe(telemetry.NewCaseMetricsHandler(leakageMetrics))
	if err := bus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() { _ = bus.Stop(context.Background()) }()

	// Services
	thresholds := cfg.LeakageThresholds()
	reconciler := leakage.NewReconciliationService(cachedRefs, thresholds)
	classifier := leakage.NewClassifier(cfg.CasePolicy())
	leakageService := appleakage.NewLeakageService(reconciler, classifier, resultRepo, caseRepo,
		appleakage.WithEventPublisher(bus),
		appleakage.WithLocker(locker),
		appleakage.WithMetrics(leakageMetrics),
		appleakage.WithLogger(log),
		appleakage.WithBatchWorkers(cfg.Batch.Workers),
		appleakage.WithAutoOpenCases(cfg.Batch.AutoOpenCases),
	)
	caseService := appleakage.NewCaseService(caseRepo, locker,
		appleakage.WithCaseEventPublisher(bus),
		appleakage.WithCaseLogger(log),
		appleakage.WithMaxRetries(cfg.Lock.MaxRetries),
	)
	analyticsService := appleakage.NewAnalyticsService(caseRepo, thresholds)
	slaService := appleakage.NewSLAService(caseRepo, cfg.SLA.AtRiskFraction, log, leakageMetrics)

	monitorCfg := scheduler.DefaultSLAMonitorConfig()
	monitorCfg.Enabled = cfg.SLA.Enabled
	if cfg.SLA.CheckInterval > 0 {
		monitorCfg.Interval = cfg.SLA.CheckInterval
	}
	slaMonitor, err := scheduler.NewSLAMonitor(monitorCfg, slaService, log, scheduler.WithSweepLocker(locker))
	if err != nil {
		log.Fatal("Failed to create SLA monitor", zap.Error(err))
	}
	if err := slaMonitor.Start(ctx); err != nil {
		log.Fatal("Failed to start SLA monitor", zap.Error(err))
	}
	defer func() {
		if err := slaMonitor.Stop(context.Background()); err != nil {
			log.Error("Error stopping SLA monitor", zap.Error(err))
		}
	}()

	importer := csvimport.NewPaymentImporter(refs, csvimport.WithImportLogger(log))

	// HTTP
	gin.SetMode(gin.ReleaseMode)
	if cfg.App.Env == "development" {
		gin.SetMode(gin.DebugMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}
	engine.Use(middleware.RequestID())
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Actor())
	engine.Use(middleware.TracingAttributes())
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORS(cfg.HTTP.CORSAllowOrigins...))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		Enabled:       meterProvider.IsEnabled(),
		Logger:        log,
	}))

	var batchLimit gin.HandlerFunc
	if cfg.HTTP.BatchRateLimit > 0 {
		limiter := middleware.NewRateLimiter(cfg.HTTP.BatchRateLimit, cfg.HTTP.BatchRateWindow)
		defer limiter.Stop()
		batchLimit = middleware.RateLimit(limiter)
		log.Info("Batch rate limiting enabled",
			zap.Int("requests", cfg.HTTP.BatchRateLimit),
			zap.Duration("window", cfg.HTTP.BatchRateWindow),
		)
	}

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	router.Routes(r, router.Handlers{
		Invoices:      handler.NewInvoiceHandler(leakageService, cfg.HTTP.MaxBatchSize),
		Discrepancies: handler.NewDiscrepancyHandler(leakageService),
		Cases:         handler.NewCaseHandler(caseService),
		Analytics:     handler.NewAnalyticsHandler(analyticsService),
		Ledger:        handler.NewLedgerHandler(importer),
		SLA:           handler.NewSLAHandler(slaMonitor),
		System:        handler.NewSystemHandler(version, checks),
	}, batchLimit)
	r.Setup()

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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	log.Info("Server exited gracefully")
}

// openReferences returns the configured reference source. The database source
// needs a SQL store.
func openReferences(cfg *config.Config, db *persistence.Database) (referenceSource, error) {
	switch cfg.Reference.Source {
	case "database":
		if db == nil {
			return nil, fmt.Errorf("reference.source=database requires a sql database driver, got %q", cfg.Database.Driver)
		}
		return reference.NewGormProvider(db.DB), nil
	default:
		if cfg.Reference.FixturePath == "" {
			return reference.NewMemoryProvider(reference.Dataset{}), nil
		}
		provider, err := reference.LoadFile(cfg.Reference.FixturePath)
		if err != nil {
			return nil, err
		}
		return provider, nil
	}
}
