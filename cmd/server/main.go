package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	catalogapp "github.com/cryptonexus/backend/internal/application/catalog"
	eventapp "github.com/cryptonexus/backend/internal/application/event"
	identityapp "github.com/cryptonexus/backend/internal/application/identity"
	messagingapp "github.com/cryptonexus/backend/internal/application/messaging"
	notificationapp "github.com/cryptonexus/backend/internal/application/notification"
	paymentapp "github.com/cryptonexus/backend/internal/application/payment"
	tradeapp "github.com/cryptonexus/backend/internal/application/trade"
	vendorapp "github.com/cryptonexus/backend/internal/application/vendor"
	"github.com/cryptonexus/backend/internal/domain/payment"
	"github.com/cryptonexus/backend/internal/domain/shared"
	"github.com/cryptonexus/backend/internal/infrastructure/auth"
	"github.com/cryptonexus/backend/internal/infrastructure/cache"
	"github.com/cryptonexus/backend/internal/infrastructure/config"
	"github.com/cryptonexus/backend/internal/infrastructure/event"
	"github.com/cryptonexus/backend/internal/infrastructure/logger"
	paymentinfra "github.com/cryptonexus/backend/internal/infrastructure/payment"
	"github.com/cryptonexus/backend/internal/infrastructure/persistence"
	"github.com/cryptonexus/backend/internal/infrastructure/printing"
	"github.com/cryptonexus/backend/internal/infrastructure/scheduler"
	"github.com/cryptonexus/backend/internal/infrastructure/storage"
	"github.com/cryptonexus/backend/internal/infrastructure/telemetry"
	"github.com/cryptonexus/backend/internal/interfaces/http/handler"
	"github.com/cryptonexus/backend/internal/interfaces/http/middleware"
	"github.com/cryptonexus/backend/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	_ "github.com/cryptonexus/backend/docs"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

//	@title			CryptoNexus Marketplace API
//	@version		1.0
//	@description	Escrow marketplace for digital goods paid in Bitcoin and Monero
//	@termsOfService	http://swagger.io/terms/

//	@contact.name	API Support
//	@contact.url	https://github.com/cryptonexus/backend

//	@license.name	Apache 2.0
//	@license.url	http://www.apache.org/licenses/LICENSE-2.0.html

//	@host		localhost:8080
//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

//	@externalDocs.description	OpenAPI
//	@externalDocs.url			https://swagger.io/resources/open-api/

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	logCfg := &logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}
	log, err := logger.New(logCfg)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}

	// Telemetry providers are created first so the logger can be bridged
	telemetryCfg := telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
	}
	tracerProvider, err := telemetry.NewTracerProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	meterProvider, err := telemetry.NewMeterProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	loggerProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetryCfg, log)
	if err != nil {
		log.Fatal("Failed to initialize logger provider", zap.Error(err))
	}
	if loggerProvider.IsEnabled() {
		if bridged, bridgeErr := logger.New(logCfg, loggerProvider.Core(logger.ParseLevel(cfg.Log.Level))); bridgeErr == nil {
			log = bridged
		}
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.PyroscopeURL,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Warn("Failed to start profiler", zap.Error(err))
	} else if profiler.IsEnabled() {
		tracerProvider.EnableSpanProfiles()
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = profiler.Stop()
		_ = meterProvider.Shutdown(shutdownCtx)
		_ = tracerProvider.Shutdown(shutdownCtx)
		_ = loggerProvider.Shutdown(shutdownCtx)
	}()

	log.Info("Starting marketplace backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	gormLog := logger.NewGormLogger(log, cfg.Log.Level, cfg.Telemetry.DBSlowQueryThresh)
	db, err := persistence.Open(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	stopDBMetrics, err := telemetry.InstrumentDatabase(context.Background(), db.DB, telemetry.DBConfig{
		Tracing:            cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:         cfg.Telemetry.DBLogFullSQL,
		SlowQueryThreshold: cfg.Telemetry.DBSlowQueryThresh,
	}, meterProvider, log)
	if err != nil {
		log.Warn("Failed to instrument database", zap.Error(err))
	} else {
		defer stopDBMetrics()
	}

	// Redis backs event idempotency, the token blacklist and rate limits.
	// Outside production an unreachable Redis degrades to in-memory stores.
	stores, err := cache.NewStores(context.Background(), cfg.Redis, cfg.App.Env != "production", log)
	if err != nil {
		log.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer func() {
		if err := stores.Close(); err != nil {
			log.Error("Error closing Redis stores", zap.Error(err))
		}
	}()

	// Initialize repositories
	userRepo := persistence.NewGormUserRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	categoryRepo := persistence.NewGormCategoryRepository(db.DB)
	orderRepo := persistence.NewGormOrderRepository(db.DB)
	addressRepo := persistence.NewGormPaymentAddressRepository(db.DB)
	escrowRepo := persistence.NewGormEscrowRepository(db.DB)
	webhookRepo := persistence.NewGormWebhookRepository(db.DB)
	applicationRepo := persistence.NewGormVendorApplicationRepository(db.DB)
	conversationRepo := persistence.NewGormConversationRepository(db.DB)
	messageRepo := persistence.NewGormMessageRepository(db.DB)
	notificationRepo := persistence.NewGormNotificationRepository(db.DB)
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	txManager := persistence.NewGormTransactionManager(db.DB)

	// Initialize event serializer and register all event types
	eventSerializer := event.NewEventSerializer()
	event.RegisterAllEvents(eventSerializer)

	// Events are written to the outbox inside the caller's transaction and
	// delivered to the bus by the outbox processor
	eventPublisher := event.NewTransactionalPublisher(db.DB, eventSerializer)

	objectStorage, err := storage.New(&cfg.Storage, log)
	if err != nil {
		log.Fatal("Failed to initialize object storage", zap.Error(err))
	}
	if objectStorage == nil {
		log.Warn("Object storage disabled; uploads will be rejected")
	}

	bitcoin, monero := newPaymentGateways(cfg, log)

	// Initialize application services
	var blacklist auth.TokenBlacklist
	if stores.Client != nil {
		blacklist = auth.NewRedisTokenBlacklist(stores.Client)
	} else {
		blacklist = auth.NewInMemoryTokenBlacklist()
	}
	jwtService := auth.NewJWTService(cfg.JWT)
	authService := identityapp.NewAuthService(userRepo, jwtService, blacklist, log)
	userService := identityapp.NewUserService(userRepo, log)

	productService := catalogapp.NewProductService(productRepo, categoryRepo, objectStorage, log)
	productService.SetUploadExpiry(cfg.Storage.PresignExpiration)
	categoryService := catalogapp.NewCategoryService(categoryRepo)
	bulkService := catalogapp.NewBulkService(productRepo, categoryRepo, log)

	paymentService := paymentapp.NewPaymentService(paymentapp.PaymentServiceConfig{
		AddressRepo:      addressRepo,
		EscrowRepo:       escrowRepo,
		WebhookRepo:      webhookRepo,
		OrderRepo:        orderRepo,
		TxManager:        txManager,
		EventPublisher:   eventPublisher,
		Bitcoin:          bitcoin,
		Monero:           monero,
		PaymentWindow:    cfg.Payment.PaymentWindow,
		EscrowFeePercent: decimal.NewFromFloat(cfg.Payment.EscrowFeePercent),
		AutoReleaseAfter: time.Duration(cfg.Payment.AutoReleaseDays) * 24 * time.Hour,
		SiteURL:          cfg.App.SiteURL,
		AddressSecret:    cfg.App.SecretKey,
		Logger:           log,
	})

	orderService := tradeapp.NewOrderService(orderRepo, productRepo, txManager, eventPublisher, log)
	orderService.SetPaymentAddressCreator(paymentService)
	orderService.SetDisputeWindow(cfg.Payment.DisputeWindow)

	applicationService := vendorapp.NewApplicationService(applicationRepo, userRepo, txManager, eventPublisher, objectStorage, log)
	applicationService.SetUploadExpiry(cfg.Storage.PresignExpiration)
	conversationService := messagingapp.NewConversationService(
		conversationRepo, messageRepo, userRepo, productRepo, txManager, eventPublisher, log,
	)
	notificationService := notificationapp.NewNotificationService(notificationRepo, log)
	outboxService := eventapp.NewOutboxService(outboxRepo, log)

	// Initialize event bus and handlers
	eventBus := event.NewInMemoryEventBus(log)
	idempotency := event.WithIdempotencyTTL(cfg.Event.IdempotencyTTL)
	subscribe := func(h shared.EventHandler) {
		eventBus.Subscribe(event.NewIdempotentHandler(h, stores.EventIdempotency, log, idempotency))
	}

	// Payment confirmed -> order marked paid
	subscribe(tradeapp.NewPaymentConfirmedHandler(orderService, log))
	// Order confirmed, disputed or resolved -> escrow release or refund
	subscribe(paymentapp.NewOrderConfirmedHandler(paymentService, log))
	subscribe(paymentapp.NewOrderDisputedHandler(paymentService, log))
	subscribe(paymentapp.NewOrderDisputeResolvedHandler(paymentService, log))
	subscribe(paymentapp.NewOrderClosedHandler(paymentService, log))
	// Vendor application approved -> user promoted to vendor
	subscribe(identityapp.NewVendorApprovedHandler(userService, log))
	// Marketplace activity -> user notifications
	notificationHandler := notificationapp.NewEventHandler(notificationService, log)
	subscribe(notificationHandler)

	if meterProvider.IsEnabled() {
		marketplaceMetrics, err := telemetry.NewMarketplaceMetrics(telemetry.MarketplaceMetricsConfig{
			Meter:         meterProvider.Meter("marketplace"),
			Logger:        log,
			StatsProvider: persistence.NewGormMarketplaceStats(db.DB),
		})
		if err != nil {
			log.Warn("Failed to create marketplace metrics", zap.Error(err))
		} else {
			eventBus.Subscribe(marketplaceMetrics)
			marketplaceMetrics.StartPeriodicCollection(context.Background())
			defer marketplaceMetrics.Stop()
		}
	}

	log.Info("Event handlers registered",
		zap.Strings("notification_events", notificationHandler.EventTypes()),
	)

	if cfg.Event.ProcessorEnabled {
		opts := event.ProcessorOptions{
			BatchSize:    cfg.Event.BatchSize,
			PollInterval: cfg.Event.PollInterval,
			MaxRetries:   cfg.Event.MaxRetries,
		}
		if cfg.Event.CleanupEnabled {
			opts.Retention = cfg.Event.CleanupRetention
		}
		outboxProcessor := event.NewOutboxProcessor(outboxRepo, eventBus, eventSerializer, opts, log)
		outboxProcessor.Start(context.Background())
		defer func() {
			if err := outboxProcessor.Stop(context.Background()); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	}

	// Periodic maintenance: Monero polling, escrow auto-release and expiry
	if cfg.Scheduler.Enabled {
		maintenance := scheduler.NewMaintenanceScheduler(scheduler.MaintenanceConfig{
			Enabled:       cfg.Scheduler.Enabled,
			Interval:      cfg.Scheduler.Interval,
			JobTimeout:    cfg.Scheduler.JobTimeout,
			RetryAttempts: cfg.Scheduler.RetryAttempts,
			RetryDelay:    cfg.Scheduler.RetryDelay,
		}, log, scheduler.MarketplaceJobs(paymentService, orderService)...)
		if err := maintenance.Start(context.Background()); err != nil {
			log.Fatal("Failed to start maintenance scheduler", zap.Error(err))
		}
		defer func() {
			if err := maintenance.Stop(context.Background()); err != nil {
				log.Error("Error stopping maintenance scheduler", zap.Error(err))
			}
		}()
		log.Info("Maintenance scheduler started",
			zap.Duration("interval", cfg.Scheduler.Interval),
			zap.Duration("job_timeout", cfg.Scheduler.JobTimeout),
		)
	}

	var receipts handler.ReceiptRenderer
	if cfg.Receipt.Enabled {
		pdf := printing.NewChromedpRenderer(cfg.Receipt, log)
		defer func() {
			if err := pdf.Close(); err != nil {
				log.Error("Error closing receipt renderer", zap.Error(err))
			}
		}()
		receipts = printing.NewReceiptRenderer(pdf, cfg.Receipt.Locale, printing.PaperSize(cfg.Receipt.Paper))
	}

	// Initialize HTTP handlers
	handlers := handler.Handlers{
		Auth:          handler.NewAuthHandler(authService),
		Users:         handler.NewUserHandler(userService, authService),
		Products:      handler.NewProductHandler(productService),
		Categories:    handler.NewCategoryHandler(categoryService),
		Bulk:          handler.NewProductImportHandler(bulkService),
		Orders:        handler.NewOrderHandler(orderService, receipts),
		Payments:      handler.NewPaymentHandler(paymentService),
		Webhooks:      handler.NewPaymentCallbackHandler(paymentService),
		Vendors:       handler.NewVendorApplicationHandler(applicationService),
		Messaging:     handler.NewMessagingHandler(conversationService),
		Notifications: handler.NewNotificationHandler(notificationService),
		Outbox:        handler.NewOutboxHandler(outboxService),
		System: handler.NewSystemHandler(cfg.App.Name, version,
			[]handler.HealthCheck{databaseCheck(db)},
			[]handler.HealthCheck{databaseCheck(db), {Name: "redis", Check: stores.Ping}},
		),
	}

	// Set Gin mode based on environment
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Setup validation
	middleware.SetupValidator()

	// Initialize router with custom middleware
	engine := gin.New()

	// Configure trusted proxies
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Apply middleware stack in order:
	// 1. RequestID - Generate/propagate request ID
	// 2. Tracing, metrics and profiling labels (if telemetry is enabled)
	// 3. Recovery - Catch panics
	// 4. Logger - Log requests
	// 5. Security - Add security headers
	// 6. CORS - Handle cross-origin requests
	// 7. BodyLimit - Limit request body size
	// 8. RateLimit - Apply rate limiting (if enabled)
	engine.Use(middleware.RequestID())
	healthPaths := []string{"/health", "/ready", "/swagger"}
	engine.Use(middleware.TracingWithConfig(middleware.TracingConfig{
		ServiceName:      cfg.Telemetry.ServiceName,
		Enabled:          tracerProvider.IsEnabled(),
		SkipPathPrefixes: healthPaths,
	}))
	if tracerProvider.IsEnabled() {
		engine.Use(middleware.TracingAttributeInjector())
	}
	engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
		MeterProvider: meterProvider,
		ServiceName:   cfg.Telemetry.ServiceName,
		Enabled:       meterProvider.IsEnabled(),
	}))
	engine.Use(middleware.ProfilingWithConfig(middleware.ProfilingConfig{
		Enabled:          profiler.IsEnabled(),
		SkipPathPrefixes: healthPaths,
	}))
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.Timeout(cfg.HTTP.WriteTimeout))

	// Configure CORS from config
	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))

	// Body size limit; multipart uploads get a larger allowance
	engine.Use(middleware.BodyLimitWithUploads(cfg.HTTP.MaxBodySize, 20<<20))

	// Rate limiting (if enabled)
	if cfg.HTTP.RateLimitEnabled {
		engine.Use(middleware.RateLimit(newLimiter(stores, cache.RateLimitPrefix,
			cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
			zap.Bool("distributed", stores.Client != nil),
		)
	}

	jwtMiddleware := middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
		Logger:         log,
	})
	routeMiddleware := handler.RouteMiddleware{
		Auth:         jwtMiddleware,
		OptionalAuth: middleware.OptionalJWTAuthMiddleware(jwtService),
	}
	if cfg.HTTP.AuthRateLimitEnabled {
		routeMiddleware.AuthRateLimit = middleware.AuthRateLimit(newLimiter(stores, cache.AuthRateLimitPrefix,
			cfg.HTTP.AuthRateLimitRequests, cfg.HTTP.AuthRateLimitWindow))
	}

	// Health check endpoints (outside API versioning)
	engine.GET("/health", handlers.System.Health)
	engine.GET("/ready", handlers.System.Ready)

	// Swagger documentation endpoint
	engine.GET("/swagger/*any",
		middleware.SwaggerProtection(middleware.SwaggerConfig{
			Enabled:     cfg.Swagger.Enabled,
			RequireAuth: cfg.Swagger.RequireAuth,
			AllowedIPs:  cfg.Swagger.AllowedIPs,
		}, jwtMiddleware),
		ginSwagger.WrapHandler(swaggerFiles.Handler),
	)

	// Setup API routes using router
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	for _, group := range handlers.DomainGroups(routeMiddleware) {
		r.Register(group)
		log.Debug("Routes registered", zap.String("group", group.Name()), zap.Int("routes", len(group.Routes())))
	}
	r.Setup()

	// Create HTTP server with config
	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	// Start server in goroutine
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// newPaymentGateways returns the configured gateways. A gateway without
// credentials is left nil and the service reports it as unavailable.
func newPaymentGateways(cfg *config.Config, log *zap.Logger) (payment.BitcoinGateway, payment.MoneroWallet) {
	if cfg.Payment.UseMock {
		if cfg.App.Env == "production" {
			log.Fatal("Mock payment gateway must not be used in production")
		}
		mock := paymentinfra.NewMockGateway(cfg.Payment.BTCPay.WebhookSecret, cfg.App.SiteURL, log)
		log.Warn("Using mock payment gateway")
		return mock, mock
	}

	var bitcoin payment.BitcoinGateway
	if cfg.Payment.BTCPay.ServerURL != "" {
		adapter, err := paymentinfra.NewBTCPayAdapter(&paymentinfra.BTCPayConfig{
			ServerURL:     cfg.Payment.BTCPay.ServerURL,
			StoreID:       cfg.Payment.BTCPay.StoreID,
			APIKey:        cfg.Payment.BTCPay.APIKey,
			WebhookSecret: cfg.Payment.BTCPay.WebhookSecret,
		}, log)
		if err != nil {
			log.Error("BTCPay gateway disabled", zap.Error(err))
		} else {
			bitcoin = adapter
		}
	}

	var monero payment.MoneroWallet
	if cfg.Payment.Monero.RPCURL != "" {
		adapter, err := paymentinfra.NewMoneroAdapter(&paymentinfra.MoneroConfig{
			RPCURL:       cfg.Payment.Monero.RPCURL,
			RPCUser:      cfg.Payment.Monero.RPCUser,
			RPCPassword:  cfg.Payment.Monero.RPCPassword,
			AccountIndex: cfg.Payment.Monero.AccountIndex,
		}, log)
		if err != nil {
			log.Error("Monero wallet disabled", zap.Error(err))
		} else {
			monero = adapter
		}
	}

	log.Info("Payment gateways configured",
		zap.Bool("bitcoin", bitcoin != nil),
		zap.Bool("monero", monero != nil),
	)
	return bitcoin, monero
}

// newLimiter prefers the Redis limiter so limits hold across instances
func newLimiter(stores *cache.Stores, prefix string, limit int, window time.Duration) middleware.Limiter {
	if stores.Client != nil {
		return middleware.NewRedisRateLimiter(stores.Client, prefix, limit, window)
	}
	return middleware.NewRateLimiter(limit, window)
}

func databaseCheck(db *persistence.Database) handler.HealthCheck {
	return handler.HealthCheck{
		Name: "database",
		Check: db.Ping,
	}
}
