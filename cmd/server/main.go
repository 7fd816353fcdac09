package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	agentapp "github.com/storeops/backend/internal/application/agent"
	"github.com/storeops/backend/internal/application/agent/actions"
	"github.com/storeops/backend/internal/application/agent/agents"
	integrationapp "github.com/storeops/backend/internal/application/integration"
	agentdomain "github.com/storeops/backend/internal/domain/agent"
	"github.com/storeops/backend/internal/domain/integration"
	"github.com/storeops/backend/internal/infrastructure/config"
	"github.com/storeops/backend/internal/infrastructure/event"
	"github.com/storeops/backend/internal/infrastructure/llm"
	"github.com/storeops/backend/internal/infrastructure/lock"
	"github.com/storeops/backend/internal/infrastructure/logger"
	"github.com/storeops/backend/internal/infrastructure/marketplace"
	"github.com/storeops/backend/internal/infrastructure/notify"
	"github.com/storeops/backend/internal/infrastructure/persistence"
	"github.com/storeops/backend/internal/infrastructure/pricesearch"
	"github.com/storeops/backend/internal/infrastructure/scheduler"
	"github.com/storeops/backend/internal/infrastructure/telemetry"
	"github.com/storeops/backend/internal/interfaces/http/handler"
	"github.com/storeops/backend/internal/interfaces/http/middleware"
	"github.com/storeops/backend/internal/interfaces/http/router"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = logger.Sync(log)
	}()

	log.Info("Starting StoreOps Backend",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	// Tracing
	var tracerProvider *telemetry.TracerProvider
	if cfg.Telemetry.Enabled {
		tracerProvider, err = telemetry.NewTracerProvider(context.Background(), telemetry.Config{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			SamplingRatio:     cfg.Telemetry.SamplingRatio,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize tracer provider", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// Metrics
	var meterProvider *telemetry.MeterProvider
	if cfg.Telemetry.Enabled {
		meterProvider, err = telemetry.NewMeterProvider(context.Background(), telemetry.MetricsConfig{
			Enabled:           cfg.Telemetry.Enabled,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize meter provider", zap.Error(err))
		}
		defer func() {
			if err := meterProvider.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down meter provider", zap.Error(err))
			}
		}()
	}

	// Log export: tee every zap entry into the OTLP collector as well
	if cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled {
		logsProvider, err := telemetry.NewLoggerProvider(context.Background(), telemetry.LogsConfig{
			Enabled:           true,
			CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
			ServiceName:       cfg.Telemetry.ServiceName,
			Insecure:          cfg.Telemetry.Insecure,
		}, log)
		if err != nil {
			log.Fatal("Failed to initialize logger provider", zap.Error(err))
		}
		defer func() {
			if err := logsProvider.Shutdown(context.Background()); err != nil {
				log.Error("Error shutting down logger provider", zap.Error(err))
			}
		}()
		log = logsProvider.TeeInto(log, logger.ParseLevel(cfg.Log.Level))
	}

	// Create GORM logger backed by zap
	gormLogLevel := logger.MapGormLogLevel(cfg.Log.Level)
	gormLog := logger.NewGormLogger(log, gormLogLevel)

	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	// Database tracing
	if cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled {
		dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
			Enabled:         true,
			LogFullSQL:      cfg.Telemetry.DBLogFullSQL,
			SlowQueryThresh: cfg.Telemetry.DBSlowQueryThresh,
		}, log)
		if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
			log.Warn("Failed to register database tracing", zap.Error(err))
		}
	}

	// Redis backs the run locks and the notification queue
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer func() {
		if err := redisClient.Close(); err != nil {
			log.Error("Error closing redis client", zap.Error(err))
		}
	}()

	// Repositories
	storeAgentRepo := persistence.NewGormStoreAgentRepository(db.DB)
	agentRunRepo := persistence.NewGormAgentRunRepository(db.DB)
	agentActionRepo := persistence.NewGormAgentActionRepository(db.DB)
	productRepo := persistence.NewGormProductRepository(db.DB)
	customerRepo := persistence.NewGormCustomerRepository(db.DB)
	listingRepo := persistence.NewGormListingRepository(db.DB)
	importedOrderRepo := persistence.NewGormImportedOrderRepository(db.DB)

	// Marketplace connectors
	connectors := marketplace.NewRegistry()
	if cfg.Marketplaces.Ebay.Enabled {
		ebayBase := marketplace.EbayProductionAPIURL
		if cfg.Marketplaces.Ebay.Sandbox {
			ebayBase = marketplace.EbaySandboxAPIURL
		}
		ebayConnector, err := marketplace.NewEbayConnector(&marketplace.EbayConfig{
			OAuthToken: cfg.Marketplaces.Ebay.Token,
			APIBaseURL: ebayBase,
		})
		if err != nil {
			log.Fatal("Failed to configure ebay connector", zap.Error(err))
		}
		connectors.Register(ebayConnector)
		log.Info("Marketplace connector registered", zap.String("platform", "ebay"))
	}
	if cfg.Marketplaces.Shopify.Enabled {
		shopifyConnector, err := marketplace.NewShopifyConnector(&marketplace.ShopifyConfig{
			ShopDomain:  cfg.Marketplaces.Shopify.ShopDomain,
			AccessToken: cfg.Marketplaces.Shopify.Token,
		})
		if err != nil {
			log.Fatal("Failed to configure shopify connector", zap.Error(err))
		}
		connectors.Register(shopifyConnector)
		log.Info("Marketplace connector registered", zap.String("platform", "shopify"))
	}

	// Optional integrations degrade to disabled agents, not boot failures
	var priceIntel integration.PriceIntelligence
	if cfg.PriceSearch.BaseURL != "" {
		priceClient, err := pricesearch.NewClient(pricesearch.Config{
			BaseURL:        cfg.PriceSearch.BaseURL,
			APIKey:         cfg.PriceSearch.APIKey,
			TimeoutSeconds: cfg.PriceSearch.TimeoutSeconds,
		})
		if err != nil {
			log.Fatal("Failed to configure price search client", zap.Error(err))
		}
		priceIntel = priceClient
	} else {
		log.Warn("Price search not configured, pricing agents will not run")
	}

	var texter integration.TextGenerator
	if cfg.LLM.Enabled {
		generator, err := llm.NewOpenAIGenerator(llm.Config{
			APIKey:         cfg.LLM.APIKey,
			Model:          cfg.LLM.Model,
			BaseURL:        cfg.LLM.BaseURL,
			TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		})
		if err != nil {
			log.Fatal("Failed to configure text generator", zap.Error(err))
		}
		texter = generator
	}

	notifier := notify.NewRedisDispatcher(redisClient, cfg.Notify.QueueKey)
	transformer := integrationapp.NewCatalogListingTransformer(productRepo)

	// Agent engine
	registry := agentapp.NewRegistry()
	proposer := agentapp.NewProposer(registry, agentActionRepo, log)

	for _, impl := range []agentdomain.Agent{
		agents.NewChannelSyncAgent(listingRepo, productRepo, connectors, importedOrderRepo, proposer, log),
		agents.NewListingAgent(productRepo, listingRepo, connectors, transformer, proposer, log),
		agents.NewPricingAgent(productRepo, priceIntel, proposer, log),
		agents.NewRepricingAgent(listingRepo, productRepo, connectors, priceIntel, proposer, log),
		agents.NewResearcherAgent(productRepo, customerRepo, proposer, log),
		agents.NewSalesIntelligenceAgent(productRepo, texter, proposer, log),
		agents.NewDeadStockAgent(productRepo, proposer, log),
	} {
		if err := registry.RegisterAgent(impl); err != nil {
			log.Fatal("Failed to register agent", zap.Error(err))
		}
	}

	for _, impl := range []agentdomain.ActionHandler{
		actions.NewPriceUpdateHandler(productRepo, log),
		actions.NewMarkdownHandler(productRepo, log),
		actions.NewCreateListingHandler(listingRepo, connectors, log),
		actions.NewUpdateListingHandler(listingRepo, connectors, log),
		actions.NewRepriceHandler(listingRepo, connectors, log),
		actions.NewSyncInventoryHandler(listingRepo, connectors, log),
		actions.NewImportOrderHandler(productRepo, importedOrderRepo, log),
		actions.NewNotificationHandler(notifier, log),
	} {
		if err := registry.RegisterAction(impl); err != nil {
			log.Fatal("Failed to register action handler", zap.Error(err))
		}
	}

	log.Info("Agent registry populated", zap.Int("agents", len(registry.ListAgents())))

	// Event bus wiring: run lifecycle events fan out to event-triggered agents
	eventBus := event.NewInMemoryEventBus(log)
	if err := eventBus.Start(context.Background()); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()

	runner := agentapp.NewRunner(registry, storeAgentRepo, agentRunRepo, eventBus, log)
	executor := agentapp.NewExecutor(registry, agentActionRepo, cfg.Agents.ActionTimeout, log)
	actionDispatcher := agentapp.NewDispatcher(agentActionRepo, executor, cfg.Agents.DispatchBatchSize, log)
	settingsService := agentapp.NewSettingsService(registry, storeAgentRepo, agentRunRepo, agentActionRepo, runner, executor, log)

	locker := lock.NewRedisLocker(redisClient)
	orchestrator := agentapp.NewOrchestrator(registry, storeAgentRepo, runner, locker, agentapp.OrchestratorConfig{
		Workers:    cfg.Agents.MaxConcurrentRuns,
		RunTimeout: cfg.Agents.RunTimeout,
		LockTTL:    cfg.Agents.LockTTL,
	}, log)
	reconciler := agentapp.NewReconciler(agentRunRepo, cfg.Agents.StaleRunHorizon, log)

	domainEventHandler := agentapp.NewDomainEventHandler(orchestrator, log)
	eventBus.Subscribe(domainEventHandler, domainEventHandler.EventTypes()...)

	// Scheduler: ticks evaluate due agents, dispatch drains executable
	// actions, sweeps close abandoned runs
	var engineMetrics *telemetry.EngineMetrics
	if meterProvider != nil && meterProvider.IsEnabled() {
		engineMetrics, err = telemetry.NewEngineMetrics(meterProvider.Meter("agent.engine"))
		if err != nil {
			log.Warn("Failed to create agent engine metrics", zap.Error(err))
		}
	}
	ticker := scheduler.NewAgentTicker(scheduler.AgentTickConfig{
		TickInterval:     cfg.Agents.TickInterval,
		SweepInterval:    cfg.Agents.SweepInterval,
		DispatchInterval: cfg.Agents.DispatchInterval,
	}, orchestrator, actionDispatcher, reconciler, engineMetrics, log)
	if err := ticker.Start(context.Background()); err != nil {
		log.Fatal("Failed to start agent ticker", zap.Error(err))
	}
	defer func() {
		if err := ticker.Stop(context.Background()); err != nil {
			log.Error("Error stopping agent ticker", zap.Error(err))
		}
	}()
	log.Info("Agent ticker started",
		zap.Duration("tick_interval", cfg.Agents.TickInterval),
		zap.Duration("dispatch_interval", cfg.Agents.DispatchInterval),
		zap.Duration("sweep_interval", cfg.Agents.SweepInterval),
	)

	// HTTP handlers
	agentHandler := handler.NewAgentHandler(settingsService)
	systemHandler := handler.NewSystemHandler()

	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	middleware.SetupValidator()

	engine := gin.New()

	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.OptionalTenantMiddleware())
	if cfg.Telemetry.Enabled {
		engine.Use(middleware.Tracing())
		engine.Use(middleware.SpanErrorMarker())
		engine.Use(middleware.TracingAttributeInjector())
		engine.Use(middleware.HTTPMetrics(middleware.HTTPMetricsConfig{
			MeterProvider: meterProvider,
			ServiceName:   cfg.Telemetry.ServiceName,
			Enabled:       true,
		}))
	}

	corsConfig := middleware.CORSConfig{
		AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
		AllowMethods:     cfg.HTTP.CORSAllowMethods,
		AllowHeaders:     cfg.HTTP.CORSAllowHeaders,
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Int("requests", cfg.HTTP.RateLimitRequests),
			zap.Duration("window", cfg.HTTP.RateLimitWindow),
		)
	}

	engine.GET("/health", healthHandler(db, log))

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(agentHandler)
	r.Register(systemHandler)
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
		log.Fatal("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// healthHandler reports process and database health
func healthHandler(db *persistence.Database, _ *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		reqLog := logger.GetGinLogger(c)
		if err := db.Ping(); err != nil {
			reqLog.Warn("Health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"time":     time.Now().Format(time.RFC3339),
				"database": "error",
			})
			return
		}
		payload := gin.H{
			"status":   "healthy",
			"time":     time.Now().Format(time.RFC3339),
			"database": "ok",
		}
		if stats, err := db.Stats(); err == nil {
			payload["db_pool"] = gin.H{
				"open":   stats.OpenConnections,
				"in_use": stats.InUse,
				"idle":   stats.Idle,
			}
		}
		c.JSON(http.StatusOK, payload)
	}
}
