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

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/clinicflow/internal/adapters/cache"
	"github.com/zatekoja/clinicflow/internal/adapters/database"
	"github.com/zatekoja/clinicflow/internal/adapters/events"
	"github.com/zatekoja/clinicflow/internal/api/handlers"
	"github.com/zatekoja/clinicflow/internal/api/middleware"
	"github.com/zatekoja/clinicflow/internal/api/routes"
	"github.com/zatekoja/clinicflow/internal/application/services"
	"github.com/zatekoja/clinicflow/internal/domain/providers"
	"github.com/zatekoja/clinicflow/internal/domain/repositories"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/clinicflow/internal/infrastructure/clients/redis"
	"github.com/zatekoja/clinicflow/internal/infrastructure/observability"
	"github.com/zatekoja/clinicflow/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Env)

	if cfg.Auth.JWTSecret == "" {
		log.Fatal().Msg("AUTH_JWT_SECRET must be set")
	}

	loc, err := cfg.Clinic.Location()
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid clinic timezone")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL.ServiceName, cfg.OTEL.ServiceVersion, cfg.OTEL.Endpoint)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			observability.EnableLogExport()
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	dbs, err := postgres.NewMultiDBClientFromConfig(&cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize PostgreSQL client")
	}
	defer dbs.Close()
	pgClient := dbs.Primary()

	if err := database.Migrate(ctx, pgClient); err != nil {
		log.Fatal().Err(err).Msg("Failed to apply schema")
	}

	// Redis is optional; without it reports are not cached and events stay in process.
	var cacheProvider providers.CacheProvider
	var eventBus providers.EventBus
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, continuing without report cache")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient)
			eventBus = events.NewRedisEventBus(redisClient)
		}
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
		log.Info().Msg("Using in-process event bus")
	}

	// Adapters
	attentions := database.NewAttentionAdapter(pgClient)
	records := database.NewConsultationRecordAdapter(pgClient)
	payments := database.NewPaymentAdapter(pgClient)
	directory := database.NewDirectoryAdapter(pgClient)
	transactor := database.NewTransactor(pgClient)

	// Reports read from the replica when one is configured.
	reportAttentions := database.NewAttentionAdapter(dbs.Read())
	reportRecords := database.NewConsultationRecordAdapter(dbs.Read())
	reportPayments := database.NewPaymentAdapter(dbs.Read())

	// Enqueue checks is_active against the primary; identity lookups may lag by the cache TTL.
	var doctorLookup repositories.DoctorDirectory = directory
	if cacheProvider != nil {
		doctorLookup = database.NewCachedDoctorDirectory(directory, cacheProvider)
	}

	rules := services.Rules{EditWindow: cfg.Clinic.EditWindow, MatchWindow: cfg.Clinic.MatchWindow}

	// Services
	paymentService := services.NewPaymentService(payments, records, directory, eventBus)

	queueService := services.NewQueueService(attentions, records, payments, directory, directory, transactor, paymentService, eventBus, rules)
	queueService.SetMetrics(metrics)

	recordService := services.NewRecordService(records, attentions, directory, transactor, eventBus, rules)
	recordService.SetMetrics(metrics)

	reconciliationService := services.NewReconciliationService(reportAttentions, reportPayments, reportRecords, rules)
	reconciliationService.SetMetrics(metrics)

	reportService := services.NewReportService(reconciliationService, doctorLookup, cacheProvider, cfg.Report.CacheTTL, loc)
	reportService.SetMetrics(metrics)

	var cacheInvalidationService *services.CacheInvalidationService
	if cacheProvider != nil {
		cacheInvalidationService = services.NewCacheInvalidationService(cacheProvider, eventBus)
		if err := cacheInvalidationService.Start(); err != nil {
			log.Warn().Err(err).Msg("Failed to start cache invalidation service, disabling report cache")
			cacheInvalidationService = nil
			reportService = services.NewReportService(reconciliationService, doctorLookup, nil, 0, loc)
			reportService.SetMetrics(metrics)
		}
	}

	// Handlers
	router := routes.NewRouter(
		handlers.NewQueueHandler(queueService),
		handlers.NewRecordHandler(recordService),
		handlers.NewPaymentHandler(paymentService),
		handlers.NewReportHandler(reportService),
		handlers.NewPatientHandler(directory),
		handlers.NewSSEHandler(eventBus, queueService),
		middleware.NewAuthenticator(cfg.Auth.JWTSecret, cfg.Auth.Issuer, doctorLookup),
		cfg.Server.AllowedOrigins,
		metrics,
	)
	router.SetReadiness(dbs.HealthCheck)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// No WriteTimeout: the waiting room stream holds its response open.
		IdleTimeout: 60 * time.Second,
	}

	// Closing the bus ends every open waiting room stream, which Shutdown
	// would otherwise wait on until its deadline.
	server.RegisterOnShutdown(func() {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	})

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	if cacheInvalidationService != nil {
		cacheInvalidationService.Stop()
	}

	log.Info().Msg("Server stopped")
}
