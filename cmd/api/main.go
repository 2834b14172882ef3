// Entry point for REST API
package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"attendance.service/internal/api"
	"attendance.service/internal/api/handler"
	"attendance.service/internal/api/middleware"
	"attendance.service/internal/clock"
	"attendance.service/internal/config"
	"attendance.service/internal/core"
	"attendance.service/internal/ports/directory"
	"attendance.service/internal/ports/messaging"
	"attendance.service/internal/ports/repository"
	"attendance.service/pkg/aws"
	"attendance.service/pkg/database"
	"attendance.service/pkg/logger"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}

	// Configure structured logging
	logger.Setup("attendance-api", cfg.IsLocalDev)

	// Configure OpenTelemetry Tracing
	shutdownTracer, err := telemetry.InitTracer("attendance-api", cfg.OTLPEndpoint, cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	ctx := context.Background()

	resolver, err := clock.Load(cfg.OrgTimezone)
	if errors.Is(err, clock.ErrZoneFallback) {
		log.Warn().Err(err).Str("timezone", cfg.OrgTimezone).Msg("Organization time zone not found, using UTC")
	}

	// Storage
	var repo repository.Repository
	switch cfg.StoreDriver {
	case config.StoreDriverMemory:
		log.Warn().Msg("Using in-memory store; data is lost on restart")
		repo = repository.NewInMemoryRepository()
	default:
		var db *sql.DB
		db, err = database.NewConnection(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening database")
		}
		defer db.Close()
		log.Info().Msg("Successfully connected to the database.")
		repo = repository.NewTimerRepository(db)
	}

	// Messaging
	var publisher messaging.Publisher
	if cfg.EventsSQSQueueURL == "" && cfg.OvertimeSQSQueueURL == "" {
		publisher = messaging.NewProducer(messaging.LogSender{}, "", "")
	} else {
		awsCfg, err := aws.NewAWSConfig(ctx, cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("unable to load SDK config")
		}
		publisher = messaging.NewSQSProducer(sqs.NewFromConfig(awsCfg), cfg.EventsSQSQueueURL, cfg.OvertimeSQSQueueURL)
	}

	// Initialize dependencies
	dir := directory.NewHTTPClient(cfg.DirectoryAPIURL)
	aggregator := core.NewAggregationEngine(repo, resolver, dir)
	h := &handler.Handler{
		Timer:     core.NewTimerService(repo, resolver, aggregator, publisher),
		Reports:   aggregator,
		Overtime:  core.NewOvertimeCalculator(repo, resolver, dir),
		Publisher: publisher,
		Clock:     resolver,
	}

	// Setup router and server
	router := api.NewRouter(h, middleware.NewAuth(middleware.AuthConfig{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}))

	// Middleware to inject logger with trace ID
	loggerMiddleware := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := logger.EnrichContextWithLogger(r.Context())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	// Wrap the router with OpenTelemetry middleware to create spans for each request
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           otelhttp.NewHandler(loggerMiddleware(router), "api"),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.ServerPort).Str("timezone", resolver.Location().String()).Msg("API Service starting")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen")
		}
	}()

	// Wait for interrupt signal to gracefully shut down the server.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exiting")
}
