// Entry point for the overtime sync worker
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"attendance.service/internal/clock"
	"attendance.service/internal/config"
	"attendance.service/internal/core"
	"attendance.service/internal/ports/directory"
	"attendance.service/internal/ports/repository"
	"attendance.service/internal/worker"
	"attendance.service/internal/worker/overtime"
	"attendance.service/pkg/aws"
	"attendance.service/pkg/database"
	"attendance.service/pkg/logger"
	"attendance.service/pkg/telemetry"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/rs/zerolog/log"
)

func main() {
	// Load config
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Could not load configuration")
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		log.Fatal().Str("driver", cfg.StoreDriver).Msg("The overtime worker needs the postgres store")
	}

	logger.Setup("overtime-worker", cfg.IsLocalDev)

	shutdownTracer, err := telemetry.InitTracer("overtime-worker", cfg.OTLPEndpoint, cfg.IsLocalDev)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to init tracer")
	}
	defer func() {
		_ = shutdownTracer(context.Background())
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	resolver, err := clock.Load(cfg.OrgTimezone)
	if errors.Is(err, clock.ErrZoneFallback) {
		log.Warn().Err(err).Str("timezone", cfg.OrgTimezone).Msg("Organization time zone not found, using UTC")
	}

	// DB connection
	db, err := database.NewConnection(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error opening database")
	}
	defer db.Close()
	log.Info().Msg("Successfully connected to the database.")

	// AWS SDK Config
	awsCfg, err := aws.NewAWSConfig(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("unable to load SDK config")
	}

	// Initialize Dependencies
	repo := repository.NewTimerRepository(db)
	calculator := core.NewOvertimeCalculator(repo, resolver, directory.NewHTTPClient(cfg.DirectoryAPIURL))
	processor := overtime.NewProcessor(calculator, resolver)

	app := worker.NewWorker(sqs.NewFromConfig(awsCfg), cfg.OvertimeSQSQueueURL, processor)
	app.Concurrency = cfg.WorkerConcurrency

	done := make(chan struct{})
	go func() {
		app.Start(ctx)
		close(done)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	<-quit
	log.Info().Msg("Shutting down worker...")

	// Cancel the context to signal the worker to stop polling.
	cancel()
	<-done

	log.Info().Msg("Worker exited gracefully")
}
