// main package for the narration-service
package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/narration-service/internal/config"
	"github.com/book-expert/narration-service/internal/docstore"
	"github.com/book-expert/narration-service/internal/metadata"
	"github.com/book-expert/narration-service/internal/music"
	"github.com/book-expert/narration-service/internal/pipeline"
	"github.com/book-expert/narration-service/internal/server"
	"github.com/book-expert/narration-service/internal/storage"
	"github.com/book-expert/narration-service/internal/synth"
	"github.com/book-expert/narration-service/internal/urlnorm"
	"github.com/book-expert/narration-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const configPathEnv = "NARRATION_SERVICE_CONFIG"

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "narration-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

// loadConfig prefers a local file path from the environment and falls back to
// the central configurator.
func loadConfig(log *logger.Logger) (*config.Config, error) {
	if path := os.Getenv(configPathEnv); path != "" {
		cfg, err := config.LoadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load configuration file: %w", err)
		}

		return cfg, nil
	}

	cfg, err := config.Load(log)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	return cfg, nil
}

func buildPipeline(
	cfg *config.Config,
	jetstreamContext nats.JetStreamContext,
	log *logger.Logger,
) (*pipeline.Runner, error) {
	store, err := storage.New(
		jetstreamContext, cfg.NATS.AudioObjectStoreBucket, cfg.Storage.PublicBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	documents, err := docstore.New(jetstreamContext, cfg.NATS.DocumentKVBucket)
	if err != nil {
		return nil, fmt.Errorf("failed to create document store: %w", err)
	}

	extractor := metadata.NewClient(
		cfg.Metadata.BaseURL, time.Duration(cfg.Metadata.TimeoutSeconds)*time.Second)
	synthesizer := synth.NewClient(
		cfg.TTS.BaseURL, time.Duration(cfg.TTS.TimeoutSeconds)*time.Second)

	catalog := music.NewCatalog(
		cfg.Music.BaseURL, time.Duration(cfg.Music.TimeoutSeconds)*time.Second)

	mode := music.BestMatch

	var rng *rand.Rand

	if cfg.Music.Randomized {
		mode = music.Randomized
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	selector := music.NewSelector(catalog, mode, rng)

	narrationPipeline := pipeline.New(
		extractor,
		synthesizer,
		selector,
		store,
		store.Bucket(),
		urlnorm.NewNormalizer(store, log),
		documents,
		log,
		cfg.Audio.Workers,
	)

	return pipeline.NewRunner(narrationPipeline), nil
}

func run() error {
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	cfg, err := loadConfig(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return err
	}

	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	return serve(cfg, finalLog)
}

func serve(cfg *config.Config, log *logger.Logger) error {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}
	defer natsConnection.Close()

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	runner, err := buildPipeline(cfg, jetstreamContext, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(
		context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpServer := server.New(runner, log)

	serverErrs := make(chan error, 1)

	go func() {
		serveErr := httpServer.ListenAndServe(cfg.HTTP.ListenAddress)
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			serverErrs <- serveErr
		}
	}()

	natsWorker := worker.NewNatsWorker(
		natsConnection, cfg.NATS.NarrationSubject, runner, 0, log)

	log.System("Narration service initialized. Subject: %s, HTTP: %s",
		cfg.NATS.NarrationSubject, cfg.HTTP.ListenAddress)

	workerErrs := make(chan error, 1)

	go func() {
		workerErrs <- natsWorker.Run(ctx)
	}()

	select {
	case err = <-serverErrs:
		return fmt.Errorf("HTTP server failed: %w", err)
	case err = <-workerErrs:
		if err != nil {
			return fmt.Errorf("worker failed: %w", err)
		}

		return nil
	}
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
