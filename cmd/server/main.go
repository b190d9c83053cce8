package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/docuflow/docuflow/internal/api"
	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/ocr/tesseract"
	"github.com/docuflow/docuflow/internal/pipeline"
	"github.com/docuflow/docuflow/internal/status"
)

func main() {
	logger.Init("docuflow")

	cfg, err := config.Load()
	if err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load configuration")
	}

	weights := status.DefaultStageWeights()
	if configured, err := cfg.LoadStageWeights(); err != nil {
		logger.Logger.Fatal().Err(err).Msg("Failed to load stage weights")
	} else if configured != nil {
		stages := make([]status.StageWeight, len(configured))
		for i, s := range configured {
			stages[i] = status.StageWeight{Stage: s.Stage, Weight: s.Weight}
		}
		weights, err = status.NewStageWeights(stages)
		if err != nil {
			logger.Logger.Fatal().Err(err).Msg("Invalid stage weights")
		}
	}

	store := status.NewStore()
	tracker := status.NewTracker(store, weights,
		status.WithDefaultTimeout(cfg.DefaultJobTimeout),
		status.WithHistoryCapacity(cfg.HistoryCapacity),
	)

	monitor := status.NewTimeoutMonitor(tracker, cfg.TimeoutCheckInterval)
	monitor.Start()

	results := pipeline.NewResultStore()
	runner := pipeline.NewRunner(tracker, results,
		pipeline.NewOCRStage(tesseract.NewEngine()),
		pipeline.NewAssembleStage(),
	)
	pool := pipeline.NewPool(runner, cfg.WorkerCount, cfg.QueueSize)
	pool.Start()

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	if cfg.RetentionAge > 0 {
		go runRetentionSweep(sweepCtx, tracker, results, cfg.RetentionAge)
	}

	server := api.NewServer(tracker, pool, results, cfg.UploadDir, cfg.Port)
	go func() {
		if err := server.Start(); err != nil {
			logger.Logger.Fatal().Err(err).Msg("API server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Logger.Info().Msg("Shutting down gracefully")
	stopSweep()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error().Err(err).Msg("HTTP shutdown failed")
	}

	pool.Stop()
	monitor.Stop()
	logger.Logger.Info().Msg("Server stopped")
}

// runRetentionSweep periodically evicts terminal jobs and their documents
// once they pass the configured retention age.
func runRetentionSweep(ctx context.Context, tracker *status.Tracker, results *pipeline.ResultStore, age time.Duration) {
	ticker := time.NewTicker(age / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, jobID := range tracker.Sweep(age) {
				results.Delete(jobID)
			}
		}
	}
}
