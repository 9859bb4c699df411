package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adscope/internal/adapter/repo"
	"adscope/internal/analysis"
	"adscope/internal/domain"
	"adscope/internal/embedding"
	"adscope/internal/infra"
	"adscope/internal/media"
	"adscope/internal/webhook"
	"adscope/internal/worker"
)

// cmd/worker polls the queue on a fixed interval for deployments without an
// external scheduler hitting POST /worker.
func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	r := buildWorker(cfg, logger, runner)

	logger.Info().
		Dur("poll_interval", cfg.WorkerPollInterval).
		Int("batch_size", cfg.WorkerBatchSize).
		Msg("worker: started")

	for {
		summary, err := r.RunOnce(ctx)
		switch {
		case err == nil:
			if summary.ProcessedCount > 0 {
				logger.Info().
					Int("processed", summary.ProcessedCount).
					Int("reclaimed", summary.Reclaimed).
					Msg("worker: invocation complete")
				// More work may be waiting; go straight back around.
				continue
			}
		case errors.Is(err, domain.ErrThrottled):
			logger.Debug().Msg("worker: lease held elsewhere, backing off")
		case errors.Is(err, context.Canceled):
			logger.Info().Msg("worker: stopped")
			return
		default:
			logger.Error().Err(err).Msg("worker: invocation failed")
		}

		select {
		case <-ctx.Done():
			logger.Info().Msg("worker: stopped")
			return
		case <-time.After(cfg.WorkerPollInterval):
		}
	}
}

func buildWorker(cfg *infra.Config, logger infra.Logger, runner *infra.SQLRunner) *worker.Runner {
	httpClient := &http.Client{Timeout: 120 * time.Second}

	gateway := analysis.NewGateway(
		analysis.NewGeminiProvider(analysis.GeminiOptions{
			APIKey:     cfg.GeminiAPIKey,
			BaseURL:    cfg.GeminiBaseURL,
			Model:      cfg.GeminiModel,
			HTTPClient: httpClient,
			Logger:     &logger,
		}),
		analysis.NewOpenAIProvider(analysis.OpenAIOptions{
			APIKey:     cfg.OpenAIAPIKey,
			Model:      cfg.OpenAIModel,
			BaseURL:    cfg.OpenAIBaseURL,
			HTTPClient: httpClient,
		}),
		repo.NewAnalysisCache(runner),
		logger,
	)

	return worker.NewRunner(worker.Options{
		Queue:     repo.NewJobQueue(runner),
		Lease:     repo.NewLeaseRepo(runner),
		Fetcher:   media.NewFetcher(&http.Client{Timeout: 60 * time.Second}, cfg.MaxMediaBytes),
		Extractor: media.NewExtractor(cfg.FFmpegPath, cfg.FFprobePath, logger),
		Gateway:   gateway,
		Transcriber: analysis.NewTranscriber(analysis.TranscriberOptions{
			APIKey:  cfg.OpenAIAPIKey,
			Model:   cfg.TranscribeModel,
			BaseURL: cfg.OpenAIBaseURL,
		}),
		Embedder: embedding.NewClient(embedding.Options{
			APIKey: cfg.OpenAIAPIKey,
			Model:  cfg.EmbeddingModel,
			Logger: &logger,
		}),
		Webhooks: webhook.NewDispatcher(webhook.DispatcherOptions{
			Repo:    repo.NewWebhookRepo(runner),
			Timeout: cfg.WebhookTimeout,
			Logger:  logger,
		}),
		Usage: repo.NewUsageRepo(runner),

		BatchSize:     cfg.WorkerBatchSize,
		TimeBudget:    cfg.WorkerTimeBudget,
		Throttle:      cfg.WorkerThrottle,
		ZombieTimeout: cfg.ZombieTimeout,
		PromptVersion: cfg.PromptVersion,
		Logger:        logger,
	})
}
