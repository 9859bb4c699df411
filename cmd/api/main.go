package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"adscope/internal/adapter/repo"
	"adscope/internal/analysis"
	"adscope/internal/embedding"
	"adscope/internal/http/handlers"
	httpapi "adscope/internal/http/httpapi"
	"adscope/internal/infra"
	"adscope/internal/media"
	"adscope/internal/webhook"
	"adscope/internal/worker"
)

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx := context.Background()
	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect database")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)
	jobs := repo.NewJobQueue(runner)

	app := handlers.NewApp(cfg, logger, buildWorker(cfg, logger, runner, jobs), jobs)
	router := httpapi.NewRouter(app)
	server := infra.NewHTTPServer(cfg, router)

	go func() {
		logger.Info().Msgf("API listening on :%s", cfg.Port)
		if err := server.Start(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTPIdleTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown server")
	}
	logger.Info().Msg("server stopped")
}

func buildWorker(cfg *infra.Config, logger infra.Logger, runner *infra.SQLRunner, jobs *repo.JobQueuePG) *worker.Runner {
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
		Queue:     jobs,
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
