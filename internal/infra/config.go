package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv      string
	Port        string
	DatabaseURL string

	// Worker trigger authorization (any one is sufficient).
	WorkerSecret        string
	WorkerOverrideToken string
	PushQueueSecret     string

	// Pipeline tuning.
	WorkerBatchSize    int
	WorkerTimeBudget   time.Duration
	WorkerThrottle     time.Duration
	ZombieTimeout      time.Duration
	WorkerPollInterval time.Duration
	MaxMediaBytes      int64

	// Model providers.
	GeminiAPIKey    string
	GeminiModel     string
	GeminiBaseURL   string
	OpenAIAPIKey    string
	OpenAIModel     string
	OpenAIBaseURL   string
	EmbeddingModel  string
	TranscribeModel string
	PromptVersion   string

	// External tooling.
	FFmpegPath  string
	FFprobePath string

	WebhookSecret  string
	WebhookTimeout time.Duration

	CORSAllowedOrigins []string

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:      getEnv("APP_ENV", "development"),
		Port:        getEnv("PORT", "8080"),
		DatabaseURL: os.Getenv("DATABASE_URL"),

		WorkerSecret:        os.Getenv("WORKER_SECRET"),
		WorkerOverrideToken: os.Getenv("WORKER_OVERRIDE_TOKEN"),
		PushQueueSecret:     os.Getenv("PUSH_QUEUE_SECRET"),

		WorkerBatchSize:    getEnvInt("WORKER_BATCH_SIZE", 5),
		WorkerTimeBudget:   getEnvDuration("WORKER_TIME_BUDGET", 4*time.Minute),
		WorkerThrottle:     getEnvDuration("WORKER_THROTTLE", 8*time.Second),
		ZombieTimeout:      getEnvDuration("WORKER_ZOMBIE_TIMEOUT", time.Hour),
		WorkerPollInterval: getEnvDuration("WORKER_POLL_INTERVAL", 30*time.Second),
		MaxMediaBytes:      int64(getEnvInt("MAX_MEDIA_MB", 100)) * 1024 * 1024,

		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		GeminiModel:     getEnv("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiBaseURL:   getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o"),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		EmbeddingModel:  getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		TranscribeModel: getEnv("TRANSCRIBE_MODEL", "whisper-1"),
		PromptVersion:   getEnv("PROMPT_VERSION", "v4"),

		FFmpegPath:  getEnv("FFMPEG_PATH", "ffmpeg"),
		FFprobePath: getEnv("FFPROBE_PATH", "ffprobe"),

		WebhookSecret:  os.Getenv("WEBHOOK_SECRET"),
		WebhookTimeout: getEnvDuration("WEBHOOK_TIMEOUT", 10*time.Second),

		CORSAllowedOrigins: splitCSV(os.Getenv("CORS_ALLOWED_ORIGINS")),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 300)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.WorkerSecret == "" && cfg.WorkerOverrideToken == "" && cfg.AppEnv != "development" {
		return nil, fmt.Errorf("WORKER_SECRET or WORKER_OVERRIDE_TOKEN is required outside development")
	}

	if cfg.WorkerBatchSize <= 0 {
		return nil, fmt.Errorf("WORKER_BATCH_SIZE must be positive")
	}

	return cfg, nil
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
