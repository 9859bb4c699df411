package infra

import (
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("APP_ENV", "development")
	t.Setenv("WORKER_BATCH_SIZE", "")
	t.Setenv("WORKER_TIME_BUDGET", "")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerBatchSize != 5 {
		t.Fatalf("WorkerBatchSize = %d, want 5", cfg.WorkerBatchSize)
	}
	if cfg.WorkerTimeBudget != 4*time.Minute {
		t.Fatalf("WorkerTimeBudget = %s, want 4m", cfg.WorkerTimeBudget)
	}
	if cfg.ZombieTimeout != time.Hour {
		t.Fatalf("ZombieTimeout = %s, want 1h", cfg.ZombieTimeout)
	}
	if cfg.PromptVersion != "v4" {
		t.Fatalf("PromptVersion = %q, want v4", cfg.PromptVersion)
	}
}

func TestLoadConfigRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted empty DATABASE_URL")
	}
}

func TestLoadConfigRequiresWorkerSecretInProduction(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("APP_ENV", "production")
	t.Setenv("WORKER_SECRET", "")
	t.Setenv("WORKER_OVERRIDE_TOKEN", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("LoadConfig accepted missing worker secret in production")
	}
}

func TestLoadConfigParsesDurations(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://example")
	t.Setenv("APP_ENV", "development")
	t.Setenv("WORKER_TIME_BUDGET", "90s")
	t.Setenv("WORKER_THROTTLE", "2s")
	t.Setenv("WORKER_ZOMBIE_TIMEOUT", "30m")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.WorkerTimeBudget != 90*time.Second {
		t.Fatalf("WorkerTimeBudget = %s, want 90s", cfg.WorkerTimeBudget)
	}
	if cfg.WorkerThrottle != 2*time.Second {
		t.Fatalf("WorkerThrottle = %s, want 2s", cfg.WorkerThrottle)
	}
	if cfg.ZombieTimeout != 30*time.Minute {
		t.Fatalf("ZombieTimeout = %s, want 30m", cfg.ZombieTimeout)
	}
}
