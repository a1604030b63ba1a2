package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestParseAndMerge(t *testing.T) {
	t.Parallel()

	raw := []byte(`
logging:
  level: debug
storage:
  driver: postgres
  dsn: postgres://watch@localhost/watch
scheduler:
  interval: 2m
fetcher:
  timeout: 10s
  userAgents: ["agent-a"]
domains:
  - suffix: example.com
    selector: main
`)
	fileCfg, err := Parse(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	cfg := mergeConfig(defaultConfig(), fileCfg)
	if cfg.Logging.Level != "debug" {
		t.Fatalf("unexpected level %s", cfg.Logging.Level)
	}
	if cfg.Storage.Driver != DriverPostgres || cfg.Storage.DSN != "postgres://watch@localhost/watch" {
		t.Fatalf("unexpected storage %+v", cfg.Storage)
	}
	if cfg.Scheduler.Interval != 2*time.Minute {
		t.Fatalf("unexpected interval %s", cfg.Scheduler.Interval)
	}
	if cfg.Scheduler.MaxDelay != 3*time.Second {
		t.Fatalf("default max delay lost: %s", cfg.Scheduler.MaxDelay)
	}
	if cfg.Fetcher.Timeout != 10*time.Second || len(cfg.Fetcher.UserAgents) != 1 {
		t.Fatalf("unexpected fetcher %+v", cfg.Fetcher)
	}
	if len(cfg.Domains) != 1 || cfg.Domains[0].Selector != "main" {
		t.Fatalf("unexpected domains %+v", cfg.Domains)
	}
	if cfg.Extractor.MaxLength != 5000 {
		t.Fatalf("default max length lost: %d", cfg.Extractor.MaxLength)
	}
}

func TestSchedulerSpec(t *testing.T) {
	t.Parallel()

	s := SchedulerConfig{Interval: 5 * time.Minute}
	if got := s.Spec(); got != "@every 5m0s" {
		t.Fatalf("unexpected spec %s", got)
	}
	s.CronExpression = "*/10 * * * *"
	if got := s.Spec(); got != "*/10 * * * *" {
		t.Fatalf("cron expression must win, got %s", got)
	}
}

func TestLoadFromFileWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("storage:\n  driver: memory\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv(configPathEnv, path)
	t.Setenv(telegramTokenEnv, "token-123")
	t.Setenv(redisAddrEnv, "localhost:6379")

	cfg := Load()
	if cfg.Storage.Driver != DriverMemory {
		t.Fatalf("unexpected driver %s", cfg.Storage.Driver)
	}
	if cfg.Notifications.Telegram.BotToken != "token-123" {
		t.Fatalf("env token not applied")
	}
	if cfg.Redis.Addr != "localhost:6379" {
		t.Fatalf("env redis addr not applied")
	}
}
