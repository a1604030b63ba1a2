package config

import (
	"log"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	configPathEnv    = "PAGEWATCHER_CONFIG"
	databaseDSNEnv   = "DATABASE_DSN"
	storageDriverEnv = "STORAGE_DRIVER"
	redisAddrEnv     = "REDIS_ADDR"
	telegramTokenEnv = "TELEGRAM_BOT_TOKEN"
	logLevelEnv      = "LOG_LEVEL"
	httpAddrEnv      = "HTTP_ADDR"
)

// Storage drivers understood by the app.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Storage       StorageConfig      `yaml:"storage"`
	Redis         RedisConfig        `yaml:"redis"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Fetcher       FetcherConfig      `yaml:"fetcher"`
	Extractor     ExtractorConfig    `yaml:"extractor"`
	Notifications NotificationConfig `yaml:"notifications"`
	HTTP          HTTPConfig         `yaml:"http"`
	Domains       []DomainConfig     `yaml:"domains"`
}

// LoggingConfig selects the slog level.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// StorageConfig picks the resource registry backend.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig enables cross-instance resource locks when Addr is set.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	LockTTL  time.Duration `yaml:"lockTtl"`
}

// SchedulerConfig defines when batch cycles run. CronExpression wins over Interval.
type SchedulerConfig struct {
	Interval       time.Duration `yaml:"interval"`
	CronExpression string        `yaml:"cronExpression"`
	MinDelay       time.Duration `yaml:"minDelay"`
	MaxDelay       time.Duration `yaml:"maxDelay"`
	RatePerSecond  float64       `yaml:"ratePerSecond"`
}

// Spec returns the cron spec for the batch driver.
func (s SchedulerConfig) Spec() string {
	if strings.TrimSpace(s.CronExpression) != "" {
		return s.CronExpression
	}
	return "@every " + s.Interval.String()
}

// FetcherConfig tunes outbound HTTP.
type FetcherConfig struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxBytes   int64         `yaml:"maxBytes"`
	UserAgents []string      `yaml:"userAgents"`
}

// ExtractorConfig bounds the comparison unit.
type ExtractorConfig struct {
	MaxLength int `yaml:"maxLength"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
	Timeout  time.Duration  `yaml:"timeout"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	APIURL   string `yaml:"apiUrl"`
}

// HTTPConfig exposes the registration API; empty Addr disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// DomainConfig is one row of the domain rule table.
type DomainConfig struct {
	Suffix   string `yaml:"suffix"`
	Selector string `yaml:"selector"`
	Mirror   string `yaml:"mirror"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			fileCfg, err := Parse(raw)
			if err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// Parse decodes a YAML document without applying defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv(storageDriverEnv); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv(redisAddrEnv); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Storage.Driver != "" {
		base.Storage.Driver = override.Storage.Driver
	}
	if override.Storage.DSN != "" {
		base.Storage.DSN = override.Storage.DSN
	}

	if override.Redis.Addr != "" {
		base.Redis.Addr = override.Redis.Addr
		base.Redis.Password = override.Redis.Password
		base.Redis.DB = override.Redis.DB
	}
	if override.Redis.LockTTL > 0 {
		base.Redis.LockTTL = override.Redis.LockTTL
	}

	if override.Scheduler.Interval > 0 {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.MinDelay > 0 {
		base.Scheduler.MinDelay = override.Scheduler.MinDelay
	}
	if override.Scheduler.MaxDelay > 0 {
		base.Scheduler.MaxDelay = override.Scheduler.MaxDelay
	}
	if override.Scheduler.RatePerSecond > 0 {
		base.Scheduler.RatePerSecond = override.Scheduler.RatePerSecond
	}

	if override.Fetcher.Timeout > 0 {
		base.Fetcher.Timeout = override.Fetcher.Timeout
	}
	if override.Fetcher.MaxBytes > 0 {
		base.Fetcher.MaxBytes = override.Fetcher.MaxBytes
	}
	if len(override.Fetcher.UserAgents) > 0 {
		base.Fetcher.UserAgents = override.Fetcher.UserAgents
	}

	if override.Extractor.MaxLength > 0 {
		base.Extractor.MaxLength = override.Extractor.MaxLength
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.APIURL != "" {
		base.Notifications.Telegram.APIURL = override.Notifications.Telegram.APIURL
	}
	if override.Notifications.Timeout > 0 {
		base.Notifications.Timeout = override.Notifications.Timeout
	}

	if override.HTTP.Addr != "" {
		base.HTTP.Addr = override.HTTP.Addr
	}

	if len(override.Domains) > 0 {
		base.Domains = override.Domains
	}

	return base
}

// Default returns the built-in configuration.
func Default() Config {
	return defaultConfig()
}

func defaultConfig() Config {
	return Config{
		Logging: LoggingConfig{Level: "info", Format: "text"},
		Storage: StorageConfig{Driver: DriverSQLite, DSN: "file:pagewatcher.db?_pragma=busy_timeout(5000)"},
		Redis:   RedisConfig{LockTTL: time.Minute},
		Scheduler: SchedulerConfig{
			Interval:      5 * time.Minute,
			MinDelay:      time.Second,
			MaxDelay:      3 * time.Second,
			RatePerSecond: 2,
		},
		Fetcher: FetcherConfig{
			Timeout:  15 * time.Second,
			MaxBytes: 5 << 20,
			UserAgents: []string{
				"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
				"Mozilla/5.0 (Macintosh; Intel Mac OS X 14_4) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Safari/605.1.15",
				"Mozilla/5.0 (X11; Linux x86_64; rv:125.0) Gecko/20100101 Firefox/125.0",
				"Mozilla/5.0 (iPhone; CPU iPhone OS 17_4 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.4 Mobile/15E148 Safari/604.1",
			},
		},
		Extractor: ExtractorConfig{MaxLength: 5000},
		Notifications: NotificationConfig{
			Telegram: TelegramConfig{APIURL: "https://api.telegram.org"},
			Timeout:  10 * time.Second,
		},
		Domains: []DomainConfig{
			{Suffix: "reddit.com", Mirror: "reddit"},
			{Suffix: "youtube.com", Mirror: "youtube"},
			{Suffix: "github.com", Mirror: "github"},
			{Suffix: "arxiv.org", Selector: "dl", Mirror: "arxiv"},
			{Suffix: "news.ycombinator.com", Selector: ".titleline"},
		},
	}
}
