package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	App      App      `yaml:"app"`
	Log      Log      `yaml:"log"`
	Postgres Postgres `yaml:"postgres"`
	Redis    Redis    `yaml:"redis"`
	Stream   Stream   `yaml:"stream"`
	Ops      Ops      `yaml:"ops"`
}

type App struct {
	Name    string `yaml:"name" env:"APP_NAME" env-default:"bot-events-worker"`
	Version string `yaml:"version" env:"APP_VERSION" env-default:"1.0.0"`
}

type Log struct {
	Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
}

type Postgres struct {
	URL string `yaml:"url" env:"DATABASE_URL"`
}

type Redis struct {
	URL string `yaml:"url" env:"REDIS_URL"`
}

type Stream struct {
	Events          string `yaml:"events" env:"EVENTS_STREAM" env-default:"bot:events"`
	DeadLetter      string `yaml:"dead_letter" env:"EVENTS_DLQ_STREAM" env-default:"bot:events:dead"`
	Group           string `yaml:"group" env:"CONSUMER_GROUP" env-default:"event-workers"`
	BatchSize       int    `yaml:"batch_size" env:"BATCH_SIZE" env-default:"10"`
	BlockMS         int    `yaml:"block_ms" env:"BLOCK_MS" env-default:"5000"`
	MaxRetries      int    `yaml:"max_retries" env:"MAX_RETRIES" env-default:"3"`
	RetryBackoffMS  int    `yaml:"retry_backoff_ms" env:"RETRY_BACKOFF_MS" env-default:"1000"`
	BatchPauseMS    int    `yaml:"batch_pause_ms" env:"BATCH_ERROR_PAUSE_MS" env-default:"5000"`
	DrainTimeoutMS  int    `yaml:"drain_timeout_ms" env:"DRAIN_TIMEOUT_MS" env-default:"10000"`
	FailFastPermErr bool   `yaml:"fail_fast_permanent" env:"FAIL_FAST_PERMANENT" env-default:"false"`
}

type Ops struct {
	Addr string `yaml:"addr" env:"OPS_ADDR" env-default:":9091"`
}

func (s Stream) BlockTimeout() time.Duration {
	return time.Duration(s.BlockMS) * time.Millisecond
}

func (s Stream) RetryBackoff() time.Duration {
	return time.Duration(s.RetryBackoffMS) * time.Millisecond
}

func (s Stream) BatchErrorPause() time.Duration {
	return time.Duration(s.BatchPauseMS) * time.Millisecond
}

func (s Stream) DrainTimeout() time.Duration {
	return time.Duration(s.DrainTimeoutMS) * time.Millisecond
}

func New() (*Config, error) {
	cfg := &Config{}

	if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
		// fallback to env vars if file not found
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("config error: %w", err)
		}
	} else {
		// Allow env vars to override config file
		cleanenv.ReadEnv(cfg)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Postgres.URL == "" {
		return errors.New("DATABASE_URL is required")
	}
	if c.Redis.URL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.Stream.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.Stream.BatchSize)
	}
	if c.Stream.MaxRetries < 1 {
		return fmt.Errorf("max retries must be at least 1, got %d", c.Stream.MaxRetries)
	}
	return nil
}
