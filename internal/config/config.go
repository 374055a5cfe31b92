// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type ComputeConfig struct {
	BaseURL     string        `yaml:"base_url"`
	Executor    string        `yaml:"executor"`
	StoragePath string        `yaml:"storage_path"`
	Timeout     time.Duration `yaml:"timeout"`
}

type BillingConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

type StorageConfig struct {
	BaseURL string `yaml:"base_url"`
	Root    string `yaml:"root"`
}

type AIConfig struct {
	OpenAIKey    string `yaml:"openai_key"`
	GeminiKey    string `yaml:"gemini_key"`
	GeminiURL    string `yaml:"gemini_url"`
	DefaultModel string `yaml:"default_model"`
}

type BotConfig struct {
	Token string `yaml:"token"` // Telegram UI sink; empty disables the sink
}

type AdminConfig struct {
	Port   int    `yaml:"port"`
	APIKey string `yaml:"api_key"`
}

type TrackerConfig struct {
	// polling_scope: "all" polls every tracked job each turn and renders
	// only the requested one; "requested" restricts polling to the job the
	// user is asking about.
	PollingScope string `yaml:"polling_scope"`
}

type SecurityConfig struct {
	TicketSecret string        `yaml:"ticket_secret"`
	TicketTTL    time.Duration `yaml:"ticket_ttl"`
	Environment  string        `yaml:"environment"` // environment tag injected into backend calls
}

type WorkerConfig struct {
	FanOut int `yaml:"fan_out"` // bounded parallelism for read-only sub-tasks
}

type Config struct {
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Compute  ComputeConfig  `yaml:"compute"`
	Billing  BillingConfig  `yaml:"billing"`
	Storage  StorageConfig  `yaml:"storage"`
	AI       AIConfig       `yaml:"ai"`
	Bot      BotConfig      `yaml:"bot"`
	Admin    AdminConfig    `yaml:"admin"`
	Tracker  TrackerConfig  `yaml:"tracker"`
	Security SecurityConfig `yaml:"security"`
	Worker   WorkerConfig   `yaml:"worker"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Compute.Timeout <= 0 {
		cfg.Compute.Timeout = 30 * time.Second
	}
	if cfg.Compute.Executor == "" {
		cfg.Compute.Executor = "default"
	}
	if cfg.Redis.TTL <= 0 {
		cfg.Redis.TTL = 24 * time.Hour
	}
	if cfg.Tracker.PollingScope == "" {
		cfg.Tracker.PollingScope = "all"
	}
	if cfg.Security.TicketTTL <= 0 {
		cfg.Security.TicketTTL = 5 * time.Minute
	}
	if cfg.Security.Environment == "" {
		cfg.Security.Environment = "prod"
	}
	if cfg.Worker.FanOut <= 0 {
		cfg.Worker.FanOut = 4
	}
	if cfg.AI.DefaultModel == "" {
		cfg.AI.DefaultModel = "gpt-4o-mini"
	}

	// Minimal validation
	if cfg.Compute.BaseURL == "" {
		return nil, errors.New("compute.base_url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Tracker.PollingScope != "all" && cfg.Tracker.PollingScope != "requested" {
		return nil, fmt.Errorf("tracker.polling_scope must be all|requested, got %q", cfg.Tracker.PollingScope)
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
