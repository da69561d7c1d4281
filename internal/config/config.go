package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/matchwell/growth-plane/internal/adplatform"
	"github.com/matchwell/growth-plane/internal/emailaudience"
	"github.com/matchwell/growth-plane/internal/export"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig         `yaml:"server"`
	Database      DatabaseConfig       `yaml:"database"`
	Redis         RedisConfig          `yaml:"redis"`
	Logging       LoggingConfig        `yaml:"logging"`
	AdPlatform    adplatform.Config    `yaml:"ad_platform"`
	EmailAudience emailaudience.Config `yaml:"email_audience"`
	Export        export.Config        `yaml:"export"`
	Worker        WorkerConfig         `yaml:"worker"`
	Webhooks      WebhookConfig        `yaml:"webhooks"`
}

// ServerConfig holds the HTTP API settings.
type ServerConfig struct {
	Host           string   `yaml:"host"`
	Port           int      `yaml:"port"`
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis settings (batch-job distributed locks).
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Enabled  bool   `yaml:"enabled"`
}

// LoggingConfig holds structured-log settings.
type LoggingConfig struct {
	Level     string `yaml:"level"`
	RedactPII bool   `yaml:"redact_pii"`
}

// WorkerConfig holds the background worker settings.
type WorkerConfig struct {
	// FeatureWindowDays bounds the nightly feature recompute to persons
	// active within the trailing window.
	FeatureWindowDays int `yaml:"feature_window_days"`

	// BatchIntervalMinutes is how often the recompute/evaluate cycle runs.
	BatchIntervalMinutes int `yaml:"batch_interval_minutes"`

	// Automation queue polling.
	AutomationBatchSize   int `yaml:"automation_batch_size"`
	AutomationPollSeconds int `yaml:"automation_poll_seconds"`
	ExportIntervalHours   int `yaml:"export_interval_hours"`
}

// WebhookConfig holds outbound webhook delivery settings.
type WebhookConfig struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
	MaxRetries     int `yaml:"max_retries"`
}

// BatchInterval returns the recompute cycle interval as a duration.
func (w WorkerConfig) BatchInterval() time.Duration {
	return time.Duration(w.BatchIntervalMinutes) * time.Minute
}

// AutomationPollInterval returns the queue poll interval as a duration.
func (w WorkerConfig) AutomationPollInterval() time.Duration {
	return time.Duration(w.AutomationPollSeconds) * time.Second
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	// Set defaults
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.AdPlatform.BaseURL == "" {
		cfg.AdPlatform.BaseURL = "https://ads-api.example.com"
	}
	if cfg.EmailAudience.Region == "" {
		cfg.EmailAudience.Region = "us-west-2"
	}
	if cfg.Export.Region == "" {
		cfg.Export.Region = "us-west-2"
	}
	if cfg.Export.Prefix == "" {
		cfg.Export.Prefix = "growth/"
	}
	if cfg.Worker.FeatureWindowDays == 0 {
		cfg.Worker.FeatureWindowDays = 30
	}
	if cfg.Worker.BatchIntervalMinutes == 0 {
		cfg.Worker.BatchIntervalMinutes = 60
	}
	if cfg.Worker.AutomationBatchSize == 0 {
		cfg.Worker.AutomationBatchSize = 25
	}
	if cfg.Worker.AutomationPollSeconds == 0 {
		cfg.Worker.AutomationPollSeconds = 5
	}
	if cfg.Worker.ExportIntervalHours == 0 {
		cfg.Worker.ExportIntervalHours = 24
	}
	if cfg.Webhooks.TimeoutSeconds == 0 {
		cfg.Webhooks.TimeoutSeconds = 30
	}
	if cfg.Webhooks.MaxRetries == 0 {
		cfg.Webhooks.MaxRetries = 3
	}

	return &cfg, nil
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars on ECS.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Override with environment variables if present
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		cfg.Database.URL = dbURL
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Redis.Addr = addr
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("AD_PLATFORM_API_KEY"); v != "" {
		cfg.AdPlatform.APIKey = v
		cfg.AdPlatform.Enabled = true
	}
	if v := os.Getenv("AD_PLATFORM_BASE_URL"); v != "" {
		cfg.AdPlatform.BaseURL = v
	}
	if v := os.Getenv("AD_PLATFORM_ACCOUNT_ID"); v != "" {
		cfg.AdPlatform.AccountID = v
	}
	if v := os.Getenv("AWS_SES_ACCESS_KEY"); v != "" {
		cfg.EmailAudience.AccessKey = v
	}
	if v := os.Getenv("AWS_SES_SECRET_KEY"); v != "" {
		cfg.EmailAudience.SecretKey = v
	}
	if v := os.Getenv("AWS_SES_REGION"); v != "" {
		cfg.EmailAudience.Region = v
	}
	if v := os.Getenv("SES_CONTACT_LIST"); v != "" {
		cfg.EmailAudience.ContactListName = v
		cfg.EmailAudience.Enabled = true
	}
	if v := os.Getenv("EXPORT_S3_BUCKET"); v != "" {
		cfg.Export.Bucket = v
		cfg.Export.Enabled = true
	}
	if v := os.Getenv("EXPORT_S3_REGION"); v != "" {
		cfg.Export.Region = v
	}
	if v := os.Getenv("EXPORT_AWS_ACCESS_KEY"); v != "" {
		cfg.Export.AccessKey = v
	}
	if v := os.Getenv("EXPORT_AWS_SECRET_KEY"); v != "" {
		cfg.Export.SecretKey = v
	}
	if v := os.Getenv("FEATURE_WINDOW_DAYS"); v != "" {
		if days, err := strconv.Atoi(v); err == nil && days > 0 {
			cfg.Worker.FeatureWindowDays = days
		}
	}

	return cfg, nil
}
