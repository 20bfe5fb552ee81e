// Package config loads service configuration from defaults, an optional
// config file and TAILOR_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override, e.g. TAILOR_DATABASE_URL
const EnvPrefix = "TAILOR"

// Config is the complete service configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Model    ModelConfig    `mapstructure:"model"`
	Pipeline PipelineConfig `mapstructure:"pipeline"`
	Render   RenderConfig   `mapstructure:"render"`
	Log      LogConfig      `mapstructure:"log"`
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Port int `mapstructure:"port" validate:"min=1,max=65535"`
	// PublicURL is the externally reachable base URL used in signed download links
	PublicURL       string          `mapstructure:"public_url" validate:"omitempty,url"`
	AllowedOrigins  []string        `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration   `mapstructure:"shutdown_timeout" validate:"min=0"`
	RateLimit       RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles API clients by IP
type RateLimitConfig struct {
	Enabled bool `mapstructure:"enabled"`
	// JobsPerHour bounds job submissions and restarts per client
	JobsPerHour int `mapstructure:"jobs_per_hour" validate:"min=1"`
	// RequestsPerMinute bounds every other route
	RequestsPerMinute int `mapstructure:"requests_per_minute" validate:"min=1"`
	// Exempt lists client IPs that are never limited
	Exempt []string `mapstructure:"exempt"`
}

// DatabaseConfig configures the Postgres job ledger. An empty URL selects the in-memory ledger.
type DatabaseConfig struct {
	URL string `mapstructure:"url"`
}

// StorageConfig configures the blob store and download signing
type StorageConfig struct {
	Backend         string        `mapstructure:"backend" validate:"oneof=fs gcs"`
	Dir             string        `mapstructure:"dir" validate:"required_if=Backend fs"`
	Bucket          string        `mapstructure:"bucket" validate:"required_if=Backend gcs"`
	CredentialsFile string        `mapstructure:"credentials_file"`
	OutputPrefix    string        `mapstructure:"output_prefix" validate:"required"`
	SigningKey      string        `mapstructure:"signing_key"`
	DownloadExpiry  time.Duration `mapstructure:"download_expiry" validate:"min=0"`
	MaxUploadBytes  int64         `mapstructure:"max_upload_bytes" validate:"min=1"`
}

// ModelConfig configures the model gateway
type ModelConfig struct {
	Provider       string        `mapstructure:"provider" validate:"oneof=gemini anthropic openai"`
	Model          string        `mapstructure:"model"`
	APIKey         string        `mapstructure:"api_key"`
	BaseURL        string        `mapstructure:"base_url" validate:"omitempty,url"`
	MaxTokens      int           `mapstructure:"max_tokens" validate:"min=1"`
	Temperature    float32       `mapstructure:"temperature" validate:"min=0,max=2"`
	Timeout        time.Duration `mapstructure:"timeout" validate:"min=0"`
	MaxRetries     int           `mapstructure:"max_retries" validate:"min=0,max=10"`
	RetryBaseDelay time.Duration `mapstructure:"retry_base_delay" validate:"min=0"`
}

// PipelineConfig configures job execution
type PipelineConfig struct {
	Workers         int           `mapstructure:"workers" validate:"min=1"`
	QueueSize       int           `mapstructure:"queue_size" validate:"min=1"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout" validate:"min=0"`
	RenderTimeout   time.Duration `mapstructure:"render_timeout" validate:"min=0"`
	FetchTimeout    time.Duration `mapstructure:"fetch_timeout" validate:"min=0"`
	FetchRetries    int           `mapstructure:"fetch_retries" validate:"min=0,max=10"`
	ParseCacheTTL   time.Duration `mapstructure:"parse_cache_ttl" validate:"min=0"`
	// StaleAfter fails in-flight jobs with no recorded progress for this long; 0 disables it
	StaleAfter      time.Duration `mapstructure:"stale_after" validate:"min=0"`
}

// stageBudget is the longest a healthy job can go without a ledger update
func (p PipelineConfig) stageBudget() time.Duration {
	return p.GenerateTimeout + p.RenderTimeout + 2*p.FetchTimeout
}

// RenderConfig selects the PDF converter
type RenderConfig struct {
	UseChrome  bool   `mapstructure:"use_chrome"`
	ChromePath string `mapstructure:"chrome_path"`
}

// LogConfig configures the logger
type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=trace debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

var defaults = map[string]any{
	"server.port":                           8080,
	"server.public_url":                     "http://localhost:8080",
	"server.allowed_origins":                []string{"*"},
	"server.shutdown_timeout":               30 * time.Second,
	"server.rate_limit.enabled":             true,
	"server.rate_limit.jobs_per_hour":       60,
	"server.rate_limit.requests_per_minute": 600,
	"server.rate_limit.exempt":              []string{},
	"database.url":                          "",
	"storage.backend":                       "fs",
	"storage.dir":                           "./data",
	"storage.bucket":                        "",
	"storage.credentials_file":              "",
	"storage.output_prefix":                 "generated",
	"storage.signing_key":                   "",
	"storage.download_expiry":               time.Hour,
	"storage.max_upload_bytes":              int64(10 << 20),
	"model.provider":                        "gemini",
	"model.model":                           "",
	"model.api_key":                         "",
	"model.base_url":                        "",
	"model.max_tokens":                      2048,
	"model.temperature":                     0.2,
	"model.timeout":                         5 * time.Minute,
	"model.max_retries":                     0,
	"model.retry_base_delay":                2 * time.Second,
	"pipeline.workers":                      4,
	"pipeline.queue_size":                   100,
	"pipeline.generate_timeout":             10 * time.Minute,
	"pipeline.render_timeout":               2 * time.Minute,
	"pipeline.fetch_timeout":                30 * time.Second,
	"pipeline.fetch_retries":                3,
	"pipeline.parse_cache_ttl":              15 * time.Minute,
	"pipeline.stale_after":                  30 * time.Minute,
	"render.use_chrome":                     false,
	"render.chrome_path":                    "",
	"log.level":                             "info",
	"log.format":                            "text",
}

// providerKeyEnv names the conventional API key variable for each provider
var providerKeyEnv = map[string]string{
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
}

// Load reads configuration. path may be empty, in which case only defaults
// and environment variables apply. The result is validated.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if cfg.Model.APIKey == "" {
		if env, ok := providerKeyEnv[cfg.Model.Provider]; ok {
			cfg.Model.APIKey = os.Getenv(env)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		if p := c.Pipeline; p.StaleAfter > 0 && p.StaleAfter <= p.stageBudget() {
			return fmt.Errorf("config error: pipeline.stale_after (%s) must exceed generate, render and fetch timeouts combined (%s)", p.StaleAfter, p.stageBudget())
		}
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		msgs := make([]string, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			msgs = append(msgs, fmt.Sprintf("%s failed %s", fe.Namespace(), fe.Tag()))
		}
		return fmt.Errorf("config error: %s", strings.Join(msgs, "; "))
	}
	return fmt.Errorf("config error: %w", err)
}

// RequireSigningKey reports an error when download signing is not configured
func (c *Config) RequireSigningKey() error {
	if c.Storage.SigningKey == "" {
		return fmt.Errorf("config error: storage.signing_key (TAILOR_STORAGE_SIGNING_KEY) is required to serve downloads")
	}
	return nil
}
