// Package config loads and validates service configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Auth    AuthConfig    `mapstructure:"auth"`
	Source  SourceConfig  `mapstructure:"source"`
	Scraper ScraperConfig `mapstructure:"scraper"`
	Cloud   CloudConfig   `mapstructure:"cloud"`
	Local   LocalConfig   `mapstructure:"local"`
	AI      AIConfig      `mapstructure:"ai"`
	Archive ArchiveConfig `mapstructure:"archive"`
	Notify  NotifyConfig  `mapstructure:"notify"`
	Logging LoggingConfig `mapstructure:"logging"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port int `mapstructure:"port"`
}

// AuthConfig defines API authentication toggles.
type AuthConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	APIKey  string `mapstructure:"api_key"`
}

// SourceConfig identifies the site the scraper and crawler target.
type SourceConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// ScraperConfig governs the escalating page fetcher.
type ScraperConfig struct {
	UserAgent         string `mapstructure:"user_agent"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds"`
	MaxAttempts       int    `mapstructure:"max_attempts"`
	BackoffBaseSec    int    `mapstructure:"backoff_base_seconds"`
	BackoffMaxSec     int    `mapstructure:"backoff_max_seconds"`
	RenderTimeoutSec  int    `mapstructure:"render_timeout_seconds"`
	RenderSettleSec   int    `mapstructure:"render_settle_seconds"`
	ForceBrowserStart bool   `mapstructure:"force_browser"`
}

// CloudConfig controls the secondary (Postgres/pgvector) store.
type CloudConfig struct {
	Provider string `mapstructure:"provider"` // postgres | noop
	DSN      string `mapstructure:"dsn"`
	MaxConns int32  `mapstructure:"max_conns"`
}

// LocalConfig controls the primary (embedded SQLite) store.
type LocalConfig struct {
	Provider string `mapstructure:"provider"` // sqlite | noop
	Path     string `mapstructure:"path"`
}

// AIConfig configures the intent-extraction and embedding capability.
type AIConfig struct {
	Provider       string `mapstructure:"provider"` // gemini | noop
	APIKey         string `mapstructure:"api_key"`
	Model          string `mapstructure:"model"`
	EmbedModel     string `mapstructure:"embed_model"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds"`
}

// ArchiveConfig sets where raw scraped markup is archived.
type ArchiveConfig struct {
	Provider string `mapstructure:"provider"` // gcs | local | noop
	Bucket   string `mapstructure:"bucket"`
	BaseDir  string `mapstructure:"base_dir"`
}

// NotifyConfig holds metadata for ingestion-completed notifications.
type NotifyConfig struct {
	Provider  string `mapstructure:"provider"` // pubsub | memory | noop
	ProjectID string `mapstructure:"project_id"`
	Topic     string `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("RETAKE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("source.base_url", "https://rib.gg")
	v.SetDefault("scraper.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36")
	v.SetDefault("scraper.timeout_seconds", 10)
	v.SetDefault("scraper.max_attempts", 3)
	v.SetDefault("scraper.backoff_base_seconds", 2)
	v.SetDefault("scraper.backoff_max_seconds", 10)
	v.SetDefault("scraper.render_timeout_seconds", 30)
	v.SetDefault("scraper.render_settle_seconds", 3)
	v.SetDefault("scraper.force_browser", false)
	v.SetDefault("cloud.provider", "noop")
	v.SetDefault("cloud.max_conns", 4)
	v.SetDefault("local.provider", "sqlite")
	v.SetDefault("local.path", "data/retake.db")
	v.SetDefault("ai.provider", "noop")
	v.SetDefault("ai.model", "gemini-3-flash-preview")
	v.SetDefault("ai.embed_model", "text-embedding-004")
	v.SetDefault("ai.timeout_seconds", 30)
	v.SetDefault("archive.provider", "noop")
	v.SetDefault("notify.provider", "noop")
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	if c.Source.BaseURL == "" {
		return fmt.Errorf("source.base_url is required")
	}
	if c.Scraper.TimeoutSeconds <= 0 {
		return fmt.Errorf("scraper.timeout_seconds must be > 0")
	}
	if c.Scraper.MaxAttempts <= 0 {
		return fmt.Errorf("scraper.max_attempts must be > 0")
	}
	if c.Auth.Enabled && c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key must be set when auth is enabled")
	}
	if c.Cloud.Provider == "postgres" && c.Cloud.DSN == "" {
		return fmt.Errorf("cloud.dsn is required when cloud.provider is postgres")
	}
	if c.Local.Provider == "sqlite" && c.Local.Path == "" {
		return fmt.Errorf("local.path is required when local.provider is sqlite")
	}
	if c.AI.Provider == "gemini" && c.AI.APIKey == "" {
		return fmt.Errorf("ai.api_key is required when ai.provider is gemini")
	}
	if c.Archive.Provider == "gcs" && c.Archive.Bucket == "" {
		return fmt.Errorf("archive.bucket is required when archive.provider is gcs")
	}
	if c.Archive.Provider == "local" && c.Archive.BaseDir == "" {
		return fmt.Errorf("archive.base_dir is required when archive.provider is local")
	}
	if c.Notify.Provider == "pubsub" && (c.Notify.ProjectID == "" || c.Notify.Topic == "") {
		return fmt.Errorf("notify.project_id and notify.topic are required when notify.provider is pubsub")
	}
	return nil
}

// RequestTimeout converts the scraper timeout into a duration.
func (c ScraperConfig) RequestTimeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// BackoffBase converts the retry backoff base into a duration.
func (c ScraperConfig) BackoffBase() time.Duration {
	return time.Duration(c.BackoffBaseSec) * time.Second
}

// BackoffMax converts the retry backoff cap into a duration.
func (c ScraperConfig) BackoffMax() time.Duration {
	return time.Duration(c.BackoffMaxSec) * time.Second
}

// RenderTimeout converts the render navigation timeout into a duration.
func (c ScraperConfig) RenderTimeout() time.Duration {
	return time.Duration(c.RenderTimeoutSec) * time.Second
}

// RenderSettle converts the post-navigation settle delay into a duration.
func (c ScraperConfig) RenderSettle() time.Duration {
	return time.Duration(c.RenderSettleSec) * time.Second
}
