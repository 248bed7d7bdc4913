// Package config loads and validates pipeline configuration via Viper.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Store provider names accepted by store.provider.
const (
	StoreFile     = "file"
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

// Output provider names accepted by output.provider.
const (
	OutputLocal = "local"
	OutputGCS   = "gcs"
)

// Notify provider names accepted by notify.provider.
const (
	NotifyNone   = "none"
	NotifyPubSub = "pubsub"
	NotifyKafka  = "kafka"
)

// Config captures all pipeline configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Images    ImagesConfig    `mapstructure:"images"`
	Output    OutputConfig    `mapstructure:"output"`
	Capture   CaptureConfig   `mapstructure:"capture"`
	Preflight PreflightConfig `mapstructure:"preflight"`
	Notify    NotifyConfig    `mapstructure:"notify"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig controls the tag page server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// Addr returns the host:port listen address.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// URL returns the base URL workers navigate against.
func (c ServerConfig) URL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// StoreConfig selects and configures the product store backend.
type StoreConfig struct {
	Provider string `mapstructure:"provider"`
	Path     string `mapstructure:"path"`
	// ConfirmOnly switches persistence to advancing previous_price only for
	// items whose capture was confirmed, instead of the whole collection.
	ConfirmOnly bool           `mapstructure:"confirm_only"`
	Postgres    PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig controls the Postgres-backed product store.
type PostgresConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// ImagesConfig locates the source product images served under /images.
type ImagesConfig struct {
	Dir string `mapstructure:"dir"`
}

// OutputConfig selects and configures the capture artifact sink.
type OutputConfig struct {
	Provider string    `mapstructure:"provider"`
	Dir      string    `mapstructure:"dir"`
	GCS      GCSConfig `mapstructure:"gcs"`
}

// GCSConfig holds bucket coordinates for the GCS artifact sink.
type GCSConfig struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// CaptureConfig governs browser sessions and screenshots.
type CaptureConfig struct {
	WorkerFraction float64 `mapstructure:"worker_fraction"`
	ViewportWidth  int     `mapstructure:"viewport_width"`
	ViewportHeight int     `mapstructure:"viewport_height"`
	Scale          float64 `mapstructure:"scale"`
	IdleWaitMs     int     `mapstructure:"idle_wait_ms"`
	NavTimeoutSec  int     `mapstructure:"nav_timeout_seconds"`
	Quality        int     `mapstructure:"quality"`
}

// IdleWait returns the network-idle window workers wait for after navigation.
func (c CaptureConfig) IdleWait() time.Duration {
	return time.Duration(c.IdleWaitMs) * time.Millisecond
}

// NavTimeout returns the per-navigation deadline; zero means unbounded.
func (c CaptureConfig) NavTimeout() time.Duration {
	return time.Duration(c.NavTimeoutSec) * time.Second
}

// PreflightConfig controls the pre-capture image probe.
type PreflightConfig struct {
	Enabled        bool `mapstructure:"enabled"`
	TimeoutSeconds int  `mapstructure:"timeout_seconds"`
}

// Timeout returns the per-request probe deadline.
func (c PreflightConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// NotifyConfig selects and configures the run summary notifier.
type NotifyConfig struct {
	Provider string       `mapstructure:"provider"`
	PubSub   PubSubConfig `mapstructure:"pubsub"`
	Kafka    KafkaConfig  `mapstructure:"kafka"`
}

// PubSubConfig holds topic coordinates for the Pub/Sub notifier.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicID   string `mapstructure:"topic_id"`
}

// KafkaConfig holds broker coordinates for the Kafka notifier.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("PRICETAG")
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
	v.SetDefault("server.host", "127.0.0.1")
	v.SetDefault("server.port", 3000)
	v.SetDefault("store.provider", StoreFile)
	v.SetDefault("store.path", "products.json")
	v.SetDefault("store.confirm_only", false)
	v.SetDefault("store.postgres.table", "products")
	v.SetDefault("images.dir", "images")
	v.SetDefault("output.provider", OutputLocal)
	v.SetDefault("output.dir", "output")
	v.SetDefault("capture.worker_fraction", 0.75)
	v.SetDefault("capture.viewport_width", 1368)
	v.SetDefault("capture.viewport_height", 768)
	v.SetDefault("capture.scale", 2.0)
	v.SetDefault("capture.idle_wait_ms", 500)
	v.SetDefault("capture.nav_timeout_seconds", 0)
	v.SetDefault("capture.quality", 90)
	v.SetDefault("preflight.enabled", true)
	v.SetDefault("preflight.timeout_seconds", 10)
	v.SetDefault("notify.provider", NotifyNone)
	v.SetDefault("logging.development", true)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("server.port must be > 0")
	}
	switch c.Store.Provider {
	case StoreFile:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path must be set when store.provider is %q", StoreFile)
		}
	case StorePostgres:
		if c.Store.Postgres.DSN == "" {
			return fmt.Errorf("store.postgres.dsn must be set when store.provider is %q", StorePostgres)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("unknown store.provider %q", c.Store.Provider)
	}
	switch c.Output.Provider {
	case OutputLocal:
		if c.Output.Dir == "" {
			return fmt.Errorf("output.dir must be set when output.provider is %q", OutputLocal)
		}
	case OutputGCS:
		if c.Output.GCS.Bucket == "" {
			return fmt.Errorf("output.gcs.bucket must be set when output.provider is %q", OutputGCS)
		}
	default:
		return fmt.Errorf("unknown output.provider %q", c.Output.Provider)
	}
	if c.Capture.WorkerFraction <= 0 || c.Capture.WorkerFraction > 1 {
		return fmt.Errorf("capture.worker_fraction must be in (0, 1]")
	}
	if c.Capture.ViewportWidth <= 0 || c.Capture.ViewportHeight <= 0 {
		return fmt.Errorf("capture viewport must be > 0")
	}
	if c.Capture.Scale <= 0 {
		return fmt.Errorf("capture.scale must be > 0")
	}
	if c.Capture.Quality < 1 || c.Capture.Quality > 100 {
		return fmt.Errorf("capture.quality must be in [1, 100]")
	}
	switch c.Notify.Provider {
	case NotifyNone:
	case NotifyPubSub:
		if c.Notify.PubSub.ProjectID == "" || c.Notify.PubSub.TopicID == "" {
			return fmt.Errorf("notify.pubsub.project_id and notify.pubsub.topic_id must be set when notify.provider is %q", NotifyPubSub)
		}
	case NotifyKafka:
		if len(c.Notify.Kafka.Brokers) == 0 || c.Notify.Kafka.Topic == "" {
			return fmt.Errorf("notify.kafka.brokers and notify.kafka.topic must be set when notify.provider is %q", NotifyKafka)
		}
	default:
		return fmt.Errorf("unknown notify.provider %q", c.Notify.Provider)
	}
	return nil
}
