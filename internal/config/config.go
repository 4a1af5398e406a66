// Package config loads and validates service configuration via Viper.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Source    SourceConfig    `mapstructure:"source"`
	Collector CollectorConfig `mapstructure:"collector"`
	Enrich    EnrichConfig    `mapstructure:"enrich"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Store     StoreConfig     `mapstructure:"store"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	PubSub    PubSubConfig    `mapstructure:"pubsub"`
	News      NewsConfig      `mapstructure:"news"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig controls HTTP server behavior.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// SourceConfig holds the news search API endpoint and credentials.
type SourceConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	ClientID     string        `mapstructure:"client_id"`
	ClientSecret string        `mapstructure:"client_secret"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// Configured reports whether both credentials are present.
func (s SourceConfig) Configured() bool {
	return s.ClientID != "" && s.ClientSecret != ""
}

// CollectorConfig sets defaults for collection runs.
type CollectorConfig struct {
	DefaultQuery  string        `mapstructure:"default_query"`
	PageSize      int           `mapstructure:"page_size"`
	Sort          string        `mapstructure:"sort"`
	IncludeImages bool          `mapstructure:"include_images"`
	BatchDelay    time.Duration `mapstructure:"batch_delay"`
	BatchQueries  []string      `mapstructure:"batch_queries"`
}

// EnrichConfig tunes image enrichment.
type EnrichConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	Concurrency   int           `mapstructure:"concurrency"`
	MaxImageBytes int64         `mapstructure:"max_image_bytes"`
	HashLength    int           `mapstructure:"hash_length"`
	CacheControl  string        `mapstructure:"cache_control"`
	UserAgent     string        `mapstructure:"user_agent"`
	Environment   string        `mapstructure:"environment"`
	PageTimeout   time.Duration `mapstructure:"page_timeout"`
	ImageTimeout  time.Duration `mapstructure:"image_timeout"`
}

// StorageConfig selects the blob sink that hosts enriched images.
type StorageConfig struct {
	Backend      string `mapstructure:"backend"`
	GCSBucket    string `mapstructure:"gcs_bucket"`
	LocalDir     string `mapstructure:"local_dir"`
	PublicOrigin string `mapstructure:"public_origin"`
}

// StoreConfig selects the record store.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Postgres PostgresConfig `mapstructure:"postgres"`
	Mongo    MongoConfig    `mapstructure:"mongo"`
}

// PostgresConfig controls the Postgres record store.
type PostgresConfig struct {
	DSN             string        `mapstructure:"dsn"`
	Table           string        `mapstructure:"table"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	MaxConnLifetime time.Duration `mapstructure:"max_conn_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// MongoConfig controls the MongoDB record store.
type MongoConfig struct {
	URI        string        `mapstructure:"uri"`
	Database   string        `mapstructure:"database"`
	Collection string        `mapstructure:"collection"`
	Timeout    time.Duration `mapstructure:"timeout"`
}

// SchedulerConfig drives periodic collection on the collector role.
type SchedulerConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Interval   time.Duration `mapstructure:"interval"`
	Queries    []string      `mapstructure:"queries"`
	RunOnStart bool          `mapstructure:"run_on_start"`
}

// PubSubConfig holds metadata for publish-subscribe notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// NewsConfig tunes the read API.
type NewsConfig struct {
	StorePageSize   int `mapstructure:"store_page_size"`
	StatsSampleSize int `mapstructure:"stats_sample_size"`
}

// RateLimitConfig paces article page fetches per host.
type RateLimitConfig struct {
	DefaultRPS   float64 `mapstructure:"default_rps"`
	DefaultBurst int     `mapstructure:"default_burst"`
}

// Storage backends.
const (
	BlobBackendGCS    = "gcs"
	BlobBackendLocal  = "local"
	BlobBackendMemory = "memory"

	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendMongo    = "mongo"
)

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("NEWS")
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

// setDefaults registers every key so AutomaticEnv can override it.
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.request_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("logging.development", true)

	v.SetDefault("source.base_url", "https://openapi.naver.com/v1/search/news.json")
	v.SetDefault("source.client_id", "")
	v.SetDefault("source.client_secret", "")
	v.SetDefault("source.timeout", 15*time.Second)

	v.SetDefault("collector.default_query", "AI")
	v.SetDefault("collector.page_size", 10)
	v.SetDefault("collector.sort", "date")
	v.SetDefault("collector.include_images", true)
	v.SetDefault("collector.batch_delay", time.Second)
	v.SetDefault("collector.batch_queries", []string{"비트코인", "AI", "클라우드"})

	v.SetDefault("enrich.enabled", true)
	v.SetDefault("enrich.concurrency", 3)
	v.SetDefault("enrich.max_image_bytes", 10<<20)
	v.SetDefault("enrich.hash_length", 12)
	v.SetDefault("enrich.cache_control", "max-age=31536000")
	v.SetDefault("enrich.user_agent", "")
	v.SetDefault("enrich.environment", "dev")
	v.SetDefault("enrich.page_timeout", 10*time.Second)
	v.SetDefault("enrich.image_timeout", 30*time.Second)

	v.SetDefault("storage.backend", BlobBackendMemory)
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.local_dir", "data/images")
	v.SetDefault("storage.public_origin", "")

	v.SetDefault("store.backend", StoreBackendMemory)
	v.SetDefault("store.postgres.dsn", "")
	v.SetDefault("store.postgres.table", "news_articles")
	v.SetDefault("store.postgres.max_conns", 4)
	v.SetDefault("store.postgres.min_conns", 0)
	v.SetDefault("store.postgres.max_conn_lifetime", 30*time.Minute)
	v.SetDefault("store.postgres.auto_migrate", true)
	v.SetDefault("store.mongo.uri", "")
	v.SetDefault("store.mongo.database", "news")
	v.SetDefault("store.mongo.collection", "news_articles")
	v.SetDefault("store.mongo.timeout", 10*time.Second)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.interval", time.Hour)
	v.SetDefault("scheduler.queries", []string{"AI"})
	v.SetDefault("scheduler.run_on_start", false)

	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")

	v.SetDefault("news.store_page_size", 50)
	v.SetDefault("news.stats_sample_size", 100)

	v.SetDefault("rate_limit.default_rps", 2.0)
	v.SetDefault("rate_limit.default_burst", 2)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.Server.Port <= 0 {
		return errors.New("server.port must be > 0")
	}
	if c.Source.Timeout <= 0 {
		return errors.New("source.timeout must be > 0")
	}
	if c.Collector.PageSize < 1 || c.Collector.PageSize > 100 {
		return errors.New("collector.page_size must be between 1 and 100")
	}
	if c.Collector.Sort != "date" && c.Collector.Sort != "sim" {
		return fmt.Errorf("collector.sort must be date or sim, got %q", c.Collector.Sort)
	}
	if c.Collector.BatchDelay < 0 {
		return errors.New("collector.batch_delay must not be negative")
	}
	if c.Enrich.Enabled && c.Enrich.Concurrency <= 0 {
		return errors.New("enrich.concurrency must be > 0 when enrichment is enabled")
	}
	switch c.Storage.Backend {
	case BlobBackendMemory, BlobBackendLocal:
	case BlobBackendGCS:
		if c.Storage.GCSBucket == "" {
			return errors.New("storage.gcs_bucket must be set for the gcs backend")
		}
	default:
		return fmt.Errorf("unknown storage.backend %q", c.Storage.Backend)
	}
	switch c.Store.Backend {
	case StoreBackendMemory:
	case StoreBackendPostgres:
		if c.Store.Postgres.DSN == "" {
			return errors.New("store.postgres.dsn must be set for the postgres backend")
		}
	case StoreBackendMongo:
		if c.Store.Mongo.URI == "" {
			return errors.New("store.mongo.uri must be set for the mongo backend")
		}
	default:
		return fmt.Errorf("unknown store.backend %q", c.Store.Backend)
	}
	if c.Scheduler.Enabled {
		if c.Scheduler.Interval <= 0 {
			return errors.New("scheduler.interval must be > 0 when the scheduler is enabled")
		}
		if len(c.Scheduler.Queries) == 0 {
			return errors.New("scheduler.queries must not be empty when the scheduler is enabled")
		}
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return errors.New("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return nil
}
