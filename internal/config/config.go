package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vincentbai/webhook-activity/internal/database"
)

const envPrefix = "WEBHOOK_ACTIVITY_"

// Config is assembled from defaults, then the YAML file named by
// WEBHOOK_ACTIVITY_CONFIG (if any), then WEBHOOK_ACTIVITY_* variables.
type Config struct {
	Address       string       `yaml:"address"`        // WEBHOOK_ACTIVITY_ADDRESS (default "127.0.0.1:5000")
	AllowedOrigin string       `yaml:"allowed_origin"` // WEBHOOK_ACTIVITY_ALLOWED_ORIGIN (default "*", "none" disables CORS)
	Store         StoreConfig  `yaml:"store"`
	Events        EventsConfig `yaml:"events"`
	Log           LogConfig    `yaml:"log"`
}

type StoreConfig struct {
	Driver     string        `yaml:"driver"`     // WEBHOOK_ACTIVITY_STORE_DRIVER: sqlite (default), postgres, mongo
	Path       string        `yaml:"path"`       // WEBHOOK_ACTIVITY_DATABASE_PATH (sqlite)
	URL        string        `yaml:"url"`        // WEBHOOK_ACTIVITY_DATABASE_URL (postgres DSN or mongodb URI)
	Database   string        `yaml:"database"`   // WEBHOOK_ACTIVITY_MONGO_DATABASE (default "github_events")
	Collection string        `yaml:"collection"` // WEBHOOK_ACTIVITY_MONGO_COLLECTION (default "events")
	Timeout    time.Duration `yaml:"timeout"`    // WEBHOOK_ACTIVITY_STORE_TIMEOUT (default 5s)
}

type EventsConfig struct {
	NATSURL      string   `yaml:"nats_url"`      // WEBHOOK_ACTIVITY_NATS_URL (optional)
	KafkaBrokers []string `yaml:"kafka_brokers"` // WEBHOOK_ACTIVITY_KAFKA_BROKERS (comma-separated, optional)
	KafkaTopic   string   `yaml:"kafka_topic"`   // WEBHOOK_ACTIVITY_KAFKA_TOPIC (default "github-activity")
}

type LogConfig struct {
	Level  string `yaml:"level"`  // WEBHOOK_ACTIVITY_LOG_LEVEL (default "info")
	Format string `yaml:"format"` // WEBHOOK_ACTIVITY_LOG_FORMAT: text (default) or json
}

func Default() *Config {
	return &Config{
		Address:       "127.0.0.1:5000",
		AllowedOrigin: "*",
		Store: StoreConfig{
			Driver:     database.DriverSQLite,
			Path:       filepath.Join(applicationDirectory(), "activity.db"),
			Database:   database.DefaultMongoDatabase,
			Collection: database.DefaultMongoCollection,
			Timeout:    5 * time.Second,
		},
		Events: EventsConfig{
			KafkaTopic: "github-activity",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

func Load() (*Config, error) {
	c := Default()
	if path := os.Getenv(envPrefix + "CONFIG"); path != "" {
		if err := c.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// LoadFile overlays the YAML file at path onto c.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	c.Address = envOrDefault("ADDRESS", c.Address)
	c.AllowedOrigin = envOrDefault("ALLOWED_ORIGIN", c.AllowedOrigin)

	c.Store.Driver = envOrDefault("STORE_DRIVER", c.Store.Driver)
	c.Store.Path = envOrDefault("DATABASE_PATH", c.Store.Path)
	c.Store.URL = envOrDefault("DATABASE_URL", c.Store.URL)
	c.Store.Database = envOrDefault("MONGO_DATABASE", c.Store.Database)
	c.Store.Collection = envOrDefault("MONGO_COLLECTION", c.Store.Collection)
	if v := os.Getenv(envPrefix + "STORE_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%sSTORE_TIMEOUT: %w", envPrefix, err)
		}
		c.Store.Timeout = d
	}

	c.Events.NATSURL = envOrDefault("NATS_URL", c.Events.NATSURL)
	if v := os.Getenv(envPrefix + "KAFKA_BROKERS"); v != "" {
		c.Events.KafkaBrokers = splitList(v)
	}
	c.Events.KafkaTopic = envOrDefault("KAFKA_TOPIC", c.Events.KafkaTopic)

	c.Log.Level = envOrDefault("LOG_LEVEL", c.Log.Level)
	c.Log.Format = envOrDefault("LOG_FORMAT", c.Log.Format)
	return nil
}

func (c *Config) Validate() error {
	if c.Address == "" {
		return fmt.Errorf("address is required")
	}
	switch c.Store.Driver {
	case database.DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store path is required for sqlite")
		}
	case database.DriverPostgres, database.DriverMongo:
		if c.Store.URL == "" {
			return fmt.Errorf("%sDATABASE_URL is required for %s", envPrefix, c.Store.Driver)
		}
	default:
		return fmt.Errorf("unsupported store driver %q", c.Store.Driver)
	}
	if c.Store.Timeout <= 0 {
		return fmt.Errorf("store timeout must be positive")
	}
	if c.Events.NATSURL != "" && len(c.Events.KafkaBrokers) > 0 {
		return fmt.Errorf("configure either NATS or Kafka, not both")
	}
	if len(c.Events.KafkaBrokers) > 0 && c.Events.KafkaTopic == "" {
		return fmt.Errorf("kafka topic is required when brokers are set")
	}
	if _, err := c.Log.level(); err != nil {
		return err
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		return fmt.Errorf("invalid log format %q (must be text or json)", c.Log.Format)
	}
	return nil
}

// DatabaseConfig maps the store section onto the database package's options.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		Driver:         c.Store.Driver,
		Path:           c.Store.Path,
		URL:            c.Store.URL,
		Database:       c.Store.Database,
		Collection:     c.Store.Collection,
		ConnectTimeout: c.Store.Timeout,
	}
}

// CORSOrigin returns the Access-Control-Allow-Origin value; empty disables CORS.
func (c *Config) CORSOrigin() string {
	if strings.EqualFold(c.AllowedOrigin, "none") {
		return ""
	}
	return c.AllowedOrigin
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return level, fmt.Errorf("invalid log level %q: %w", l.Level, err)
	}
	return level, nil
}

// NewLogger builds the process logger. Call after Validate.
func (l LogConfig) NewLogger(w io.Writer) *slog.Logger {
	level, _ := l.level()
	opts := &slog.HandlerOptions{Level: level}
	if l.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// applicationDirectory is the per-platform data directory for the default
// SQLite database.
func applicationDirectory() string {
	homeDirectory, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDirectory, "Library", "Application Support", "WebhookActivity")
	case "windows":
		return filepath.Join(homeDirectory, "AppData", "Roaming", "WebhookActivity")
	default: // linux and others
		return filepath.Join(homeDirectory, ".local", "share", "WebhookActivity")
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return fallback
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			result = append(result, p)
		}
	}
	return result
}
