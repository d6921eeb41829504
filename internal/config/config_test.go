package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vincentbai/webhook-activity/internal/database"
)

var envKeys = []string{
	"CONFIG", "ADDRESS", "ALLOWED_ORIGIN", "STORE_DRIVER", "DATABASE_PATH", "DATABASE_URL",
	"MONGO_DATABASE", "MONGO_COLLECTION", "STORE_TIMEOUT", "NATS_URL", "KAFKA_BROKERS",
	"KAFKA_TOPIC", "LOG_LEVEL", "LOG_FORMAT",
}

// clearEnv blanks every variable Load reads; empty values count as unset.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(envPrefix+k, "")
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:5000", cfg.Address)
	assert.Equal(t, "*", cfg.CORSOrigin())
	assert.Equal(t, database.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, "activity.db", filepath.Base(cfg.Store.Path))
	assert.Equal(t, database.DefaultMongoDatabase, cfg.Store.Database)
	assert.Equal(t, database.DefaultMongoCollection, cfg.Store.Collection)
	assert.Equal(t, 5*time.Second, cfg.Store.Timeout)
	assert.Empty(t, cfg.Events.NATSURL)
	assert.Empty(t, cfg.Events.KafkaBrokers)
	assert.Equal(t, "info", cfg.Log.Level)
}

func TestLoadFileThenEnv(t *testing.T) {
	clearEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
address: ":8080"
allowed_origin: none
store:
  driver: mongo
  url: mongodb://localhost:27017
  collection: activity
  timeout: 2s
events:
  kafka_brokers: [k1:9092, k2:9092]
log:
  level: debug
  format: json
`), 0o600))

	t.Setenv(envPrefix+"CONFIG", path)
	t.Setenv(envPrefix+"ADDRESS", ":9090")
	t.Setenv(envPrefix+"KAFKA_TOPIC", "activity")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Address)
	assert.Equal(t, "", cfg.CORSOrigin())
	assert.Equal(t, database.DriverMongo, cfg.Store.Driver)
	assert.Equal(t, "activity", cfg.Store.Collection)
	assert.Equal(t, database.DefaultMongoDatabase, cfg.Store.Database)
	assert.Equal(t, 2*time.Second, cfg.Store.Timeout)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, "activity", cfg.Events.KafkaTopic)

	dc := cfg.DatabaseConfig()
	assert.Equal(t, "mongodb://localhost:27017", dc.URL)
	assert.Equal(t, 2*time.Second, dc.ConnectTimeout)
}

func TestLoadEnvLists(t *testing.T) {
	clearEnv(t)
	t.Setenv(envPrefix+"KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv(envPrefix+"STORE_TIMEOUT", "750ms")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Events.KafkaBrokers)
	assert.Equal(t, 750*time.Millisecond, cfg.Store.Timeout)
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad driver", map[string]string{"STORE_DRIVER": "redis"}, "unsupported store driver"},
		{"postgres without url", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL is required"},
		{"bad timeout", map[string]string{"STORE_TIMEOUT": "soon"}, "STORE_TIMEOUT"},
		{"negative timeout", map[string]string{"STORE_TIMEOUT": "-1s"}, "must be positive"},
		{"two brokers", map[string]string{"NATS_URL": "nats://localhost:4222", "KAFKA_BROKERS": "k:9092"}, "not both"},
		{"bad level", map[string]string{"LOG_LEVEL": "loud"}, "invalid log level"},
		{"bad format", map[string]string{"LOG_FORMAT": "xml"}, "invalid log format"},
		{"missing file", map[string]string{"CONFIG": "/nonexistent/config.yaml"}, "read config"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range tt.env {
				t.Setenv(envPrefix+k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFileRejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: [unterminated"), 0o600))

	err := Default().LoadFile(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse config")
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "delivery", "abc")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"), out)
	assert.Contains(t, out, `"delivery":"abc"`)
}
