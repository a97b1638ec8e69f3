package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "USDT", cfg.Binance.QuoteAsset)
	assert.Equal(t, time.Date(2017, time.July, 1, 0, 0, 0, 0, time.UTC), cfg.Listing.Epoch)
	assert.Equal(t, "1d", cfg.Listing.ProbeInterval)
	assert.Equal(t, 1000, cfg.Listing.BatchSize)
	assert.Equal(t, 3, cfg.Exercises.PoolSize)
	assert.Equal(t, 1000, cfg.Exercises.WindowLength)
	assert.Equal(t, "15m", cfg.Exercises.Interval)
	assert.Equal(t, 300, cfg.Exercises.MaxAttempts)
	assert.Equal(t, "file", cfg.Storage.Type)
	assert.Equal(t, ":5000", cfg.Server.Addr)
	assert.True(t, cfg.Log.Console)
}

func TestParse(t *testing.T) {
	data := []byte(`
binance:
  quote_asset: BTC
  request_timeout: 3s
listing:
  epoch: 2019-01-01T00:00:00Z
  probe_interval: 1h
exercises:
  pool_size: 10
  window_length: 200
  interval: 1h
  seed: 42
storage:
  type: redis
  redis:
    addr: redis:6379
log:
  level: debug
  json_file: trendgym.json
`)

	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "BTC", cfg.Binance.QuoteAsset)
	assert.Equal(t, 3*time.Second, cfg.Binance.RequestTimeout)
	assert.Equal(t, time.Date(2019, time.January, 1, 0, 0, 0, 0, time.UTC), cfg.Listing.Epoch.UTC())
	assert.Equal(t, "1h", cfg.Listing.ProbeInterval)
	assert.Equal(t, 10, cfg.Exercises.PoolSize)
	assert.Equal(t, 1000, cfg.Exercises.MaxAttempts, "по умолчанию 100 попыток на упражнение")
	assert.Equal(t, int64(42), cfg.Exercises.Seed)
	assert.Equal(t, "redis:6379", cfg.Storage.Redis.Addr)
	assert.Equal(t, "trendgym:", cfg.Storage.Redis.Prefix)
	assert.False(t, cfg.Log.Console, "консоль выключена, когда задан файл")

	opts := cfg.Log.LoggerOptions()
	assert.Equal(t, "debug", opts.Level)
	assert.Equal(t, "trendgym.json", opts.JSONFile)
}

func TestParse_Env(t *testing.T) {
	t.Setenv("BINANCE_API_KEY", "key-from-env")
	t.Setenv("TRENDGYM_POSTGRES_DSN", "postgres://u:p@db/trendgym")

	cfg, err := Parse([]byte("binance:\n  api_key: from-file\nstorage:\n  type: postgres\n"))
	require.NoError(t, err)
	assert.Equal(t, "key-from-env", cfg.Binance.APIKey)
	assert.Equal(t, "postgres://u:p@db/trendgym", cfg.Storage.Postgres.DSN)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown interval", "exercises:\n  interval: 7m\n", "exercises.interval"},
		{"unknown probe interval", "listing:\n  probe_interval: 2w\n", "listing.probe_interval"},
		{"batch too large", "listing:\n  batch_size: 5000\n", "listing.batch_size"},
		{"negative pool", "exercises:\n  pool_size: -1\n", "exercises.pool_size"},
		{"short window", "exercises:\n  window_length: 1\n", "exercises.window_length"},
		{"attempts below pool", "exercises:\n  pool_size: 10\n  max_attempts: 5\n", "exercises.max_attempts"},
		{"unknown storage", "storage:\n  type: sqlite\n", "storage.type"},
		{"postgres without dsn", "storage:\n  type: postgres\n", "storage.postgres.dsn"},
		{"influx without url", "storage:\n  influx:\n    enabled: true\n", "storage.influx"},
		{"broken yaml", "exercises: [", "ошибка разбора"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("TRENDGYM_POSTGRES_DSN", "")
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":8080\"\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Addr)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoadEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("TRENDGYM_INFLUX_TOKEN=secret\n"), 0644))
	t.Setenv("TRENDGYM_INFLUX_TOKEN", "")
	require.NoError(t, os.Unsetenv("TRENDGYM_INFLUX_TOKEN"))

	LoadEnv(path)
	LoadEnv(filepath.Join(t.TempDir(), "missing.env"))

	cfg, err := Parse([]byte("{}"))
	require.NoError(t, err)
	assert.Equal(t, "secret", cfg.Storage.Influx.Token)
}
