package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/storage/sqlstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// isolate runs the test in an empty directory with no overriding env vars.
func isolate(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	for _, name := range []string{
		"ARTICLEVEC_STORAGE_DRIVER", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME",
		"EMBEDDING_HOST", "EMBEDDING_MODEL", "EMBEDDING_API_KEY",
	} {
		t.Setenv(name, "")
		os.Unsetenv(name)
	}
	return dir
}

func writeFile(t *testing.T, path, contents string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o600))
}

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, ":8000", cfg.Server.Addr)
	assert.Equal(t, DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, 768, cfg.Embedding.Dimension)
	assert.Equal(t, "tfidf", cfg.Keywords.Strategy)
	assert.Equal(t, 10, cfg.Keywords.TopK)
	assert.Equal(t, 2, cfg.Keywords.MinDF)
	assert.Equal(t, 0.8, cfg.Keywords.MaxDF)
	assert.Equal(t, 10000, cfg.Keywords.MaxFeatures)
	assert.Equal(t, 3, cfg.Vectorize.MaxRetries)
	assert.Equal(t, time.Second, cfg.Vectorize.RetryDelay)
	assert.Equal(t, 100, cfg.Vectorize.SweepLimit)
	assert.Equal(t, 0.3, cfg.Search.Threshold)
	assert.Equal(t, 0.0, cfg.Profile.FeedThreshold)
	assert.Equal(t, map[string]float64{"scrap": 1.5, "click": 1.0, "search": 0.8}, cfg.Profile.ActionWeights)
	assert.Equal(t, 4, cfg.Workers.Size)
	require.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	dir := isolate(t)

	cfg, err := Load(filepath.Join(dir, "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)

	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, Defaults(), cfg)
}

func TestLoad_File(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, `
server:
  addr: ":9090"
storage:
  driver: sqlite
  path: /var/lib/articlevec/articles.db
embedding:
  host: http://embed:8080
  dimension: 384
keywords:
  strategy: frequency
  top_k: 5
vectorize:
  retry_delay: 250ms
  sweep_schedule: "@every 10m"
search:
  threshold: 0.5
  query_mode: keywords
profile:
  action_weights:
    scrap: 2.0
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 384, cfg.Embedding.Dimension)
	assert.Equal(t, "frequency", cfg.Keywords.Strategy)
	assert.Equal(t, 5, cfg.Keywords.TopK)
	assert.Equal(t, 250*time.Millisecond, cfg.Vectorize.RetryDelay)
	assert.Equal(t, "@every 10m", cfg.Vectorize.SweepSchedule)
	assert.Equal(t, 0.5, cfg.Search.Threshold)
	assert.Equal(t, "keywords", cfg.Search.QueryMode)
	assert.Equal(t, 2.0, cfg.ActionWeights()[core.ActionScrap])
	// untouched sections keep their defaults
	assert.Equal(t, 4, cfg.Workers.Size)
	assert.Equal(t, 10000, cfg.Keywords.MaxFeatures)

	aiCfg := cfg.AIConfig()
	require.NoError(t, aiCfg.Validate())
	assert.Equal(t, "http://embed:8080/v1", aiCfg.EmbeddingHost)
	assert.Equal(t, ai.StrategyFrequency, aiCfg.KeywordStrategy)
	assert.Equal(t, "frequency/ko-sroberta-multitask/384", aiCfg.Version())
}

func TestLoad_EnvOverrides(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "storage:\n  driver: mysql\n  host: db.internal\n  name: news\n")
	writeFile(t, filepath.Join(dir, ".env"), "DB_PASSWORD=from-dotenv\nEMBEDDING_MODEL=bge-m3\n")
	t.Setenv("DB_HOST", "db.override")
	t.Setenv("DB_PORT", "3307")
	t.Setenv("DB_USER", "reader")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "db.override", cfg.Storage.Host)
	assert.Equal(t, 3307, cfg.Storage.Port)
	assert.Equal(t, "reader", cfg.Storage.User)
	assert.Equal(t, "from-dotenv", cfg.Storage.Password)
	assert.Equal(t, "bge-m3", cfg.Embedding.Model)

	sqlCfg, err := cfg.SQLConfig()
	require.NoError(t, err)
	assert.Equal(t, sqlstore.MySQL, sqlCfg.Dialect)
	assert.Equal(t, "news", sqlCfg.Name)
	assert.Equal(t, 20, sqlCfg.MaxOpenConns)
}

func TestLoad_Errors(t *testing.T) {
	dir := isolate(t)

	t.Run("malformed yaml", func(t *testing.T) {
		path := filepath.Join(dir, "bad.yaml")
		writeFile(t, path, "server: [")
		_, err := Load(path)
		assert.ErrorContains(t, err, "parse config")
	})

	t.Run("bad port", func(t *testing.T) {
		t.Setenv("DB_PORT", "mysql")
		_, err := Load("")
		assert.ErrorContains(t, err, "DB_PORT")
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown driver", func(c *Config) { c.Storage.Driver = "postgres" }, "unknown storage driver"},
		{"badger without path", func(c *Config) { c.Storage.Path = "" }, "storage.path"},
		{"mysql without name", func(c *Config) { c.Storage.Driver = DriverMySQL }, "storage.name"},
		{"zero dimension", func(c *Config) { c.Embedding.Dimension = 0 }, "Dimension"},
		{"bad strategy", func(c *Config) { c.Keywords.Strategy = "bm25" }, "unknown keyword strategy"},
		{"min df", func(c *Config) { c.Keywords.MinDF = 0 }, "min_df"},
		{"max df", func(c *Config) { c.Keywords.MaxDF = 1.5 }, "max_df"},
		{"retries", func(c *Config) { c.Vectorize.MaxRetries = 0 }, "max_retries"},
		{"sweep limit", func(c *Config) { c.Vectorize.SweepLimit = 0 }, "sweep_limit"},
		{"search threshold", func(c *Config) { c.Search.Threshold = 1.1 }, "search.threshold"},
		{"query mode", func(c *Config) { c.Search.QueryMode = "hybrid" }, "query_mode"},
		{"feed threshold", func(c *Config) { c.Profile.FeedThreshold = -0.5 }, "feed_threshold"},
		{"negative weight", func(c *Config) { c.Profile.ActionWeights["click"] = -1 }, "action_weights"},
		{"workers", func(c *Config) { c.Workers.Size = 0 }, "workers.size"},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }, "invalid log level"},
		{"log format", func(c *Config) { c.Log.Format = "xml" }, "invalid log format"},
		{"log output", func(c *Config) { c.Log.Output = "syslog" }, "invalid log output"},
		{"log file", func(c *Config) { c.Log.Output = "both" }, "log.file_path"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("in-memory badger needs no path", func(t *testing.T) {
		cfg := Defaults()
		cfg.Storage.Path = ""
		cfg.Storage.InMemory = true
		assert.NoError(t, cfg.Validate())
	})
}

func TestLogLevel(t *testing.T) {
	cfg := Defaults()
	for in, want := range map[string]slog.Level{
		"debug": slog.LevelDebug, "INFO": slog.LevelInfo, "warn": slog.LevelWarn, "error": slog.LevelError,
	} {
		cfg.Log.Level = in
		got, err := cfg.LogLevel()
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestVectorizerConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Keywords.TopK = 7
	v := cfg.VectorizerConfig()
	assert.Equal(t, 7, v.TopK)
	assert.Equal(t, 3, v.MaxRetries)

	opts := cfg.TFIDFOptions()
	assert.Equal(t, 2, opts.MinDF)
}

func TestTokenizer(t *testing.T) {
	cfg := Defaults()
	assert.True(t, cfg.Keywords.StripParticles)
	assert.Equal(t, []string{"성장률", "둔화"}, cfg.Tokenizer(nil).Tokens("성장률이 둔화"))

	cfg.Keywords.StripParticles = false
	assert.Equal(t, []string{"성장률이", "둔화"}, cfg.Tokenizer(nil).Tokens("성장률이 둔화"))
}

func TestLoad_StripParticlesFromFile(t *testing.T) {
	dir := isolate(t)
	path := filepath.Join(dir, "config.yaml")
	writeFile(t, path, "keywords:\n  strip_particles: false\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.Keywords.StripParticles)
}
