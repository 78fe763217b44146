// Package config loads service settings from a YAML file, a .env file and
// the environment, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/profile"
	"github.com/poiesic/articlevec/search"
	"github.com/poiesic/articlevec/storage/sqlstore"
	"github.com/poiesic/articlevec/vectorize"
)

// Storage drivers.
const (
	DriverBadger = "badger"
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Keywords  KeywordsConfig  `yaml:"keywords"`
	Vectorize VectorizeConfig `yaml:"vectorize"`
	Search    SearchConfig    `yaml:"search"`
	Profile   ProfileConfig   `yaml:"profile"`
	Workers   WorkersConfig   `yaml:"workers"`
	Log       LogConfig       `yaml:"log"`
}

type ServerConfig struct {
	Addr           string        `yaml:"addr"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

type StorageConfig struct {
	Driver string `yaml:"driver"`

	// Path is the badger directory or the sqlite file.
	Path     string `yaml:"path"`
	InMemory bool   `yaml:"in_memory"`

	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Name            string        `yaml:"name"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type EmbeddingConfig struct {
	Host         string `yaml:"host"`
	Model        string `yaml:"model"`
	APIKey       string `yaml:"api_key"`
	Dimension    int    `yaml:"dimension"`
	BatchSize    int    `yaml:"batch_size"`
	ModelVersion string `yaml:"model_version"`
}

type KeywordsConfig struct {
	Strategy       string  `yaml:"strategy"`
	TopK           int     `yaml:"top_k"`
	StopwordsPath  string  `yaml:"stopwords_path"`
	TFIDFModelPath string  `yaml:"tfidf_model_path"`
	MinDF          int     `yaml:"min_df"`
	MaxDF          float64 `yaml:"max_df"`
	MaxFeatures    int     `yaml:"max_features"`

	// StripParticles removes trailing Korean particles from tokens.
	StripParticles bool `yaml:"strip_particles"`
}

type VectorizeConfig struct {
	MaxRetries     int           `yaml:"max_retries"`
	RetryDelay     time.Duration `yaml:"retry_delay"`
	ReportInterval int           `yaml:"report_interval"`
	SweepLimit     int           `yaml:"sweep_limit"`

	// SweepSchedule is a cron spec; empty disables the scheduled sweep.
	SweepSchedule string `yaml:"sweep_schedule"`
}

type SearchConfig struct {
	Threshold float64 `yaml:"threshold"`
	QueryMode string  `yaml:"query_mode"`
}

type ProfileConfig struct {
	FeedThreshold float64            `yaml:"feed_threshold"`
	ActionWeights map[string]float64 `yaml:"action_weights"`
}

type WorkersConfig struct {
	Size int `yaml:"size"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`

	// Output is stdout, stderr, file or both (stderr plus file).
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// Defaults returns a Config with all default values set.
func Defaults() *Config {
	aiDefaults := ai.DefaultConfig()
	tfidf := nlp.DefaultTFIDFOptions()
	vec := vectorize.DefaultConfig()

	weights := make(map[string]float64)
	for action, w := range profile.DefaultActionWeights() {
		weights[string(action)] = w
	}

	return &Config{
		Server: ServerConfig{
			Addr:           ":8000",
			ReadTimeout:    15 * time.Second,
			WriteTimeout:   60 * time.Second,
			RequestTimeout: 60 * time.Second,
		},
		Storage: StorageConfig{
			Driver:          DriverBadger,
			Path:            "./articlevec-data",
			Host:            "localhost",
			Port:            3306,
			MaxOpenConns:    20,
			MaxIdleConns:    5,
			ConnMaxLifetime: time.Hour,
		},
		Embedding: EmbeddingConfig{
			Host:      aiDefaults.EmbeddingHost,
			Model:     aiDefaults.EmbeddingModel,
			APIKey:    aiDefaults.APIKey,
			Dimension: aiDefaults.Dimension,
			BatchSize: aiDefaults.BatchSize,
		},
		Keywords: KeywordsConfig{
			Strategy:       string(aiDefaults.KeywordStrategy),
			TopK:           aiDefaults.TopK,
			TFIDFModelPath: "./tfidf.json",
			MinDF:          tfidf.MinDF,
			MaxDF:          tfidf.MaxDF,
			MaxFeatures:    tfidf.MaxFeatures,
			StripParticles: true,
		},
		Vectorize: VectorizeConfig{
			MaxRetries:     vec.MaxRetries,
			RetryDelay:     vec.RetryDelay,
			ReportInterval: vec.ReportInterval,
			SweepLimit:     100,
		},
		Search: SearchConfig{
			Threshold: 0.3,
			QueryMode: string(search.ModeSentence),
		},
		Profile: ProfileConfig{
			FeedThreshold: 0,
			ActionWeights: weights,
		},
		Workers: WorkersConfig{Size: 4},
		Log:     LogConfig{Level: "info", Format: "text", Output: "stderr"},
	}
}

// Load reads .env from the working directory when present, then the YAML
// file at path on top of Defaults, then environment overrides. A missing
// file leaves the defaults in place. The result is validated.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	cfg := Defaults()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Debug("config file not found, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides database and embedding settings from the environment.
func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"ARTICLEVEC_STORAGE_DRIVER": &c.Storage.Driver,
		"DB_HOST":                   &c.Storage.Host,
		"DB_USER":                   &c.Storage.User,
		"DB_PASSWORD":               &c.Storage.Password,
		"DB_NAME":                   &c.Storage.Name,
		"EMBEDDING_HOST":            &c.Embedding.Host,
		"EMBEDDING_MODEL":           &c.Embedding.Model,
		"EMBEDDING_API_KEY":         &c.Embedding.APIKey,
	}
	for name, field := range strs {
		if v, ok := os.LookupEnv(name); ok && v != "" {
			*field = v
		}
	}

	if v := os.Getenv("DB_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("DB_PORT: %w", err)
		}
		c.Storage.Port = port
	}
	return nil
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Driver {
	case DriverBadger:
		if c.Storage.Path == "" && !c.Storage.InMemory {
			errs = append(errs, errors.New("storage.path is required for badger"))
		}
	case DriverSQLite:
		if c.Storage.Path == "" {
			errs = append(errs, errors.New("storage.path is required for sqlite"))
		}
	case DriverMySQL:
		if c.Storage.Host == "" || c.Storage.Name == "" {
			errs = append(errs, errors.New("storage.host and storage.name are required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Storage.Driver))
	}

	if err := c.AIConfig().Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Keywords.MinDF < 1 {
		errs = append(errs, errors.New("keywords.min_df must be >= 1"))
	}
	if c.Keywords.MaxDF <= 0 || c.Keywords.MaxDF > 1 {
		errs = append(errs, errors.New("keywords.max_df must be in (0, 1]"))
	}
	if c.Vectorize.MaxRetries <= 0 {
		errs = append(errs, errors.New("vectorize.max_retries must be > 0"))
	}
	if c.Vectorize.SweepLimit <= 0 {
		errs = append(errs, errors.New("vectorize.sweep_limit must be > 0"))
	}
	if !inUnitRange(c.Search.Threshold) {
		errs = append(errs, fmt.Errorf("search.threshold: %w", core.ErrInvalidThreshold))
	}
	if _, err := search.ParseQueryMode(c.Search.QueryMode); err != nil {
		errs = append(errs, fmt.Errorf("search.query_mode: %w", err))
	}
	if !inUnitRange(c.Profile.FeedThreshold) {
		errs = append(errs, fmt.Errorf("profile.feed_threshold: %w", core.ErrInvalidThreshold))
	}
	if err := c.ActionWeights().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("profile.action_weights: %w", err))
	}
	if c.Workers.Size <= 0 {
		errs = append(errs, errors.New("workers.size must be > 0"))
	}
	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	switch strings.ToLower(c.Log.Format) {
	case "", "text", "json":
	default:
		errs = append(errs, fmt.Errorf("invalid log format %q (must be text or json)", c.Log.Format))
	}
	switch strings.ToLower(c.Log.Output) {
	case "", "stdout", "stderr":
	case "file", "both":
		if c.Log.FilePath == "" {
			errs = append(errs, errors.New("log.file_path is required when log.output is file or both"))
		}
	default:
		errs = append(errs, fmt.Errorf("invalid log output %q", c.Log.Output))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func inUnitRange(f float64) bool {
	return f >= 0 && f <= 1
}

// AIConfig returns the embedding and keyword settings as an ai.Config.
func (c *Config) AIConfig() *ai.Config {
	return ai.NewConfig(
		ai.WithEmbeddingHost(c.Embedding.Host),
		ai.WithEmbeddingModel(c.Embedding.Model),
		ai.WithAPIKey(c.Embedding.APIKey),
		ai.WithDimension(c.Embedding.Dimension),
		ai.WithBatchSize(c.Embedding.BatchSize),
		ai.WithKeywordStrategy(ai.KeywordStrategy(c.Keywords.Strategy)),
		ai.WithTopK(c.Keywords.TopK),
		ai.WithModelVersion(c.Embedding.ModelVersion),
	)
}

// TFIDFOptions returns the vocabulary pruning settings for fit-tfidf.
func (c *Config) TFIDFOptions() nlp.TFIDFOptions {
	return nlp.TFIDFOptions{
		MinDF:       c.Keywords.MinDF,
		MaxDF:       c.Keywords.MaxDF,
		MaxFeatures: c.Keywords.MaxFeatures,
	}
}

// Tokenizer returns the keyword tokenizer over stopwords.
func (c *Config) Tokenizer(stopwords nlp.Stopwords) *nlp.Tokenizer {
	tok := nlp.NewTokenizer(stopwords)
	if !c.Keywords.StripParticles {
		tok = tok.WithoutParticleStripping()
	}
	return tok
}

// VectorizerConfig returns the batch vectorization settings.
func (c *Config) VectorizerConfig() *vectorize.Config {
	return &vectorize.Config{
		TopK:           c.Keywords.TopK,
		MaxRetries:     c.Vectorize.MaxRetries,
		RetryDelay:     c.Vectorize.RetryDelay,
		ReportInterval: c.Vectorize.ReportInterval,
	}
}

// ActionWeights returns the profile action weights.
func (c *Config) ActionWeights() profile.ActionWeights {
	weights := make(profile.ActionWeights, len(c.Profile.ActionWeights))
	for action, w := range c.Profile.ActionWeights {
		weights[core.Action(strings.ToLower(action))] = w
	}
	return weights
}

// SQLConfig returns connection settings for the mysql and sqlite drivers.
func (c *Config) SQLConfig() (sqlstore.Config, error) {
	dialect, err := sqlstore.ParseDialect(c.Storage.Driver)
	if err != nil {
		return sqlstore.Config{}, err
	}
	return sqlstore.Config{
		Dialect:         dialect,
		Host:            c.Storage.Host,
		Port:            c.Storage.Port,
		User:            c.Storage.User,
		Password:        c.Storage.Password,
		Name:            c.Storage.Name,
		Path:            c.Storage.Path,
		MaxOpenConns:    c.Storage.MaxOpenConns,
		MaxIdleConns:    c.Storage.MaxIdleConns,
		ConnMaxLifetime: c.Storage.ConnMaxLifetime,
	}, nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	switch strings.ToLower(c.Log.Level) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level)
}
