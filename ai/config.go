// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package ai

import (
	"errors"
	"fmt"
	"strings"
)

// Config holds configuration for AI service providers.
type Config struct {
	// EmbeddingHost is the base URL for the embedding service API.
	// Example: "http://localhost:11434/v1" for local OpenAI-compatible server
	EmbeddingHost string

	// EmbeddingModel is the model identifier to use for text embeddings.
	// Example: "ko-sroberta-multitask", "text-embedding-3-small"
	EmbeddingModel string

	// APIKey is sent as the bearer token. Local servers accept any value.
	APIKey string

	// Dimension is the fixed length of every stored vector.
	// Default: 768
	Dimension int

	// BatchSize caps how many texts go into one embedding request.
	// Default: 32
	BatchSize int

	// KeywordStrategy selects frequency or TF-IDF keyword scoring.
	// Default: tfidf
	KeywordStrategy KeywordStrategy

	// TopK is the maximum number of keywords kept per text.
	// Default: 10
	TopK int

	// ModelVersion overrides the derived version tag. When empty, Version
	// derives one from strategy, model and dimension.
	ModelVersion string
}

// ConfigOption configures a Config.
type ConfigOption func(*Config)

func WithEmbeddingHost(host string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingHost = host
	}
}

func WithEmbeddingModel(model string) ConfigOption {
	return func(c *Config) {
		c.EmbeddingModel = model
	}
}

func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

func WithDimension(dim int) ConfigOption {
	return func(c *Config) {
		c.Dimension = dim
	}
}

func WithBatchSize(size int) ConfigOption {
	return func(c *Config) {
		c.BatchSize = size
	}
}

func WithKeywordStrategy(strategy KeywordStrategy) ConfigOption {
	return func(c *Config) {
		c.KeywordStrategy = strategy
	}
}

func WithTopK(k int) ConfigOption {
	return func(c *Config) {
		c.TopK = k
	}
}

func WithModelVersion(version string) ConfigOption {
	return func(c *Config) {
		c.ModelVersion = version
	}
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		EmbeddingHost:   "http://localhost:11434/v1",
		EmbeddingModel:  "ko-sroberta-multitask",
		APIKey:          "none",
		Dimension:       768,
		BatchSize:       32,
		KeywordStrategy: StrategyTFIDF,
		TopK:            10,
	}
}

// NewConfig creates a new Config with the given options.
// Options are applied on top of DefaultConfig.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Normalize ensures the host has the /v1 suffix expected by OpenAI-compatible APIs.
func (c *Config) Normalize() {
	if c.EmbeddingHost != "" && !strings.HasSuffix(c.EmbeddingHost, "/v1") {
		c.EmbeddingHost = strings.TrimSuffix(c.EmbeddingHost, "/")
		c.EmbeddingHost = c.EmbeddingHost + "/v1"
	}
	if c.APIKey == "" {
		c.APIKey = "none"
	}
}

// Version returns the model version tag stored with every vector.
func (c *Config) Version() string {
	if c.ModelVersion != "" {
		return c.ModelVersion
	}
	return fmt.Sprintf("%s/%s/%d", c.KeywordStrategy, c.EmbeddingModel, c.Dimension)
}

// Validate checks the configuration and normalizes it.
func (c *Config) Validate() error {
	c.Normalize()

	if c.EmbeddingHost == "" {
		return errors.New("ai config: EmbeddingHost is required")
	}
	if c.EmbeddingModel == "" {
		return errors.New("ai config: EmbeddingModel is required")
	}
	if c.Dimension <= 0 {
		return errors.New("ai config: Dimension must be greater than 0")
	}
	if c.BatchSize <= 0 {
		return errors.New("ai config: BatchSize must be greater than 0")
	}
	if c.TopK <= 0 {
		return errors.New("ai config: TopK must be greater than 0")
	}
	if _, err := ParseKeywordStrategy(string(c.KeywordStrategy)); err != nil {
		return fmt.Errorf("ai config: %w", err)
	}
	return nil
}
