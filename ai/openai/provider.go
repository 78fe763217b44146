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

package openai

import (
	"errors"
	"log/slog"

	"github.com/poiesic/articlevec/ai"
)

// ErrExtractorRequired is returned when NewProvider gets a nil extractor.
var ErrExtractorRequired = errors.New("keyword extractor is required")

// Provider implements ai.AIProvider with a remote embedder and a local
// keyword extractor.
type Provider struct {
	config    *ai.Config
	embedder  *Embedder
	extractor ai.KeywordExtractor
	logger    *slog.Logger
}

// NewProvider creates a new OpenAI-compatible AI provider.
func NewProvider(config *ai.Config, extractor ai.KeywordExtractor) (ai.AIProvider, error) {
	if extractor == nil {
		return nil, ErrExtractorRequired
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}

	embedder, err := newEmbedder(config)
	if err != nil {
		return nil, err
	}

	return &Provider{
		config:    config,
		embedder:  embedder,
		extractor: extractor,
		logger:    slog.Default().With("component", "openai-provider"),
	}, nil
}

func (p *Provider) Embedder() ai.Embedder {
	return p.embedder
}

func (p *Provider) KeywordExtractor() ai.KeywordExtractor {
	return p.extractor
}

func (p *Provider) ModelVersion() string {
	return p.config.Version()
}

func (p *Provider) Close() error {
	p.logger.Debug("closing OpenAI provider")
	return nil
}
