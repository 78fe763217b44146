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


// Package ai provides abstractions for the model-backed services used by
// articlevec.
//
// This package defines interfaces for text embedding and keyword extraction.
// Domain packages depend on these abstractions rather than on concrete model
// clients, so the same pipeline runs against a real embedding server, the
// deterministic mocks in ai/mock, or the Unavailable stand-in used before the
// models are loaded.
//
// # Design Principles
//
// The package is designed around three interfaces:
//
//   - Embedder: Generates fixed-dimension vector embeddings from text
//   - KeywordExtractor: Scores the most important terms of a text
//   - AIProvider: Aggregates both plus the model version tag
//
// # Usage Example
//
//	config := ai.NewConfig(
//	    ai.WithEmbeddingHost("http://localhost:11434/v1"),
//	    ai.WithEmbeddingModel("ko-sroberta-multitask"),
//	    ai.WithDimension(768),
//	)
//
//	provider, err := openai.NewProvider(config, nlp.NewFrequencyExtractor(nlp.DefaultStopwords()))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer provider.Close()
//
//	vectors, err := provider.Embedder().EmbedTexts(ctx, []string{"경제", "성장률"})
//	keywords, err := provider.KeywordExtractor().ExtractKeywords(ctx, "경제 성장률이 둔화되고 있다", 10)
//
//	// Before the models are ready
//	provider := ai.Unavailable(nil)
//	_, err := provider.Embedder().EmbedText(ctx, "x") // errors.Is(err, core.ErrServiceNotReady)
package ai
