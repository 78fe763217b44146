// Package mock provides test double implementations of AI service interfaces.
//
// This package contains mock implementations of ai.Embedder,
// ai.KeywordExtractor and ai.AIProvider for use in unit tests. The mocks allow
// tests to run without an embedding server and give controlled, deterministic
// behavior.
//
// # Usage in Tests
//
//	// Basic usage with default behavior
//	mockProvider := mock.NewMockProvider(8)
//	vectors, err := mockProvider.Embedder().EmbedTexts(ctx, []string{"경제"})
//
//	// Custom behavior injection
//	embedder := mock.NewMockEmbedder(8)
//	embedder.EmbedTextsFunc = func(ctx context.Context, texts []string) ([][]float32, error) {
//	    return nil, errors.New("server down")
//	}
//
//	// Check call counts
//	count := embedder.CallCount()
//
// # Default Behavior
//
//   - MockEmbedder: Returns deterministic unit vectors seeded by a text hash
//   - MockKeywordExtractor: Scores distinct words by position
//   - MockProvider: Aggregates mock embedder and extractor
package mock
