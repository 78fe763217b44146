package mock

import (
	"context"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/poiesic/articlevec/core"
)

// MockKeywordExtractor is a test double for ai.KeywordExtractor.
type MockKeywordExtractor struct {
	// ExtractKeywordsFunc is called by ExtractKeywords if set.
	ExtractKeywordsFunc func(ctx context.Context, text string, topK int) (core.KeywordScores, error)

	mu        sync.Mutex
	callCount int
}

// NewMockKeywordExtractor creates a mock extractor with default behavior.
func NewMockKeywordExtractor() *MockKeywordExtractor {
	return &MockKeywordExtractor{}
}

// ExtractKeywords returns the distinct whitespace-separated words of text
// that are at least two runes long, scored 1/(position+1).
func (m *MockKeywordExtractor) ExtractKeywords(ctx context.Context, text string, topK int) (core.KeywordScores, error) {
	m.mu.Lock()
	m.callCount++
	m.mu.Unlock()

	if m.ExtractKeywordsFunc != nil {
		return m.ExtractKeywordsFunc(ctx, text, topK)
	}
	if topK <= 0 {
		return nil, core.Invalid(core.ErrInvalidTopK)
	}

	seen := make(map[string]bool)
	scores := core.KeywordScores{}
	for _, word := range strings.Fields(text) {
		if utf8.RuneCountInString(word) < 2 || seen[word] {
			continue
		}
		seen[word] = true
		scores = append(scores, core.KeywordScore{Keyword: word, Score: 1.0 / float64(len(scores)+1)})
		if len(scores) == topK {
			break
		}
	}
	return scores, nil
}

// CallCount returns the number of ExtractKeywords calls.
func (m *MockKeywordExtractor) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
