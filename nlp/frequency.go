package nlp

import (
	"cmp"
	"context"
	"slices"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
)

// FrequencyExtractor scores terms by count / count of the most frequent kept term.
type FrequencyExtractor struct {
	tokenizer *Tokenizer
}

var _ ai.KeywordExtractor = (*FrequencyExtractor)(nil)

// NewFrequencyExtractor creates a frequency extractor using the default
// tokenizer with the given stopwords.
func NewFrequencyExtractor(stopwords Stopwords) *FrequencyExtractor {
	return NewFrequencyExtractorWithTokenizer(NewTokenizer(stopwords))
}

// NewFrequencyExtractorWithTokenizer creates a frequency extractor around tokenizer.
func NewFrequencyExtractorWithTokenizer(tokenizer *Tokenizer) *FrequencyExtractor {
	return &FrequencyExtractor{tokenizer: tokenizer}
}

// ExtractKeywords implements ai.KeywordExtractor. The top term scores 1.0.
func (e *FrequencyExtractor) ExtractKeywords(_ context.Context, text string, topK int) (core.KeywordScores, error) {
	if topK <= 0 {
		return nil, core.Invalid(core.ErrInvalidTopK)
	}

	counts := countInOrder(e.tokenizer.Tokens(text))
	if len(counts) == 0 {
		return core.KeywordScores{}, nil
	}
	slices.SortStableFunc(counts, func(a, b termCount) int {
		return cmp.Compare(b.count, a.count)
	})
	if len(counts) > topK {
		counts = counts[:topK]
	}

	top := float64(counts[0].count)
	scores := make(core.KeywordScores, len(counts))
	for i, tc := range counts {
		scores[i] = core.KeywordScore{Keyword: tc.term, Score: float64(tc.count) / top}
	}
	return scores, nil
}

type termCount struct {
	term  string
	count int
}

// countInOrder counts tokens, listing terms in first-encounter order.
func countInOrder(tokens []string) []termCount {
	index := make(map[string]int, len(tokens))
	var counts []termCount
	for _, tok := range tokens {
		if i, ok := index[tok]; ok {
			counts[i].count++
			continue
		}
		index[tok] = len(counts)
		counts = append(counts, termCount{term: tok, count: 1})
	}
	return counts
}
