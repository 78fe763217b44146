package ai

import "fmt"

// KeywordStrategy selects how keywords are scored.
type KeywordStrategy string

const (
	// StrategyFrequency scores terms by count relative to the most frequent term.
	StrategyFrequency KeywordStrategy = "frequency"
	// StrategyTFIDF scores terms by TF-IDF weight under a corpus-fitted model.
	StrategyTFIDF KeywordStrategy = "tfidf"
)

// ParseKeywordStrategy converts a configuration string to a KeywordStrategy.
func ParseKeywordStrategy(s string) (KeywordStrategy, error) {
	switch KeywordStrategy(s) {
	case StrategyFrequency, StrategyTFIDF:
		return KeywordStrategy(s), nil
	}
	return "", fmt.Errorf("unknown keyword strategy %q: must be one of %s, %s", s, StrategyFrequency, StrategyTFIDF)
}
