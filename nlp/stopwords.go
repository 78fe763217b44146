package nlp

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stopwords is a set of lowercase terms excluded from keyword extraction.
type Stopwords map[string]struct{}

var defaultStopwords = []string{
	// Korean function words and light verbs
	"있다", "없다", "하다", "되다", "이다", "않다", "같다", "그리고", "그러나", "하지만",
	"또한", "또는", "및", "등", "것", "수", "때", "중", "더", "이번", "지난", "현재",
	"통해", "위해", "대한", "대해", "관련", "이후", "이전", "따르면", "밝혔다", "말했다",
	"있는", "있었다", "했다", "한다", "된다", "이라고", "라고", "에서", "으로", "에게",
	"오늘", "어제", "기자", "뉴스", "연합뉴스",
	// English
	"the", "an", "be", "is", "are", "was", "to", "of", "and", "in", "that",
	"have", "it", "for", "not", "on", "with", "as", "you", "do", "at", "this",
	"but", "by", "from",
}

// DefaultStopwords returns the built-in Korean and English stopword list.
func DefaultStopwords() Stopwords {
	return NewStopwords(defaultStopwords...)
}

// NewStopwords builds a set from words. Blank entries are ignored.
func NewStopwords(words ...string) Stopwords {
	s := make(Stopwords, len(words))
	s.Add(words...)
	return s
}

// Add inserts words into the set.
func (s Stopwords) Add(words ...string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			s[w] = struct{}{}
		}
	}
}

// Contains reports whether word is a stopword.
func (s Stopwords) Contains(word string) bool {
	_, ok := s[word]
	return ok
}

// LoadStopwords reads the first column of a CSV file. A header row named
// "word" or "stopword" is skipped.
func LoadStopwords(path string) (Stopwords, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	s := make(Stopwords)
	for first := true; ; first = false {
		record, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read stopwords %s: %w", path, err)
		}
		if len(record) == 0 {
			continue
		}
		word := strings.TrimPrefix(record[0], "\ufeff")
		if first && (strings.EqualFold(word, "word") || strings.EqualFold(word, "stopword")) {
			continue
		}
		s.Add(word)
	}
	return s, nil
}
