package core

import (
	"bytes"
	"cmp"
	"encoding/json"
	"fmt"
	"slices"
)

// KeywordScore is one extracted keyword and its importance.
type KeywordScore struct {
	Keyword string
	Score   float64
}

// KeywordScores is an ordered keyword -> score mapping. It encodes as a JSON
// object whose member order is the slice order.
type KeywordScores []KeywordScore

// Keywords returns the keywords in order.
func (k KeywordScores) Keywords() []string {
	out := make([]string, len(k))
	for i, ks := range k {
		out[i] = ks.Keyword
	}
	return out
}

// Score returns the score of keyword and whether it is present.
func (k KeywordScores) Score(keyword string) (float64, bool) {
	for _, ks := range k {
		if ks.Keyword == keyword {
			return ks.Score, true
		}
	}
	return 0, false
}

// Top returns at most n entries ordered by descending score. Equal scores
// keep their stored order.
func (k KeywordScores) Top(n int) KeywordScores {
	if n <= 0 {
		return KeywordScores{}
	}
	top := slices.Clone(k)
	slices.SortStableFunc(top, func(a, b KeywordScore) int {
		return cmp.Compare(b.Score, a.Score)
	})
	return top[:min(n, len(top))]
}

// MarshalJSON implements json.Marshaler.
func (k KeywordScores) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, ks := range k {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(ks.Keyword)
		if err != nil {
			return nil, err
		}
		score, err := json.Marshal(ks.Score)
		if err != nil {
			return nil, fmt.Errorf("keyword %q: %w", ks.Keyword, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(score)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON implements json.Unmarshaler. Member order is preserved.
func (k *KeywordScores) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*k = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("keyword scores: expected object, got %v", tok)
	}

	out := KeywordScores{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("keyword scores: expected key, got %v", tok)
		}
		var score float64
		if err := dec.Decode(&score); err != nil {
			return fmt.Errorf("keyword scores: %q: %w", key, err)
		}
		out = append(out, KeywordScore{Keyword: key, Score: score})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*k = out
	return nil
}
