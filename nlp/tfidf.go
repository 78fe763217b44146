package nlp

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"slices"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/core"
)

var (
	// ErrEmptyCorpus is returned when fitting on zero documents.
	ErrEmptyCorpus = errors.New("tfidf: corpus is empty")

	// ErrEmptyVocabulary is returned when pruning leaves no terms.
	ErrEmptyVocabulary = errors.New("tfidf: no terms remain after pruning; lower min_df or raise max_df")

	// ErrInvalidOptions is returned for inconsistent fit options.
	ErrInvalidOptions = errors.New("tfidf: invalid options")
)

const tfidfFileVersion = 1

// TFIDFOptions controls vocabulary pruning during Fit.
type TFIDFOptions struct {
	// MinDF drops terms found in fewer documents.
	MinDF int `json:"min_df"`
	// MaxDF drops terms found in more than this fraction of documents.
	MaxDF float64 `json:"max_df"`
	// MaxFeatures keeps only the most frequent terms across the corpus. 0 means no cap.
	MaxFeatures int `json:"max_features"`
}

// DefaultTFIDFOptions returns min_df=2, max_df=0.8, max_features=10000.
func DefaultTFIDFOptions() TFIDFOptions {
	return TFIDFOptions{MinDF: 2, MaxDF: 0.8, MaxFeatures: 10000}
}

func (o TFIDFOptions) validate() error {
	if o.MinDF < 1 {
		return fmt.Errorf("%w: min_df must be >= 1", ErrInvalidOptions)
	}
	if o.MaxDF <= 0 || o.MaxDF > 1 {
		return fmt.Errorf("%w: max_df must be in (0, 1]", ErrInvalidOptions)
	}
	if o.MaxFeatures < 0 {
		return fmt.Errorf("%w: max_features must be >= 0", ErrInvalidOptions)
	}
	return nil
}

// TFIDF is a fitted vocabulary with smoothed inverse document frequencies.
// It is immutable after Fit or Load and safe for concurrent use.
type TFIDF struct {
	tokenizer  *Tokenizer
	vocabulary map[string]int
	terms      []string
	idf        []float64
	documents  int
	options    TFIDFOptions
}

var _ ai.KeywordExtractor = (*TFIDF)(nil)

// FitTFIDF builds a vocabulary from corpus. Term counts use raw frequency,
// idf is ln((1+n)/(1+df)) + 1.
func FitTFIDF(corpus []string, tokenizer *Tokenizer, opts TFIDFOptions) (*TFIDF, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}

	df := make(map[string]int)
	total := make(map[string]int)
	for _, doc := range corpus {
		seen := make(map[string]bool)
		for _, tok := range tokenizer.Tokens(doc) {
			total[tok]++
			if !seen[tok] {
				seen[tok] = true
				df[tok]++
			}
		}
	}

	maxDocs := opts.MaxDF * float64(len(corpus))
	if maxDocs < float64(opts.MinDF) {
		return nil, fmt.Errorf("%w: max_df corresponds to fewer documents than min_df", ErrInvalidOptions)
	}

	kept := make([]string, 0, len(df))
	for term, n := range df {
		if n >= opts.MinDF && float64(n) <= maxDocs {
			kept = append(kept, term)
		}
	}
	if opts.MaxFeatures > 0 && len(kept) > opts.MaxFeatures {
		slices.SortFunc(kept, func(a, b string) int {
			if c := cmp.Compare(total[b], total[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		kept = kept[:opts.MaxFeatures]
	}
	if len(kept) == 0 {
		return nil, ErrEmptyVocabulary
	}
	slices.Sort(kept)

	n := float64(len(corpus))
	idf := make([]float64, len(kept))
	for i, term := range kept {
		idf[i] = math.Log((1+n)/(1+float64(df[term]))) + 1
	}
	return newTFIDF(tokenizer, kept, idf, len(corpus), opts), nil
}

func newTFIDF(tokenizer *Tokenizer, terms []string, idf []float64, documents int, opts TFIDFOptions) *TFIDF {
	vocabulary := make(map[string]int, len(terms))
	for i, term := range terms {
		vocabulary[term] = i
	}
	return &TFIDF{
		tokenizer:  tokenizer,
		vocabulary: vocabulary,
		terms:      terms,
		idf:        idf,
		documents:  documents,
		options:    opts,
	}
}

// Len returns the vocabulary size.
func (m *TFIDF) Len() int {
	return len(m.terms)
}

// Documents returns the number of documents the model was fitted on.
func (m *TFIDF) Documents() int {
	return m.documents
}

// IDF returns the inverse document frequency of term and whether it is in
// the vocabulary.
func (m *TFIDF) IDF(term string) (float64, bool) {
	i, ok := m.vocabulary[term]
	if !ok {
		return 0, false
	}
	return m.idf[i], true
}

// ExtractKeywords implements ai.KeywordExtractor. Scores are the L2-normalized
// TF-IDF weights of in-vocabulary terms; only strictly positive weights are kept.
func (m *TFIDF) ExtractKeywords(_ context.Context, text string, topK int) (core.KeywordScores, error) {
	if topK <= 0 {
		return nil, core.Invalid(core.ErrInvalidTopK)
	}

	var inVocab []string
	for _, tok := range m.tokenizer.Tokens(text) {
		if _, ok := m.vocabulary[tok]; ok {
			inVocab = append(inVocab, tok)
		}
	}
	counts := countInOrder(inVocab)

	weights := make([]float64, len(counts))
	var sumSquares float64
	for i, tc := range counts {
		weights[i] = float64(tc.count) * m.idf[m.vocabulary[tc.term]]
		sumSquares += weights[i] * weights[i]
	}

	scores := core.KeywordScores{}
	if sumSquares == 0 {
		return scores, nil
	}
	norm := math.Sqrt(sumSquares)
	for i, tc := range counts {
		if w := weights[i] / norm; w > 0 {
			scores = append(scores, core.KeywordScore{Keyword: tc.term, Score: w})
		}
	}
	slices.SortStableFunc(scores, func(a, b core.KeywordScore) int {
		return cmp.Compare(b.Score, a.Score)
	})
	if len(scores) > topK {
		scores = scores[:topK]
	}
	return scores, nil
}

type tfidfFile struct {
	Version   int          `json:"version"`
	Documents int          `json:"documents"`
	Options   TFIDFOptions `json:"options"`
	Terms     []string     `json:"terms"`
	IDF       []float64    `json:"idf"`
}

// Save writes the model as JSON, replacing path atomically.
func (m *TFIDF) Save(path string) error {
	data, err := json.Marshal(tfidfFile{
		Version:   tfidfFileVersion,
		Documents: m.documents,
		Options:   m.options,
		Terms:     m.terms,
		IDF:       m.idf,
	})
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// LoadTFIDF reads a model written by Save.
func LoadTFIDF(path string, tokenizer *Tokenizer) (*TFIDF, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f tfidfFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("tfidf model %s: %w", path, err)
	}
	if f.Version != tfidfFileVersion {
		return nil, fmt.Errorf("tfidf model %s: unsupported version %d", path, f.Version)
	}
	if len(f.Terms) == 0 || len(f.Terms) != len(f.IDF) {
		return nil, fmt.Errorf("tfidf model %s: %d terms but %d idf values", path, len(f.Terms), len(f.IDF))
	}
	return newTFIDF(tokenizer, f.Terms, f.IDF, f.Documents, f.Options), nil
}
