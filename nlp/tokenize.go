package nlp

import (
	"strings"
	"unicode/utf8"
)

// particles are Korean postpositions commonly attached to nouns, longest first.
var particles = []string{
	"에서는", "으로는", "에게서", "까지는",
	"에서", "으로", "에게", "까지", "부터", "에는", "와의", "과의", "이나", "이며", "처럼",
	"은", "는", "이", "가", "을", "를", "의", "에", "로", "와", "과", "도", "만",
}

// Tokenizer splits normalized text into candidate keyword terms.
type Tokenizer struct {
	stopwords      Stopwords
	stripParticles bool
}

// NewTokenizer creates a tokenizer that drops the given stopwords and strips
// trailing Korean particles.
func NewTokenizer(stopwords Stopwords) *Tokenizer {
	if stopwords == nil {
		stopwords = Stopwords{}
	}
	return &Tokenizer{stopwords: stopwords, stripParticles: true}
}

// WithoutParticleStripping returns a copy of the tokenizer that keeps tokens
// exactly as split.
func (t *Tokenizer) WithoutParticleStripping() *Tokenizer {
	return &Tokenizer{stopwords: t.stopwords, stripParticles: false}
}

// Tokens returns the kept terms of text in encounter order, duplicates included.
func (t *Tokenizer) Tokens(text string) []string {
	fields := strings.Fields(strings.ToLower(Normalize(text)))
	tokens := make([]string, 0, len(fields))
	for _, tok := range fields {
		if t.stripParticles {
			tok = stripParticle(tok)
		}
		if utf8.RuneCountInString(tok) < 2 || t.stopwords.Contains(tok) {
			continue
		}
		tokens = append(tokens, tok)
	}
	return tokens
}

// stripParticle removes one trailing particle from an all-Hangul token when
// at least two runes remain.
func stripParticle(tok string) string {
	for _, r := range tok {
		if !isHangulSyllable(r) {
			return tok
		}
	}
	for _, p := range particles {
		if strings.HasSuffix(tok, p) {
			stem := strings.TrimSuffix(tok, p)
			if utf8.RuneCountInString(stem) >= 2 {
				return stem
			}
		}
	}
	return tok
}
