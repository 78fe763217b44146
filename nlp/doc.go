// Package nlp turns free text into scored keywords.
//
// Text goes through three stages:
//
//   - StripMarkup reduces crawled HTML summaries to their text content
//   - Normalize keeps Hangul syllables, ASCII letters, digits and whitespace
//   - Tokenizer lowercases, strips trailing Korean particles and drops
//     stopwords and single-rune tokens
//
// Two ai.KeywordExtractor strategies sit on top: FrequencyExtractor scores
// terms by count relative to the most frequent kept term, and TFIDF scores
// them under a corpus-fitted vocabulary. Both break ties by encounter order.
package nlp
