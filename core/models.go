package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ID identifies articles and users. IDs are assigned by the external
// article/user store; zero means "no id".
type ID int64

// ContentHash returns a 64-bit BLAKE2b digest of text. It is stored next to
// each article vector so an unchanged summary can be recognised without
// re-embedding it.
func ContentHash(text string) uint64 {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	return binary.LittleEndian.Uint64(h.Sum(nil))
}

// Article is the subset of the external article entity this service reads.
type Article struct {
	ID          ID        `json:"article_id" yaml:"article_id"`
	Title       string    `json:"title" yaml:"title"`
	Summary     string    `json:"summary" yaml:"summary"`
	PublishedAt time.Time `json:"published_at" yaml:"published_at"`
	CreatedAt   time.Time `json:"created_at" yaml:"created_at"`
}

// ArticleVector is the stored semantic fingerprint of one article.
type ArticleVector struct {
	ArticleID ID

	// KeywordScores is ordered by descending score.
	KeywordScores KeywordScores

	// KeywordVectors holds one embedding per keyword; its keys are a subset
	// of KeywordScores.
	KeywordVectors map[string][]float32

	// RepresentativeVector is the score-weighted, L2-normalized average of
	// KeywordVectors, or the zero vector when there was nothing to average.
	// Nil means it was never computed.
	RepresentativeVector []float32

	ModelVersion string

	// SourceHash is ContentHash of the text the vector was derived from.
	SourceHash uint64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserVector is a user's aggregated interest profile.
type UserVector struct {
	UserID       ID
	Vector       []float32
	ModelVersion string
	UpdatedAt    time.Time
}

// Action is the kind of user interaction feeding a profile.
type Action string

const (
	ActionScrap  Action = "scrap"
	ActionClick  Action = "click"
	ActionSearch Action = "search"
)

// Interaction is a single user event. It resolves through Keyword when set,
// otherwise through ArticleID.
type Interaction struct {
	ArticleID ID     `json:"article_id,omitempty"`
	Action    Action `json:"action"`
	Keyword   string `json:"keyword,omitempty"`
}

// Candidate is an (id, vector) pair considered by the ranker.
type Candidate struct {
	ID     ID
	Vector []float32
}

// Scored is a ranked candidate.
type Scored struct {
	ID    ID
	Score float64
}

// SearchQuery carries the parameters of a similarity search.
type SearchQuery struct {
	Text      string
	Page      int
	Size      int
	Threshold float64
}

// SearchResult is one hydrated search hit.
type SearchResult struct {
	ArticleID   ID        `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Score       float64   `json:"score"`
	PublishedAt time.Time `json:"published_at"`
	// Keywords holds the highest scoring stored keywords of the article.
	Keywords []string `json:"keywords"`
	// CommonKeywords holds the query keywords the article also carries. It
	// is only filled when queries are vectorized by keywords.
	CommonKeywords []string `json:"common_keywords,omitempty"`
}

// SearchPage is one page of search hits plus the total number of matches.
type SearchPage struct {
	Total   int             `json:"total"`
	Results []*SearchResult `json:"results"`
}

// FeedItem is one recommended article.
type FeedItem struct {
	ArticleID ID      `json:"article_id"`
	Score     float64 `json:"score"`
}

// BatchResult reports the outcome of a batch vectorization.
type BatchResult struct {
	Processed int         `json:"processed"`
	Failed    []ID        `json:"failed"`
	Skipped   []ID        `json:"skipped,omitempty"`
	Errors    []ItemError `json:"-"`
}

// Stats summarises vector coverage of the article corpus.
type Stats struct {
	TotalArticles      int     `json:"total_articles"`
	VectorizedArticles int     `json:"vectorized_articles"`
	CoveragePercent    float64 `json:"coverage_percent"`
	RecentArticles     int     `json:"recent_articles_24h"`
	ModelVersion       string  `json:"model_version"`
}
