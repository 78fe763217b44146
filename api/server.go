package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/poiesic/articlevec"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/vectorize"
)

const (
	defaultPageSize = 10
	maxBodyBytes    = 1 << 20
)

// Service is the part of articlevec.Service the HTTP surface calls.
type Service interface {
	Health() articlevec.Health
	Stats(ctx context.Context) (*core.Stats, error)
	VectorizeBatch(ctx context.Context, ids []core.ID, force bool) (*core.BatchResult, error)
	Sweep(ctx context.Context, limit int, force bool) (*core.BatchResult, error)
	VectorizeText(ctx context.Context, text string) (*vectorize.TextVectors, error)
	ArticleVector(ctx context.Context, id core.ID) (*core.ArticleVector, error)
	SearchBySimilarity(ctx context.Context, q core.SearchQuery) (*core.SearchPage, error)
	UpdateUserProfile(ctx context.Context, userID core.ID, interactions []core.Interaction) (*core.UserVector, error)
	GetFeed(ctx context.Context, userID core.ID, page, size int) ([]core.FeedItem, int, error)
}

var _ Service = (*articlevec.Service)(nil)

// Server routes HTTP requests to a Service.
type Server struct {
	svc        Service
	router     chi.Router
	threshold  float64
	sweepLimit int
	logger     *slog.Logger
}

// Option configures a Server.
type Option func(*Server) error

// WithLogger sets the logger. A nil logger selects the default.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger.With("component", "api")
		return nil
	}
}

// WithSearchThreshold sets the threshold used when a search request names none.
func WithSearchThreshold(threshold float64) Option {
	return func(s *Server) error {
		if threshold < 0 || threshold > 1 {
			return core.Invalid(fmt.Errorf("%w: got %v", core.ErrInvalidThreshold, threshold))
		}
		s.threshold = threshold
		return nil
	}
}

// WithSweepLimit sets the limit used when a sweep request names none.
func WithSweepLimit(limit int) Option {
	return func(s *Server) error {
		if limit <= 0 {
			return fmt.Errorf("sweep limit must be > 0, got %d", limit)
		}
		s.sweepLimit = limit
		return nil
	}
}

// NewServer builds the router over svc.
func NewServer(svc Service, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, errors.New("service required")
	}
	s := &Server{
		svc:        svc,
		threshold:  0.3,
		sweepLimit: 100,
		logger:     slog.Default().With("component", "api"),
	}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/articles/search", s.handleSearch)
		r.Route("/nlp", func(r chi.Router) {
			r.Get("/stats", s.handleStats)
			r.Post("/vectorize", s.handleVectorize)
			r.Post("/vectorize/sweep", s.handleSweep)
			r.Post("/vectorize-text", s.handleVectorizeText)
			r.Get("/article-vectors/{articleId}", s.handleArticleVector)
			r.Post("/user-profile", s.handleUserProfile)
			r.Get("/feed/{userId}", s.handleFeed)
		})
	})
	s.router = r
	return s, nil
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type vectorizeRequest struct {
	ArticleIDs  []core.ID `json:"article_ids"`
	ForceUpdate bool      `json:"force_update"`
}

type sweepRequest struct {
	Limit int  `json:"limit"`
	Force bool `json:"force"`
}

type textRequest struct {
	Text string `json:"text"`
}

type profileRequest struct {
	UserID       core.ID            `json:"user_id"`
	Interactions []core.Interaction `json:"interactions"`
}

type articleVectorResponse struct {
	ArticleID            core.ID              `json:"article_id"`
	Keywords             core.KeywordScores   `json:"keywords"`
	KeywordVectors       map[string][]float32 `json:"keyword_vectors"`
	RepresentativeVector []float32            `json:"representative_vector"`
	ModelVersion         string               `json:"model_version"`
	CreatedAt            time.Time            `json:"created_at"`
	UpdatedAt            time.Time            `json:"updated_at"`
}

type profileResponse struct {
	UserID       core.ID   `json:"user_id"`
	Dimension    int       `json:"dimension"`
	ModelVersion string    `json:"model_version"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type feedResponse struct {
	UserID core.ID         `json:"user_id"`
	Page   int             `json:"page"`
	Size   int             `json:"size"`
	Total  int             `json:"total"`
	Items  []core.FeedItem `json:"items"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := s.svc.Health()
	if health.Status == articlevec.StatusInitializing {
		writeJSON(w, http.StatusServiceUnavailable, Envelope{
			Code:    CodeServiceNotReady,
			Message: CodeMessages[CodeServiceNotReady],
			Data:    health,
		})
		return
	}
	writeSuccess(w, health)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.svc.Stats(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, stats)
}

func (s *Server) handleVectorize(w http.ResponseWriter, r *http.Request) {
	var req vectorizeRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.VectorizeBatch(r.Context(), req.ArticleIDs, req.ForceUpdate)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, batchResponse(result))
}

func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	req := sweepRequest{Limit: s.sweepLimit}
	if err := decodeBody(w, r, &req, true); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Limit <= 0 {
		s.writeError(w, r, core.Invalid(fmt.Errorf("limit must be > 0, got %d", req.Limit)))
		return
	}
	result, err := s.svc.Sweep(r.Context(), req.Limit, req.Force)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, batchResponse(result))
}

func (s *Server) handleVectorizeText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	vectors, err := s.svc.VectorizeText(r.Context(), req.Text)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, vectors)
}

func (s *Server) handleArticleVector(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "articleId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	v, err := s.svc.ArticleVector(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, articleVectorResponse{
		ArticleID:            v.ArticleID,
		Keywords:             v.KeywordScores,
		KeywordVectors:       v.KeywordVectors,
		RepresentativeVector: v.RepresentativeVector,
		ModelVersion:         v.ModelVersion,
		CreatedAt:            v.CreatedAt,
		UpdatedAt:            v.UpdatedAt,
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, size, err := pagination(q.Get("page"), q.Get("size"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	threshold := s.threshold
	if raw := q.Get("threshold"); raw != "" {
		threshold, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			s.writeError(w, r, core.Invalid(fmt.Errorf("%w: got %q", core.ErrInvalidThreshold, raw)))
			return
		}
	}

	result, err := s.svc.SearchBySimilarity(r.Context(), core.SearchQuery{
		Text:      q.Get("query"),
		Page:      page,
		Size:      size,
		Threshold: threshold,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if result.Results == nil {
		result.Results = []*core.SearchResult{}
	}
	writeSuccess(w, result)
}

func (s *Server) handleUserProfile(w http.ResponseWriter, r *http.Request) {
	var req profileRequest
	if err := decodeBody(w, r, &req, false); err != nil {
		s.writeError(w, r, err)
		return
	}
	uv, err := s.svc.UpdateUserProfile(r.Context(), req.UserID, req.Interactions)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeSuccess(w, profileResponse{
		UserID:       uv.UserID,
		Dimension:    len(uv.Vector),
		ModelVersion: uv.ModelVersion,
		UpdatedAt:    uv.UpdatedAt,
	})
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "userId")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	q := r.URL.Query()
	page, size, err := pagination(q.Get("page"), q.Get("size"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	items, total, err := s.svc.GetFeed(r.Context(), userID, page, size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if items == nil {
		items = []core.FeedItem{}
	}
	writeSuccess(w, feedResponse{UserID: userID, Page: page, Size: size, Total: total, Items: items})
}

func batchResponse(result *core.BatchResult) *core.BatchResult {
	if result.Failed == nil {
		result.Failed = []core.ID{}
	}
	return result
}

// decodeBody reads a JSON request body into dst. An empty body is accepted
// only when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return core.Invalid(fmt.Errorf("malformed request body: %w", err))
	}
	return nil
}

func pathID(r *http.Request, name string) (core.ID, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.Invalid(fmt.Errorf("%w: %s %q", core.ErrInvalidID, name, raw))
	}
	return core.ID(id), nil
}

// pagination parses page and size, defaulting to the first page of
// defaultPageSize items. Range checks are left to the service.
func pagination(rawPage, rawSize string) (int, int, error) {
	page, size := 0, defaultPageSize
	var err error
	if rawPage != "" {
		if page, err = strconv.Atoi(rawPage); err != nil {
			return 0, 0, core.Invalid(fmt.Errorf("%w: got %q", core.ErrInvalidPage, rawPage))
		}
	}
	if rawSize != "" {
		if size, err = strconv.Atoi(rawSize); err != nil {
			return 0, 0, core.Invalid(fmt.Errorf("%w: got %q", core.ErrInvalidSize, rawSize))
		}
	}
	return page, size, nil
}
