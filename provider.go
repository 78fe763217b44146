package articlevec

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/poiesic/articlevec/ai"
	"github.com/poiesic/articlevec/ai/openai"
	"github.com/poiesic/articlevec/config"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/search"
	"github.com/poiesic/articlevec/storage"
	"github.com/poiesic/articlevec/storage/badger"
	"github.com/poiesic/articlevec/storage/sqlstore"
)

// OpenStores opens the storage backend selected by cfg.Storage.Driver.
func OpenStores(ctx context.Context, cfg *config.Config) (*storage.Stores, error) {
	dim := cfg.Embedding.Dimension
	switch cfg.Storage.Driver {
	case config.DriverBadger:
		if cfg.Storage.InMemory {
			return badger.NewMemoryStores(dim)
		}
		return badger.Open(cfg.Storage.Path, dim)
	case config.DriverMySQL, config.DriverSQLite:
		sqlCfg, err := cfg.SQLConfig()
		if err != nil {
			return nil, err
		}
		return sqlstore.Open(ctx, sqlCfg, dim)
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
}

// LoadStopwords merges the built-in stopwords, the CSV file named by
// cfg.Keywords.StopwordsPath and the stopword table of stores when the
// backend has one.
func LoadStopwords(ctx context.Context, cfg *config.Config, stores *storage.Stores) (nlp.Stopwords, error) {
	stopwords := nlp.DefaultStopwords()

	if path := cfg.Keywords.StopwordsPath; path != "" {
		fromFile, err := nlp.LoadStopwords(path)
		if err != nil {
			return nil, err
		}
		for w := range fromFile {
			stopwords.Add(w)
		}
	}

	if stores != nil && stores.Stopwords != nil {
		words, err := stores.Stopwords.Stopwords(ctx)
		if err != nil {
			return nil, fmt.Errorf("load stopwords: %w", err)
		}
		stopwords.Add(words...)
	}
	return stopwords, nil
}

// LoadKeywordExtractor builds the extractor selected by cfg.Keywords.Strategy.
// A TF-IDF model file that does not exist yet yields a stand-in extractor
// failing with core.ErrServiceNotReady until fit-tfidf has been run.
func LoadKeywordExtractor(ctx context.Context, cfg *config.Config, stores *storage.Stores) (ai.KeywordExtractor, error) {
	stopwords, err := LoadStopwords(ctx, cfg, stores)
	if err != nil {
		return nil, err
	}

	strategy, err := ai.ParseKeywordStrategy(cfg.Keywords.Strategy)
	if err != nil {
		return nil, err
	}
	switch strategy {
	case ai.StrategyFrequency:
		return nlp.NewFrequencyExtractorWithTokenizer(cfg.Tokenizer(stopwords)), nil
	default:
		model, err := nlp.LoadTFIDF(cfg.Keywords.TFIDFModelPath, cfg.Tokenizer(stopwords))
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("tfidf model not found; run fit-tfidf", "path", cfg.Keywords.TFIDFModelPath)
			return ai.Unavailable(fmt.Errorf("tfidf model %s: %w", cfg.Keywords.TFIDFModelPath, err)).KeywordExtractor(), nil
		}
		if err != nil {
			return nil, err
		}
		return model, nil
	}
}

// NewProviderFactory returns the factory the service binary uses: an
// OpenAI-compatible embedder paired with the configured keyword extractor.
func NewProviderFactory(cfg *config.Config) ProviderFactory {
	return func(ctx context.Context, stores *storage.Stores) (ai.AIProvider, error) {
		extractor, err := LoadKeywordExtractor(ctx, cfg, stores)
		if err != nil {
			return nil, err
		}
		return openai.NewProvider(cfg.AIConfig(), extractor)
	}
}

// NewServiceFromConfig opens the configured stores and builds a Service over them
// with every setting taken from cfg.
func NewServiceFromConfig(ctx context.Context, cfg *config.Config, opts ...ServiceOption) (*Service, error) {
	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return nil, err
	}

	base := []ServiceOption{
		WithProviderFactory(NewProviderFactory(cfg)),
		WithPoolSize(cfg.Workers.Size),
		WithVectorizeConfig(cfg.VectorizerConfig()),
		WithQueryMode(search.QueryMode(cfg.Search.QueryMode)),
		WithActionWeights(cfg.ActionWeights()),
		WithFeedThreshold(cfg.Profile.FeedThreshold),
	}
	svc, err := NewService(stores, append(base, opts...)...)
	if err != nil {
		stores.Close()
		return nil, err
	}
	return svc, nil
}
