package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/poiesic/articlevec"
	"github.com/poiesic/articlevec/api"
	"github.com/poiesic/articlevec/core"
	"github.com/poiesic/articlevec/nlp"
	"github.com/poiesic/articlevec/scheduler"
	"github.com/poiesic/articlevec/search"
)

const (
	defaultInitRetry = 10 * time.Second
	shutdownTimeout  = 15 * time.Second
)

const timeoutBody = `{"code":2000,"message":"request timed out","data":{}}`

func serveCommand(c *cli.Context) error {
	cfg := appConfig(c)
	if addr := c.String("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := articlevec.NewServiceFromConfig(ctx, cfg, articlevec.WithLogger(slog.Default()))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	defer svc.Close()

	// The API answers 503 until the models are loaded.
	go func() {
		if err := svc.InitializeWithRetry(ctx, c.Duration("init-retry")); err != nil && !errors.Is(err, context.Canceled) {
			slog.Error("model initialization abandoned", "err", err)
		}
	}()

	if cfg.Vectorize.SweepSchedule != "" && !c.Bool("no-scheduler") {
		sched, err := scheduler.New(cfg.Vectorize.SweepSchedule, svc, cfg.Vectorize.SweepLimit)
		if err != nil {
			return err
		}
		sched.Start()
		defer sched.Stop()
	}

	handler, err := api.NewServer(svc,
		api.WithSearchThreshold(cfg.Search.Threshold),
		api.WithSweepLimit(cfg.Vectorize.SweepLimit),
	)
	if err != nil {
		return err
	}
	var h http.Handler = handler
	if cfg.Server.RequestTimeout > 0 {
		h = http.TimeoutHandler(handler, cfg.Server.RequestTimeout, timeoutBody)
	}
	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("listening", "addr", cfg.Server.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// openReadyService builds the service from the loaded config and loads the
// models, failing instead of retrying.
func openReadyService(c *cli.Context, opts ...articlevec.ServiceOption) (*articlevec.Service, error) {
	cfg := appConfig(c)
	opts = append([]articlevec.ServiceOption{articlevec.WithLogger(slog.Default())}, opts...)
	svc, err := articlevec.NewServiceFromConfig(c.Context, cfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	if err := svc.Initialize(c.Context); err != nil {
		svc.Close()
		return nil, err
	}
	return svc, nil
}

func vectorizeCommand(c *cli.Context) error {
	ids, err := parseIDs(c.Args().Slice())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return errors.New("at least one article id is required")
	}

	svc, err := openReadyService(c, articlevec.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.VectorizeBatch(c.Context, ids, c.Bool("force"))
	if err != nil {
		return fmt.Errorf("vectorization failed: %w", err)
	}
	return printJSON(c, result)
}

func sweepCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit == 0 {
		limit = appConfig(c).Vectorize.SweepLimit
	}

	svc, err := openReadyService(c, articlevec.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Sweep(c.Context, limit, c.Bool("force"))
	if err != nil {
		return fmt.Errorf("sweep failed: %w", err)
	}
	return printJSON(c, result)
}

func migrateCommand(c *cli.Context) error {
	limit := c.Int("limit")
	if limit == 0 {
		limit = appConfig(c).Vectorize.SweepLimit
	}

	svc, err := openReadyService(c, articlevec.WithProgress(c.App.ErrWriter))
	if err != nil {
		return err
	}
	defer svc.Close()

	result, err := svc.Migrate(c.Context, limit)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	return printJSON(c, result)
}

func searchCommand(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if strings.TrimSpace(text) == "" {
		return errors.New("a query is required")
	}
	threshold := appConfig(c).Search.Threshold
	if c.IsSet("threshold") {
		threshold = c.Float64("threshold")
	}

	svc, err := openReadyService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	q := core.SearchQuery{
		Text:      text,
		Page:      c.Int("page"),
		Size:      c.Int("size"),
		Threshold: threshold,
	}
	var page *core.SearchPage
	if c.Bool("verbose") {
		page, err = svc.SearchWithMonitor(c.Context, q, &search.WriterMonitor{W: c.App.ErrWriter})
	} else {
		page, err = svc.SearchBySimilarity(c.Context, q)
	}
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%d matches\n", page.Total)
	for _, r := range page.Results {
		fmt.Fprintf(w, "%d\t%.4f\t%s\t%s\n", r.ArticleID, r.Score, r.Title, strings.Join(r.Keywords, ", "))
	}
	return w.Flush()
}

func feedCommand(c *cli.Context) error {
	svc, err := openReadyService(c)
	if err != nil {
		return err
	}
	defer svc.Close()

	items, total, err := svc.GetFeed(c.Context, core.ID(c.Int64("user")), c.Int("page"), c.Int("size"))
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "%d matches\n", total)
	for _, item := range items {
		fmt.Fprintf(w, "%d\t%.4f\n", item.ArticleID, item.Score)
	}
	return w.Flush()
}

func fitTFIDFCommand(c *cli.Context) error {
	cfg := appConfig(c)
	out := c.String("out")
	if out == "" {
		out = cfg.Keywords.TFIDFModelPath
	}

	stores, err := articlevec.OpenStores(c.Context, cfg)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer stores.Close()

	stopwords, err := articlevec.LoadStopwords(c.Context, cfg, stores)
	if err != nil {
		return err
	}
	corpus, err := stores.Articles.ListSummaries(c.Context)
	if err != nil {
		return fmt.Errorf("failed to read summaries: %w", err)
	}

	// the model sees the same text the vectorizer extracts from
	for i, doc := range corpus {
		corpus[i] = nlp.StripMarkup(doc)
	}
	model, err := nlp.FitTFIDF(corpus, cfg.Tokenizer(stopwords), cfg.TFIDFOptions())
	if err != nil {
		return fmt.Errorf("tfidf fit failed: %w", err)
	}
	if err := model.Save(out); err != nil {
		return fmt.Errorf("failed to save model: %w", err)
	}

	fmt.Fprintf(c.App.Writer, "Fitted %d terms over %d documents, saved to %s\n", model.Len(), model.Documents(), out)
	return nil
}

func importArticlesCommand(c *cli.Context) error {
	batchSize := c.Int("batch-size")
	if batchSize <= 0 {
		return errors.New("batch-size must be greater than 0")
	}

	data, err := os.ReadFile(c.String("file"))
	if err != nil {
		return err
	}
	var articles []*core.Article
	if err := yaml.Unmarshal(data, &articles); err != nil {
		return fmt.Errorf("parse %s: %w", c.String("file"), err)
	}
	for i, a := range articles {
		if a == nil || a.ID <= 0 {
			return fmt.Errorf("article %d: %w", i, core.ErrInvalidID)
		}
	}

	stores, err := articlevec.OpenStores(c.Context, appConfig(c))
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer stores.Close()

	for start := 0; start < len(articles); start += batchSize {
		end := min(start+batchSize, len(articles))
		if err := stores.Articles.SaveArticles(c.Context, articles[start:end]...); err != nil {
			return fmt.Errorf("failed to save articles: %w", err)
		}
	}

	fmt.Fprintf(c.App.Writer, "Imported %d articles\n", len(articles))
	return nil
}

func parseIDs(args []string) ([]core.ID, error) {
	ids := make([]core.ID, 0, len(args))
	for _, arg := range args {
		for _, field := range strings.Split(arg, ",") {
			if field == "" {
				continue
			}
			id, err := strconv.ParseInt(field, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid article id %q", field)
			}
			ids = append(ids, core.ID(id))
		}
	}
	return ids, nil
}

func printJSON(c *cli.Context, v any) error {
	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
