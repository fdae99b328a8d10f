// Package articlecrawl provides a public SDK for embedding the article
// crawler as a library.
//
// Example usage:
//
//	crawler, err := articlecrawl.NewCrawler(
//	    articlecrawl.WithBaseURL("http://www.farsnews.com/social"),
//	    articlecrawl.WithLinkSelector(".ctgnewsinfo > a"),
//	    articlecrawl.WithBodySelector("div.nwstxtmainpane"),
//	    articlecrawl.WithNextPageSelector("div#currPage + div>a"),
//	    articlecrawl.WithQuota(20),
//	    articlecrawl.WithOutput("./output/fars", "fars"),
//	)
//	if err != nil {
//	    return err
//	}
//	defer crawler.Close()
//
//	res, err := crawler.Run(ctx)
package articlecrawl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/engine"
	"github.com/IshaanNene/articlecrawl/internal/fetcher"
	"github.com/IshaanNene/articlecrawl/internal/observability"
	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/storage"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Result summarizes a finished crawl.
type Result = engine.Result

// Stop reasons reported in Result.Reason.
const (
	ReasonQuotaReached        = engine.ReasonQuotaReached
	ReasonPaginationExhausted = engine.ReasonPaginationExhausted
	ReasonPageFetchFailed     = engine.ReasonPageFetchFailed
	ReasonCancelled           = engine.ReasonCancelled
)

// ErrNoCheckpoint is returned by Resume when no checkpoint has been saved.
var ErrNoCheckpoint = types.ErrRecordNotFound

// Crawler is the high-level API for using the article crawler as a library.
type Crawler struct {
	cfg     *config.Config
	logger  *slog.Logger
	closer  io.Closer
	store   storage.RecordStore
	metrics *observability.Metrics
}

// Option configures a Crawler.
type Option func(*config.Config)

// WithBaseURL sets the first listing page.
func WithBaseURL(rawURL string) Option {
	return func(c *config.Config) { c.Crawl.BaseURL = rawURL }
}

// WithLinkSelector sets the article link selector. Several patterns are
// tried in order.
func WithLinkSelector(patterns ...string) Option {
	return func(c *config.Config) { c.Crawl.ArticleLinkSelector = parser.SelectorOf(patterns...) }
}

// WithBodySelector sets the article body selector.
func WithBodySelector(patterns ...string) Option {
	return func(c *config.Config) { c.Crawl.ArticleBodySelector = parser.SelectorOf(patterns...) }
}

// WithNextPageSelector sets the next page selector.
func WithNextPageSelector(patterns ...string) Option {
	return func(c *config.Config) { c.Crawl.NextPageSelector = parser.SelectorOf(patterns...) }
}

// WithQuota sets the number of articles to save.
func WithQuota(n int) Option {
	return func(c *config.Config) { c.Crawl.NumberOfArticles = n }
}

// WithOutput sets the output directory and file name prefix. The directory
// is created if missing.
func WithOutput(dir, prefix string) Option {
	return func(c *config.Config) {
		c.Crawl.OutputDirectory = dir
		c.Crawl.CreateOutputDir = dir != ""
		c.Crawl.FileNamePrefix = prefix
	}
}

// WithEncoding sets the text encoding of article files.
func WithEncoding(name string) Option {
	return func(c *config.Config) { c.Crawl.TextEncoding = name }
}

// WithConcurrent switches to chunked-concurrent article processing.
func WithConcurrent() Option {
	return func(c *config.Config) { c.Crawl.ConcurrencyMode = config.ModeChunkedConcurrent }
}

// WithDomainPattern overrides the pattern that captures the site prefix.
func WithDomainPattern(pattern string) Option {
	return func(c *config.Config) { c.Crawl.BaseDomainPattern = pattern }
}

// WithUserAgent sets a custom User-Agent.
func WithUserAgent(ua string) Option {
	return func(c *config.Config) { c.Fetcher.UserAgent = ua }
}

// WithBrowser fetches pages with a headless browser.
func WithBrowser(stealth bool) Option {
	return func(c *config.Config) {
		c.Fetcher.Type = "browser"
		c.Fetcher.Stealth = stealth
	}
}

// WithProxy enables proxy rotation with the given proxy URLs.
func WithProxy(urls ...string) Option {
	return func(c *config.Config) {
		c.Proxy.Enabled = true
		c.Proxy.URLs = urls
	}
}

// WithCheckpointDir stores checkpoints as JSON files in dir.
func WithCheckpointDir(dir string) Option {
	return func(c *config.Config) {
		c.Checkpoint.Backend = "file"
		c.Checkpoint.Dir = dir
	}
}

// WithCheckpointSQLite stores checkpoints in a SQLite database.
func WithCheckpointSQLite(path string) Option {
	return func(c *config.Config) {
		c.Checkpoint.Backend = "sqlite"
		c.Checkpoint.SQLitePath = path
	}
}

// WithCheckpointMongo stores checkpoints in a MongoDB collection.
func WithCheckpointMongo(uri, database string) Option {
	return func(c *config.Config) {
		c.Checkpoint.Backend = "mongodb"
		c.Checkpoint.MongoURI = uri
		c.Checkpoint.MongoDB = database
	}
}

// WithVerbose enables debug-level logging.
func WithVerbose() Option {
	return func(c *config.Config) { c.Logging.Level = "debug" }
}

// NewCrawler creates a new Crawler with the given options and opens its
// checkpoint store.
func NewCrawler(opts ...Option) (*Crawler, error) {
	cfg := config.DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	logger, closer, err := observability.NewLogger(cfg.Logging, false)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	store, err := storage.NewRecordStore(&cfg.Checkpoint, logger)
	if err != nil {
		closer.Close()
		return nil, fmt.Errorf("open checkpoint store: %w", err)
	}

	return &Crawler{
		cfg:     cfg,
		logger:  logger,
		closer:  closer,
		store:   store,
		metrics: observability.NewMetrics(logger),
	}, nil
}

// Run crawls from the base URL.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	crawler, err := engine.New(c.cfg, c.logger)
	if err != nil {
		return Result{}, err
	}
	return c.run(ctx, c.cfg, crawler)
}

// Resume continues from the last saved checkpoint. It returns
// ErrNoCheckpoint when there is none.
func (c *Crawler) Resume(ctx context.Context) (Result, error) {
	rec, err := engine.NewCheckpointManager(c.store, c.cfg.Checkpoint.Name, c.logger).Load(ctx)
	if err != nil {
		if errors.Is(err, types.ErrRecordNotFound) {
			return Result{}, ErrNoCheckpoint
		}
		return Result{}, err
	}
	crawler, err := engine.Resume(c.cfg, rec, c.logger)
	if err != nil {
		return Result{}, err
	}
	return c.run(ctx, rec.Apply(c.cfg), crawler)
}

func (c *Crawler) run(ctx context.Context, cfg *config.Config, crawler *engine.Crawler) (Result, error) {
	f, err := fetcher.New(cfg, c.logger)
	if err != nil {
		return Result{}, fmt.Errorf("create fetcher: %w", err)
	}
	defer f.Close()

	writer, err := storage.NewArticleFileWriter(&cfg.Crawl, c.logger)
	if err != nil {
		return Result{}, fmt.Errorf("create article writer: %w", err)
	}

	crawler.SetFetcher(f)
	crawler.SetWriter(writer)
	crawler.SetCheckpointStore(c.store)
	crawler.SetMetrics(c.metrics)
	return crawler.Run(ctx)
}

// Stats returns crawl counters accumulated across runs.
func (c *Crawler) Stats() map[string]int64 {
	return c.metrics.Snapshot()
}

// Close releases the checkpoint store and log output.
func (c *Crawler) Close() error {
	err := c.store.Close()
	if cerr := c.closer.Close(); err == nil {
		err = cerr
	}
	return err
}
