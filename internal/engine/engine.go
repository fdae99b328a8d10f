package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/fetcher"
	"github.com/IshaanNene/articlecrawl/internal/observability"
	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Fetcher is the interface for all fetcher implementations.
type Fetcher interface {
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)
	Close() error
}

// ArticleWriter persists one article's text under its 1-based index.
type ArticleWriter interface {
	WriteArticle(index int, text string) (string, error)
}

// RecordStore keeps named, versioned records.
type RecordStore interface {
	WriteRecord(ctx context.Context, name string, rec types.Record) error
	ReadRecord(ctx context.Context, name string) (types.Record, error)
	Close() error
	Name() string
}

// ProgressReporter is told about every saved article.
type ProgressReporter interface {
	ArticleSaved(saved, quota int)
}

// Crawler walks a site's listing pages and saves article bodies until the
// quota is met or pagination runs out. One Run may be active at a time.
type Crawler struct {
	cfg       *config.Config
	crawl     config.CrawlConfig
	logger    *slog.Logger
	base      *slog.Logger
	extractor *parser.SelectorEngine
	resolver  *Resolver
	navigator *Navigator
	batch     *BatchProcessor

	fetcher     Fetcher
	writer      ArticleWriter
	checkpoints *CheckpointManager
	metrics     *observability.Metrics
	progress    ProgressReporter

	phase   atomic.Int32
	running atomic.Bool

	mu     sync.RWMutex
	state  CrawlState
	result Result
}

// New validates cfg and creates a Crawler positioned at the base URL.
// Configuration problems are returned as *types.ConfigError.
func New(cfg *config.Config, logger *slog.Logger) (*Crawler, error) {
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}

	resolver, err := NewResolver(cfg.Crawl.BaseURL, cfg.Crawl.BaseDomainPattern)
	if err != nil {
		return nil, err
	}

	c := &Crawler{
		cfg:       cfg,
		crawl:     cfg.Crawl,
		logger:    logger.With("component", "crawler"),
		base:      logger,
		extractor: parser.NewSelectorEngine(logger),
		resolver:  resolver,
		metrics:   observability.NewMetrics(logger),
		state:     CrawlState{CurrentPageURL: cfg.Crawl.BaseURL},
	}
	c.navigator = NewNavigator(cfg.Crawl.NextPageSelector, c.extractor, resolver)
	c.batch = NewBatchProcessor(c.fetchDocument, c.extractBody, c.metrics, logger)
	return c, nil
}

// Resume creates a Crawler that continues from a checkpoint: the record's
// crawl settings replace those in cfg and the crawl starts at its
// current page with its saved count.
func Resume(cfg *config.Config, rec CheckpointRecord, logger *slog.Logger) (*Crawler, error) {
	c, err := New(rec.Apply(cfg), logger)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateURL(rec.CurrentPageURL); err != nil {
		return nil, &types.ConfigError{Field: keyCurrentPageURL, Err: err}
	}
	if rec.ArticlesSavedCount < 0 || rec.ArticlesSavedCount > rec.NumberOfArticles {
		return nil, types.NewConfigError(keyArticlesSavedCount, "%d is outside 0..%d", rec.ArticlesSavedCount, rec.NumberOfArticles)
	}
	c.state = rec.State()
	return c, nil
}

// SetFetcher sets the fetcher used for listing and article pages.
func (c *Crawler) SetFetcher(f Fetcher) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fetcher = f
}

// SetWriter sets the article writer.
func (c *Crawler) SetWriter(w ArticleWriter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writer = w
}

// SetCheckpointStore sets the record store checkpoints are saved to.
func (c *Crawler) SetCheckpointStore(store RecordStore) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.checkpoints = NewCheckpointManager(store, c.cfg.Checkpoint.Name, c.base)
}

// SetMetrics replaces the crawler's metrics.
func (c *Crawler) SetMetrics(m *observability.Metrics) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics = m
	c.batch.metrics = m
}

// SetProgress sets an optional progress reporter.
func (c *Crawler) SetProgress(p ProgressReporter) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.progress = p
}

// State returns the crawl loop's current phase.
func (c *Crawler) State() State {
	return State(c.phase.Load())
}

// Progress returns a snapshot of the crawl state.
func (c *Crawler) Progress() CrawlState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Checkpoint returns the record that would be saved right now.
func (c *Crawler) Checkpoint() CheckpointRecord {
	return NewCheckpointRecord(&c.crawl, c.Progress())
}

// Run crawls until the quota is met, pagination is exhausted, a listing
// page cannot be fetched, or ctx is cancelled. Only cancellation and
// missing collaborators are returned as errors; an early stop caused by a
// page failure is reported in Result.Err.
func (c *Crawler) Run(ctx context.Context) (Result, error) {
	if !c.running.CompareAndSwap(false, true) {
		return Result{}, types.ErrCrawlRunning
	}
	defer c.running.Store(false)

	c.mu.Lock()
	switch {
	case c.fetcher == nil:
		c.mu.Unlock()
		return Result{}, types.ErrNoFetcher
	case c.writer == nil:
		c.mu.Unlock()
		return Result{}, types.ErrNoWriter
	case c.checkpoints == nil:
		c.mu.Unlock()
		return Result{}, types.ErrNoCheckpointStore
	}
	c.result = Result{}
	c.mu.Unlock()

	start := time.Now()
	c.logger.Info("crawl starting",
		"base_url", c.crawl.BaseURL,
		"start_url", c.Progress().CurrentPageURL,
		"quota", c.crawl.NumberOfArticles,
		"saved", c.Progress().ArticlesSaved,
		"mode", c.crawl.ConcurrencyMode,
	)

	reason, runErr := c.loop(ctx)

	c.setPhase(StateDone)
	c.mu.Lock()
	c.result.State = StateDone
	c.result.Reason = reason
	c.result.ArticlesSaved = c.state.ArticlesSaved
	c.result.LastPageURL = c.state.CurrentPageURL
	c.result.Duration = time.Since(start)
	res := c.result
	c.mu.Unlock()

	c.logger.Info("crawl finished",
		"reason", res.Reason,
		"pages", res.PagesVisited,
		"saved", res.ArticlesSaved,
		"failed", res.ArticlesFailed,
		"checkpoints", res.CheckpointsWritten,
		"duration", res.Duration,
	)

	if reason == ReasonCancelled {
		return res, runErr
	}
	return res, nil
}

// loop runs the page state machine and returns why it stopped.
func (c *Crawler) loop(ctx context.Context) (StopReason, error) {
	for {
		if err := ctx.Err(); err != nil {
			return c.cancelled(ctx)
		}

		// FETCH_PAGE
		if c.quotaReached() {
			return ReasonQuotaReached, nil
		}
		c.setPhase(StateFetchPage)
		pageURL := c.Progress().CurrentPageURL
		doc, err := c.fetchDocument(ctx, pageURL)
		if err != nil {
			if ctx.Err() != nil {
				return c.cancelled(ctx)
			}
			c.metrics.PagesFailed.Add(1)
			c.logger.Error("listing page failed", "url", pageURL, "error", err)
			c.saveCheckpoint(ctx)
			c.mu.Lock()
			c.result.Err = err
			c.mu.Unlock()
			return ReasonPageFetchFailed, nil
		}
		c.metrics.PagesFetched.Add(1)
		c.mu.Lock()
		c.result.PagesVisited++
		c.mu.Unlock()

		// EXTRACT_LINKS
		c.setPhase(StateExtractLinks)
		links := c.extractLinks(doc, pageURL)
		c.logger.Info("listing page", "url", pageURL, "links", len(links))

		// PROCESS_ARTICLES
		c.setPhase(StateProcessArticles)
		if c.crawl.ConcurrencyMode == config.ModeChunkedConcurrent {
			c.processConcurrent(ctx, links)
		} else {
			c.processSequential(ctx, links)
		}
		if ctx.Err() != nil {
			return c.cancelled(ctx)
		}

		// ADVANCE_PAGE
		c.setPhase(StateAdvancePage)
		if c.quotaReached() {
			return ReasonQuotaReached, nil
		}
		next, err := c.navigator.Next(doc, pageURL)
		if err != nil {
			c.logger.Info("pagination exhausted", "url", pageURL, "reason", err)
			return ReasonPaginationExhausted, nil
		}
		c.mu.Lock()
		c.state.CurrentPageURL = next
		c.mu.Unlock()
	}
}

func (c *Crawler) cancelled(ctx context.Context) (StopReason, error) {
	c.logger.Warn("crawl cancelled", "error", ctx.Err())
	c.saveCheckpoint(ctx)
	return ReasonCancelled, ctx.Err()
}

func (c *Crawler) processSequential(ctx context.Context, links []string) {
	for _, link := range links {
		if c.quotaReached() || ctx.Err() != nil {
			return
		}
		doc, err := c.fetchDocument(ctx, link)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.articleFailed(ctx, link, err)
			continue
		}
		text, err := c.extractBody(link, doc)
		if err != nil {
			c.articleFailed(ctx, link, err)
			continue
		}
		c.saveArticle(ctx, link, text)
	}
}

// processConcurrent runs the batch in rounds. Each round covers at most the
// remaining quota of the page's links, so failures in one round are made up
// from the links after it.
func (c *Crawler) processConcurrent(ctx context.Context, links []string) {
	for off := 0; off < len(links) && ctx.Err() == nil; {
		remaining := c.crawl.NumberOfArticles - c.Progress().ArticlesSaved
		if remaining <= 0 {
			return
		}
		end := off + min(remaining, len(links)-off)
		c.processRound(ctx, links[off:end])
		off = end
	}
}

// processRound runs one batch and saves results in link order as they
// become available.
func (c *Crawler) processRound(ctx context.Context, links []string) {
	results, chunks := c.batch.Run(ctx, links)
	c.logger.Debug("batch started", "links", len(links), "chunks", chunks)

	pending := make(map[int]ArticleResult, len(links))
	next := 0
	for res := range results {
		pending[res.Index] = res
		for {
			r, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			next++

			if ctx.Err() != nil {
				continue
			}
			if r.Err != nil {
				c.articleFailed(ctx, r.URL, r.Err)
				continue
			}
			if !c.quotaReached() {
				c.saveArticle(ctx, r.URL, r.Text)
			}
		}
	}
}

// fetchDocument fetches rawURL and parses the decoded body.
func (c *Crawler) fetchDocument(ctx context.Context, rawURL string) (*goquery.Document, error) {
	req, err := fetcher.NewRequest(rawURL, &c.cfg.Fetcher, c.base)
	if err != nil {
		return nil, err
	}
	resp, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return nil, err
	}
	c.metrics.RecordResponse(resp.StatusCode, len(resp.Body))

	doc, err := resp.Document()
	if err != nil {
		return nil, &types.ExtractionError{URL: rawURL, Err: fmt.Errorf("parse document: %w", err)}
	}
	return doc, nil
}

// extractBody returns the article body text. A body selector that yields
// only whitespace is an extraction failure.
func (c *Crawler) extractBody(link string, doc *goquery.Document) (string, error) {
	c.metrics.ArticlesFetched.Add(1)
	text, err := c.extractor.Text(c.crawl.ArticleBodySelector, parser.FromDocument(doc))
	if err != nil {
		return "", &types.ExtractionError{URL: link, Selector: c.crawl.ArticleBodySelector.String(), Err: err}
	}
	if strings.TrimSpace(text) == "" {
		return "", &types.ExtractionError{
			URL:      link,
			Selector: c.crawl.ArticleBodySelector.String(),
			Err:      errors.New("body selector matched no text"),
		}
	}
	return text, nil
}

// extractLinks returns the resolved article links on a listing page.
func (c *Crawler) extractLinks(doc *goquery.Document, pageURL string) []string {
	hrefs, err := c.extractor.Attrs(c.crawl.ArticleLinkSelector, parser.FromDocument(doc), "href")
	if err != nil {
		c.logger.Error("link extraction failed", "url", pageURL, "error", err)
		return nil
	}

	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		link, err := c.resolver.Resolve(href, pageURL)
		if err != nil {
			c.logger.Warn("article link skipped", "href", href, "error", err)
			continue
		}
		links = append(links, link)
	}
	return links
}

func (c *Crawler) saveArticle(ctx context.Context, link, text string) {
	index := c.Progress().ArticlesSaved + 1
	path, err := c.writer.WriteArticle(index, text)
	if err != nil {
		c.articleFailed(ctx, link, err)
		return
	}

	c.mu.Lock()
	c.state.ArticlesSaved = index
	progress := c.progress
	c.mu.Unlock()

	c.metrics.ArticlesSaved.Add(1)
	c.logger.Debug("article saved", "index", index, "url", link, "path", path)
	if progress != nil {
		progress.ArticleSaved(index, c.crawl.NumberOfArticles)
	}
	if index%c.crawl.ProgressInterval == 0 {
		c.logger.Info("progress", "saved", index, "quota", c.crawl.NumberOfArticles)
	}
}

// articleFailed logs a per-article failure and checkpoints. The crawl
// continues with the next link.
func (c *Crawler) articleFailed(ctx context.Context, link string, err error) {
	c.metrics.ArticlesFailed.Add(1)
	c.mu.Lock()
	c.result.ArticlesFailed++
	c.mu.Unlock()

	c.logger.Error("article failed", "url", link, "error", err)
	c.saveCheckpoint(ctx)
}

// saveCheckpoint writes the live state. It still runs after ctx is
// cancelled so an interrupted crawl can be resumed.
func (c *Crawler) saveCheckpoint(ctx context.Context) {
	rec := c.Checkpoint()
	if err := c.checkpoints.Save(context.WithoutCancel(ctx), rec); err != nil {
		c.logger.Error("checkpoint save failed", "error", err)
		return
	}
	c.metrics.CheckpointsWritten.Add(1)
	c.mu.Lock()
	c.result.CheckpointsWritten++
	c.mu.Unlock()
}

func (c *Crawler) quotaReached() bool {
	return c.Progress().ArticlesSaved >= c.crawl.NumberOfArticles
}

func (c *Crawler) setPhase(s State) {
	c.phase.Store(int32(s))
}
