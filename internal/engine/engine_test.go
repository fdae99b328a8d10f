package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/fetcher"
	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/storage"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

const (
	pageOne = "http://www.example.com/news"
	pageTwo = "http://www.example.com/news?page=2"
)

func listing(next string, hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<div class="item"><a href="%s">link</a></div>`, h)
	}
	if next != "" {
		fmt.Fprintf(&b, `<a class="next" href="%s">next</a>`, next)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func article(body string) string {
	return `<html><body><h1>Title</h1><div class="body">` + body + `</div></body></html>`
}

func sitePages() map[string]string {
	return map[string]string{
		pageOne: listing("/news?page=2", "/news/1", "/news/2", "/news/3"),
		pageTwo: listing("", "/news/4", "/news/5"),
		"http://www.example.com/news/1": article("Body one"),
		"http://www.example.com/news/2": article("Body two"),
		"http://www.example.com/news/3": article("Body three"),
		"http://www.example.com/news/4": article("Body four"),
		"http://www.example.com/news/5": article("Body five"),
	}
}

// fakeFetcher serves pages from a map and records every requested URL.
type fakeFetcher struct {
	mu        sync.Mutex
	pages     map[string]string
	requested []string
}

func (f *fakeFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requested = append(f.requested, req.URLString())

	html, ok := f.pages[req.URLString()]
	if !ok {
		return nil, &types.FetchError{URL: req.URLString(), Err: errors.New("connection refused")}
	}
	return &types.Response{
		StatusCode: http.StatusOK,
		Body:       []byte(html),
		Encoding:   "utf-8",
		Request:    req,
		FinalURL:   req.URLString(),
	}, nil
}

func (f *fakeFetcher) Close() error { return nil }

func (f *fakeFetcher) fetched(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.requested {
		if u == url {
			return true
		}
	}
	return false
}

func (f *fakeFetcher) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requested)
}

type harness struct {
	cfg     *config.Config
	crawler *Crawler
	fetcher *fakeFetcher
	store   *storage.JSONRecordStore
	outDir  string
}

func testConfig(t *testing.T, quota int, mode config.Mode) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Crawl.BaseURL = pageOne
	cfg.Crawl.ArticleLinkSelector = parser.Single(".item>a")
	cfg.Crawl.ArticleBodySelector = parser.Single("div.body")
	cfg.Crawl.NextPageSelector = parser.Single("a.next")
	cfg.Crawl.NumberOfArticles = quota
	cfg.Crawl.ConcurrencyMode = mode
	cfg.Crawl.OutputDirectory = t.TempDir()
	cfg.Checkpoint.Dir = t.TempDir()
	return cfg
}

func wire(t *testing.T, c *Crawler, cfg *config.Config, pages map[string]string) *harness {
	t.Helper()
	writer, err := storage.NewArticleFileWriter(&cfg.Crawl, testLogger)
	if err != nil {
		t.Fatalf("writer: %v", err)
	}
	store, err := storage.NewJSONRecordStore(cfg.Checkpoint.Dir, testLogger)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	f := &fakeFetcher{pages: pages}
	c.SetFetcher(f)
	c.SetWriter(writer)
	c.SetCheckpointStore(store)

	return &harness{cfg: cfg, crawler: c, fetcher: f, store: store, outDir: cfg.Crawl.OutputDirectory}
}

func newHarness(t *testing.T, quota int, mode config.Mode, pages map[string]string) *harness {
	t.Helper()
	cfg := testConfig(t, quota, mode)
	c, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("new crawler: %v", err)
	}
	return wire(t, c, cfg, pages)
}

func (h *harness) files(t *testing.T) map[string]string {
	t.Helper()
	entries, err := os.ReadDir(h.outDir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		data, _ := os.ReadFile(filepath.Join(h.outDir, e.Name()))
		out[e.Name()] = string(data)
	}
	return out
}

func (h *harness) loadCheckpoint(t *testing.T) CheckpointRecord {
	t.Helper()
	rec, err := NewCheckpointManager(h.store, h.cfg.Checkpoint.Name, testLogger).Load(context.Background())
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	return rec
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// --- Resolver Tests ---

func TestResolver(t *testing.T) {
	r, err := NewResolver("http://www.example.com/x", config.DefaultBaseDomainPattern)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	if r.Prefix() != "http://www.example.com" {
		t.Fatalf("unexpected prefix %q", r.Prefix())
	}

	tests := []struct {
		href    string
		current string
		want    string
	}{
		{"/a/b", "http://www.example.com/x", "http://www.example.com/a/b"},
		{"/a/b", "http://www.example.com/deep/page?p=3", "http://www.example.com/a/b"},
		{"https://other.org/p", "http://www.example.com/x", "https://other.org/p"},
		{"//cdn.example.com/p", "https://www.example.com/x", "https://cdn.example.com/p"},
		{"item?id=3", "http://www.example.com/news/list", "http://www.example.com/news/item?id=3"},
		{"  /padded ", "http://www.example.com/x", "http://www.example.com/padded"},
	}
	for _, tt := range tests {
		got, err := r.Resolve(tt.href, tt.current)
		if err != nil {
			t.Errorf("Resolve(%q): %v", tt.href, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Resolve(%q, %q) = %q, want %q", tt.href, tt.current, got, tt.want)
		}
	}

	if _, err := r.Resolve("", "http://www.example.com/x"); !errors.Is(err, types.ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL for empty href, got %v", err)
	}
}

func TestResolverBaseMustMatchPattern(t *testing.T) {
	_, err := NewResolver("http://localhost:8080/news", config.DefaultBaseDomainPattern)
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

// --- Navigator Tests ---

func TestNavigatorExhausted(t *testing.T) {
	cfg := testConfig(t, 1, config.ModeSequential)
	c, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	doc := mustDoc(t, listing("", "/news/1"))
	if _, err := c.navigator.Next(doc, pageOne); !errors.Is(err, types.ErrPaginationExhausted) {
		t.Errorf("expected ErrPaginationExhausted, got %v", err)
	}

	doc = mustDoc(t, listing("/news?page=2", "/news/1"))
	next, err := c.navigator.Next(doc, pageOne)
	if err != nil || next != pageTwo {
		t.Errorf("expected %s, got %q (%v)", pageTwo, next, err)
	}
}

func mustDoc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	resp := &types.Response{Body: []byte(html), Encoding: "utf-8"}
	doc, err := resp.Document()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return doc
}

// --- Crawl Loop Tests ---

func TestEndToEndQuotaTwo(t *testing.T) {
	for _, mode := range []config.Mode{config.ModeSequential, config.ModeChunkedConcurrent} {
		t.Run(string(mode), func(t *testing.T) {
			h := newHarness(t, 2, mode, sitePages())

			res, err := h.crawler.Run(context.Background())
			if err != nil {
				t.Fatalf("run: %v", err)
			}

			files := h.files(t)
			if got := sortedKeys(files); !reflect.DeepEqual(got, []string{"_1.txt", "_2.txt"}) {
				t.Fatalf("unexpected files %v", got)
			}
			if files["_1.txt"] != "Body one" || files["_2.txt"] != "Body two" {
				t.Errorf("unexpected contents %v", files)
			}
			if h.fetcher.fetched("http://www.example.com/news/3") {
				t.Error("third link must never be fetched")
			}
			if h.fetcher.fetched(pageTwo) {
				t.Error("next page must never be followed")
			}
			if res.State != StateDone || res.Reason != ReasonQuotaReached {
				t.Errorf("unexpected result %+v", res)
			}
			if res.ArticlesSaved != 2 || res.PagesVisited != 1 {
				t.Errorf("unexpected counts %+v", res)
			}
			if h.crawler.State() != StateDone {
				t.Errorf("expected DONE, got %s", h.crawler.State())
			}
		})
	}
}

func TestSequentialExactQuotaAcrossPages(t *testing.T) {
	h := newHarness(t, 5, config.ModeSequential, sitePages())

	res, err := h.crawler.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	want := []string{"_1.txt", "_2.txt", "_3.txt", "_4.txt", "_5.txt"}
	if got := sortedKeys(h.files(t)); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if res.Reason != ReasonQuotaReached || res.PagesVisited != 2 {
		t.Errorf("unexpected result %+v", res)
	}
	if h.fetcher.count() != 7 {
		t.Errorf("expected 7 fetches, got %d", h.fetcher.count())
	}
}

func TestPaginationExhaustedBeforeQuota(t *testing.T) {
	h := newHarness(t, 10, config.ModeSequential, sitePages())

	res, err := h.crawler.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.State != StateDone || res.Reason != ReasonPaginationExhausted {
		t.Errorf("expected DONE by exhaustion, got %+v", res)
	}
	want := []string{"_01.txt", "_02.txt", "_03.txt", "_04.txt", "_05.txt"}
	if got := sortedKeys(h.files(t)); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
	if res.LastPageURL != pageTwo {
		t.Errorf("expected last page %s, got %s", pageTwo, res.LastPageURL)
	}
}

func TestConcurrentRespectsRemainingQuota(t *testing.T) {
	h := newHarness(t, 4, config.ModeChunkedConcurrent, sitePages())

	res, err := h.crawler.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	files := h.files(t)
	if len(files) != 4 {
		t.Fatalf("expected 4 files, got %v", sortedKeys(files))
	}
	if files["_1.txt"] != "Body one" || files["_3.txt"] != "Body three" || files["_4.txt"] != "Body four" {
		t.Errorf("files not in link order: %v", files)
	}
	if h.fetcher.fetched("http://www.example.com/news/5") {
		t.Error("links beyond the remaining quota must not be fetched")
	}
	if res.Reason != ReasonQuotaReached {
		t.Errorf("unexpected reason %s", res.Reason)
	}
}

func TestConcurrentRefillsAfterFailure(t *testing.T) {
	pages := sitePages()
	pages[pageOne] = listing("", "/news/1", "/news/bad", "/news/3", "/news/4", "/news/5")
	h := newHarness(t, 3, config.ModeChunkedConcurrent, pages)

	res, err := h.crawler.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if res.Reason != ReasonQuotaReached || res.ArticlesSaved != 3 || res.ArticlesFailed != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	files := h.files(t)
	if len(files) != 3 {
		t.Fatalf("expected 3 files, got %v", sortedKeys(files))
	}
	if files["_1.txt"] != "Body one" || files["_2.txt"] != "Body three" || files["_3.txt"] != "Body four" {
		t.Errorf("files not in link order: %v", files)
	}
	if h.fetcher.fetched("http://www.example.com/news/5") {
		t.Error("links beyond the quota must not be fetched")
	}

	rec := h.loadCheckpoint(t)
	want := NewCheckpointRecord(&h.cfg.Crawl, CrawlState{CurrentPageURL: pageOne, ArticlesSaved: 1})
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("checkpoint mismatch:\n got %+v\nwant %+v", rec, want)
	}
}

func TestBatchChunks(t *testing.T) {
	sizes := func(chunks [][]int) []int {
		out := make([]int, len(chunks))
		for i, c := range chunks {
			out[i] = len(c)
		}
		return out
	}

	if got := sizes(Chunk(indexes(7), ChunkSize)); !reflect.DeepEqual(got, []int{3, 3, 1}) {
		t.Errorf("unexpected chunk sizes %v", got)
	}
	if got := Chunk(indexes(0), ChunkSize); len(got) != 0 {
		t.Errorf("expected no chunks, got %v", got)
	}
	if got := sizes(Chunk(indexes(6), ChunkSize)); !reflect.DeepEqual(got, []int{3, 3}) {
		t.Errorf("unexpected chunk sizes %v", got)
	}
}

func TestBatchProcessorRun(t *testing.T) {
	pages := make(map[string]string)
	links := make([]string, 7)
	for i := range links {
		links[i] = fmt.Sprintf("http://www.example.com/a/%d", i)
		pages[links[i]] = article(fmt.Sprintf("text %d", i))
	}
	pages[links[4]] = "<html><body>no body</body></html>"
	delete(pages, links[5])

	h := newHarness(t, 10, config.ModeChunkedConcurrent, pages)
	results, chunks := h.crawler.batch.Run(context.Background(), links)
	if chunks != 3 {
		t.Errorf("expected 3 chunks, got %d", chunks)
	}

	got := make(map[int]ArticleResult)
	for r := range results {
		got[r.Index] = r
	}
	if len(got) != 7 {
		t.Fatalf("expected 7 results, got %d", len(got))
	}
	if got[0].Text != "text 0" || got[6].Text != "text 6" {
		t.Errorf("unexpected texts %q %q", got[0].Text, got[6].Text)
	}
	var extractErr *types.ExtractionError
	if !errors.As(got[4].Err, &extractErr) {
		t.Errorf("expected ExtractionError for index 4, got %v", got[4].Err)
	}
	var fetchErr *types.FetchError
	if !errors.As(got[5].Err, &fetchErr) {
		t.Errorf("expected FetchError for index 5, got %v", got[5].Err)
	}
}

// --- Checkpoint/Recovery Tests ---

func TestExtractionFailureCheckpointsLiveState(t *testing.T) {
	pages := sitePages()
	pages["http://www.example.com/news/2"] = "<html><body><p>paywall</p></body></html>"
	h := newHarness(t, 3, config.ModeSequential, pages)

	res, err := h.crawler.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	rec := h.loadCheckpoint(t)
	want := NewCheckpointRecord(&h.cfg.Crawl, CrawlState{CurrentPageURL: pageOne, ArticlesSaved: 1})
	if !reflect.DeepEqual(rec, want) {
		t.Errorf("checkpoint mismatch:\n got %+v\nwant %+v", rec, want)
	}

	files := h.files(t)
	if files["_1.txt"] != "Body one" || files["_2.txt"] != "Body three" || files["_3.txt"] != "Body four" {
		t.Errorf("failed article should be skipped, got %v", files)
	}
	if res.ArticlesFailed != 1 || res.CheckpointsWritten != 1 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestResumeContinuesNumbering(t *testing.T) {
	cfg := testConfig(t, 3, config.ModeSequential)
	for i, name := range []string{"_1.txt", "_2.txt"} {
		path := filepath.Join(cfg.Crawl.OutputDirectory, name)
		if err := os.WriteFile(path, []byte(fmt.Sprintf("earlier %d", i+1)), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	rec := NewCheckpointRecord(&cfg.Crawl, CrawlState{CurrentPageURL: pageTwo, ArticlesSaved: 2})

	// Round-trip through the record store as an operator resume would.
	store, _ := storage.NewJSONRecordStore(cfg.Checkpoint.Dir, testLogger)
	cm := NewCheckpointManager(store, cfg.Checkpoint.Name, testLogger)
	if err := cm.Save(context.Background(), rec); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := cm.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	fresh := config.DefaultConfig()
	fresh.Checkpoint.Dir = cfg.Checkpoint.Dir
	c, err := Resume(fresh, loaded, testLogger)
	if err != nil {
		t.Fatalf("resume: %v", err)
	}
	h := wire(t, c, loaded.Apply(fresh), sitePages())

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	files := h.files(t)
	if files["_1.txt"] != "earlier 1" || files["_2.txt"] != "earlier 2" {
		t.Errorf("earlier files must not be rewritten: %v", files)
	}
	if files["_3.txt"] != "Body four" {
		t.Errorf("expected _3.txt from the resumed page, got %v", files)
	}
	if h.fetcher.fetched(pageOne) {
		t.Error("resumed crawl must not refetch pages already advanced past")
	}
	if res.Reason != ReasonQuotaReached || res.ArticlesSaved != 3 {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestResumeRejectsBadRecord(t *testing.T) {
	cfg := testConfig(t, 3, config.ModeSequential)

	rec := NewCheckpointRecord(&cfg.Crawl, CrawlState{CurrentPageURL: "/news?page=2", ArticlesSaved: 1})
	if _, err := Resume(cfg, rec, testLogger); err == nil {
		t.Error("expected error for relative current page")
	}

	rec = NewCheckpointRecord(&cfg.Crawl, CrawlState{CurrentPageURL: pageTwo, ArticlesSaved: 4})
	if _, err := Resume(cfg, rec, testLogger); err == nil {
		t.Error("expected error for saved count above quota")
	}
}

func TestCheckpointRecordKeys(t *testing.T) {
	cfg := testConfig(t, 3, config.ModeChunkedConcurrent)
	cfg.Crawl.ArticleBodySelector = parser.Multiple("div.body", "div.lead")
	rec := NewCheckpointRecord(&cfg.Crawl, CrawlState{CurrentPageURL: pageTwo, ArticlesSaved: 2})

	m := rec.ToMap()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	want := append([]string(nil), checkpointKeys...)
	sort.Strings(want)
	if !reflect.DeepEqual(keys, want) {
		t.Errorf("unexpected key set %v", keys)
	}

	back, err := CheckpointRecordFromMap(m)
	if err != nil {
		t.Fatalf("from map: %v", err)
	}
	if !reflect.DeepEqual(back, rec) {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", back, rec)
	}

	m["extra"] = true
	if _, err := CheckpointRecordFromMap(m); err == nil {
		t.Error("expected error for unknown key")
	}
	delete(m, "extra")
	delete(m, keyBaseURL)
	if _, err := CheckpointRecordFromMap(m); err == nil {
		t.Error("expected error for missing key")
	}
}

func TestCheckpointLoadMissing(t *testing.T) {
	store, _ := storage.NewJSONRecordStore(t.TempDir(), testLogger)
	_, err := NewCheckpointManager(store, "crawler_checkpoint", testLogger).Load(context.Background())
	if !errors.Is(err, types.ErrRecordNotFound) {
		t.Errorf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestPageFetchFailureEndsCrawl(t *testing.T) {
	pages := sitePages()
	delete(pages, pageTwo)
	h := newHarness(t, 10, config.ModeSequential, pages)

	res, err := h.crawler.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if res.State != StateDone || res.Reason != ReasonPageFetchFailed {
		t.Errorf("unexpected result %+v", res)
	}
	var fetchErr *types.FetchError
	if !errors.As(res.Err, &fetchErr) {
		t.Errorf("expected FetchError in result, got %v", res.Err)
	}

	rec := h.loadCheckpoint(t)
	if rec.CurrentPageURL != pageTwo || rec.ArticlesSavedCount != 3 {
		t.Errorf("checkpoint should hold the failed page, got %+v", rec)
	}
}

// --- Construction and Run Guard Tests ---

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t, 0, config.ModeSequential)
	_, err := New(cfg, testLogger)
	var cfgErr *types.ConfigError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigError, got %v", err)
	}
}

func TestRunRequiresCollaborators(t *testing.T) {
	cfg := testConfig(t, 2, config.ModeSequential)
	c, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Run(context.Background()); !errors.Is(err, types.ErrNoFetcher) {
		t.Errorf("expected ErrNoFetcher, got %v", err)
	}
	c.SetFetcher(&fakeFetcher{})
	if _, err := c.Run(context.Background()); !errors.Is(err, types.ErrNoWriter) {
		t.Errorf("expected ErrNoWriter, got %v", err)
	}
}

type blockingFetcher struct {
	fakeFetcher
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (b *blockingFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.fakeFetcher.Fetch(ctx, req)
}

func TestRunGuard(t *testing.T) {
	h := newHarness(t, 1, config.ModeSequential, sitePages())
	bf := &blockingFetcher{
		fakeFetcher: fakeFetcher{pages: sitePages()},
		started:     make(chan struct{}),
		release:     make(chan struct{}),
	}
	h.crawler.SetFetcher(bf)

	done := make(chan error, 1)
	go func() {
		_, err := h.crawler.Run(context.Background())
		done <- err
	}()

	<-bf.started
	if _, err := h.crawler.Run(context.Background()); !errors.Is(err, types.ErrCrawlRunning) {
		t.Errorf("expected ErrCrawlRunning, got %v", err)
	}
	close(bf.release)

	if err := <-done; err != nil {
		t.Errorf("first run: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	h := newHarness(t, 5, config.ModeSequential, sitePages())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := h.crawler.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if res.Reason != ReasonCancelled || res.State != StateDone {
		t.Errorf("unexpected result %+v", res)
	}
	if h.fetcher.count() != 0 {
		t.Errorf("expected no fetches, got %d", h.fetcher.count())
	}
}

type recordingProgress struct {
	calls []int
}

func (p *recordingProgress) ArticleSaved(saved, quota int) {
	p.calls = append(p.calls, saved)
}

func TestProgressReporter(t *testing.T) {
	h := newHarness(t, 3, config.ModeChunkedConcurrent, sitePages())
	p := &recordingProgress{}
	h.crawler.SetProgress(p)

	if _, err := h.crawler.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if !reflect.DeepEqual(p.calls, []int{1, 2, 3}) {
		t.Errorf("unexpected progress calls %v", p.calls)
	}
}

// --- HTTP End-to-End Test ---

func TestCrawlOverHTTP(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/news", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if r.URL.Query().Get("page") == "2" {
			_, _ = io.WriteString(w, listing("", "/news/3"))
			return
		}
		_, _ = io.WriteString(w, listing("/news?page=2", "/news/1", "/news/2"))
	})
	mux.HandleFunc("/news/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = io.WriteString(w, article("خبر "+strings.TrimPrefix(r.URL.Path, "/news/")))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	cfg := testConfig(t, 3, config.ModeChunkedConcurrent)
	cfg.Crawl.BaseURL = srv.URL + "/news"
	cfg.Crawl.BaseDomainPattern = `^(http://127\.0\.0\.1:\d+)`
	cfg.Crawl.FileNamePrefix = "local"

	c, err := New(cfg, testLogger)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	h := wire(t, c, cfg, nil)

	httpFetcher, err := fetcher.NewHTTPFetcher(cfg, testLogger)
	if err != nil {
		t.Fatalf("fetcher: %v", err)
	}
	defer httpFetcher.Close()
	c.SetFetcher(httpFetcher)

	res, err := c.Run(context.Background())
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	files := h.files(t)
	if files["local_1.txt"] != "خبر 1" || files["local_3.txt"] != "خبر 3" {
		t.Errorf("unexpected files %v", files)
	}
	if res.PagesVisited != 2 || res.Reason != ReasonQuotaReached {
		t.Errorf("unexpected result %+v", res)
	}
}
