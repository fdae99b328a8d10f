package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"
)

// Metrics tracks operational metrics for the crawler.
type Metrics struct {
	// Listing page metrics
	PagesFetched atomic.Int64
	PagesFailed  atomic.Int64

	// Article metrics
	ArticlesFetched atomic.Int64
	ArticlesSaved   atomic.Int64
	ArticlesFailed  atomic.Int64

	// Response metrics
	Responses2xx atomic.Int64
	Responses3xx atomic.Int64
	Responses4xx atomic.Int64
	Responses5xx atomic.Int64

	// Engine metrics
	CheckpointsWritten atomic.Int64
	ActiveWorkers      atomic.Int32
	BytesDownloaded    atomic.Int64

	logger *slog.Logger
}

// NewMetrics creates a new Metrics instance.
func NewMetrics(logger *slog.Logger) *Metrics {
	return &Metrics{
		logger: logger.With("component", "metrics"),
	}
}

// RecordResponse counts a response by status class and size.
func (m *Metrics) RecordResponse(statusCode, size int) {
	switch {
	case statusCode >= 500:
		m.Responses5xx.Add(1)
	case statusCode >= 400:
		m.Responses4xx.Add(1)
	case statusCode >= 300:
		m.Responses3xx.Add(1)
	case statusCode >= 200:
		m.Responses2xx.Add(1)
	}
	m.BytesDownloaded.Add(int64(size))
}

// ServeHTTP serves metrics in Prometheus text exposition format.
func (m *Metrics) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	metrics := []struct {
		name  string
		help  string
		kind  string
		value int64
	}{
		{"articlecrawl_pages_fetched_total", "Listing pages fetched", "counter", m.PagesFetched.Load()},
		{"articlecrawl_pages_failed_total", "Listing pages that failed to fetch or parse", "counter", m.PagesFailed.Load()},
		{"articlecrawl_articles_fetched_total", "Article pages fetched", "counter", m.ArticlesFetched.Load()},
		{"articlecrawl_articles_saved_total", "Articles written to disk", "counter", m.ArticlesSaved.Load()},
		{"articlecrawl_articles_failed_total", "Articles skipped after a failure", "counter", m.ArticlesFailed.Load()},
		{"articlecrawl_responses_2xx_total", "Total 2xx responses", "counter", m.Responses2xx.Load()},
		{"articlecrawl_responses_3xx_total", "Total 3xx responses", "counter", m.Responses3xx.Load()},
		{"articlecrawl_responses_4xx_total", "Total 4xx responses", "counter", m.Responses4xx.Load()},
		{"articlecrawl_responses_5xx_total", "Total 5xx responses", "counter", m.Responses5xx.Load()},
		{"articlecrawl_checkpoints_written_total", "Checkpoint records written", "counter", m.CheckpointsWritten.Load()},
		{"articlecrawl_active_workers", "Currently active batch workers", "gauge", int64(m.ActiveWorkers.Load())},
		{"articlecrawl_bytes_downloaded_total", "Total bytes downloaded", "counter", m.BytesDownloaded.Load()},
	}

	for _, metric := range metrics {
		fmt.Fprintf(w, "# HELP %s %s\n", metric.name, metric.help)
		fmt.Fprintf(w, "# TYPE %s %s\n", metric.name, metric.kind)
		fmt.Fprintf(w, "%s %d\n", metric.name, metric.value)
	}
}

// StartServer starts the metrics HTTP server. It shuts down when ctx is done.
func (m *Metrics) StartServer(ctx context.Context, port int, path string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(path, m)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	m.logger.Info("metrics server starting", "addr", srv.Addr, "path", path)

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error("metrics server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}

// Snapshot returns all metrics as a map.
func (m *Metrics) Snapshot() map[string]int64 {
	return map[string]int64{
		"pages_fetched":       m.PagesFetched.Load(),
		"pages_failed":        m.PagesFailed.Load(),
		"articles_fetched":    m.ArticlesFetched.Load(),
		"articles_saved":      m.ArticlesSaved.Load(),
		"articles_failed":     m.ArticlesFailed.Load(),
		"responses_2xx":       m.Responses2xx.Load(),
		"responses_3xx":       m.Responses3xx.Load(),
		"responses_4xx":       m.Responses4xx.Load(),
		"responses_5xx":       m.Responses5xx.Load(),
		"checkpoints_written": m.CheckpointsWritten.Load(),
		"active_workers":      int64(m.ActiveWorkers.Load()),
		"bytes_downloaded":    m.BytesDownloaded.Load(),
	}
}
