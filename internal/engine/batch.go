package engine

import (
	"context"
	"log/slog"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/IshaanNene/articlecrawl/internal/observability"
)

// ChunkSize is the number of article pages handled by one extraction worker.
const ChunkSize = 3

// ArticleResult is one extracted article, tagged with its position in the
// page's link list.
type ArticleResult struct {
	Index int
	URL   string
	Text  string
	Err   error
}

type fetchedPage struct {
	doc *goquery.Document
	err error
}

// BatchProcessor runs the chunked-concurrent article mode: every article page
// is fetched in parallel, then extraction runs in one worker per chunk.
type BatchProcessor struct {
	fetch   func(ctx context.Context, link string) (*goquery.Document, error)
	extract func(link string, doc *goquery.Document) (string, error)
	metrics *observability.Metrics
	logger  *slog.Logger
}

// NewBatchProcessor creates a batch processor from a page fetch function and
// a body extraction function.
func NewBatchProcessor(
	fetch func(ctx context.Context, link string) (*goquery.Document, error),
	extract func(link string, doc *goquery.Document) (string, error),
	metrics *observability.Metrics,
	logger *slog.Logger,
) *BatchProcessor {
	return &BatchProcessor{
		fetch:   fetch,
		extract: extract,
		metrics: metrics,
		logger:  logger.With("component", "batch_processor"),
	}
}

// Run processes links and streams one ArticleResult per link, in completion
// order, on the returned channel. The channel is closed after every worker
// has finished. The second return value is the number of chunks.
func (b *BatchProcessor) Run(ctx context.Context, links []string) (<-chan ArticleResult, int) {
	chunks := Chunk(indexes(len(links)), ChunkSize)
	results := make(chan ArticleResult, len(links))

	go func() {
		defer close(results)

		pages := make([]fetchedPage, len(links))
		var fetchers errgroup.Group
		for i, link := range links {
			fetchers.Go(func() error {
				doc, err := b.fetch(ctx, link)
				pages[i] = fetchedPage{doc: doc, err: err}
				return nil
			})
		}
		_ = fetchers.Wait()

		b.logger.Debug("batch fetched", "links", len(links), "chunks", len(chunks))

		var workers errgroup.Group
		for _, chunk := range chunks {
			workers.Go(func() error {
				b.metrics.ActiveWorkers.Add(1)
				defer b.metrics.ActiveWorkers.Add(-1)

				for _, i := range chunk {
					res := ArticleResult{Index: i, URL: links[i]}
					if pages[i].err != nil {
						res.Err = pages[i].err
					} else {
						res.Text, res.Err = b.extract(links[i], pages[i].doc)
					}
					results <- res
				}
				return nil
			})
		}
		_ = workers.Wait()
	}()

	return results, len(chunks)
}

// Chunk splits items into consecutive slices of at most size elements.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = 1
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

func indexes(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	return out
}
