package fetcher

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Fetcher is the interface for all request fetcher implementations.
type Fetcher interface {
	// Fetch retrieves the content at the given request's URL.
	Fetch(ctx context.Context, req *types.Request) (*types.Response, error)

	// Close releases any resources held by the fetcher.
	Close() error

	// Type returns the fetcher type identifier.
	Type() string
}

// New builds the fetcher selected by fetcher.type.
func New(cfg *config.Config, logger *slog.Logger) (Fetcher, error) {
	switch cfg.Fetcher.Type {
	case "", "http":
		return NewHTTPFetcher(cfg, logger)
	case "browser":
		return NewBrowserFetcher(cfg, logger)
	default:
		return nil, types.NewConfigError("fetcher.type", "unknown fetcher type %q", cfg.Fetcher.Type)
	}
}

// NewRequest builds a request for rawURL carrying the configured method,
// headers, params, proxy and User-Agent.
func NewRequest(rawURL string, cfg *config.FetcherConfig, logger *slog.Logger) (*types.Request, error) {
	req, err := types.NewRequest(rawURL)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.ApplyOptions(cfg.Method, cfg.Headers, cfg.Params, cfg.Proxy, logger)
	req.EnsureUserAgent(cfg.UserAgent)
	return req, nil
}
