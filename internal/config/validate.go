package config

import (
	"fmt"
	"net/url"
	"regexp"

	"golang.org/x/text/encoding/htmlindex"

	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Validate checks the configuration for invalid values. It returns a
// *types.ConfigError describing the first problem found.
func Validate(cfg *Config) error {
	if err := ValidateCrawl(&cfg.Crawl); err != nil {
		return err
	}

	if cfg.Fetcher.Type != "http" && cfg.Fetcher.Type != "browser" {
		return types.NewConfigError("fetcher.type", "must be 'http' or 'browser', got %q", cfg.Fetcher.Type)
	}
	if cfg.Fetcher.MaxBodySize <= 0 {
		return types.NewConfigError("fetcher.max_body_size", "must be > 0")
	}
	if cfg.Fetcher.MaxRedirects < 0 {
		return types.NewConfigError("fetcher.max_redirects", "must be >= 0")
	}
	if cfg.Fetcher.RequestTimeout < 0 {
		return types.NewConfigError("fetcher.request_timeout", "must be >= 0")
	}

	if cfg.Proxy.Enabled {
		if cfg.Proxy.Rotation != "round_robin" && cfg.Proxy.Rotation != "random" {
			return types.NewConfigError("proxy.rotation", "must be 'round_robin' or 'random', got %q", cfg.Proxy.Rotation)
		}
		for _, proxyURL := range cfg.Proxy.URLs {
			if _, err := url.Parse(proxyURL); err != nil {
				return &types.ConfigError{Field: "proxy.urls", Err: err}
			}
		}
	}

	switch cfg.Checkpoint.Backend {
	case "file", "sqlite":
	case "mongodb":
		if cfg.Checkpoint.MongoURI == "" {
			return types.NewConfigError("checkpoint.mongo_uri", "required for the mongodb backend")
		}
	default:
		return types.NewConfigError("checkpoint.backend", "%q is not supported (valid: file, sqlite, mongodb)", cfg.Checkpoint.Backend)
	}
	if cfg.Checkpoint.Name == "" {
		return types.NewConfigError("checkpoint.name", "must not be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[cfg.Logging.Level] {
		return types.NewConfigError("logging.level", "must be debug/info/warn/error, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" && cfg.Logging.Format != "json" {
		return types.NewConfigError("logging.format", "must be 'text' or 'json', got %q", cfg.Logging.Format)
	}

	if cfg.Metrics.Enabled {
		if cfg.Metrics.Port < 1 || cfg.Metrics.Port > 65535 {
			return types.NewConfigError("metrics.port", "must be 1-65535, got %d", cfg.Metrics.Port)
		}
	}

	return nil
}

// ValidateCrawl checks the site crawl settings.
func ValidateCrawl(c *CrawlConfig) error {
	if err := ValidateURL(c.BaseURL); err != nil {
		return &types.ConfigError{Field: "crawl.base_url", Err: err}
	}

	pattern, err := regexp.Compile(c.BaseDomainPattern)
	if err != nil {
		return &types.ConfigError{Field: "crawl.base_domain_pattern", Err: err}
	}
	if !pattern.MatchString(c.BaseURL) {
		return types.NewConfigError("crawl.base_url", "%q does not match base domain pattern %q", c.BaseURL, c.BaseDomainPattern)
	}

	selectors := []struct {
		field string
		spec  parser.SelectorSpec
	}{
		{"crawl.article_link_selector", c.ArticleLinkSelector},
		{"crawl.article_body_selector", c.ArticleBodySelector},
		{"crawl.next_page_selector", c.NextPageSelector},
	}
	for _, s := range selectors {
		if err := s.spec.Compile(); err != nil {
			return &types.ConfigError{Field: s.field, Err: err}
		}
	}

	if c.NumberOfArticles < 1 {
		return types.NewConfigError("crawl.number_of_articles", "must be >= 1, got %d", c.NumberOfArticles)
	}
	if _, err := htmlindex.Get(c.TextEncoding); err != nil {
		return &types.ConfigError{Field: "crawl.text_encoding", Err: err}
	}
	if c.ConcurrencyMode != ModeSequential && c.ConcurrencyMode != ModeChunkedConcurrent {
		return types.NewConfigError("crawl.concurrency_mode", "must be %q or %q, got %q",
			ModeSequential, ModeChunkedConcurrent, c.ConcurrencyMode)
	}
	if c.ProgressInterval < 1 {
		return types.NewConfigError("crawl.progress_interval", "must be >= 1, got %d", c.ProgressInterval)
	}
	return nil
}

// ValidateURL checks if a URL string is valid for crawling.
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
