package fetcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

var errBrowserClosed = errors.New("browser fetcher closed")

// BrowserFetcher implements Fetcher using a headless browser via Rod. It is
// meant for listing sites that render their links with JavaScript. Pages are
// always loaded with a plain GET through the launch-time proxy.
type BrowserFetcher struct {
	browser  *rod.Browser
	cfg      *config.FetcherConfig
	logger   *slog.Logger
	pagePool chan *rod.Page

	mu     sync.Mutex
	closed bool
}

// NewBrowserFetcher launches a headless Chromium and connects to it.
func NewBrowserFetcher(cfg *config.Config, logger *slog.Logger) (*BrowserFetcher, error) {
	bf := &BrowserFetcher{
		cfg:      &cfg.Fetcher,
		logger:   logger.With("component", "browser_fetcher"),
		pagePool: make(chan *rod.Page, 4),
	}

	l := launcher.New().
		Headless(true).
		Set("disable-gpu").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-blink-features", "AutomationControlled")

	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		if proxyURL := NewProxyManager(&cfg.Proxy, logger).Next(); proxyURL != nil {
			l = l.Proxy(proxyURL.String())
		}
	}

	launchURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	browser := rod.New().ControlURL(launchURL)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("connect browser: %w", err)
	}
	bf.browser = browser

	bf.logger.Info("browser fetcher ready", "stealth", cfg.Fetcher.Stealth)
	return bf, nil
}

// Fetch navigates to a URL and returns the rendered page content.
func (bf *BrowserFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	start := time.Now()

	page, err := bf.getPage()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	defer bf.putPage(page)

	if ignored := ignoredOptions(req); len(ignored) > 0 {
		bf.logger.Warn("request options not supported by the browser fetcher",
			"url", req.URLString(), "ignored", ignored)
	}

	page = page.Context(ctx)

	ua := req.Headers.Get("User-Agent")
	if ua == "" {
		ua = types.DefaultUserAgent
	}
	if err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{UserAgent: ua}); err != nil {
		bf.logger.Warn("failed to set user agent", "error", err)
	}

	headers := make([]string, 0, len(req.Headers)*2)
	for k, vals := range req.Headers {
		if k == "User-Agent" {
			continue
		}
		for _, v := range vals {
			headers = append(headers, k, v)
		}
	}
	if len(headers) > 0 {
		if _, err := page.SetExtraHeaders(headers); err != nil {
			bf.logger.Warn("failed to set headers", "error", err)
		}
	}

	timeout := bf.cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	if err := page.Timeout(timeout).Navigate(req.URLString()); err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if err := page.Timeout(timeout).WaitStable(300 * time.Millisecond); err != nil {
		bf.logger.Warn("page stability timeout, continuing", "url", req.URLString(), "error", err)
	}

	html, err := page.HTML()
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	if html == "" {
		return nil, &types.FetchError{URL: req.URLString(), Err: types.ErrEmptyResponse}
	}

	finalURL := req.URLString()
	if info, err := page.Info(); err == nil && info != nil {
		finalURL = info.URL
	}

	// Rod does not expose the navigation status code.
	duration := time.Since(start)
	resp := types.NewBrowserResponse(req, 200, []byte(html), finalURL, duration)

	bf.logger.Debug("browser fetch complete",
		"url", req.URLString(),
		"final_url", finalURL,
		"size", len(html),
		"duration", duration,
	)
	return resp, nil
}

// Close shuts down the browser and releases resources. Pages returned by
// fetches still running are closed instead of pooled.
func (bf *BrowserFetcher) Close() error {
	bf.mu.Lock()
	bf.closed = true
	bf.mu.Unlock()

	for {
		select {
		case page := <-bf.pagePool:
			_ = page.Close()
		default:
			if bf.browser != nil {
				return bf.browser.Close()
			}
			return nil
		}
	}
}

// Type returns the fetcher type identifier.
func (bf *BrowserFetcher) Type() string {
	return "browser"
}

func (bf *BrowserFetcher) getPage() (*rod.Page, error) {
	bf.mu.Lock()
	closed := bf.closed
	bf.mu.Unlock()
	if closed {
		return nil, errBrowserClosed
	}

	select {
	case page := <-bf.pagePool:
		return page, nil
	default:
		if bf.cfg.Stealth {
			return stealth.Page(bf.browser)
		}
		return bf.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	}
}

func (bf *BrowserFetcher) putPage(page *rod.Page) {
	_ = page.Navigate("about:blank")
	if !bf.offer(page) {
		_ = page.Close()
	}
}

// offer pools page unless the fetcher is closed or the pool is full.
func (bf *BrowserFetcher) offer(page *rod.Page) bool {
	bf.mu.Lock()
	defer bf.mu.Unlock()
	if bf.closed {
		return false
	}
	select {
	case bf.pagePool <- page:
		return true
	default:
		return false
	}
}

// ignoredOptions names the request options a browser navigation cannot carry.
func ignoredOptions(req *types.Request) []string {
	var ignored []string
	if req.Method != "" && req.Method != http.MethodGet {
		ignored = append(ignored, "method")
	}
	if len(req.Params) > 0 {
		ignored = append(ignored, "params")
	}
	if len(req.Proxy) > 0 {
		ignored = append(ignored, "proxy")
	}
	return ignored
}
