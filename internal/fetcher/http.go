package fetcher

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

type proxyKey struct{}

// HTTPFetcher implements Fetcher using net/http.
type HTTPFetcher struct {
	client    *http.Client
	cfg       *config.FetcherConfig
	proxyMgr  *ProxyManager
	userAgent string
	logger    *slog.Logger
}

// NewHTTPFetcher creates a new HTTP fetcher.
func NewHTTPFetcher(cfg *config.Config, logger *slog.Logger) (*HTTPFetcher, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	var proxyMgr *ProxyManager
	if cfg.Proxy.Enabled && len(cfg.Proxy.URLs) > 0 {
		proxyMgr = NewProxyManager(&cfg.Proxy, logger)
	}

	transport := &http.Transport{
		Proxy: requestProxy(proxyMgr),
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.Fetcher.MaxIdleConns,
		MaxIdleConnsPerHost: cfg.Fetcher.MaxIdleConns / 2,
		IdleConnTimeout:     cfg.Fetcher.IdleConnTimeout,
		TLSHandshakeTimeout: 10 * time.Second,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: cfg.Fetcher.TLSInsecure,
		},
		DisableCompression: true, // decompression (including brotli) is done here
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !cfg.Fetcher.FollowRedirects {
			return http.ErrUseLastResponse
		}
		if len(via) >= cfg.Fetcher.MaxRedirects {
			return fmt.Errorf("max redirects (%d) reached", cfg.Fetcher.MaxRedirects)
		}
		return nil
	}

	client := &http.Client{
		Transport:     transport,
		Jar:           jar,
		Timeout:       cfg.Fetcher.RequestTimeout,
		CheckRedirect: redirectPolicy,
	}

	return &HTTPFetcher{
		client:    client,
		cfg:       &cfg.Fetcher,
		proxyMgr:  proxyMgr,
		userAgent: cfg.Fetcher.UserAgent,
		logger:    logger.With("component", "http_fetcher"),
	}, nil
}

// requestProxy prefers the proxy carried by the request, then the rotating
// pool, then a direct connection.
func requestProxy(pm *ProxyManager) func(*http.Request) (*url.URL, error) {
	return func(req *http.Request) (*url.URL, error) {
		if px, ok := req.Context().Value(proxyKey{}).(map[string]*url.URL); ok {
			if u := px[req.URL.Scheme]; u != nil {
				return u, nil
			}
		}
		if pm != nil {
			return pm.Next(), nil
		}
		return nil, nil
	}
}

// Fetch executes an HTTP request and returns the response. Non-2xx
// responses are returned as content.
func (f *HTTPFetcher) Fetch(ctx context.Context, req *types.Request) (*types.Response, error) {
	var rotated *url.URL
	if len(req.Proxy) == 0 && f.proxyMgr != nil {
		rotated = f.proxyMgr.Next()
	}

	httpReq, err := f.buildRequest(ctx, req, rotated)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}

	start := time.Now()
	httpResp, err := f.client.Do(httpReq)
	duration := time.Since(start)
	if err != nil {
		if rotated != nil && ctx.Err() == nil {
			f.proxyMgr.MarkFailed(rotated, err)
			if f.proxyMgr.HealthyCount() == 0 {
				f.logger.Warn("no healthy proxies left, connecting directly")
			}
		}
		return nil, &types.FetchError{URL: req.URLString(), Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		f.logger.Warn("non-success status", "url", req.URLString(), "status", httpResp.StatusCode)
	}

	reader, err := decompressReader(httpResp, httpResp.Body)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err}
	}

	// The limit applies to the decoded body; one extra byte detects truncation.
	if f.cfg.MaxBodySize > 0 {
		reader = io.LimitReader(reader, f.cfg.MaxBodySize+1)
	}

	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: err}
	}
	if f.cfg.MaxBodySize > 0 && int64(len(body)) > f.cfg.MaxBodySize {
		body = body[:f.cfg.MaxBodySize]
		f.logger.Warn("response body truncated", "url", req.URLString(), "max_body_size", f.cfg.MaxBodySize)
	}
	if len(body) == 0 {
		return nil, &types.FetchError{URL: req.URLString(), StatusCode: httpResp.StatusCode, Err: types.ErrEmptyResponse}
	}

	_, encoding, _ := charset.DetermineEncoding(body, httpResp.Header.Get("Content-Type"))
	resp := types.NewResponse(req, httpResp, body, encoding, duration)

	f.logger.Debug("fetch complete",
		"url", req.URLString(),
		"status", resp.StatusCode,
		"encoding", encoding,
		"size", len(body),
		"duration", duration,
	)

	return resp, nil
}

func (f *HTTPFetcher) buildRequest(ctx context.Context, req *types.Request, rotated *url.URL) (*http.Request, error) {
	switch {
	case len(req.Proxy) > 0:
		ctx = context.WithValue(ctx, proxyKey{}, req.Proxy)
	case rotated != nil:
		ctx = context.WithValue(ctx, proxyKey{}, map[string]*url.URL{"http": rotated, "https": rotated})
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	target := *req.URL
	var body io.Reader
	if len(req.Params) > 0 {
		if method == http.MethodGet || method == http.MethodDelete {
			q := target.Query()
			for k, vals := range req.Params {
				for _, v := range vals {
					q.Add(k, v)
				}
			}
			target.RawQuery = q.Encode()
		} else {
			body = strings.NewReader(req.Params.Encode())
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target.String(), body)
	if err != nil {
		return nil, err
	}

	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	httpReq.Header.Set("Accept-Encoding", "gzip, deflate, br")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for key, values := range req.Headers {
		httpReq.Header.Del(key)
		for _, v := range values {
			httpReq.Header.Add(key, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		ua := f.userAgent
		if ua == "" {
			ua = types.DefaultUserAgent
		}
		httpReq.Header.Set("User-Agent", ua)
	}
	return httpReq, nil
}

// Close releases resources.
func (f *HTTPFetcher) Close() error {
	f.client.CloseIdleConnections()
	return nil
}

// Type returns the fetcher type identifier.
func (f *HTTPFetcher) Type() string {
	return "http"
}

// decompressReader wraps a reader with the appropriate decompressor.
// Handles gzip, deflate, and brotli (br) encodings.
func decompressReader(resp *http.Response, reader io.Reader) (io.Reader, error) {
	switch resp.Header.Get("Content-Encoding") {
	case "gzip":
		return gzip.NewReader(reader)
	case "deflate":
		return flate.NewReader(reader), nil
	case "br":
		return brotli.NewReader(reader), nil
	default:
		return reader, nil
	}
}
