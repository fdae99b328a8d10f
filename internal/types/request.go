package types

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultUserAgent is injected when a request carries no User-Agent header.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 6.1; Win64; x64) " +
	"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/57.0.2987.133 " +
	"Safari/537.36"

var validMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodPatch:  true,
	http.MethodDelete: true,
}

// Request represents an HTTP request to be fetched by the crawler.
type Request struct {
	// URL is the target URL to fetch.
	URL *url.URL

	// Method is the HTTP method. Defaults to GET.
	Method string

	// Headers are custom HTTP headers to send with the request.
	Headers http.Header

	// Params are sent in the query string for GET/DELETE and as a
	// form body otherwise.
	Params url.Values

	// Proxy maps a URL scheme to the proxy used for it.
	Proxy map[string]*url.URL

	// Tag categorizes this request ("listing" or "article").
	Tag string

	// CreatedAt is when this request was created.
	CreatedAt time.Time
}

// NewRequest creates a GET request for an absolute http(s) URL.
func NewRequest(rawURL string) (*Request, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrInvalidURL, rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w %q: not absolute", ErrInvalidURL, rawURL)
	}

	return &Request{
		URL:       u,
		Method:    http.MethodGet,
		Headers:   make(http.Header),
		CreatedAt: time.Now(),
	}, nil
}

// URLString returns the string representation of the request URL.
func (r *Request) URLString() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

// Domain returns the hostname of the request URL.
func (r *Request) Domain() string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Hostname()
}

// ApplyOptions normalizes loosely typed request options. Unknown methods
// fall back to GET; headers, params or proxy values of the wrong shape are
// dropped with a warning instead of failing the request.
func (r *Request) ApplyOptions(method string, headers, params, proxy any, logger *slog.Logger) {
	m := strings.ToUpper(strings.TrimSpace(method))
	if !validMethods[m] {
		if m != "" {
			logger.Warn("unsupported method, using GET", "method", method)
		}
		m = http.MethodGet
	}
	r.Method = m

	if headers != nil {
		h, ok := toHeader(headers)
		if !ok {
			logger.Warn("headers ignored", "type", fmt.Sprintf("%T", headers))
		}
		for k, vals := range h {
			for _, v := range vals {
				r.Headers.Add(k, v)
			}
		}
	}

	if params != nil {
		p, ok := toValues(params)
		if !ok {
			logger.Warn("params ignored", "type", fmt.Sprintf("%T", params))
		} else {
			r.Params = p
		}
	}

	if proxy != nil {
		px, ok := toProxyMap(proxy, logger)
		if !ok {
			logger.Warn("proxy config ignored", "type", fmt.Sprintf("%T", proxy))
		} else {
			r.Proxy = px
		}
	}
}

// EnsureUserAgent sets ua as User-Agent unless one is already present.
func (r *Request) EnsureUserAgent(ua string) {
	if r.Headers.Get("User-Agent") != "" {
		return
	}
	if ua == "" {
		ua = DefaultUserAgent
	}
	r.Headers.Set("User-Agent", ua)
}

func toHeader(v any) (http.Header, bool) {
	switch h := v.(type) {
	case http.Header:
		return h.Clone(), true
	case map[string]string:
		out := make(http.Header, len(h))
		for k, val := range h {
			out.Set(k, val)
		}
		return out, true
	case map[string]any:
		out := make(http.Header, len(h))
		for k, val := range h {
			s, ok := val.(string)
			if !ok {
				return nil, false
			}
			out.Set(k, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func toValues(v any) (url.Values, bool) {
	switch p := v.(type) {
	case url.Values:
		return p, true
	case map[string]string:
		out := make(url.Values, len(p))
		for k, val := range p {
			out.Set(k, val)
		}
		return out, true
	case map[string]any:
		out := make(url.Values, len(p))
		for k, val := range p {
			switch x := val.(type) {
			case string:
				out.Set(k, x)
			case int, int64, float64, bool:
				out.Set(k, fmt.Sprint(x))
			default:
				return nil, false
			}
		}
		return out, true
	default:
		return nil, false
	}
}

func toProxyMap(v any, logger *slog.Logger) (map[string]*url.URL, bool) {
	raw := make(map[string]string)
	switch p := v.(type) {
	case map[string]string:
		raw = p
	case map[string]any:
		for k, val := range p {
			s, ok := val.(string)
			if !ok {
				return nil, false
			}
			raw[k] = s
		}
	default:
		return nil, false
	}

	out := make(map[string]*url.URL, len(raw))
	for scheme, rawURL := range raw {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			logger.Warn("invalid proxy URL ignored", "scheme", scheme, "url", rawURL)
			continue
		}
		out[strings.ToLower(scheme)] = u
	}
	return out, true
}
