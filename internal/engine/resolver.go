package engine

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Resolver turns hrefs found on listing pages into absolute URLs. It is
// built once per crawl from the base URL and base domain pattern.
type Resolver struct {
	prefix string
}

// NewResolver captures the base domain prefix of baseURL. The first capture
// group of pattern is used, or the whole match when it has none.
func NewResolver(baseURL, pattern string) (*Resolver, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, &types.ConfigError{Field: "crawl.base_domain_pattern", Err: err}
	}

	m := re.FindStringSubmatch(baseURL)
	if m == nil {
		return nil, types.NewConfigError("crawl.base_url", "%q does not match base domain pattern %q", baseURL, pattern)
	}
	prefix := m[0]
	if len(m) > 1 && m[1] != "" {
		prefix = m[1]
	}

	return &Resolver{prefix: strings.TrimSuffix(prefix, "/")}, nil
}

// Prefix returns the captured base domain, e.g. "http://www.example.com".
func (r *Resolver) Prefix() string { return r.prefix }

// Resolve makes href absolute. Root-relative hrefs are joined to the base
// domain prefix; other relative forms resolve against currentURL.
func (r *Resolver) Resolve(href, currentURL string) (string, error) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", fmt.Errorf("%w: empty href", types.ErrInvalidURL)
	}

	if strings.HasPrefix(href, "/") && !strings.HasPrefix(href, "//") {
		return r.prefix + href, nil
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", types.ErrInvalidURL, href, err)
	}
	if ref.IsAbs() && ref.Host != "" {
		return ref.String(), nil
	}

	base, err := url.Parse(currentURL)
	if err != nil || !base.IsAbs() {
		return "", fmt.Errorf("%w: cannot resolve %q against %q", types.ErrInvalidURL, href, currentURL)
	}
	resolved := base.ResolveReference(ref)
	if resolved.Host == "" {
		return "", fmt.Errorf("%w: %q has no host", types.ErrInvalidURL, resolved.String())
	}
	return resolved.String(), nil
}
