package fetcher

import (
	"log/slog"
	"math/rand"
	"net/url"
	"sync"
	"sync/atomic"

	"github.com/IshaanNene/articlecrawl/internal/config"
)

// ProxyManager rotates requests across the configured proxy pool.
type ProxyManager struct {
	proxies  []*url.URL
	failed   map[string]error
	rotation string
	index    atomic.Int64
	mu       sync.RWMutex
	logger   *slog.Logger
}

// NewProxyManager creates a new ProxyManager from configuration. Invalid
// URLs are skipped with a warning.
func NewProxyManager(cfg *config.ProxyConfig, logger *slog.Logger) *ProxyManager {
	pm := &ProxyManager{
		proxies:  make([]*url.URL, 0, len(cfg.URLs)),
		failed:   make(map[string]error),
		rotation: cfg.Rotation,
		logger:   logger.With("component", "proxy_manager"),
	}

	for _, rawURL := range cfg.URLs {
		u, err := url.Parse(rawURL)
		if err != nil || u.Host == "" {
			pm.logger.Warn("invalid proxy URL", "url", rawURL, "error", err)
			continue
		}
		pm.proxies = append(pm.proxies, u)
	}

	pm.logger.Info("proxy manager initialized", "count", len(pm.proxies), "rotation", cfg.Rotation)
	return pm
}

// Next returns the next healthy proxy, or nil for a direct connection.
func (pm *ProxyManager) Next() *url.URL {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	healthy := make([]*url.URL, 0, len(pm.proxies))
	for _, p := range pm.proxies {
		if _, down := pm.failed[p.String()]; !down {
			healthy = append(healthy, p)
		}
	}
	if len(healthy) == 0 {
		return nil
	}

	if pm.rotation == "random" {
		return healthy[rand.Intn(len(healthy))]
	}
	idx := (pm.index.Add(1) - 1) % int64(len(healthy))
	return healthy[idx]
}

// MarkFailed takes a proxy out of rotation.
func (pm *ProxyManager) MarkFailed(proxyURL *url.URL, err error) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	pm.failed[proxyURL.String()] = err
	pm.logger.Warn("proxy marked unhealthy", "proxy", proxyURL.Host, "error", err)
}

// Count returns the total number of proxies.
func (pm *ProxyManager) Count() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies)
}

// HealthyCount returns the number of proxies in rotation.
func (pm *ProxyManager) HealthyCount() int {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	return len(pm.proxies) - len(pm.failed)
}
