package config

import (
	"time"

	"github.com/IshaanNene/articlecrawl/internal/parser"
)

// Version is set at build time via ldflags.
var Version = "dev"

// DefaultBaseDomainPattern captures scheme, optional "www.", one domain
// label and a 2-3 character top-level segment of the base URL.
const DefaultBaseDomainPattern = `^(http(s)?://(www\.)?[a-z0-9]+\.(\w){2,3})`

// Mode selects how a page's articles are processed.
type Mode string

const (
	ModeSequential        Mode = "sequential"
	ModeChunkedConcurrent Mode = "chunked-concurrent"
)

// Config is the root configuration for articlecrawl.
type Config struct {
	Crawl      CrawlConfig      `mapstructure:"crawl"      yaml:"crawl"`
	Fetcher    FetcherConfig    `mapstructure:"fetcher"    yaml:"fetcher"`
	Proxy      ProxyConfig      `mapstructure:"proxy"      yaml:"proxy"`
	Checkpoint CheckpointConfig `mapstructure:"checkpoint" yaml:"checkpoint"`
	Logging    LoggingConfig    `mapstructure:"logging"    yaml:"logging"`
	Metrics    MetricsConfig    `mapstructure:"metrics"    yaml:"metrics"`
}

// CrawlConfig describes one site crawl. It must not change once a crawl starts.
type CrawlConfig struct {
	BaseURL             string              `mapstructure:"base_url"              yaml:"base_url"`
	ArticleLinkSelector parser.SelectorSpec `mapstructure:"article_link_selector" yaml:"article_link_selector"`
	ArticleBodySelector parser.SelectorSpec `mapstructure:"article_body_selector" yaml:"article_body_selector"`
	NextPageSelector    parser.SelectorSpec `mapstructure:"next_page_selector"    yaml:"next_page_selector"`
	NumberOfArticles    int                 `mapstructure:"number_of_articles"    yaml:"number_of_articles"`
	OutputDirectory     string              `mapstructure:"output_directory"      yaml:"output_directory"`
	CreateOutputDir     bool                `mapstructure:"create_output_dir"     yaml:"create_output_dir"`
	FileNamePrefix      string              `mapstructure:"file_name_prefix"      yaml:"file_name_prefix"`
	TextEncoding        string              `mapstructure:"text_encoding"         yaml:"text_encoding"`
	ConcurrencyMode     Mode                `mapstructure:"concurrency_mode"      yaml:"concurrency_mode"`
	BaseDomainPattern   string              `mapstructure:"base_domain_pattern"   yaml:"base_domain_pattern"`
	ProgressInterval    int                 `mapstructure:"progress_interval"     yaml:"progress_interval"`
}

// FetcherConfig controls the request fetcher. Headers, Params and Proxy are
// loosely typed on purpose: values of the wrong shape are dropped with a
// warning when requests are built.
type FetcherConfig struct {
	Type            string        `mapstructure:"type"              yaml:"type"`
	Method          string        `mapstructure:"method"            yaml:"method"`
	Headers         any           `mapstructure:"headers"           yaml:"headers"`
	Params          any           `mapstructure:"params"            yaml:"params"`
	Proxy           any           `mapstructure:"proxy"             yaml:"proxy"`
	UserAgent       string        `mapstructure:"user_agent"        yaml:"user_agent"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"   yaml:"request_timeout"`
	FollowRedirects bool          `mapstructure:"follow_redirects"  yaml:"follow_redirects"`
	MaxRedirects    int           `mapstructure:"max_redirects"     yaml:"max_redirects"`
	MaxBodySize     int64         `mapstructure:"max_body_size"     yaml:"max_body_size"`
	TLSInsecure     bool          `mapstructure:"tls_insecure"      yaml:"tls_insecure"`
	IdleConnTimeout time.Duration `mapstructure:"idle_conn_timeout" yaml:"idle_conn_timeout"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"    yaml:"max_idle_conns"`
	Stealth         bool          `mapstructure:"stealth"           yaml:"stealth"`
}

// ProxyConfig controls proxy rotation.
type ProxyConfig struct {
	Enabled  bool     `mapstructure:"enabled"  yaml:"enabled"`
	Rotation string   `mapstructure:"rotation" yaml:"rotation"`
	URLs     []string `mapstructure:"urls"     yaml:"urls"`
}

// CheckpointConfig selects the durable record store used for checkpoints.
type CheckpointConfig struct {
	Backend    string `mapstructure:"backend"     yaml:"backend"`
	Name       string `mapstructure:"name"        yaml:"name"`
	Dir        string `mapstructure:"dir"         yaml:"dir"`
	SQLitePath string `mapstructure:"sqlite_path" yaml:"sqlite_path"`
	MongoURI   string `mapstructure:"mongo_uri"   yaml:"mongo_uri"`
	MongoDB    string `mapstructure:"mongo_db"    yaml:"mongo_db"`
	Collection string `mapstructure:"collection"  yaml:"collection"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level      string `mapstructure:"level"        yaml:"level"`
	Format     string `mapstructure:"format"       yaml:"format"`
	Output     string `mapstructure:"output"       yaml:"output"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"  yaml:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"  yaml:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool   `mapstructure:"compress"     yaml:"compress"`
}

// MetricsConfig controls the Prometheus metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	Port    int    `mapstructure:"port"    yaml:"port"`
	Path    string `mapstructure:"path"    yaml:"path"`
}

// DefaultConfig returns a Config with sensible defaults. Site-specific
// fields (base URL and selectors) are left empty.
func DefaultConfig() *Config {
	return &Config{
		Crawl: CrawlConfig{
			NumberOfArticles:  20,
			TextEncoding:      "utf-8",
			ConcurrencyMode:   ModeSequential,
			BaseDomainPattern: DefaultBaseDomainPattern,
			ProgressInterval:  500,
		},
		Fetcher: FetcherConfig{
			Type:            "http",
			Method:          "GET",
			RequestTimeout:  30 * time.Second,
			FollowRedirects: true,
			MaxRedirects:    10,
			MaxBodySize:     10 * 1024 * 1024, // 10MB
			IdleConnTimeout: 90 * time.Second,
			MaxIdleConns:    100,
		},
		Proxy: ProxyConfig{
			Enabled:  false,
			Rotation: "round_robin",
		},
		Checkpoint: CheckpointConfig{
			Backend:    "file",
			Name:       "crawler_checkpoint",
			Dir:        ".articlecrawl",
			SQLitePath: ".articlecrawl/checkpoints.db",
			MongoDB:    "articlecrawl",
			Collection: "checkpoints",
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "text",
			Output:     "stderr",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 28,
			Compress:   true,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
	}
}
