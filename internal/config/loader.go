package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/IshaanNene/articlecrawl/internal/parser"
)

// Load reads configuration from file and environment.
// Priority (highest to lowest): env vars > config file > defaults.
// CLI flags are applied by the caller on the returned Config.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigType("yaml")

	setDefaults(v, cfg)

	v.SetEnvPrefix("ARTICLECRAWL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("articlecrawl")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		home, err := os.UserHomeDir()
		if err == nil {
			v.AddConfigPath(filepath.Join(home, ".articlecrawl"))
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	hook := viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		selectorSpecHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
	if err := v.Unmarshal(cfg, hook); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// selectorSpecHook decodes a string into a single selector and a list into
// an ordered multi-pattern selector.
func selectorSpecHook() mapstructure.DecodeHookFuncType {
	specType := reflect.TypeOf(parser.SelectorSpec{})
	return func(from, to reflect.Type, data any) (any, error) {
		if to != specType || from == specType {
			return data, nil
		}
		if data == nil {
			return parser.SelectorSpec{}, nil
		}
		return parser.ParseSelectorSpec(data)
	}
}

// setDefaults registers default values in viper.
func setDefaults(v *viper.Viper, cfg *Config) {
	// Selectors have no defaults; bind them so env overrides still apply.
	for _, key := range []string{"crawl.article_link_selector", "crawl.article_body_selector", "crawl.next_page_selector"} {
		_ = v.BindEnv(key)
	}

	v.SetDefault("crawl.base_url", cfg.Crawl.BaseURL)
	v.SetDefault("crawl.number_of_articles", cfg.Crawl.NumberOfArticles)
	v.SetDefault("crawl.output_directory", cfg.Crawl.OutputDirectory)
	v.SetDefault("crawl.create_output_dir", cfg.Crawl.CreateOutputDir)
	v.SetDefault("crawl.file_name_prefix", cfg.Crawl.FileNamePrefix)
	v.SetDefault("crawl.text_encoding", cfg.Crawl.TextEncoding)
	v.SetDefault("crawl.concurrency_mode", string(cfg.Crawl.ConcurrencyMode))
	v.SetDefault("crawl.base_domain_pattern", cfg.Crawl.BaseDomainPattern)
	v.SetDefault("crawl.progress_interval", cfg.Crawl.ProgressInterval)

	v.SetDefault("fetcher.type", cfg.Fetcher.Type)
	v.SetDefault("fetcher.method", cfg.Fetcher.Method)
	v.SetDefault("fetcher.user_agent", cfg.Fetcher.UserAgent)
	v.SetDefault("fetcher.request_timeout", cfg.Fetcher.RequestTimeout)
	v.SetDefault("fetcher.follow_redirects", cfg.Fetcher.FollowRedirects)
	v.SetDefault("fetcher.max_redirects", cfg.Fetcher.MaxRedirects)
	v.SetDefault("fetcher.max_body_size", cfg.Fetcher.MaxBodySize)
	v.SetDefault("fetcher.tls_insecure", cfg.Fetcher.TLSInsecure)
	v.SetDefault("fetcher.idle_conn_timeout", cfg.Fetcher.IdleConnTimeout)
	v.SetDefault("fetcher.max_idle_conns", cfg.Fetcher.MaxIdleConns)
	v.SetDefault("fetcher.stealth", cfg.Fetcher.Stealth)

	v.SetDefault("proxy.enabled", cfg.Proxy.Enabled)
	v.SetDefault("proxy.rotation", cfg.Proxy.Rotation)

	v.SetDefault("checkpoint.backend", cfg.Checkpoint.Backend)
	v.SetDefault("checkpoint.name", cfg.Checkpoint.Name)
	v.SetDefault("checkpoint.dir", cfg.Checkpoint.Dir)
	v.SetDefault("checkpoint.sqlite_path", cfg.Checkpoint.SQLitePath)
	v.SetDefault("checkpoint.mongo_uri", cfg.Checkpoint.MongoURI)
	v.SetDefault("checkpoint.mongo_db", cfg.Checkpoint.MongoDB)
	v.SetDefault("checkpoint.collection", cfg.Checkpoint.Collection)

	v.SetDefault("logging.level", cfg.Logging.Level)
	v.SetDefault("logging.format", cfg.Logging.Format)
	v.SetDefault("logging.output", cfg.Logging.Output)
	v.SetDefault("logging.max_size_mb", cfg.Logging.MaxSizeMB)
	v.SetDefault("logging.max_backups", cfg.Logging.MaxBackups)
	v.SetDefault("logging.max_age_days", cfg.Logging.MaxAgeDays)
	v.SetDefault("logging.compress", cfg.Logging.Compress)

	v.SetDefault("metrics.enabled", cfg.Metrics.Enabled)
	v.SetDefault("metrics.port", cfg.Metrics.Port)
	v.SetDefault("metrics.path", cfg.Metrics.Path)
}
