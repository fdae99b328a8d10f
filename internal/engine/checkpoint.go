package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/parser"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// Checkpoint record keys.
const (
	keyConcurrencyMode     = "concurrency_mode"
	keyArticleBodySelector = "article_body_selector"
	keyArticleLinkSelector = "article_link_selector"
	keyBaseURL             = "base_url"
	keyOutputDirectory     = "output_directory"
	keyNextPageSelector    = "next_page_selector"
	keyTextEncoding        = "text_encoding"
	keyFileNamePrefix      = "file_name_prefix"
	keyBaseDomainPattern   = "base-domain-pattern"
	keyCurrentPageURL      = "current_page_url"
	keyArticlesSavedCount  = "articles_saved_count"
	keyNumberOfArticles    = "number_of_articles"
)

var checkpointKeys = []string{
	keyConcurrencyMode,
	keyArticleBodySelector,
	keyArticleLinkSelector,
	keyBaseURL,
	keyOutputDirectory,
	keyNextPageSelector,
	keyTextEncoding,
	keyFileNamePrefix,
	keyBaseDomainPattern,
	keyCurrentPageURL,
	keyArticlesSavedCount,
	keyNumberOfArticles,
}

// CheckpointRecord is a snapshot of the crawl configuration and progress,
// enough to continue a crawl from the page it stopped on.
type CheckpointRecord struct {
	ConcurrencyMode     config.Mode
	ArticleBodySelector parser.SelectorSpec
	ArticleLinkSelector parser.SelectorSpec
	BaseURL             string
	OutputDirectory     string
	NextPageSelector    parser.SelectorSpec
	TextEncoding        string
	FileNamePrefix      string
	BaseDomainPattern   string
	CurrentPageURL      string
	ArticlesSavedCount  int
	NumberOfArticles    int
}

// NewCheckpointRecord captures cfg and st.
func NewCheckpointRecord(cfg *config.CrawlConfig, st CrawlState) CheckpointRecord {
	return CheckpointRecord{
		ConcurrencyMode:     cfg.ConcurrencyMode,
		ArticleBodySelector: cfg.ArticleBodySelector,
		ArticleLinkSelector: cfg.ArticleLinkSelector,
		BaseURL:             cfg.BaseURL,
		OutputDirectory:     cfg.OutputDirectory,
		NextPageSelector:    cfg.NextPageSelector,
		TextEncoding:        cfg.TextEncoding,
		FileNamePrefix:      cfg.FileNamePrefix,
		BaseDomainPattern:   cfg.BaseDomainPattern,
		CurrentPageURL:      st.CurrentPageURL,
		ArticlesSavedCount:  st.ArticlesSaved,
		NumberOfArticles:    cfg.NumberOfArticles,
	}
}

// ToMap returns the record's fields under their persisted key names.
func (r CheckpointRecord) ToMap() map[string]any {
	return map[string]any{
		keyConcurrencyMode:     string(r.ConcurrencyMode),
		keyArticleBodySelector: r.ArticleBodySelector.Value(),
		keyArticleLinkSelector: r.ArticleLinkSelector.Value(),
		keyBaseURL:             r.BaseURL,
		keyOutputDirectory:     r.OutputDirectory,
		keyNextPageSelector:    r.NextPageSelector.Value(),
		keyTextEncoding:        r.TextEncoding,
		keyFileNamePrefix:      r.FileNamePrefix,
		keyBaseDomainPattern:   r.BaseDomainPattern,
		keyCurrentPageURL:      r.CurrentPageURL,
		keyArticlesSavedCount:  r.ArticlesSavedCount,
		keyNumberOfArticles:    r.NumberOfArticles,
	}
}

// CheckpointRecordFromMap parses persisted fields. The key set must match
// exactly.
func CheckpointRecordFromMap(m map[string]any) (CheckpointRecord, error) {
	var missing, unknown []string
	for _, k := range checkpointKeys {
		if _, ok := m[k]; !ok {
			missing = append(missing, k)
		}
	}
	known := make(map[string]bool, len(checkpointKeys))
	for _, k := range checkpointKeys {
		known[k] = true
	}
	for k := range m {
		if !known[k] {
			unknown = append(unknown, k)
		}
	}
	if len(missing) > 0 || len(unknown) > 0 {
		sort.Strings(unknown)
		return CheckpointRecord{}, fmt.Errorf("checkpoint keys mismatch: missing [%s] unknown [%s]",
			strings.Join(missing, ", "), strings.Join(unknown, ", "))
	}

	var (
		r   CheckpointRecord
		err error
	)
	strs := []struct {
		key string
		dst *string
	}{
		{keyBaseURL, &r.BaseURL},
		{keyOutputDirectory, &r.OutputDirectory},
		{keyTextEncoding, &r.TextEncoding},
		{keyFileNamePrefix, &r.FileNamePrefix},
		{keyBaseDomainPattern, &r.BaseDomainPattern},
		{keyCurrentPageURL, &r.CurrentPageURL},
	}
	for _, s := range strs {
		if *s.dst, err = stringField(m, s.key); err != nil {
			return CheckpointRecord{}, err
		}
	}

	mode, err := stringField(m, keyConcurrencyMode)
	if err != nil {
		return CheckpointRecord{}, err
	}
	r.ConcurrencyMode = config.Mode(mode)

	selectors := []struct {
		key string
		dst *parser.SelectorSpec
	}{
		{keyArticleBodySelector, &r.ArticleBodySelector},
		{keyArticleLinkSelector, &r.ArticleLinkSelector},
		{keyNextPageSelector, &r.NextPageSelector},
	}
	for _, s := range selectors {
		if *s.dst, err = parser.ParseSelectorSpec(m[s.key]); err != nil {
			return CheckpointRecord{}, fmt.Errorf("checkpoint %s: %w", s.key, err)
		}
	}

	if r.ArticlesSavedCount, err = intField(m, keyArticlesSavedCount); err != nil {
		return CheckpointRecord{}, err
	}
	if r.NumberOfArticles, err = intField(m, keyNumberOfArticles); err != nil {
		return CheckpointRecord{}, err
	}
	return r, nil
}

// Apply returns a copy of cfg with the record's crawl settings.
func (r CheckpointRecord) Apply(cfg *config.Config) *config.Config {
	out := *cfg
	out.Crawl.ConcurrencyMode = r.ConcurrencyMode
	out.Crawl.ArticleBodySelector = r.ArticleBodySelector
	out.Crawl.ArticleLinkSelector = r.ArticleLinkSelector
	out.Crawl.BaseURL = r.BaseURL
	out.Crawl.OutputDirectory = r.OutputDirectory
	out.Crawl.NextPageSelector = r.NextPageSelector
	out.Crawl.TextEncoding = r.TextEncoding
	out.Crawl.FileNamePrefix = r.FileNamePrefix
	out.Crawl.BaseDomainPattern = r.BaseDomainPattern
	out.Crawl.NumberOfArticles = r.NumberOfArticles
	return &out
}

// State returns the progress stored in the record.
func (r CheckpointRecord) State() CrawlState {
	return CrawlState{
		CurrentPageURL: r.CurrentPageURL,
		ArticlesSaved:  r.ArticlesSavedCount,
	}
}

func stringField(m map[string]any, key string) (string, error) {
	s, ok := m[key].(string)
	if !ok {
		return "", fmt.Errorf("checkpoint %s: expected string, got %T", key, m[key])
	}
	return s, nil
}

func intField(m map[string]any, key string) (int, error) {
	switch n := m[key].(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != float64(int(n)) {
			return 0, fmt.Errorf("checkpoint %s: %v is not an integer", key, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("checkpoint %s: expected integer, got %T", key, m[key])
	}
}

// CheckpointManager saves and loads the crawl checkpoint under a fixed name.
type CheckpointManager struct {
	store  RecordStore
	name   string
	logger *slog.Logger
}

// NewCheckpointManager creates a new CheckpointManager.
func NewCheckpointManager(store RecordStore, name string, logger *slog.Logger) *CheckpointManager {
	return &CheckpointManager{
		store:  store,
		name:   name,
		logger: logger.With("component", "checkpoint"),
	}
}

// Save writes rec as the current checkpoint, replacing any earlier one.
func (cm *CheckpointManager) Save(ctx context.Context, rec CheckpointRecord) error {
	if err := cm.store.WriteRecord(ctx, cm.name, types.NewRecord(rec.ToMap())); err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	cm.logger.Info("checkpoint saved",
		"backend", cm.store.Name(),
		"name", cm.name,
		"current_page_url", rec.CurrentPageURL,
		"articles_saved_count", rec.ArticlesSavedCount,
	)
	return nil
}

// Load reads the current checkpoint. It returns types.ErrRecordNotFound
// when none has been written.
func (cm *CheckpointManager) Load(ctx context.Context) (CheckpointRecord, error) {
	rec, err := cm.store.ReadRecord(ctx, cm.name)
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("load checkpoint: %w", err)
	}
	if rec.Version != types.RecordVersion {
		return CheckpointRecord{}, fmt.Errorf("load checkpoint: unsupported version %d (want %d)", rec.Version, types.RecordVersion)
	}
	return CheckpointRecordFromMap(rec.Fields)
}
