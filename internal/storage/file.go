package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// --- Article Files ---

// ArticleFileWriter writes each article to its own text file named
// <prefix>_<zero-padded index>.txt. Existing files are overwritten.
type ArticleFileWriter struct {
	dir     string
	prefix  string
	width   int
	enc     encoding.Encoding
	encName string
	logger  *slog.Logger
}

// NewArticleFileWriter creates a writer for the crawl's output settings.
// The index width is the number of digits in number_of_articles.
func NewArticleFileWriter(cfg *config.CrawlConfig, logger *slog.Logger) (*ArticleFileWriter, error) {
	enc, err := htmlindex.Get(cfg.TextEncoding)
	if err != nil {
		return nil, &types.ConfigError{Field: "crawl.text_encoding", Err: err}
	}

	if cfg.CreateOutputDir && cfg.OutputDirectory != "" {
		if err := os.MkdirAll(cfg.OutputDirectory, 0o755); err != nil {
			return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create output dir: %w", err)}
		}
	}

	return &ArticleFileWriter{
		dir:     cfg.OutputDirectory,
		prefix:  cfg.FileNamePrefix,
		width:   len(strconv.Itoa(cfg.NumberOfArticles)),
		enc:     enc,
		encName: cfg.TextEncoding,
		logger:  logger.With("component", "article_writer"),
	}, nil
}

// Path returns the file path used for the article at index.
func (w *ArticleFileWriter) Path(index int) string {
	name := fmt.Sprintf("%s_%0*d.txt", w.prefix, w.width, index)
	if w.dir == "" {
		return name
	}
	return filepath.Join(w.dir, name)
}

// WriteArticle encodes text with the configured encoding and writes it.
// Characters the encoding cannot represent are replaced.
func (w *ArticleFileWriter) WriteArticle(index int, text string) (string, error) {
	path := w.Path(index)

	data, err := encoding.ReplaceUnsupported(w.enc.NewEncoder()).String(text)
	if err != nil {
		return "", &types.StorageError{Backend: "file", Err: fmt.Errorf("encode %s as %s: %w", path, w.encName, err)}
	}

	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		return "", &types.StorageError{Backend: "file", Err: err}
	}

	w.logger.Debug("article written", "index", index, "path", path, "bytes", len(data))
	return path, nil
}

// --- JSON Records ---

// JSONRecordStore keeps each record in <dir>/<name>.json. Writes go to a
// temporary file first and are renamed into place.
type JSONRecordStore struct {
	dir    string
	logger *slog.Logger
}

// NewJSONRecordStore creates a JSON file record store rooted at dir.
func NewJSONRecordStore(dir string, logger *slog.Logger) (*JSONRecordStore, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &types.StorageError{Backend: "file", Err: fmt.Errorf("create record dir: %w", err)}
	}
	return &JSONRecordStore{
		dir:    dir,
		logger: logger.With("component", "json_record_store"),
	}, nil
}

func (s *JSONRecordStore) Name() string { return "file" }

func (s *JSONRecordStore) path(name string) string {
	return filepath.Join(s.dir, name+".json")
}

func (s *JSONRecordStore) WriteRecord(_ context.Context, name string, rec types.Record) error {
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("marshal record: %w", err)}
	}

	path := s.path(name)
	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("write record: %w", err)}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &types.StorageError{Backend: "file", Err: fmt.Errorf("rename record: %w", err)}
	}

	s.logger.Debug("record saved", "name", name, "path", path)
	return nil
}

func (s *JSONRecordStore) ReadRecord(_ context.Context, name string) (types.Record, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return types.Record{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, name)
		}
		return types.Record{}, &types.StorageError{Backend: "file", Err: err}
	}

	var rec types.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.Record{}, &types.StorageError{Backend: "file", Err: fmt.Errorf("unmarshal record: %w", err)}
	}
	return rec, nil
}

func (s *JSONRecordStore) Close() error { return nil }
