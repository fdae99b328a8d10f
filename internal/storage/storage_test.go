package storage

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

func crawlConfig(dir string, quota int, encoding string) *config.CrawlConfig {
	cfg := config.DefaultConfig().Crawl
	cfg.OutputDirectory = dir
	cfg.CreateOutputDir = true
	cfg.FileNamePrefix = "fars"
	cfg.NumberOfArticles = quota
	cfg.TextEncoding = encoding
	return &cfg
}

// --- ArticleFileWriter Tests ---

func TestArticleFileWriterPaths(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	tests := []struct {
		quota int
		index int
		want  string
	}{
		{9, 3, "fars_3.txt"},
		{20, 3, "fars_03.txt"},
		{150, 7, "fars_007.txt"},
		{1000, 42, "fars_0042.txt"},
	}

	for _, tt := range tests {
		w, err := NewArticleFileWriter(crawlConfig(dir, tt.quota, "utf-8"), testLogger)
		if err != nil {
			t.Fatalf("new writer: %v", err)
		}
		if got := w.Path(tt.index); got != filepath.Join(dir, tt.want) {
			t.Errorf("quota %d index %d: expected %s, got %s", tt.quota, tt.index, tt.want, got)
		}
	}
}

func TestArticleFileWriterNoDirectory(t *testing.T) {
	cfg := crawlConfig("", 5, "utf-8")
	w, err := NewArticleFileWriter(cfg, testLogger)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	if got := w.Path(1); got != "fars_1.txt" {
		t.Errorf("expected bare file name, got %s", got)
	}
}

func TestArticleFileWriterWritesEncoded(t *testing.T) {
	dir := t.TempDir()

	w, err := NewArticleFileWriter(crawlConfig(dir, 2, "utf-8"), testLogger)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	path, err := w.WriteArticle(1, "سلام دنیا")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "سلام دنیا" {
		t.Errorf("unexpected content %q", data)
	}

	latin, err := NewArticleFileWriter(crawlConfig(dir, 2, "iso-8859-1"), testLogger)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	path, err = latin.WriteArticle(2, "café ☃")
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	data, _ = os.ReadFile(path)
	if len(data) != 6 || data[3] != 0xE9 {
		t.Errorf("expected latin-1 bytes with replacement, got %v", data)
	}
}

func TestArticleFileWriterOverwrites(t *testing.T) {
	w, _ := NewArticleFileWriter(crawlConfig(t.TempDir(), 3, "utf-8"), testLogger)

	_, _ = w.WriteArticle(1, "first")
	path, _ := w.WriteArticle(1, "second")
	data, _ := os.ReadFile(path)
	if string(data) != "second" {
		t.Errorf("expected overwrite, got %q", data)
	}
}

func TestArticleFileWriterMissingDir(t *testing.T) {
	cfg := crawlConfig(filepath.Join(t.TempDir(), "missing"), 3, "utf-8")
	cfg.CreateOutputDir = false

	w, err := NewArticleFileWriter(cfg, testLogger)
	if err != nil {
		t.Fatalf("new writer: %v", err)
	}
	_, err = w.WriteArticle(1, "text")
	var storageErr *types.StorageError
	if !errors.As(err, &storageErr) {
		t.Errorf("expected StorageError, got %v", err)
	}
}

// --- RecordStore Tests ---

func testRecord() types.Record {
	return types.NewRecord(map[string]any{
		"base_url":             "http://www.example.com/news",
		"articles_saved_count": 7,
		"article_body_selector": []string{
			"div.body", "div.lead",
		},
	})
}

func exerciseRecordStore(t *testing.T, store RecordStore) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.ReadRecord(ctx, "crawler_checkpoint"); !errors.Is(err, types.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	if err := store.WriteRecord(ctx, "crawler_checkpoint", testRecord()); err != nil {
		t.Fatalf("write: %v", err)
	}

	updated := testRecord()
	updated.Fields["articles_saved_count"] = 9
	if err := store.WriteRecord(ctx, "crawler_checkpoint", updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}

	rec, err := store.ReadRecord(ctx, "crawler_checkpoint")
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if rec.Version != types.RecordVersion {
		t.Errorf("expected version %d, got %d", types.RecordVersion, rec.Version)
	}
	if rec.Fields["base_url"] != "http://www.example.com/news" {
		t.Errorf("unexpected base_url %v", rec.Fields["base_url"])
	}
	if n, ok := rec.Fields["articles_saved_count"].(float64); !ok || n != 9 {
		t.Errorf("expected count 9, got %#v", rec.Fields["articles_saved_count"])
	}
	if list, ok := rec.Fields["article_body_selector"].([]any); !ok || len(list) != 2 {
		t.Errorf("expected selector list, got %#v", rec.Fields["article_body_selector"])
	}
	if rec.SavedAt.IsZero() {
		t.Error("expected saved_at to be set")
	}
}

func TestJSONRecordStore(t *testing.T) {
	dir := filepath.Join(t.TempDir(), ".articlecrawl")
	store, err := NewJSONRecordStore(dir, testLogger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	exerciseRecordStore(t, store)

	if _, err := os.Stat(filepath.Join(dir, "crawler_checkpoint.json")); err != nil {
		t.Errorf("expected record file: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "crawler_checkpoint.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file should be renamed away")
	}
}

func TestSQLiteRecordStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "db", "checkpoints.db")
	store, err := NewSQLiteRecordStore(path, testLogger)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	defer store.Close()

	exerciseRecordStore(t, store)
}

func TestNewRecordStoreBackends(t *testing.T) {
	cfg := config.DefaultConfig().Checkpoint
	cfg.Dir = t.TempDir()
	cfg.SQLitePath = filepath.Join(cfg.Dir, "checkpoints.db")

	for _, backend := range []string{"file", "sqlite"} {
		cfg.Backend = backend
		store, err := NewRecordStore(&cfg, testLogger)
		if err != nil {
			t.Fatalf("%s: %v", backend, err)
		}
		if store.Name() != backend {
			t.Errorf("expected %s store, got %s", backend, store.Name())
		}
		_ = store.Close()
	}

	cfg.Backend = "redis"
	if _, err := NewRecordStore(&cfg, testLogger); err == nil {
		t.Error("expected error for unknown backend")
	}
}

func TestNormalizeBSON(t *testing.T) {
	got := normalizeBSON(map[string]any{
		"list":   primitive.A{"a", primitive.A{"b"}},
		"nested": primitive.D{{Key: "k", Value: "v"}},
		"n":      int32(3),
	})

	list, ok := got["list"].([]any)
	if !ok || len(list) != 2 {
		t.Fatalf("expected []any, got %#v", got["list"])
	}
	if _, ok := list[1].([]any); !ok {
		t.Errorf("expected nested []any, got %#v", list[1])
	}
	if m, ok := got["nested"].(map[string]any); !ok || m["k"] != "v" {
		t.Errorf("expected plain map, got %#v", got["nested"])
	}
	if got["n"] != int32(3) {
		t.Errorf("scalars should pass through, got %#v", got["n"])
	}
}
