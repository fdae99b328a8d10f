package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/IshaanNene/articlecrawl/internal/config"
	"github.com/IshaanNene/articlecrawl/internal/types"
)

// ArticleWriter persists one article's text under its 1-based index.
type ArticleWriter interface {
	// WriteArticle writes text and returns the path it was written to.
	WriteArticle(index int, text string) (string, error)
}

// RecordStore keeps named, versioned records such as crawl checkpoints.
type RecordStore interface {
	// WriteRecord replaces the record stored under name.
	WriteRecord(ctx context.Context, name string, rec types.Record) error

	// ReadRecord returns the record stored under name, or
	// types.ErrRecordNotFound.
	ReadRecord(ctx context.Context, name string) (types.Record, error)

	// Close flushes pending writes and releases resources.
	Close() error

	// Name returns the storage backend identifier.
	Name() string
}

// NewRecordStore opens the record store selected by checkpoint.backend.
func NewRecordStore(cfg *config.CheckpointConfig, logger *slog.Logger) (RecordStore, error) {
	switch cfg.Backend {
	case "", "file":
		return NewJSONRecordStore(cfg.Dir, logger)
	case "sqlite":
		return NewSQLiteRecordStore(cfg.SQLitePath, logger)
	case "mongodb":
		return NewMongoRecordStore(cfg.MongoURI, cfg.MongoDB, cfg.Collection, logger)
	default:
		return nil, fmt.Errorf("unsupported record store %q", cfg.Backend)
	}
}
