package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/IshaanNene/articlecrawl/internal/types"
)

const recordsSchema = `
CREATE TABLE IF NOT EXISTS records (
	name     TEXT PRIMARY KEY,
	version  INTEGER NOT NULL,
	saved_at TEXT NOT NULL,
	fields   TEXT NOT NULL
)`

// SQLiteRecordStore keeps records in a single SQLite table, one row per name.
type SQLiteRecordStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteRecordStore opens or creates the database at path.
func NewSQLiteRecordStore(path string, logger *slog.Logger) (*SQLiteRecordStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("create database directory: %w", err)}
		}
	}

	db, err := sql.Open("sqlite", path+"?mode=rwc")
	if err != nil {
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("open database: %w", err)}
	}
	db.SetMaxOpenConns(1) // single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), recordsSchema); err != nil {
		_ = db.Close()
		return nil, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("create tables: %w", err)}
	}

	return &SQLiteRecordStore{
		db:     db,
		path:   path,
		logger: logger.With("component", "sqlite_record_store"),
	}, nil
}

func (s *SQLiteRecordStore) Name() string { return "sqlite" }

func (s *SQLiteRecordStore) WriteRecord(ctx context.Context, name string, rec types.Record) error {
	fields, err := json.Marshal(rec.Fields)
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("marshal fields: %w", err)}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO records (name, version, saved_at, fields)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			version = excluded.version,
			saved_at = excluded.saved_at,
			fields = excluded.fields`,
		name, rec.Version, rec.SavedAt.UTC().Format(time.RFC3339Nano), string(fields),
	)
	if err != nil {
		return &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("upsert record: %w", err)}
	}

	s.logger.Debug("record saved", "name", name, "db", s.path)
	return nil
}

func (s *SQLiteRecordStore) ReadRecord(ctx context.Context, name string) (types.Record, error) {
	var (
		rec     types.Record
		savedAt string
		fields  string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT version, saved_at, fields FROM records WHERE name = ?`, name,
	).Scan(&rec.Version, &savedAt, &fields)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Record{}, fmt.Errorf("%w: %s", types.ErrRecordNotFound, name)
		}
		return types.Record{}, &types.StorageError{Backend: "sqlite", Err: err}
	}

	if rec.SavedAt, err = time.Parse(time.RFC3339Nano, savedAt); err != nil {
		return types.Record{}, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("parse saved_at: %w", err)}
	}
	if err := json.Unmarshal([]byte(fields), &rec.Fields); err != nil {
		return types.Record{}, &types.StorageError{Backend: "sqlite", Err: fmt.Errorf("unmarshal fields: %w", err)}
	}
	return rec, nil
}

func (s *SQLiteRecordStore) Close() error {
	return s.db.Close()
}
