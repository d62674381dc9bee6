package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"otodom-scraper/models"
)

// SQLiteWriter persists estates to a local SQLite database.
type SQLiteWriter struct {
	db    *sql.DB
	runID string
}

// NewSQLiteWriter opens (or creates) the database at path and migrates it.
func NewSQLiteWriter(path, runID string) (*SQLiteWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("sqlite: create output dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// one writer at a time avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	sw := &SQLiteWriter{db: db, runID: runID}
	if err := sw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return sw, nil
}

func (sw *SQLiteWriter) migrate() error {
	_, err := sw.db.Exec(`
	PRAGMA journal_mode = WAL;

	CREATE TABLE IF NOT EXISTS estates (
		id INTEGER PRIMARY KEY,
		url TEXT UNIQUE NOT NULL,
		price TEXT NOT NULL DEFAULT '',
		size TEXT NOT NULL DEFAULT '',
		location TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		run_id TEXT NOT NULL,
		scraped_at DATETIME
	);

	CREATE INDEX IF NOT EXISTS idx_estates_location ON estates(location);
	`)
	return err
}

// Write upserts estates in batches.
func (sw *SQLiteWriter) Write(estates []*models.Estate) error {
	if err := writeBatches(sw.db, estates, sw.runID, sqlitePlaceholder); err != nil {
		return fmt.Errorf("sqlite: write: %w", err)
	}
	return nil
}

func sqlitePlaceholder(int) string { return "?" }

func (sw *SQLiteWriter) Close() error {
	return sw.db.Close()
}

// FetchAll retrieves all stored estates in insertion order.
func (sw *SQLiteWriter) FetchAll() ([]*models.Estate, error) {
	estates, err := fetchAll(sw.db)
	if err != nil {
		return nil, fmt.Errorf("sqlite: fetch all: %w", err)
	}
	return estates, nil
}
