package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"time"

	_ "github.com/lib/pq"

	"otodom-scraper/models"
)

// PostgresWriter persists estates to PostgreSQL, one row per listing URL.
type PostgresWriter struct {
	db    *sql.DB
	runID string
}

// NewPostgresWriter opens a connection to PostgreSQL, runs schema migrations,
// and returns a ready-to-use PostgresWriter.
func NewPostgresWriter(ctx context.Context, dsn, runID string) (*PostgresWriter, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	for i := 0; i < 10; i++ {
		if err = db.PingContext(ctx); err == nil {
			break
		}
		select {
		case <-ctx.Done():
			_ = db.Close()
			return nil, fmt.Errorf("postgres: ping: %w", ctx.Err())
		case <-time.After(2 * time.Second):
		}
	}
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping failed after retries: %w", err)
	}

	pw := &PostgresWriter{db: db, runID: runID}
	if err := pw.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: migrate: %w", err)
	}

	return pw, nil
}

func (pw *PostgresWriter) migrate() error {
	_, err := pw.db.Exec(`
		CREATE TABLE IF NOT EXISTS estates (
			id          SERIAL PRIMARY KEY,
			url         TEXT        UNIQUE NOT NULL,
			price       TEXT        NOT NULL DEFAULT '',
			size        TEXT        NOT NULL DEFAULT '',
			location    TEXT        NOT NULL DEFAULT '',
			description TEXT        NOT NULL DEFAULT '',
			run_id      UUID        NOT NULL,
			scraped_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);

		CREATE INDEX IF NOT EXISTS idx_estates_location ON estates(location);
		CREATE INDEX IF NOT EXISTS idx_estates_run_id   ON estates(run_id);
	`)
	return err
}

// Write upserts estates in batches. A listing seen again overwrites its row.
func (pw *PostgresWriter) Write(estates []*models.Estate) error {
	if err := writeBatches(pw.db, estates, pw.runID, postgresPlaceholder); err != nil {
		return fmt.Errorf("postgres: write: %w", err)
	}
	return nil
}

func postgresPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

func (pw *PostgresWriter) Close() error {
	return pw.db.Close()
}

// FetchAll retrieves all stored estates, used by the insight service.
func (pw *PostgresWriter) FetchAll() ([]*models.Estate, error) {
	estates, err := fetchAll(pw.db)
	if err != nil {
		return nil, fmt.Errorf("postgres: fetch all: %w", err)
	}
	return estates, nil
}
