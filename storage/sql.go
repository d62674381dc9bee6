package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"otodom-scraper/models"
)

const (
	estateColumns = 7
	batchSize     = 50
)

// upsertQuery builds a multi-row insert for batch. Both PostgreSQL and
// SQLite accept the ON CONFLICT ... excluded form; only placeholders differ.
func upsertQuery(batch []*models.Estate, runID string, scrapedAt time.Time, placeholder func(n int) string) (string, []any) {
	valueStrings := make([]string, 0, len(batch))
	valueArgs := make([]any, 0, len(batch)*estateColumns)

	for idx, e := range batch {
		base := idx * estateColumns
		ph := make([]string, estateColumns)
		for i := range ph {
			ph[i] = placeholder(base + i + 1)
		}
		valueStrings = append(valueStrings, "("+strings.Join(ph, ",")+")")
		valueArgs = append(valueArgs,
			e.URL, e.Details.Price, e.Details.Size, e.Details.Location, e.Details.Description, runID, scrapedAt)
	}

	query := fmt.Sprintf(`
		INSERT INTO estates (url, price, size, location, description, run_id, scraped_at)
		VALUES %s
		ON CONFLICT (url) DO UPDATE SET
			price       = excluded.price,
			size        = excluded.size,
			location    = excluded.location,
			description = excluded.description,
			run_id      = excluded.run_id,
			scraped_at  = excluded.scraped_at
	`, strings.Join(valueStrings, ","))

	return query, valueArgs
}

// writeBatches upserts estates in fixed-size batches inside one transaction.
func writeBatches(db *sql.DB, estates []*models.Estate, runID string, placeholder func(n int) string) error {
	if len(estates) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	scrapedAt := time.Now().UTC()
	for i := 0; i < len(estates); i += batchSize {
		end := min(i+batchSize, len(estates))
		query, args := upsertQuery(estates[i:end], runID, scrapedAt, placeholder)
		if _, err := tx.Exec(query, args...); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func fetchAll(db *sql.DB) ([]*models.Estate, error) {
	rows, err := db.Query(`
		SELECT url, price, size, location, description
		FROM estates
		ORDER BY id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var estates []*models.Estate
	for rows.Next() {
		e := &models.Estate{}
		if err := rows.Scan(&e.URL, &e.Details.Price, &e.Details.Size, &e.Details.Location, &e.Details.Description); err != nil {
			return nil, err
		}
		estates = append(estates, e)
	}
	return estates, rows.Err()
}
