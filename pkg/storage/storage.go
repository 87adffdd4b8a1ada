package storage

import (
	"context"
	"database/sql"
	"time"

	_ "modernc.org/sqlite"

	"github.com/micielski/filmweb-export/pkg/export"
)

// DB holds a finished run's dataset as a queryable snapshot. It is written
// once per run and fully replaced on the next one; no in-progress state ever
// lands here.
type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS export_titles (
  external_id INTEGER NOT NULL,
  kind        TEXT NOT NULL CHECK (kind IN ('movie','tvSeries')),
  title       TEXT NOT NULL,
  url         TEXT,
  year        INTEGER,
  rating      INTEGER,
  rated_at    TEXT,
  favorited   INTEGER NOT NULL CHECK (favorited IN (0,1)),
  watchlisted INTEGER NOT NULL CHECK (watchlisted IN (0,1)),
  exported_at DATETIME NOT NULL,
  PRIMARY KEY (external_id, kind)
);
    `); err != nil {
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// SaveSnapshot replaces the stored dataset with this run's records in one
// transaction, so a crash mid-write never leaves a half-replaced table.
func (d *DB) SaveSnapshot(ctx context.Context, records []export.RatingRecord) (err error) {
	now := time.Now().UTC()

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, "DELETE FROM export_titles"); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO export_titles (external_id, kind, title, url, year, rating, rated_at, favorited, watchlisted, exported_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, rec := range records {
		if _, err = stmt.ExecContext(ctx,
			rec.ExternalID, string(rec.Kind), rec.Title, rec.URL, rec.Year,
			rec.Rating, rec.RatedAt, boolToInt(rec.Favorited), boolToInt(rec.Watchlisted), now,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// CountTitles reports how many titles the stored snapshot holds.
func (d *DB) CountTitles(ctx context.Context) (int, error) {
	var n int
	err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM export_titles").Scan(&n)
	return n, err
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
