package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"feedhub/internal/domain"

	_ "modernc.org/sqlite"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS read_counts_total (
	url   TEXT PRIMARY KEY,
	count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS read_counts_daily (
	day   TEXT NOT NULL,
	url   TEXT NOT NULL,
	count INTEGER NOT NULL,
	PRIMARY KEY (day, url)
);
`

// SQLiteReadStore keeps read counters in a single SQLite file.
type SQLiteReadStore struct {
	db  *sql.DB
	log *slog.Logger
}

// NewSQLiteReadStore opens path and creates the counter tables if needed.
func NewSQLiteReadStore(ctx context.Context, path string, log *slog.Logger) (*SQLiteReadStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	// One writer at a time; SQLite serializes them anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create sqlite schema: %w", err)
	}
	log.Info("Initializing SQLite read counter storage", slog.String("path", path))
	return &SQLiteReadStore{
		db:  db,
		log: log.With(slog.String("component", "storage.sqlite")),
	}, nil
}

func (s *SQLiteReadStore) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Error("Failed to close sqlite", slog.Any("error", err))
	}
}

func (s *SQLiteReadStore) IncrementRead(ctx context.Context, url, day string) error {
	const op = "storage.sqlite.IncrementRead"
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
	INSERT INTO read_counts_total (url, count) VALUES (?, 1)
	ON CONFLICT (url) DO UPDATE SET count = count + 1;
	`, url); err != nil {
		return fmt.Errorf("%s: total: %w", op, err)
	}
	if _, err := tx.ExecContext(ctx, `
	INSERT INTO read_counts_daily (day, url, count) VALUES (?, ?, 1)
	ON CONFLICT (day, url) DO UPDATE SET count = count + 1;
	`, day, url); err != nil {
		return fmt.Errorf("%s: daily: %w", op, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

func (s *SQLiteReadStore) TopDaily(ctx context.Context, day string, limit int) ([]domain.ReadCount, error) {
	const op = "storage.sqlite.TopDaily"
	rows, err := s.db.QueryContext(ctx, `
	SELECT url, count FROM read_counts_daily
	WHERE day = ?
	ORDER BY count DESC, url ASC
	LIMIT ?;
	`, day, limit)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()

	var counts []domain.ReadCount
	for rows.Next() {
		var rc domain.ReadCount
		if err := rows.Scan(&rc.URL, &rc.Count); err != nil {
			return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
		}
		counts = append(counts, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return counts, nil
}

func (s *SQLiteReadStore) TotalCount(ctx context.Context, url string) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx, `SELECT count FROM read_counts_total WHERE url = ?;`, url).Scan(&count)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("storage.sqlite.TotalCount: %w", err)
	}
	return count, nil
}
