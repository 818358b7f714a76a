package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"feedhub/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresReadStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresReadStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresReadStore {
	log.Info("Initializing Postgres read counter storage")
	return &PostgresReadStore{
		pool: pool,
		log:  log.With(slog.String("component", "storage.postgres")),
	}
}

func (db *PostgresReadStore) Close() {
	db.log.Info("Closing database connection pool")
	db.pool.Close()
}

// IncrementRead bumps both counters in one transaction.
func (db *PostgresReadStore) IncrementRead(ctx context.Context, url, day string) (err error) {
	const op = "storage.postgres.IncrementRead"
	log := db.log.With(slog.String("op", op), slog.String("url", url), slog.String("day", day))

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		log.Error("Failed to begin transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to begin transaction: %w", op, err)
	}
	defer func() {
		if err != nil {
			if rollbackErr := tx.Rollback(context.Background()); rollbackErr != nil {
				log.Error("Failed to rollback transaction", slog.Any("error", rollbackErr))
			}
		}
	}()

	batch := &pgx.Batch{}
	batch.Queue(`
	INSERT INTO read_counts_total (url, count)
	VALUES ($1, 1)
	ON CONFLICT (url) DO UPDATE SET count = read_counts_total.count + 1;
	`, url)
	batch.Queue(`
	INSERT INTO read_counts_daily (day, url, count)
	VALUES ($1, $2, 1)
	ON CONFLICT (day, url) DO UPDATE SET count = read_counts_daily.count + 1;
	`, day, url)
	if err = tx.SendBatch(ctx, batch).Close(); err != nil {
		log.Error("Failed to execute batch", slog.Any("error", err))
		return fmt.Errorf("%s: failed to execute batch: %w", op, err)
	}
	if err = tx.Commit(ctx); err != nil {
		log.Error("Failed to commit transaction", slog.Any("error", err))
		return fmt.Errorf("%s: failed to commit transaction: %w", op, err)
	}
	return nil
}

func (db *PostgresReadStore) TopDaily(ctx context.Context, day string, limit int) ([]domain.ReadCount, error) {
	const op = "storage.postgres.TopDaily"
	log := db.log.With(slog.String("op", op), slog.String("day", day), slog.Int("limit", limit))
	query := `
	SELECT url, count
	FROM read_counts_daily
	WHERE day = $1
	ORDER BY count DESC, url ASC
	LIMIT $2;
	`
	rows, err := db.pool.Query(ctx, query, day, limit)
	if err != nil {
		log.Error("Database query failed", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to execute query: %w", op, err)
	}
	defer rows.Close()
	counts, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (domain.ReadCount, error) {
		var rc domain.ReadCount
		err := row.Scan(&rc.URL, &rc.Count)
		return rc, err
	})
	if err != nil {
		log.Error("Failed to collect rows", slog.Any("error", err))
		return nil, fmt.Errorf("%s: failed to scan row: %w", op, err)
	}
	log.Debug("Retrieved daily read counts", slog.Int("count", len(counts)))
	return counts, nil
}

func (db *PostgresReadStore) TotalCount(ctx context.Context, url string) (int64, error) {
	const op = "storage.postgres.TotalCount"
	var count int64
	err := db.pool.QueryRow(ctx, `SELECT count FROM read_counts_total WHERE url = $1;`, url).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
