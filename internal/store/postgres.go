package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgMaxConns = 2

// PostgresStore is the ledger on a shared PostgreSQL database.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to dsn and applies the schema.
func OpenPostgres(ctx context.Context, dsn string) (*PostgresStore, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	cfg.MaxConns = pgMaxConns

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{pool: pool}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, schemaPostgresSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	var versionStr string
	err = tx.QueryRow(ctx, "SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&versionStr)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		if _, err := tx.Exec(ctx, "INSERT INTO metadata(key, value) VALUES('schema_version', $1)", strconv.Itoa(schemaVersion)); err != nil {
			return fmt.Errorf("insert schema version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	default:
		if err := checkVersion(versionStr); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresStore) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// SaveRun records run in one transaction, sending the detail rows as a batch.
func (s *PostgresStore) SaveRun(ctx context.Context, run Run) error {
	if err := validateRun(run); err != nil {
		return err
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b := &pgx.Batch{}
	b.Queue("DELETE FROM runs WHERE id = $1", run.ID)
	b.Queue(`INSERT INTO runs (id, started_at, finished_at, mode, lookback_hours, forum)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Mode, run.LookbackHours, run.Forum)
	for _, c := range run.Counts {
		b.Queue("INSERT INTO run_forums (run_id, forum, period, posts) VALUES ($1, $2, $3, $4)",
			run.ID, c.Forum, c.Period, c.Posts)
	}
	for _, w := range run.Warnings {
		b.Queue("INSERT INTO run_warnings (run_id, kind, forum, period, message) VALUES ($1, $2, $3, $4, $5)",
			run.ID, w.Kind, w.Forum, w.Period, w.Message)
	}
	for _, r := range run.Rows {
		var price *float64
		if r.Price > 0 {
			p := r.Price
			price = &p
		}
		b.Queue(`INSERT INTO ticker_rows (run_id, rank_no, ticker, total, prev, recent, change, rockets, price)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			run.ID, r.Rank, r.Ticker, r.Total, r.Prev, r.Recent, r.Change, r.Rockets, price)
	}

	br := tx.SendBatch(ctx, b)
	for range b.Len() {
		if _, err := br.Exec(); err != nil {
			_ = br.Close()
			return fmt.Errorf("save run: %w", err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("save run: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	query := `
		SELECT r.id, r.started_at, r.finished_at, r.mode, r.lookback_hours, r.forum,
			(SELECT COALESCE(SUM(posts), 0) FROM run_forums f WHERE f.run_id = r.id),
			(SELECT COUNT(*) FROM run_warnings w WHERE w.run_id = r.id),
			(SELECT COUNT(*) FROM ticker_rows t WHERE t.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.id`
	var args []any
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var (
			rs                    RunSummary
			posts, warns, tickers int64
		)
		if err := rows.Scan(&rs.ID, &rs.StartedAt, &rs.FinishedAt, &rs.Mode, &rs.LookbackHours, &rs.Forum,
			&posts, &warns, &tickers); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rs.Posts, rs.Warnings, rs.Tickers = int(posts), int(warns), int(tickers)
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run with its details. Rows come back in rank order.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (Run, error) {
	var run Run
	err := s.pool.QueryRow(ctx,
		"SELECT id, started_at, finished_at, mode, lookback_hours, forum FROM runs WHERE id = $1", id,
	).Scan(&run.ID, &run.StartedAt, &run.FinishedAt, &run.Mode, &run.LookbackHours, &run.Forum)
	if errors.Is(err, pgx.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}

	counts, err := s.pool.Query(ctx,
		"SELECT forum, period, posts FROM run_forums WHERE run_id = $1 ORDER BY forum, period", id)
	if err != nil {
		return Run{}, fmt.Errorf("query forum counts: %w", err)
	}
	run.Counts, err = pgx.CollectRows(counts, func(row pgx.CollectableRow) (ForumCount, error) {
		var c ForumCount
		err := row.Scan(&c.Forum, &c.Period, &c.Posts)
		return c, err
	})
	if err != nil {
		return Run{}, fmt.Errorf("scan forum counts: %w", err)
	}

	warns, err := s.pool.Query(ctx,
		"SELECT kind, forum, period, message FROM run_warnings WHERE run_id = $1 ORDER BY id", id)
	if err != nil {
		return Run{}, fmt.Errorf("query warnings: %w", err)
	}
	run.Warnings, err = pgx.CollectRows(warns, func(row pgx.CollectableRow) (Warning, error) {
		var w Warning
		err := row.Scan(&w.Kind, &w.Forum, &w.Period, &w.Message)
		return w, err
	})
	if err != nil {
		return Run{}, fmt.Errorf("scan warnings: %w", err)
	}

	tickers, err := s.pool.Query(ctx, `
		SELECT rank_no, ticker, total, prev, recent, change, rockets, price
		FROM ticker_rows WHERE run_id = $1 ORDER BY rank_no`, id)
	if err != nil {
		return Run{}, fmt.Errorf("query ticker rows: %w", err)
	}
	run.Rows, err = pgx.CollectRows(tickers, func(row pgx.CollectableRow) (TickerRow, error) {
		var (
			r     TickerRow
			price *float64
		)
		err := row.Scan(&r.Rank, &r.Ticker, &r.Total, &r.Prev, &r.Recent, &r.Change, &r.Rockets, &price)
		if price != nil {
			r.Price = *price
		}
		return r, err
	})
	if err != nil {
		return Run{}, fmt.Errorf("scan ticker rows: %w", err)
	}
	return run, nil
}

// PruneOld deletes runs that started more than retainDays ago. Details cascade.
func (s *PostgresStore) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if retainDays <= 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, "DELETE FROM runs WHERE started_at < $1", retainCutoff(retainDays))
	if err != nil {
		return 0, fmt.Errorf("prune old runs: %w", err)
	}
	return tag.RowsAffected(), nil
}
