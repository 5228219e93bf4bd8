package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store is the SQLite ledger.
type Store struct {
	db *sql.DB
}

// OpenSQLite opens or creates the ledger database at path.
func OpenSQLite(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	ctx := context.Background()
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// SaveRun records run with its counts, warnings, and rows in one transaction.
// Saving the same id again replaces the earlier record.
func (s *Store) SaveRun(ctx context.Context, run Run) error {
	if s == nil || s.db == nil {
		return errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := validateRun(run); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM runs WHERE id = ?", run.ID); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("replace run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, mode, lookback_hours, forum)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, formatTime(run.StartedAt), formatTime(run.FinishedAt), run.Mode, run.LookbackHours, run.Forum); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("insert run: %w", err)
	}

	for _, c := range run.Counts {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_forums (run_id, forum, period, posts) VALUES (?, ?, ?, ?)",
			run.ID, c.Forum, c.Period, c.Posts,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert forum count: %w", err)
		}
	}

	for _, w := range run.Warnings {
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO run_warnings (run_id, kind, forum, period, message) VALUES (?, ?, ?, ?, ?)",
			run.ID, w.Kind, w.Forum, w.Period, w.Message,
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert warning: %w", err)
		}
	}

	for _, r := range run.Rows {
		var price sql.NullFloat64
		if r.Price > 0 {
			price = sql.NullFloat64{Float64: r.Price, Valid: true}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO ticker_rows (run_id, rank_no, ticker, total, prev, recent, change, rockets, price)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, run.ID, r.Rank, r.Ticker, r.Total, r.Prev, r.Recent, r.Change, r.Rockets, price); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("insert ticker row %s: %w", r.Ticker, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 returns all.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	query := `
		SELECT r.id, r.started_at, r.finished_at, r.mode, r.lookback_hours, r.forum,
			(SELECT COALESCE(SUM(posts), 0) FROM run_forums f WHERE f.run_id = r.id),
			(SELECT COUNT(*) FROM run_warnings w WHERE w.run_id = r.id),
			(SELECT COUNT(*) FROM ticker_rows t WHERE t.run_id = r.id)
		FROM runs r
		ORDER BY r.started_at DESC, r.id`
	var args []any
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var runs []RunSummary
	for rows.Next() {
		var (
			rs                  RunSummary
			startedAt, finished string
		)
		if err := rows.Scan(&rs.ID, &startedAt, &finished, &rs.Mode, &rs.LookbackHours, &rs.Forum,
			&rs.Posts, &rs.Warnings, &rs.Tickers); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		if rs.StartedAt, err = parseTime(startedAt); err != nil {
			return nil, fmt.Errorf("parse started_at: %w", err)
		}
		if rs.FinishedAt, err = parseTime(finished); err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		runs = append(runs, rs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// GetRun loads one run with its details. Rows come back in rank order.
func (s *Store) GetRun(ctx context.Context, id string) (Run, error) {
	if s == nil || s.db == nil {
		return Run{}, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}

	var (
		run                 Run
		startedAt, finished string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, started_at, finished_at, mode, lookback_hours, forum FROM runs WHERE id = ?
	`, id).Scan(&run.ID, &startedAt, &finished, &run.Mode, &run.LookbackHours, &run.Forum)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	if run.StartedAt, err = parseTime(startedAt); err != nil {
		return Run{}, fmt.Errorf("parse started_at: %w", err)
	}
	if run.FinishedAt, err = parseTime(finished); err != nil {
		return Run{}, fmt.Errorf("parse finished_at: %w", err)
	}

	if run.Counts, err = s.forumCounts(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Warnings, err = s.warnings(ctx, id); err != nil {
		return Run{}, err
	}
	if run.Rows, err = s.tickerRows(ctx, id); err != nil {
		return Run{}, err
	}
	return run, nil
}

func (s *Store) forumCounts(ctx context.Context, id string) ([]ForumCount, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT forum, period, posts FROM run_forums WHERE run_id = ? ORDER BY forum, period", id)
	if err != nil {
		return nil, fmt.Errorf("query forum counts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ForumCount
	for rows.Next() {
		var c ForumCount
		if err := rows.Scan(&c.Forum, &c.Period, &c.Posts); err != nil {
			return nil, fmt.Errorf("scan forum count: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate forum counts: %w", err)
	}
	return out, nil
}

func (s *Store) warnings(ctx context.Context, id string) ([]Warning, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT kind, forum, period, message FROM run_warnings WHERE run_id = ? ORDER BY id", id)
	if err != nil {
		return nil, fmt.Errorf("query warnings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Warning
	for rows.Next() {
		var w Warning
		if err := rows.Scan(&w.Kind, &w.Forum, &w.Period, &w.Message); err != nil {
			return nil, fmt.Errorf("scan warning: %w", err)
		}
		out = append(out, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate warnings: %w", err)
	}
	return out, nil
}

func (s *Store) tickerRows(ctx context.Context, id string) ([]TickerRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rank_no, ticker, total, prev, recent, change, rockets, price
		FROM ticker_rows WHERE run_id = ? ORDER BY rank_no
	`, id)
	if err != nil {
		return nil, fmt.Errorf("query ticker rows: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []TickerRow
	for rows.Next() {
		var (
			r     TickerRow
			price sql.NullFloat64
		)
		if err := rows.Scan(&r.Rank, &r.Ticker, &r.Total, &r.Prev, &r.Recent, &r.Change, &r.Rockets, &price); err != nil {
			return nil, fmt.Errorf("scan ticker row: %w", err)
		}
		if price.Valid {
			r.Price = price.Float64
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ticker rows: %w", err)
	}
	return out, nil
}

// PruneOld deletes runs that started more than retainDays ago. Details cascade.
func (s *Store) PruneOld(ctx context.Context, retainDays int) (int64, error) {
	if s == nil || s.db == nil {
		return 0, errors.New("store is not initialized")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if retainDays <= 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM runs WHERE started_at < ?", formatTime(retainCutoff(retainDays)))
	if err != nil {
		return 0, fmt.Errorf("prune old runs: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return time.Time{}.UTC().Format(time.RFC3339Nano)
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
