package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrRunNotFound is returned when a run id is not in the ledger.
var ErrRunNotFound = errors.New("run not found")

// Run is one completed retrieval and ranking, as recorded in the ledger.
type Run struct {
	ID            string       `json:"id"`
	StartedAt     time.Time    `json:"started_at"`
	FinishedAt    time.Time    `json:"finished_at"`
	Mode          string       `json:"mode"`
	LookbackHours int          `json:"lookback_hours"`
	Forum         string       `json:"forum,omitempty"` // empty when every forum was retrieved
	Counts        []ForumCount `json:"counts"`
	Warnings      []Warning    `json:"warnings"`
	Rows          []TickerRow  `json:"rows"`
}

// ForumCount is the number of posts one forum yielded for one period.
type ForumCount struct {
	Forum  string `json:"forum"`
	Period string `json:"period"`
	Posts  int    `json:"posts"`
}

type Warning struct {
	Kind    string `json:"kind"`
	Forum   string `json:"forum"`
	Period  string `json:"period"`
	Message string `json:"message"`
}

// TickerRow is one ranked ticker. Price is zero when no quote was attached.
type TickerRow struct {
	Rank    int     `json:"rank"`
	Ticker  string  `json:"ticker"`
	Total   int     `json:"total"`
	Prev    int     `json:"prev"`
	Recent  int     `json:"recent"`
	Change  int     `json:"change"`
	Rockets int     `json:"rockets"`
	Price   float64 `json:"price,omitempty"`
}

// RunSummary is one line of the run history.
type RunSummary struct {
	ID            string    `json:"id"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at"`
	Mode          string    `json:"mode"`
	LookbackHours int       `json:"lookback_hours"`
	Forum         string    `json:"forum,omitempty"`
	Posts         int       `json:"posts"`
	Warnings      int       `json:"warnings"`
	Tickers       int       `json:"tickers"`
}

// Ledger records runs. Retrieved posts are never stored.
type Ledger interface {
	SaveRun(ctx context.Context, run Run) error
	ListRuns(ctx context.Context, limit int) ([]RunSummary, error)
	GetRun(ctx context.Context, id string) (Run, error)
	PruneOld(ctx context.Context, retainDays int) (int64, error)
	Close() error
}

// Open opens the SQLite ledger at path, or the PostgreSQL ledger when path is
// a postgres:// or postgresql:// DSN.
func Open(ctx context.Context, path string) (Ledger, error) {
	if IsPostgresDSN(path) {
		return OpenPostgres(ctx, path)
	}
	return OpenSQLite(path)
}

// IsPostgresDSN reports whether path names a PostgreSQL database.
func IsPostgresDSN(path string) bool {
	return strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://")
}

func validateRun(run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is required")
	}
	if run.StartedAt.IsZero() {
		return errors.New("started_at is required")
	}
	if strings.TrimSpace(run.Mode) == "" {
		return errors.New("mode is required")
	}
	return nil
}

// retainCutoff is the start time before which runs are pruned.
func retainCutoff(retainDays int) time.Time {
	return time.Now().AddDate(0, 0, -retainDays)
}
