package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "autodd.db")
	st, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = st.Close()
	})
	return st, path
}

func testRun(id string, started time.Time) Run {
	return Run{
		ID:            id,
		StartedAt:     started,
		FinishedAt:    started.Add(90 * time.Second),
		Mode:          "hybrid",
		LookbackHours: 24,
		Counts: []ForumCount{
			{Forum: "wallstreetbets", Period: "recent", Posts: 120},
			{Forum: "wallstreetbets", Period: "previous", Posts: 80},
			{Forum: "stocks", Period: "recent", Posts: 0},
		},
		Warnings: []Warning{
			{Kind: "empty_window", Forum: "stocks", Period: "recent", Message: "no results for the recent time period"},
		},
		Rows: []TickerRow{
			{Rank: 1, Ticker: "GME", Total: 400, Prev: 100, Recent: 300, Change: 200, Rockets: 3, Price: 22.5},
			{Rank: 2, Ticker: "AMC", Total: 250, Prev: 200, Recent: 50, Change: -150},
		},
	}
}

func TestOpenAndMigrate(t *testing.T) {
	st, path := openTestStore(t)

	if _, err := os.Stat(path); err != nil {
		t.Fatalf("db file not created: %v", err)
	}

	var version string
	if err := st.db.QueryRow("SELECT value FROM metadata WHERE key = 'schema_version'").Scan(&version); err != nil {
		t.Fatalf("read schema version: %v", err)
	}
	if version != "1" {
		t.Fatalf("unexpected schema version: %s", version)
	}

	// reopening an existing ledger keeps it
	_ = st.Close()
	again, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	_ = again.Close()
}

func TestOpen_NewerSchemaRejected(t *testing.T) {
	st, path := openTestStore(t)
	if _, err := st.db.Exec("UPDATE metadata SET value = '99' WHERE key = 'schema_version'"); err != nil {
		t.Fatalf("bump version: %v", err)
	}
	_ = st.Close()

	if _, err := OpenSQLite(path); err == nil {
		t.Fatal("expected error for newer schema")
	}
}

func TestSaveAndGetRun(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	if err := st.SaveRun(ctx, testRun("run-1", started)); err != nil {
		t.Fatalf("save run: %v", err)
	}

	got, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !got.StartedAt.Equal(started) || got.FinishedAt.Sub(got.StartedAt) != 90*time.Second {
		t.Errorf("times = %v .. %v", got.StartedAt, got.FinishedAt)
	}
	if got.Mode != "hybrid" || got.LookbackHours != 24 || got.Forum != "" {
		t.Errorf("run = %+v", got)
	}
	if len(got.Counts) != 3 || got.Counts[0].Forum != "stocks" {
		t.Errorf("counts = %+v", got.Counts)
	}
	if len(got.Warnings) != 1 || got.Warnings[0].Kind != "empty_window" {
		t.Errorf("warnings = %+v", got.Warnings)
	}
	if len(got.Rows) != 2 || got.Rows[0].Ticker != "GME" || got.Rows[0].Price != 22.5 {
		t.Fatalf("rows = %+v", got.Rows)
	}
	if got.Rows[1].Price != 0 || got.Rows[1].Change != -150 {
		t.Errorf("AMC row = %+v", got.Rows[1])
	}
}

func TestSaveRun_ReplacesSameID(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	started := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	if err := st.SaveRun(ctx, testRun("run-1", started)); err != nil {
		t.Fatalf("save run: %v", err)
	}
	second := testRun("run-1", started)
	second.Rows = second.Rows[:1]
	second.Warnings = nil
	if err := st.SaveRun(ctx, second); err != nil {
		t.Fatalf("save run again: %v", err)
	}

	got, err := st.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if len(got.Rows) != 1 || len(got.Warnings) != 0 {
		t.Errorf("rows = %d, warnings = %d, want 1 and 0", len(got.Rows), len(got.Warnings))
	}
}

func TestSaveRun_Validation(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveRun(ctx, Run{StartedAt: time.Now(), Mode: "bulk"}); err == nil {
		t.Error("expected error for missing id")
	}
	if err := st.SaveRun(ctx, Run{ID: "x", Mode: "bulk"}); err == nil {
		t.Error("expected error for missing start time")
	}
	if err := st.SaveRun(ctx, Run{ID: "x", StartedAt: time.Now()}); err == nil {
		t.Error("expected error for missing mode")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	st, _ := openTestStore(t)

	_, err := st.GetRun(context.Background(), "nope")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("err = %v, want ErrRunNotFound", err)
	}
}

func TestListRuns(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)

	for i, id := range []string{"old", "mid", "new"} {
		if err := st.SaveRun(ctx, testRun(id, base.Add(time.Duration(i)*time.Hour))); err != nil {
			t.Fatalf("save %s: %v", id, err)
		}
	}

	runs, err := st.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 2 || runs[0].ID != "new" || runs[1].ID != "mid" {
		t.Fatalf("runs = %+v", runs)
	}
	if runs[0].Posts != 200 || runs[0].Warnings != 1 || runs[0].Tickers != 2 {
		t.Errorf("summary = %+v", runs[0])
	}

	all, err := st.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("runs = %d, want 3", len(all))
	}
}

func TestPruneOld(t *testing.T) {
	st, _ := openTestStore(t)
	ctx := context.Background()

	if err := st.SaveRun(ctx, testRun("ancient", time.Now().AddDate(0, 0, -40))); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveRun(ctx, testRun("fresh", time.Now().Add(-time.Hour))); err != nil {
		t.Fatalf("save: %v", err)
	}

	n, err := st.PruneOld(ctx, 30)
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned = %d, want 1", n)
	}

	var rows int
	if err := st.db.QueryRow("SELECT COUNT(*) FROM ticker_rows WHERE run_id = 'ancient'").Scan(&rows); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	if rows != 0 {
		t.Errorf("ticker rows of pruned run = %d, want cascade delete", rows)
	}

	if n, err := st.PruneOld(ctx, 0); err != nil || n != 0 {
		t.Errorf("prune 0 days = %d, %v", n, err)
	}
}

func TestOpen_Dispatch(t *testing.T) {
	if !IsPostgresDSN("postgres://u@localhost/autodd") || !IsPostgresDSN("postgresql://localhost/x") {
		t.Error("postgres DSN not detected")
	}
	if IsPostgresDSN(".autodd/autodd.db") {
		t.Error("file path detected as postgres")
	}

	l, err := Open(context.Background(), filepath.Join(t.TempDir(), "l.db"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = l.Close() }()
	if _, ok := l.(*Store); !ok {
		t.Errorf("ledger = %T, want *Store", l)
	}
}

// TestPostgres runs against a live database when AUTODD_TEST_PG_DSN is set.
func TestPostgres(t *testing.T) {
	dsn := os.Getenv("AUTODD_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("AUTODD_TEST_PG_DSN not set")
	}
	ctx := context.Background()

	st, err := OpenPostgres(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	defer func() { _ = st.Close() }()

	id := "test-" + time.Now().Format("20060102150405.000000000")
	if err := st.SaveRun(ctx, testRun(id, time.Now())); err != nil {
		t.Fatalf("save run: %v", err)
	}
	got, err := st.GetRun(ctx, id)
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if len(got.Rows) != 2 || got.Rows[0].Price != 22.5 || len(got.Counts) != 3 {
		t.Errorf("run = %+v", got)
	}
	if _, err := st.pool.Exec(ctx, "DELETE FROM runs WHERE id = $1", id); err != nil {
		t.Errorf("cleanup: %v", err)
	}
}
