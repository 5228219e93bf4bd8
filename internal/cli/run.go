package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/ppiankov/autodd/internal/config"
	"github.com/ppiankov/autodd/internal/finance"
	"github.com/ppiankov/autodd/internal/report"
	"github.com/ppiankov/autodd/internal/retrieval"
	"github.com/ppiankov/autodd/internal/scores"
	"github.com/ppiankov/autodd/internal/store"
	"github.com/spf13/cobra"
)

var (
	runFlags    retrieveFlags
	runMin      int
	runMaxPrice float64
	runSort     string
	runFormat   string
	runOutput   string
	runLedger   string
	runNoQuotes bool
	runNoColor  bool
	runEvery    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Retrieve posts, rank tickers, and print the table",
	RunE:  runAction,
}

// runOnceAction is one full run; watch mode repeats it.
var runOnceAction = runOnce

func init() {
	runFlags.register(runCmd)
	f := runCmd.Flags()
	f.IntVar(&runMin, "min", -1, "minimum total score (default from config)")
	f.Float64Var(&runMaxPrice, "maxprice", -1, "maximum share price, 0 for no limit (default from config)")
	f.StringVar(&runSort, "sort", "", "sort column: total, recent, prev, change, rockets")
	f.StringVar(&runFormat, "format", "", "output format: terminal, csv, json")
	f.StringVar(&runOutput, "output", "", "write the table to a file; csv appends")
	f.StringVar(&runLedger, "ledger", "", "run ledger path or postgres DSN (default from config)")
	f.BoolVar(&runNoQuotes, "no-quotes", false, "skip the market data lookup")
	f.BoolVar(&runNoColor, "no-color", false, "disable ANSI colors")
	f.StringVar(&runEvery, "every", "", "repeat the run at this interval (e.g. 30m)")
}

func runAction(cmd *cobra.Command, args []string) error {
	every, err := parseRunEvery(runEvery)
	if err != nil {
		return err
	}

	once := func() error {
		return runOnceAction(cmd, args)
	}
	if every == 0 {
		return once()
	}

	ctx := commandContext(cmd)
	return runWatch(ctx, every, once)
}

func parseRunEvery(value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse --every: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("--every must be positive, got %s", value)
	}
	return d, nil
}

// runWatch runs fn immediately and then every interval until ctx is done.
// A failed run is reported and the next one still happens.
func runWatch(ctx context.Context, every time.Duration, fn func() error) error {
	if err := fn(); err != nil {
		fmt.Fprintf(os.Stderr, "warning: run failed: %v\n", err)
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := fn(); err != nil {
				fmt.Fprintf(os.Stderr, "warning: run failed: %v\n", err)
			}
		}
	}
}

func applyReportFlags(cfg *config.Config) error {
	r := &cfg.Report
	if runMin >= 0 {
		r.MinScore = runMin
	}
	if runMaxPrice >= 0 {
		r.MaxPrice = runMaxPrice
	}
	if runSort != "" {
		if err := config.ValidateSort(runSort); err != nil {
			return fmt.Errorf("--sort: %w", err)
		}
		r.Sort = runSort
	}
	if runFormat != "" {
		if err := config.ValidateFormat(runFormat); err != nil {
			return fmt.Errorf("--format: %w", err)
		}
		r.Format = runFormat
	}
	if runOutput != "" {
		r.Output = runOutput
	}
	if runLedger != "" {
		cfg.Storage.Path = runLedger
	}
	return nil
}

func runOnce(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := runFlags.apply(cfg); err != nil {
		return err
	}
	if err := applyReportFlags(cfg); err != nil {
		return err
	}

	ctx := commandContext(cmd)

	orch, err := newOrchestrator(cfg, runFlags.proxyFile, runFlags.credFile)
	if err != nil {
		return err
	}
	res, err := orch.Run(ctx, runFlags.request(cfg))
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	patterns := cfg.Report.Patterns
	rows := scores.Delta(scores.Count(res.Recent, patterns), scores.Count(res.Previous, patterns), patterns)
	rows = scores.Filter(rows, cfg.Report.MinScore, cfg.Report.Banned)
	if err := scores.Sort(rows, cfg.Report.Sort); err != nil {
		return err
	}

	var quotes map[string]finance.Quote
	if !runNoQuotes && len(rows) > 0 {
		symbols := make([]string, 0, len(rows))
		for _, r := range rows {
			symbols = append(symbols, r.Ticker)
		}
		client := finance.New(finance.Config{
			BaseURL:   cfg.Finance.BaseURL,
			BatchSize: cfg.Finance.BatchSize,
			Workers:   cfg.Finance.Workers,
		})
		quotes, err = client.Quotes(ctx, symbols)
		if err != nil {
			return fmt.Errorf("look up quotes: %w", err)
		}
	}
	lines := report.Build(rows, quotes, cfg.Report.MaxPrice)

	if err := writeReport(cmd, cfg, res, lines); err != nil {
		return err
	}
	return recordRun(ctx, cfg, res, lines)
}

func writeReport(cmd *cobra.Command, cfg *config.Config, res *retrieval.Result, lines []report.Line) error {
	formatter, err := report.New(cfg.Report.Format, !runNoColor)
	if err != nil {
		return err
	}

	var w io.Writer = cmd.OutOrStdout()
	if cfg.Report.Output != "" {
		flags := os.O_CREATE | os.O_WRONLY | os.O_TRUNC
		if cfg.Report.Format == "csv" {
			flags = os.O_CREATE | os.O_WRONLY | os.O_APPEND
		}
		f, err := os.OpenFile(cfg.Report.Output, flags, 0o644)
		if err != nil {
			return fmt.Errorf("open output: %w", err)
		}
		defer func() { _ = f.Close() }()
		w = f
	}

	// terminal and json carry warnings in the report itself
	if cfg.Report.Output != "" || cfg.Report.Format == "csv" {
		printWarnings(cmd.ErrOrStderr(), res.Warnings, cfg.Location())
	}

	err = formatter.Format(w, report.Input{
		RunID:         res.RunID,
		LookbackHours: cfg.LookbackHours,
		Forums:        len(res.Recent),
		Posts:         res.Posts(),
		GeneratedAt:   res.FinishedAt,
		Lines:         lines,
		Warnings:      warningStrings(res.Warnings),
	})
	if err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if cfg.Report.Output != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d tickers to %s\n", len(lines), cfg.Report.Output)
	}
	return nil
}

// recordRun saves the run to the ledger and prunes runs past retention.
func recordRun(ctx context.Context, cfg *config.Config, res *retrieval.Result, lines []report.Line) error {
	ledger, err := store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	if err := ledger.SaveRun(ctx, ledgerRun(cfg, res, lines)); err != nil {
		return fmt.Errorf("save run: %w", err)
	}
	if _, err := ledger.PruneOld(ctx, cfg.Storage.RetainDays); err != nil {
		return fmt.Errorf("prune ledger: %w", err)
	}
	return nil
}

func ledgerRun(cfg *config.Config, res *retrieval.Result, lines []report.Line) store.Run {
	run := store.Run{
		ID:            res.RunID,
		StartedAt:     res.StartedAt,
		FinishedAt:    res.FinishedAt,
		Mode:          string(cfg.Mode()),
		LookbackHours: cfg.LookbackHours,
		Forum:         runFlags.forum,
	}
	for f, posts := range res.Recent {
		run.Counts = append(run.Counts, store.ForumCount{Forum: f, Period: retrieval.PeriodRecent, Posts: len(posts)})
	}
	for f, posts := range res.Previous {
		run.Counts = append(run.Counts, store.ForumCount{Forum: f, Period: retrieval.PeriodPrevious, Posts: len(posts)})
	}
	for _, w := range res.Warnings {
		run.Warnings = append(run.Warnings, store.Warning{Kind: w.Kind, Forum: w.Forum, Period: w.Period, Message: w.Message})
	}
	for i, l := range lines {
		row := store.TickerRow{
			Rank:    i + 1,
			Ticker:  l.Ticker,
			Total:   l.Total,
			Prev:    l.Prev,
			Recent:  l.Recent,
			Change:  l.Change,
			Rockets: l.Rockets,
		}
		if l.Quote != nil {
			row.Price = l.Quote.Price
		}
		run.Rows = append(run.Rows, row)
	}
	return run
}

