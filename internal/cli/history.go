package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/ppiankov/autodd/internal/config"
	"github.com/ppiankov/autodd/internal/store"
	"github.com/spf13/cobra"
)

var (
	historyLimit  int
	historyRun    string
	historyFormat string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs, or show one run",
	RunE:  historyAction,
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyRun, "run", "", "show the run with this id")
	historyCmd.Flags().StringVar(&historyFormat, "format", "terminal", "output format: terminal, json")
	rootCmd.AddCommand(historyCmd)
}

func historyAction(cmd *cobra.Command, _ []string) error {
	if historyFormat != "terminal" && historyFormat != "json" {
		return fmt.Errorf("unknown format %q (want terminal or json)", historyFormat)
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx := commandContext(cmd)
	ledger, err := store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer func() { _ = ledger.Close() }()

	if historyRun != "" {
		run, err := ledger.GetRun(ctx, historyRun)
		if err != nil {
			return err
		}
		if historyFormat == "json" {
			return writeJSON(os.Stdout, run)
		}
		printRun(os.Stdout, run)
		return nil
	}

	runs, err := ledger.ListRuns(ctx, historyLimit)
	if err != nil {
		return fmt.Errorf("list runs: %w", err)
	}
	if historyFormat == "json" {
		if runs == nil {
			runs = []store.RunSummary{}
		}
		return writeJSON(os.Stdout, runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(os.Stdout, "No runs recorded. Run 'autodd run' first.")
		return nil
	}
	printHistory(os.Stdout, runs)
	return nil
}

func printHistory(w io.Writer, runs []store.RunSummary) {
	fmt.Fprintf(w, "  %-36s  %-16s  %-6s  %5s  %7s  %7s  %8s\n",
		"Run", "Started", "Mode", "Hours", "Posts", "Tickers", "Warnings")
	for _, r := range runs {
		fmt.Fprintf(w, "  %-36s  %-16s  %-6s  %5d  %7s  %7d  %8d\n",
			r.ID, r.StartedAt.Local().Format("2006-01-02 15:04"), r.Mode, r.LookbackHours,
			humanize.Comma(int64(r.Posts)), r.Tickers, r.Warnings)
	}
}

func printRun(w io.Writer, run store.Run) {
	scope := run.Forum
	if scope == "" {
		scope = "all forums"
	}
	fmt.Fprintf(w, "run %s\n", run.ID)
	fmt.Fprintf(w, "  started %s (%s), %s mode, %dh lookback, %s\n",
		run.StartedAt.Local().Format("2006-01-02 15:04:05"), humanize.Time(run.StartedAt),
		run.Mode, run.LookbackHours, scope)
	fmt.Fprintf(w, "  took %s\n\n", run.FinishedAt.Sub(run.StartedAt).Round(time.Millisecond))

	fmt.Fprintln(w, "--- Posts ---")
	for _, c := range run.Counts {
		fmt.Fprintf(w, "  %-24s  %-8s  %6d\n", c.Forum, c.Period, c.Posts)
	}

	if len(run.Warnings) > 0 {
		fmt.Fprintf(w, "\n--- Warnings (%d) ---\n", len(run.Warnings))
		for _, warn := range run.Warnings {
			fmt.Fprintf(w, "  %s (%s): %s\n", warn.Forum, warn.Period, warn.Message)
		}
	}

	fmt.Fprintf(w, "\n--- Tickers (%d) ---\n", len(run.Rows))
	for _, r := range run.Rows {
		price := "-"
		if r.Price > 0 {
			price = fmt.Sprintf("%.2f", r.Price)
		}
		fmt.Fprintf(w, "  %3d. %-8s  total %5d  prev %5d  recent %5d  change %+6d  %s\n",
			r.Rank, r.Ticker, r.Total, r.Prev, r.Recent, r.Change, price)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
