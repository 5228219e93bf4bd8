package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/ppiankov/autodd/internal/config"
	"github.com/ppiankov/autodd/internal/forum"
	"github.com/ppiankov/autodd/internal/source"
	"github.com/ppiankov/autodd/internal/store"
	"github.com/spf13/cobra"
)

var doctorNoProbe bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check configuration, credentials, ledger, and forum reachability",
	RunE:  doctorAction,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorNoProbe, "no-probe", false, "skip the forum feed probes")
}

// staleFeed is how old a forum's newest feed entry may be before doctor mentions it.
const staleFeed = 24 * time.Hour

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := config.Load(configDir)
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return errors.New("some checks failed")
	}
	mode := cfg.Mode()
	printCheck(true, "config.yaml (%d forums, %s mode, %dh lookback)", len(cfg.Forums), mode, cfg.LookbackHours)

	reg, err := forum.NewRegistry(cfg.Forums)
	if err != nil {
		printCheck(false, "forums: %v", err)
		ok = false
	}

	// Egress paths
	if mode.NeedsBulk() {
		proxies, err := config.LoadProxies(cfg.Resolve(cfg.Sources.Bulk.ProxyFile))
		if err != nil {
			printCheck(false, "proxies: %v", err)
			ok = false
		} else {
			printCheck(true, "bulk source %s (%d egress paths)", cfg.Sources.Bulk.BaseURL, len(proxies))
		}
	} else {
		printInfo("bulk source not used in %s mode", mode)
	}

	// Live credentials
	if mode.NeedsLive() {
		if _, err := cfg.LoadCredentials(""); err != nil {
			printCheck(false, "live credentials: %v", err)
			ok = false
		} else {
			printCheck(true, "live credentials (fetch cap %d)", cfg.Sources.Live.FetchCap)
		}
	} else {
		printInfo("live credentials not needed in %s mode", mode)
	}

	// Ledger
	ctx := commandContext(cmd)
	ledger, err := store.Open(ctx, cfg.Storage.Path)
	if err != nil {
		printCheck(false, "ledger: %v", err)
		ok = false
	} else {
		runs, err := ledger.ListRuns(ctx, 1)
		_ = ledger.Close()
		switch {
		case err != nil:
			printCheck(false, "ledger: %v", err)
			ok = false
		case len(runs) == 0:
			printCheck(true, "ledger %s (no runs yet)", cfg.Storage.Path)
		default:
			printCheck(true, "ledger %s (last run %s)", cfg.Storage.Path, runs[0].StartedAt.Local().Format("2006-01-02 15:04"))
		}
	}

	// Forum feeds (info-level, non-fatal)
	if reg != nil && !doctorNoProbe {
		checkForumFeeds(ctx, cfg, reg)
	}

	if !ok {
		return errors.New("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func checkForumFeeds(ctx context.Context, cfg *config.Config, reg *forum.Registry) {
	agent := os.Getenv(cfg.Sources.Live.UserAgentEnv)
	probe := source.NewProbe(cfg.Sources.Probe.BaseURL, agent)

	fmt.Println()
	for _, f := range reg.IDs() {
		res, err := probe.Check(ctx, f)
		if err != nil {
			printInfo("unreachable: r/%s (%v)", f, err)
			continue
		}
		if res.Newest.IsZero() {
			printInfo("r/%s: %d entries, none dated", f, res.Entries)
			continue
		}
		age := time.Since(res.Newest).Round(time.Minute)
		if age > staleFeed {
			printInfo("stale: r/%s - newest post %s ago", f, age)
			continue
		}
		printInfo("r/%s: %d entries, newest %s ago", f, res.Entries, age)
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
