package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ppiankov/autodd/internal/config"
	"github.com/ppiankov/autodd/internal/forum"
	"github.com/ppiankov/autodd/internal/retrieval"
	"github.com/ppiankov/autodd/internal/source"
	"github.com/spf13/cobra"
)

// retrieveFlags are shared by run and pull; zero values defer to config.yaml.
type retrieveFlags struct {
	interval  int
	forum     string
	mode      string
	proxyFile string
	credFile  string
}

// nowFunc is the clock retrieval windows are anchored to.
var nowFunc = time.Now

func (f *retrieveFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&f.interval, "interval", 0, "lookback in hours per period (default from config)")
	cmd.Flags().StringVar(&f.forum, "sub", "", "retrieve a single forum")
	cmd.Flags().StringVar(&f.mode, "db", "", "source mode: bulk, live, hybrid (psaw and praw accepted)")
	cmd.Flags().StringVar(&f.proxyFile, "proxy-file", "", "file with one proxy URL per line")
	cmd.Flags().StringVar(&f.credFile, "cred-file", "", "live feed credentials JSON")
}

// apply overrides cfg with every flag that was set.
func (f *retrieveFlags) apply(cfg *config.Config) error {
	if f.interval != 0 {
		if f.interval < 0 {
			return fmt.Errorf("--interval must be positive, got %d", f.interval)
		}
		cfg.LookbackHours = f.interval
	}
	if f.mode != "" {
		if _, err := retrieval.ParseMode(f.mode); err != nil {
			return fmt.Errorf("--db: %w", err)
		}
		cfg.SourceMode = f.mode
	}
	return nil
}

func (f *retrieveFlags) request(cfg *config.Config) retrieval.Request {
	return retrieval.Request{
		LookbackHours: cfg.LookbackHours,
		Forum:         f.forum,
		Mode:          cfg.Mode(),
	}
}

// newOrchestrator builds one bulk adapter per egress path, and the live
// adapter when the mode needs it.
func newOrchestrator(cfg *config.Config, proxyFile, credFile string) (*retrieval.Orchestrator, error) {
	reg, err := forum.NewRegistry(cfg.Forums)
	if err != nil {
		return nil, err
	}
	mode := cfg.Mode()

	var bulk []source.Adapter
	if mode.NeedsBulk() {
		if proxyFile == "" {
			proxyFile = cfg.Resolve(cfg.Sources.Bulk.ProxyFile)
		}
		proxies, err := config.LoadProxies(proxyFile)
		if err != nil {
			return nil, fmt.Errorf("load proxies: %w", err)
		}
		for _, p := range proxies {
			b, err := source.NewBulk(source.BulkConfig{
				BaseURL:    cfg.Sources.Bulk.BaseURL,
				Proxy:      p,
				PageSize:   cfg.Sources.Bulk.PageSize,
				MaxRetries: cfg.Sources.Bulk.MaxRetries,
				Timeout:    cfg.Sources.Bulk.Timeout.Duration,
			})
			if err != nil {
				return nil, fmt.Errorf("create bulk source: %w", err)
			}
			bulk = append(bulk, b)
		}
	}

	var (
		live    source.Adapter
		liveCap int
	)
	if mode.NeedsLive() {
		creds, err := cfg.LoadCredentials(credFile)
		if err != nil {
			return nil, fmt.Errorf("load credentials: %w", err)
		}
		ls, err := source.NewLive(source.LiveConfig{
			Credentials: creds,
			BaseURL:     cfg.Sources.Live.BaseURL,
			TokenURL:    cfg.Sources.Live.TokenURL,
			FetchCap:    cfg.Sources.Live.FetchCap,
		})
		if err != nil {
			return nil, fmt.Errorf("create live source: %w", err)
		}
		live, liveCap = ls, ls.FetchCap()
	}

	return retrieval.New(retrieval.Config{
		Registry:     reg,
		Fields:       cfg.Fields,
		SanityForums: cfg.SanityForums,
		Bulk:         bulk,
		Live:         live,
		LiveCap:      liveCap,
		Location:     cfg.Location(),
		Now:          nowFunc,
	})
}

// commandContext returns the command's context, or Background when run outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func printWarnings(w io.Writer, warnings []retrieval.Warning, loc *time.Location) {
	for _, warn := range warnings {
		fmt.Fprintf(w, "warning: %s (%s, %s): %s\n", warn.Forum, warn.Period, warn.Window.Format(loc), warn.Message)
	}
}

func warningStrings(warnings []retrieval.Warning) []string {
	out := make([]string, 0, len(warnings))
	for _, w := range warnings {
		out = append(out, w.String())
	}
	return out
}
