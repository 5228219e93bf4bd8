package cli

import (
	"fmt"
	"maps"
	"slices"

	"github.com/ppiankov/autodd/internal/config"
	"github.com/spf13/cobra"
)

var pullFlags retrieveFlags

var pullCmd = &cobra.Command{
	Use:   "pull",
	Short: "Retrieve both periods and print per-forum post counts",
	RunE:  pullAction,
}

func init() {
	pullFlags.register(pullCmd)
}

func pullAction(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := pullFlags.apply(cfg); err != nil {
		return err
	}

	orch, err := newOrchestrator(cfg, pullFlags.proxyFile, pullFlags.credFile)
	if err != nil {
		return err
	}
	res, err := orch.Run(commandContext(cmd), pullFlags.request(cfg))
	if err != nil {
		return fmt.Errorf("retrieve: %w", err)
	}

	out := cmd.OutOrStdout()
	loc := cfg.Location()
	fmt.Fprintf(out, "Pulled %d posts from %d forums (run %s)\n", res.Posts(), len(res.Recent), res.RunID)
	fmt.Fprintf(out, "  recent:   %s\n", res.RecentWindow.Format(loc))
	fmt.Fprintf(out, "  previous: %s\n\n", res.PreviousWindow.Format(loc))

	forums := slices.Sorted(maps.Keys(res.Recent))
	width := 5 // "Forum"
	for _, f := range forums {
		width = max(width, len(f))
	}
	fmt.Fprintf(out, "  %-*s  %6s  %8s\n", width, "Forum", "Recent", "Previous")
	for _, f := range forums {
		fmt.Fprintf(out, "  %-*s  %6d  %8d\n", width, f, len(res.Recent[f]), len(res.Previous[f]))
	}

	printWarnings(cmd.ErrOrStderr(), res.Warnings, loc)
	return nil
}
