package cmd

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"sync"

	"curseforge-mod-fetcher/batch"
	"curseforge-mod-fetcher/download"
	"curseforge-mod-fetcher/ui"

	"github.com/spf13/cobra"
)

var downloadCmd = &cobra.Command{
	Use:   "download <modId>...",
	Short: "Downloads the latest file of the given mods",
	Long: `Downloads the latest file of each mod id into the mods directory and records
it in the ledger. A failing mod does not stop the others; the command exits
non-zero if any download failed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		targets, err := parseTargets(args)
		if err != nil {
			return err
		}

		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		out := cmd.OutOrStdout()
		useTUI, _ := cmd.Flags().GetBool("tui")
		var summary batch.Summary
		if useTUI {
			summary, err = runFetchTUI(cmd.Context(), a, targets)
			if err != nil {
				return err
			}
		} else {
			summary = runConsoleBatch(cmd.Context(), out, a, targets)
		}
		printSummary(out, summary)

		if summary.Failed > 0 {
			if len(targets) == 1 {
				return summary.Results[0].Err
			}
			return fmt.Errorf("%d of %d downloads failed", summary.Failed, summary.Attempted)
		}
		if err := cmd.Context().Err(); err != nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(downloadCmd)
	downloadCmd.Flags().Bool("tui", false, "Show downloads in an interactive view")
}

func parseTargets(args []string) ([]batch.Target, error) {
	targets := make([]batch.Target, 0, len(args))
	for _, arg := range args {
		id, err := strconv.Atoi(arg)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid mod id %q: must be a positive integer", arg)
		}
		targets = append(targets, batch.Target{ModID: id, Name: arg})
	}
	return targets, nil
}

// runConsoleBatch downloads targets while printing one line per finished
// mod and a percentage line per ten percent of progress.
func runConsoleBatch(ctx context.Context, w io.Writer, a *app, targets []batch.Target) batch.Summary {
	var mu sync.Mutex
	lastDecile := map[int]int{}
	progress := func(p download.Progress) {
		if p.Indeterminate || p.Done {
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if d := p.Percent / 10; d > lastDecile[p.ModID] {
			lastDecile[p.ModID] = d
			fmt.Fprintf(w, "  %s %3d%% %s\n", ui.Muted.Render("…"), p.Percent, p.FileName)
		}
	}

	hook := func(res batch.Result) {
		mu.Lock()
		defer mu.Unlock()
		if res.Succeeded() {
			fmt.Fprintf(w, "%s %s -> %s (%s)\n", ui.Success.Render("✓"),
				res.Record.ModName, res.Record.FilePath, ui.Bytes(res.Record.FileSize))
			return
		}
		fmt.Fprintf(w, "%s mod %d: %s\n", ui.Failure.Render("✗"), res.Target.ModID, formatError(res.Err))
	}

	runner := a.newRunner(a.newManager(progress), hook)
	return runner.Run(ctx, targets)
}

func printSummary(w io.Writer, s batch.Summary) {
	style := ui.Success
	if s.Failed > 0 {
		style = ui.Warning
	}
	fmt.Fprintln(w, style.Bold(true).Render(fmt.Sprintf("Downloaded %d/%d", s.Succeeded, s.Attempted)))
}
