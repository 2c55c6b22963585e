package cmd

import (
	"fmt"

	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/db"
	"curseforge-mod-fetcher/logger"
	"curseforge-mod-fetcher/ui"

	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Shows recent download attempts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(".", cmd.Flags())
		if err != nil {
			return err
		}
		if cfg.HistoryPath == "" {
			return &config.ConfigurationError{Field: "HISTORY_DB_PATH", Reason: "is empty, history is disabled"}
		}
		limit, _ := cmd.Flags().GetInt("limit")

		h, err := db.Open(cfg.HistoryPath, logger.ZapLogger)
		if err != nil {
			return err
		}
		defer h.Close()

		attempts, err := h.Recent(cmd.Context(), limit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(attempts) == 0 {
			fmt.Fprintln(out, ui.Muted.Render("No download attempts recorded."))
			return nil
		}
		for _, a := range attempts {
			when := ui.Muted.Render(a.CreatedAt.Local().Format("2006-01-02 15:04:05"))
			if a.Status == db.StatusSucceeded {
				fmt.Fprintf(out, "%s %s %-8d %s %s (%s, %dms)\n", when, ui.Success.Render("✓"),
					a.ModID, a.ModName, a.FileName, ui.Bytes(a.Bytes), a.DurationMS)
				continue
			}
			fmt.Fprintf(out, "%s %s %-8d %s %s\n", when, ui.Failure.Render("✗"), a.ModID, a.ModName, a.Error)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().Int("limit", 20, "Number of attempts to show (0 for all)")
}
