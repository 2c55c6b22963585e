package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/download"
	"curseforge-mod-fetcher/ledger"
	"curseforge-mod-fetcher/logger"
	"curseforge-mod-fetcher/ui"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var ledgerCmd = &cobra.Command{
	Use:   "ledger",
	Short: "Lists the mods recorded in the download ledger",
	Long: `Lists every record of the download ledger. With --verify each recorded file is
checked on disk: present, of the recorded size, with its SHA-1 printed.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// The ledger is local, so it can be listed without an API key.
		cfg, err := config.Load(".", cmd.Flags())
		if err != nil {
			return err
		}
		verify, _ := cmd.Flags().GetBool("verify")

		records, err := ledger.New(cfg.LedgerPath, ledger.WithLogger(logger.Log.Named("ledger"))).All()
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		if len(records) == 0 {
			fmt.Fprintln(out, ui.Muted.Render("The ledger is empty."))
			return nil
		}

		fmt.Fprintln(out, ui.Title.Render(fmt.Sprintf("%d mods in %s", len(records), cfg.LedgerPath)))
		problems := 0
		for _, r := range records {
			fmt.Fprintf(out, "%-8d %s  %s  %s  %s\n", r.ModID, r.ModName, r.FileName,
				ui.Bytes(r.FileSize), ui.Muted.Render(r.DownloadDate.Local().Format("2006-01-02 15:04")))
			if verify {
				if status, ok := verifyRecord(r); ok {
					fmt.Fprintf(out, "         %s %s\n", ui.Success.Render("ok"), ui.Muted.Render(status))
				} else {
					problems++
					fmt.Fprintf(out, "         %s %s\n", ui.Failure.Render("!!"), status)
				}
			}
		}
		if problems > 0 {
			return fmt.Errorf("%d recorded files are missing or changed", problems)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ledgerCmd)
	ledgerCmd.Flags().Bool("verify", false, "Check recorded files on disk")
}

// verifyRecord checks the recorded file and returns a status line.
func verifyRecord(r ledger.Record) (string, bool) {
	info, err := os.Stat(r.FilePath)
	if errors.Is(err, fs.ErrNotExist) {
		return "missing: " + r.FilePath, false
	}
	if err != nil {
		return err.Error(), false
	}
	if info.Size() != r.FileSize {
		return fmt.Sprintf("size %d, recorded %d", info.Size(), r.FileSize), false
	}
	sum, err := download.FileSHA1(r.FilePath)
	if err != nil {
		logger.Log.Warnw("Failed to hash recorded file", zap.String("file", r.FilePath), zap.Error(err))
		return err.Error(), false
	}
	return "sha1 " + sum, true
}
