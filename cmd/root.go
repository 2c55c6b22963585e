package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"curseforge-mod-fetcher/logger"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "curseforge-mod-fetcher",
	Short: "Search CurseForge and download mods into a local mods directory",
	Long: `Searches the CurseForge catalog for mods, downloads the latest file of each
selected mod into the mods directory, and keeps a ledger of what was fetched.

Settings come from a .env file in the working directory, the environment, and
flags, in increasing order of precedence. CURSEFORGE_API_KEY is required.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Also write debug logs to stderr")
	rootCmd.PersistentFlags().String("mods-dir", "", "Directory mods are downloaded into (MODS_DIR)")
	rootCmd.PersistentFlags().Int("game-id", 0, "CurseForge game id (GAME_ID, default 432 for Minecraft)")
	rootCmd.PersistentFlags().Int("concurrency", 0, "Downloads run at once (CONCURRENCY, default 1)")
}

// Execute runs the root command. Interrupts cancel the command's context, so
// in-flight downloads abandon their temp files.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		logger.Log.Errorw("Command failed", zap.Error(err))
		fmt.Fprintln(os.Stderr, formatError(err))
		stop()
		logger.Sync()
		os.Exit(exitCode(err))
	}
}
