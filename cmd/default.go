package cmd

func init() {
	// With no subcommand the root command searches, so the search flags are
	// registered on it as well.
	addSearchFlags(rootCmd.Flags())
	rootCmd.Args = searchCmd.Args
	rootCmd.RunE = runSearch
}
