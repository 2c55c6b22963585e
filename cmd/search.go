package cmd

import (
	"fmt"
	"io"
	"strings"

	"curseforge-mod-fetcher/batch"
	"curseforge-mod-fetcher/config"
	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/ui"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Searches the catalog and optionally downloads every result",
	Long: `Runs one catalog query built from the search flags and prints the matching
mods. With --auto-download the latest file of every result is downloaded, one
mod at a time unless --concurrency is raised.`,
	Args: cobra.NoArgs,
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	addSearchFlags(searchCmd.Flags())
}

// addSearchFlags registers the query flags. Names match config.FlagKeys.
func addSearchFlags(fs *pflag.FlagSet) {
	fs.StringP("search", "s", "", "Text to search for")
	fs.Int("category", 0, "Category id to filter by")
	fs.Int("loader", 0, "Mod loader type (1 Forge, 4 Fabric, 5 Quilt, 6 NeoForge; 0 any)")
	fs.String("game-version", "", "Game version to filter by, e.g. 1.20.1")
	fs.Int("sort-field", config.DefaultSortField, "Sort field (1 featured, 2 popularity, 3 last updated, 4 name, 5 author, 6 downloads)")
	fs.String("sort-order", config.DefaultSortOrder, "Sort order, asc or desc")
	fs.Int("page-size", config.DefaultPageSize, "Number of results")
	fs.Int("index", 0, "Index of the first result, for paging")
	fs.BoolP("auto-download", "d", false, "Download the latest file of every result")
	fs.Bool("tui", false, "Show downloads in an interactive view")
}

func searchFilter(s config.Search) curseforge.SearchFilter {
	return curseforge.SearchFilter{
		SearchText:    s.Text,
		CategoryID:    s.CategoryID,
		ModLoaderType: curseforge.ModLoaderType(s.ModLoaderType),
		GameVersion:   s.GameVersion,
		SortField:     curseforge.SortField(s.SortField),
		SortOrder:     curseforge.SortOrder(s.SortOrder),
		PageSize:      s.PageSize,
		Index:         s.Index,
	}
}

func runSearch(cmd *cobra.Command, args []string) error {
	a, err := bootstrap(cmd)
	if err != nil {
		return err
	}
	defer a.close()

	result, err := a.catalog.Search(cmd.Context(), searchFilter(a.cfg.Search))
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSearchResult(out, result)

	if !a.cfg.Search.AutoDownload || len(result.Mods) == 0 {
		return nil
	}

	targets := batch.TargetsFromMods(result.Mods)
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
	return nil
}

func printSearchResult(w io.Writer, result *curseforge.SearchResult) {
	if len(result.Mods) == 0 {
		fmt.Fprintln(w, ui.Muted.Render("No mods found."))
		return
	}

	fmt.Fprintln(w, ui.Title.Render(fmt.Sprintf("Found %d mods (showing %d):",
		result.Pagination.TotalCount, len(result.Mods))))
	for i, mod := range result.Mods {
		authors := make([]string, 0, len(mod.Authors))
		for _, a := range mod.Authors {
			authors = append(authors, a.Name)
		}
		fmt.Fprintf(w, "%3d. %s %s\n", i+1,
			ui.Accent.Render(mod.Name),
			ui.Muted.Render(fmt.Sprintf("(id %d)", mod.ID)))
		if len(authors) > 0 {
			fmt.Fprintf(w, "     by %s\n", strings.Join(authors, ", "))
		}
		if mod.Summary != "" {
			fmt.Fprintf(w, "     %s\n", ui.Truncate(mod.Summary, 100))
		}
		line := fmt.Sprintf("     %s downloads", ui.Count(mod.DownloadCount))
		if latest, ok := mod.LatestFile(); ok {
			line += fmt.Sprintf(", latest %s (%s)", latest.FileName, ui.Bytes(latest.FileLength))
		}
		fmt.Fprintln(w, ui.Muted.Render(line))
	}
}
