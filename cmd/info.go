package cmd

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/ui"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info <modId>",
	Short: "Shows details of a mod and its latest file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		modID, err := strconv.Atoi(args[0])
		if err != nil || modID <= 0 {
			return fmt.Errorf("invalid mod id %q: must be a positive integer", args[0])
		}
		fileID, _ := cmd.Flags().GetInt("file")

		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		mod, err := a.catalog.GetMod(cmd.Context(), modID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		printMod(out, mod)

		if fileID > 0 {
			file, err := a.catalog.GetModFile(cmd.Context(), modID, fileID)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, ui.Title.Render(fmt.Sprintf("File %d", file.ID)))
			printFile(out, *file)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)
	infoCmd.Flags().Int("file", 0, "Also show this file id of the mod")
}

func printMod(w io.Writer, mod *curseforge.Mod) {
	fmt.Fprintf(w, "%s %s\n", ui.Title.Render(mod.Name), ui.Muted.Render(fmt.Sprintf("(id %d, %s)", mod.ID, mod.Slug)))
	if mod.Summary != "" {
		fmt.Fprintln(w, mod.Summary)
	}

	names := func(n int, get func(int) string) string {
		parts := make([]string, 0, n)
		for i := 0; i < n; i++ {
			parts = append(parts, get(i))
		}
		return strings.Join(parts, ", ")
	}
	if len(mod.Authors) > 0 {
		fmt.Fprintf(w, "Authors:    %s\n", names(len(mod.Authors), func(i int) string { return mod.Authors[i].Name }))
	}
	if len(mod.Categories) > 0 {
		fmt.Fprintf(w, "Categories: %s\n", names(len(mod.Categories), func(i int) string { return mod.Categories[i].Name }))
	}
	fmt.Fprintf(w, "Downloads:  %s\n", ui.Count(mod.DownloadCount))
	if mod.IsFeatured {
		fmt.Fprintln(w, ui.Accent.Render("Featured"))
	}
	if !mod.DateModified.IsZero() {
		fmt.Fprintf(w, "Updated:    %s\n", mod.DateModified.Format("2006-01-02"))
	}
	for _, link := range []struct{ label, url string }{
		{"Website", mod.Links.WebsiteURL},
		{"Wiki", mod.Links.WikiURL},
		{"Issues", mod.Links.IssuesURL},
		{"Source", mod.Links.SourceURL},
	} {
		if link.url != "" {
			fmt.Fprintf(w, "%-11s %s\n", link.label+":", link.url)
		}
	}

	latest, ok := mod.LatestFile()
	if !ok {
		fmt.Fprintln(w, ui.Warning.Render("No files available."))
		return
	}
	fmt.Fprintln(w, ui.Title.Render("Latest file"))
	printFile(w, latest)
}

func printFile(w io.Writer, f curseforge.File) {
	fmt.Fprintf(w, "  %s %s\n", f.FileName, ui.Muted.Render(fmt.Sprintf("(id %d)", f.ID)))
	if f.DisplayName != "" && f.DisplayName != f.FileName {
		fmt.Fprintf(w, "  Name:     %s\n", f.DisplayName)
	}
	fmt.Fprintf(w, "  Size:     %s\n", ui.Bytes(f.FileLength))
	if len(f.GameVersions) > 0 {
		fmt.Fprintf(w, "  Versions: %s\n", strings.Join(f.GameVersions, ", "))
	}
	if !f.FileDate.IsZero() {
		fmt.Fprintf(w, "  Date:     %s\n", f.FileDate.Format("2006-01-02"))
	}
	if sum, ok := f.SHA1(); ok {
		fmt.Fprintf(w, "  SHA-1:    %s\n", sum)
	}
}
