package cmd

import (
	"bytes"
	"strings"
	"testing"

	"curseforge-mod-fetcher/curseforge"
)

func TestPrintMod(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printMod(&buf, &curseforge.Mod{
		ID:         238222,
		Slug:       "jei",
		Name:       "Just Enough Items",
		Authors:    []curseforge.Author{{Name: "mezz"}},
		Categories: []curseforge.Category{{Name: "API"}, {Name: "Utility"}},
		Links:      curseforge.ModLinks{SourceURL: "https://github.com/mezz/JustEnoughItems"},
		LatestFiles: []curseforge.File{{
			ID:           4712,
			FileName:     "jei-1.20.1.jar",
			FileLength:   1536,
			GameVersions: []string{"1.20.1", "Forge"},
			Hashes:       []curseforge.FileHash{{Algo: curseforge.HashSHA1, Value: "deadbeef"}},
		}},
	})
	out := buf.String()
	for _, want := range []string{
		"Just Enough Items", "(id 238222, jei)", "mezz", "API, Utility",
		"Source:", "jei-1.20.1.jar", "1.5 KiB", "1.20.1, Forge", "deadbeef",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	printMod(&buf, &curseforge.Mod{ID: 42, Name: "Empty"})
	if !strings.Contains(buf.String(), "No files available.") {
		t.Errorf("mod without files:\n%s", buf.String())
	}
}
