package cmd

import (
	"path/filepath"
	"testing"

	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/ledger"

	tea "github.com/charmbracelet/bubbletea"
)

func TestBrowseRowStatus(t *testing.T) {
	t.Parallel()

	led := ledger.New(filepath.Join(t.TempDir(), "downloaded-mods.json"))
	if err := led.Upsert(ledger.Record{ModID: 1, FileID: 10, FileName: "one.jar"}); err != nil {
		t.Fatal(err)
	}
	if err := led.Upsert(ledger.Record{ModID: 2, FileID: 19, FileName: "two-old.jar"}); err != nil {
		t.Fatal(err)
	}
	m := BrowseModel{app: &app{ledger: led}}

	tests := []struct {
		mod        curseforge.Mod
		status     string
		selectable bool
		recorded   string
	}{
		{curseforge.Mod{ID: 1, LatestFiles: []curseforge.File{{ID: 10}}}, statusCurrent, true, "one.jar"},
		{curseforge.Mod{ID: 2, LatestFiles: []curseforge.File{{ID: 20}}}, statusOutdated, true, "two-old.jar"},
		{curseforge.Mod{ID: 3, LatestFiles: []curseforge.File{{ID: 30}}}, statusNew, true, "-"},
		{curseforge.Mod{ID: 4}, statusNoFiles, false, "-"},
	}
	for _, tt := range tests {
		row, err := m.rowFor(tt.mod)
		if err != nil {
			t.Fatalf("rowFor(%d): %v", tt.mod.ID, err)
		}
		if row.Status != tt.status || row.Selectable != tt.selectable || row.Recorded != tt.recorded {
			t.Errorf("mod %d: row = %+v, want status %q selectable %v recorded %q",
				tt.mod.ID, row, tt.status, tt.selectable, tt.recorded)
		}
	}
}

func TestBrowseSelection(t *testing.T) {
	t.Parallel()

	var model tea.Model = BrowseModel{}
	model, _ = model.Update(rowsLoadedMsg{total: 3, rows: []ModRow{
		{ID: 1, Name: "One", Status: statusCurrent, Selectable: true},
		{ID: 2, Name: "Two", Status: statusNew, Selectable: true},
		{ID: 3, Name: "Three", Status: statusNoFiles},
	}})

	key := func(s string) tea.KeyMsg {
		switch s {
		case "down":
			return tea.KeyMsg{Type: tea.KeyDown}
		case "space":
			return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(" ")}
		}
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}

	model, _ = model.Update(key("a"))
	got := model.(BrowseModel).selectedTargets()
	if len(got) != 1 || got[0].ModID != 2 {
		t.Fatalf("select all new = %+v, want only mod 2", got)
	}

	// Toggle mod 3, which has no files, then mod 2 off again.
	model, _ = model.Update(key("down"))
	model, _ = model.Update(key("down"))
	model, _ = model.Update(key("space"))
	model, _ = model.Update(key("k"))
	model, _ = model.Update(key("space"))
	if got := model.(BrowseModel).selectedTargets(); len(got) != 0 {
		t.Errorf("selection = %+v, want empty", got)
	}

	model, cmd := model.Update(tea.KeyMsg{Type: tea.KeyCtrlD})
	if cmd != nil || model.(BrowseModel).message != "No mods selected for download" {
		t.Errorf("ctrl+d with nothing selected: message %q", model.(BrowseModel).message)
	}
}
