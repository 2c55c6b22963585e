package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"curseforge-mod-fetcher/batch"
	"curseforge-mod-fetcher/curseforge"
	"curseforge-mod-fetcher/logger"
	"curseforge-mod-fetcher/ui"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse search results and pick mods to download",
	Long: `Runs the search built from the search flags and shows the results in an
interactive list, marking mods whose latest file is already in the ledger.
Selected mods are downloaded with ctrl+d.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := bootstrap(cmd)
		if err != nil {
			return err
		}
		defer a.close()

		m := newBrowseModel(cmd.Context(), a, searchFilter(a.cfg.Search))
		p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context()))
		if _, err := p.Run(); err != nil && cmd.Context().Err() == nil {
			return fmt.Errorf("running browser: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
	addSearchFlags(browseCmd.Flags())
}

// Ledger state of a listed mod.
const (
	statusNew      = "new"
	statusOutdated = "outdated"
	statusCurrent  = "up-to-date"
	statusNoFiles  = "no files"
)

// ModRow is one line of the browser.
type ModRow struct {
	ID         int
	Name       string
	Latest     string
	Size       int64
	Recorded   string
	Status     string
	Selected   bool
	Selectable bool
}

// BrowseModel represents the state of the browser.
type BrowseModel struct {
	ctx    context.Context
	app    *app
	filter curseforge.SearchFilter

	spinner       spinner.Model
	rows          []ModRow
	total         int
	selectedIndex int
	loading       bool
	downloading   bool
	err           string
	message       string
}

func newBrowseModel(ctx context.Context, a *app, filter curseforge.SearchFilter) BrowseModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.Accent
	return BrowseModel{ctx: ctx, app: a, filter: filter, spinner: s, loading: true}
}

type rowsLoadedMsg struct {
	rows  []ModRow
	total int
}

type browseErrorMsg string

type browseDownloadedMsg struct {
	message string
}

type clearMessageMsg struct{}

func (m BrowseModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.loadRows())
}

func (m BrowseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyMsg(msg)
	case spinner.TickMsg:
		if !m.loading && !m.downloading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case rowsLoadedMsg:
		m.loading = false
		m.rows = msg.rows
		m.total = msg.total
		if m.selectedIndex >= len(m.rows) {
			m.selectedIndex = 0
		}
	case browseErrorMsg:
		m.err = string(msg)
		m.loading = false
		m.downloading = false
	case browseDownloadedMsg:
		m.downloading = false
		m.loading = true
		m.message = msg.message
		return m, tea.Batch(
			m.spinner.Tick,
			m.loadRows(),
			tea.Tick(3*time.Second, func(time.Time) tea.Msg { return clearMessageMsg{} }),
		)
	case clearMessageMsg:
		m.message = ""
	}
	return m, nil
}

func (m BrowseModel) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	}
	if m.loading || m.downloading {
		return m, nil
	}
	switch msg.String() {
	case "up", "k":
		if m.selectedIndex > 0 {
			m.selectedIndex--
		}
	case "down", "j":
		if m.selectedIndex < len(m.rows)-1 {
			m.selectedIndex++
		}
	case " ", "space":
		if len(m.rows) > 0 && m.rows[m.selectedIndex].Selectable {
			m.rows[m.selectedIndex].Selected = !m.rows[m.selectedIndex].Selected
		}
	case "a":
		for i := range m.rows {
			if m.rows[i].Selectable && m.rows[i].Status != statusCurrent {
				m.rows[i].Selected = true
			}
		}
	case "ctrl+d":
		targets := m.selectedTargets()
		if len(targets) == 0 {
			m.message = "No mods selected for download"
			return m, nil
		}
		m.downloading = true
		return m, tea.Batch(m.spinner.Tick, m.downloadTargets(targets))
	}
	return m, nil
}

func (m BrowseModel) selectedTargets() []batch.Target {
	var targets []batch.Target
	for _, r := range m.rows {
		if r.Selected {
			targets = append(targets, batch.Target{ModID: r.ID, Name: r.Name})
		}
	}
	return targets
}

func (m BrowseModel) loadRows() tea.Cmd {
	return func() tea.Msg {
		result, err := m.app.catalog.Search(m.ctx, m.filter)
		if err != nil {
			logger.Log.Errorw("Failed to search mods", zap.Error(err))
			return browseErrorMsg(fmt.Sprintf("Failed to search mods: %v", err))
		}
		rows := make([]ModRow, 0, len(result.Mods))
		for _, mod := range result.Mods {
			row, err := m.rowFor(mod)
			if err != nil {
				return browseErrorMsg(fmt.Sprintf("Failed to read ledger: %v", err))
			}
			rows = append(rows, row)
		}
		return rowsLoadedMsg{rows: rows, total: result.Pagination.TotalCount}
	}
}

// rowFor compares the mod's latest file with the ledger.
func (m BrowseModel) rowFor(mod curseforge.Mod) (ModRow, error) {
	row := ModRow{ID: mod.ID, Name: mod.Name, Recorded: "-"}
	rec, found, err := m.app.ledger.Lookup(mod.ID)
	if err != nil {
		return row, err
	}
	if found {
		row.Recorded = rec.FileName
	}

	latest, ok := mod.LatestFile()
	switch {
	case !ok:
		row.Status = statusNoFiles
		return row, nil
	case !found:
		row.Status = statusNew
	case rec.FileID == latest.ID:
		row.Status = statusCurrent
	default:
		row.Status = statusOutdated
	}
	row.Latest = latest.FileName
	row.Size = latest.FileLength
	row.Selectable = true
	return row, nil
}

func (m BrowseModel) downloadTargets(targets []batch.Target) tea.Cmd {
	return func() tea.Msg {
		summary := m.app.newRunner(m.app.newManager(nil), nil).Run(m.ctx, targets)
		for _, res := range summary.Results {
			if !res.Succeeded() {
				logger.Log.Warnw("Failed to download mod", zap.Int("mod_id", res.Target.ModID), zap.Error(res.Err))
			}
		}
		return browseDownloadedMsg{
			message: fmt.Sprintf("Downloaded %d/%d selected mods", summary.Succeeded, len(targets)),
		}
	}
}

func (m BrowseModel) View() string {
	if m.err != "" {
		return fmt.Sprintf("Error: %s\n", m.err)
	}
	if m.loading {
		return ui.Title.Render(m.spinner.View()+" Searching mods...") + "\n"
	}
	if m.downloading {
		return ui.Title.Render(m.spinner.View()+" Downloading selected mods...") + "\n"
	}
	if len(m.rows) == 0 {
		return "No mods found.\n"
	}

	var b strings.Builder
	b.WriteString(ui.Title.Render(fmt.Sprintf("%d of %d mods", len(m.rows), m.total)) + "\n")
	b.WriteString(renderBrowseHeader() + "\n")
	for i, row := range m.rows {
		b.WriteString(m.renderRow(i, row) + "\n")
	}
	b.WriteString("\n" + renderBrowseFooter())
	if m.message != "" {
		b.WriteString("\n" + ui.Success.Render(m.message))
	}
	return b.String()
}

func renderBrowseHeader() string {
	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	return headerStyle.Render(fmt.Sprintf("  %-32s %-30s %-10s %-12s", "Mod", "Latest file", "Size", "Status"))
}

func renderBrowseFooter() string {
	return lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true).
		Render("↑/k: up  ↓/j: down  space: select  a: select all new  ctrl+d: download  q: quit")
}

func (m BrowseModel) renderRow(index int, row ModRow) string {
	statusStyle := ui.Muted
	switch row.Status {
	case statusNew:
		statusStyle = ui.Accent
	case statusOutdated:
		statusStyle = ui.Warning
	case statusCurrent:
		statusStyle = ui.Success
	}

	rowStyle := lipgloss.NewStyle().Padding(0, 1)
	if index == m.selectedIndex {
		rowStyle = rowStyle.Background(lipgloss.Color("8")).Bold(true)
	}

	indicator := " "
	if row.Selected {
		indicator = "✓"
	} else if !row.Selectable {
		indicator = "-"
	}

	size := ""
	if row.Size > 0 {
		size = ui.Bytes(row.Size)
	}
	return rowStyle.Render(fmt.Sprintf("%s %-32s %-30s %-10s %s",
		indicator,
		ui.Truncate(row.Name, 32),
		ui.Truncate(row.Latest, 30),
		size,
		statusStyle.Render(fmt.Sprintf("%-12s", row.Status)),
	))
}
