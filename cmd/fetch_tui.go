package cmd

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"curseforge-mod-fetcher/batch"
	"curseforge-mod-fetcher/download"
	"curseforge-mod-fetcher/ui"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// fetchProgressMsg carries a download.Progress into the view.
type fetchProgressMsg download.Progress

// fetchResultMsg reports one finished target.
type fetchResultMsg batch.Result

// fetchDoneMsg is sent once the batch has finished.
type fetchDoneMsg struct {
	summary batch.Summary
}

type activeDownload struct {
	name    string
	percent int
	unknown bool
	written int64
}

// FetchModel controls the UI for a batch download.
type FetchModel struct {
	spinner  spinner.Model
	bar      progress.Model
	activity chan tea.Msg
	cancel   context.CancelFunc

	total     int
	active    map[int]*activeDownload
	completed []string
	errors    []string
	summary   batch.Summary
	done      bool
	aborted   bool
}

func initialFetchModel(total int, cancel context.CancelFunc) FetchModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = ui.Accent

	return FetchModel{
		spinner:  s,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
		activity: make(chan tea.Msg, 100),
		cancel:   cancel,
		total:    total,
		active:   map[int]*activeDownload{},
	}
}

func (m FetchModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForActivity())
}

func (m FetchModel) waitForActivity() tea.Cmd {
	return func() tea.Msg {
		return <-m.activity
	}
}

func (m FetchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.done {
			return m, tea.Quit
		}
		if msg.String() == "q" || msg.String() == "ctrl+c" {
			m.aborted = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}

	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case fetchProgressMsg:
		d, ok := m.active[msg.ModID]
		if !ok {
			d = &activeDownload{}
			m.active[msg.ModID] = d
		}
		d.name = msg.FileName
		d.percent = msg.Percent
		d.unknown = msg.Indeterminate
		d.written = msg.Written
		return m, m.waitForActivity()

	case fetchResultMsg:
		delete(m.active, msg.Target.ModID)
		if msg.Err == nil {
			m.completed = append(m.completed, fmt.Sprintf("%s (%s)", msg.Record.FileName, ui.Bytes(msg.Record.FileSize)))
		} else {
			m.errors = append(m.errors, fmt.Sprintf("mod %d: %s", msg.Target.ModID, msg.Err))
		}
		return m, m.waitForActivity()

	case fetchDoneMsg:
		m.done = true
		m.summary = msg.summary
		return m, tea.Quit
	}

	return m, nil
}

func (m FetchModel) View() string {
	var b strings.Builder

	finished := len(m.completed) + len(m.errors)
	symbol := m.spinner.View()
	if m.done {
		symbol = ui.Success.Render("✓")
	}
	fmt.Fprintf(&b, "\n %s Downloading mods %d/%d\n\n", symbol, finished, m.total)

	if len(m.active) > 0 {
		ids := make([]int, 0, len(m.active))
		for id := range m.active {
			ids = append(ids, id)
		}
		sort.Ints(ids)
		for _, id := range ids {
			d := m.active[id]
			if d.unknown {
				fmt.Fprintf(&b, "  %s %s\n", ui.Truncate(d.name, 40), ui.Muted.Render(ui.Bytes(d.written)))
				continue
			}
			fmt.Fprintf(&b, "  %s %s\n", m.bar.ViewAs(float64(d.percent)/100), ui.Truncate(d.name, 40))
		}
		b.WriteString("\n")
	}

	if len(m.errors) > 0 {
		b.WriteString(ui.Failure.Render("Errors:") + "\n")
		for _, e := range m.errors {
			fmt.Fprintf(&b, "  • %s\n", e)
		}
		b.WriteString("\n")
	}

	if len(m.completed) > 0 {
		b.WriteString(ui.Success.Render("Completed:") + "\n")
		start := 0
		if len(m.completed) > 5 && !m.done {
			start = len(m.completed) - 5
		}
		for _, c := range m.completed[start:] {
			fmt.Fprintf(&b, "  • %s\n", c)
		}
		b.WriteString("\n")
	}

	if !m.done {
		b.WriteString(lipgloss.NewStyle().Faint(true).Render("Press q to stop") + "\n")
	}
	return b.String()
}

// runFetchTUI runs the batch behind a bubbletea view. Quitting the view
// cancels the remaining downloads; the summary covers what was attempted.
func runFetchTUI(ctx context.Context, a *app, targets []batch.Target) (batch.Summary, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	m := initialFetchModel(len(targets), cancel)
	send := func(msg tea.Msg) {
		select {
		case m.activity <- msg:
		case <-ctx.Done():
		}
	}
	onProgress := func(p download.Progress) {
		// Progress is lossy; only results and completion must arrive.
		select {
		case m.activity <- fetchProgressMsg(p):
		default:
		}
	}

	runner := a.newRunner(a.newManager(onProgress), func(res batch.Result) {
		send(fetchResultMsg(res))
	})

	result := make(chan batch.Summary, 1)
	go func() {
		summary := runner.Run(ctx, targets)
		result <- summary
		send(fetchDoneMsg{summary: summary})
	}()

	if _, err := tea.NewProgram(m, tea.WithContext(ctx)).Run(); err != nil && ctx.Err() == nil {
		cancel()
		<-result
		return batch.Summary{}, fmt.Errorf("running download view: %w", err)
	}
	cancel()
	return <-result, nil
}
