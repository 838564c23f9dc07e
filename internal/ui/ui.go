package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/playlist-converter/internal/models"
)

const (
	DefaultPollInterval = time.Second
	defaultListWidth    = 60
	defaultListHeight   = 14
	maxBarWidth         = 60
)

// StatusSource reads job projections. [status.Publisher] implements it.
type StatusSource interface {
	Get(ctx context.Context, jobID string) (*models.ConversionStatus, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	source   StatusSource
	interval time.Duration
	jobIDs   []string
	results  map[string]fetchResult
	done     bool
	width    int
	height   int
	jobs     list.Model
	bar      progress.Model
	help     help.Model
	keys     keyMap
}

// NewModel creates a model watching jobIDs, polling source every interval.
func NewModel(ctx context.Context, source StatusSource, interval time.Duration, jobIDs ...string) *Model {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	items := make([]list.Item, len(jobIDs))
	for i, id := range jobIDs {
		items[i] = jobItem{jobID: id}
	}

	jobs := list.New(items, list.NewDefaultDelegate(), defaultListWidth, defaultListHeight)
	jobs.Title = "Conversions"
	jobs.SetShowHelp(false)
	jobs.SetFilteringEnabled(false)

	return &Model{
		ctx:      ctx,
		source:   source,
		interval: interval,
		jobIDs:   jobIDs,
		results:  make(map[string]fetchResult, len(jobIDs)),
		jobs:     jobs,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
		help:     help.New(),
		keys:     newKeyMap(),
	}
}

// Done reports whether every watched job has reached a terminal status.
func (m *Model) Done() bool {
	return m.done
}

// Init starts the first poll.
func (m *Model) Init() tea.Cmd {
	return m.poll()
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.jobs.SetSize(msg.Width-4, max(msg.Height-10, 4))
		m.bar.Width = min(msg.Width-4, maxBarWidth)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.refresh):
			if m.done {
				m.done = false
				return m, m.poll()
			}
			return m, nil
		}

	case Msg:
		switch msg.kind {
		case MsgStatusesFetched:
			return m.handleStatuses(msg.data.([]fetchResult))
		case MsgTick:
			return m, m.poll()
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.jobs, cmd = m.jobs.Update(msg)
	return m, cmd
}

func (m *Model) handleStatuses(results []fetchResult) (tea.Model, tea.Cmd) {
	for _, r := range results {
		m.results[r.jobID] = r
	}

	items := make([]list.Item, len(m.jobIDs))
	for i, id := range m.jobIDs {
		r := m.results[id]
		items[i] = jobItem{jobID: id, status: r.status, err: r.err}
	}
	cmd := m.jobs.SetItems(items)

	if m.allTerminal() {
		m.done = true
		return m, cmd
	}
	return m, tea.Batch(cmd, m.tick())
}

func (m *Model) allTerminal() bool {
	if len(m.jobIDs) == 0 {
		return true
	}
	for _, id := range m.jobIDs {
		r, ok := m.results[id]
		if !ok || r.err != nil || r.status == nil || !r.status.Status.Terminal() {
			return false
		}
	}
	return true
}

// poll reads every watched job once, in order.
func (m *Model) poll() tea.Cmd {
	return func() tea.Msg {
		results := make([]fetchResult, 0, len(m.jobIDs))
		for _, id := range m.jobIDs {
			st, err := m.source.Get(m.ctx, id)
			results = append(results, fetchResult{jobID: id, status: st, err: err})
		}
		return statusesFetchedMsg(results)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg() })
}

// View renders the job list, the selected job's progress and the key help.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(m.jobs.View())
	b.WriteString("\n\n")
	b.WriteString(m.renderSelected())
	b.WriteString("\n\n")

	if m.done {
		b.WriteString(styles.ok.Render("All jobs finished."))
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(m.keys))

	return b.String()
}

func (m *Model) renderSelected() string {
	item, ok := m.jobs.SelectedItem().(jobItem)
	if !ok {
		return styles.help.Render("No jobs to watch")
	}

	title := styles.title.Render(item.jobID)
	if item.err != nil {
		return fmt.Sprintf("%s\n%s", title, styles.err.Render(item.Description()))
	}
	if item.status == nil {
		return fmt.Sprintf("%s\n%s", title, styles.help.Render("waiting for first status..."))
	}

	st := item.status
	info := fmt.Sprintf("Status: %s\nTracks: %d/%d (%.1f%%)",
		styles.Status(st.Status), st.Processed, st.Total, st.Percent())
	if st.Error != models.CauseNone {
		info += "\n" + styles.warn.Render(fmt.Sprintf("Cause: %s", st.Error))
	}
	if !st.UpdatedAt.IsZero() {
		info += "\n" + styles.help.Render(fmt.Sprintf("Updated %s", st.UpdatedAt.Local().Format(time.TimeOnly)))
	}

	return fmt.Sprintf("%s\n%s\n%s", title, m.bar.ViewAs(st.Percent()/100), info)
}
