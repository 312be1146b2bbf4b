package cmd

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// Reporter receives progress events from the pipeline. ArchiveStarted and
// ArchiveFinished arrive from worker goroutines; RecordExtracted and
// GroupFlushed from the batcher. Implementations must be safe for
// concurrent use.
type Reporter interface {
	InputsExpanded(archives int)
	ArchiveStarted(path string)
	ArchiveFinished(path string)
	RecordExtracted(total int)
	GroupFlushed(rows int)
}

type nopReporter struct{}

func (nopReporter) InputsExpanded(int)     {}
func (nopReporter) ArchiveStarted(string)  {}
func (nopReporter) ArchiveFinished(string) {}
func (nopReporter) RecordExtracted(int)    {}
func (nopReporter) GroupFlushed(int)       {}

// logReporter logs progress through slog; used in debug mode and whenever
// the TUI is disabled (e.g. parquet on stdout).
type logReporter struct {
	logger *slog.Logger
}

func (r *logReporter) InputsExpanded(archives int) {
	r.logger.Info(fmt.Sprintf("📦 Found %d archive(s) to convert", archives))
}

func (r *logReporter) ArchiveStarted(path string) {
	r.logger.Info(fmt.Sprintf("Reading %s...", path))
}

func (r *logReporter) ArchiveFinished(path string) {
	r.logger.Info(fmt.Sprintf("✅ Finished reading %s", path))
}

func (r *logReporter) RecordExtracted(int) {}

func (r *logReporter) GroupFlushed(rows int) {
	r.logger.Debug(fmt.Sprintf("Wrote row group with %d rows", rows))
}

// tuiReporter forwards pipeline events to the Bubble Tea program. Record
// counts are throttled; the exact total arrives with convertDoneMsg.
type tuiReporter struct {
	program *tea.Program
	records atomic.Int64
}

func (r *tuiReporter) InputsExpanded(archives int) {
	r.program.Send(inputsExpandedMsg{archives: archives})
}

func (r *tuiReporter) ArchiveStarted(path string) {
	r.program.Send(archiveStartedMsg{path: path})
}

func (r *tuiReporter) ArchiveFinished(path string) {
	r.program.Send(archiveFinishedMsg{path: path})
}

func (r *tuiReporter) RecordExtracted(total int) {
	r.records.Store(int64(total))
	if total%64 == 0 {
		r.program.Send(recordCountMsg{total: total})
	}
}

func (r *tuiReporter) GroupFlushed(rows int) {
	r.program.Send(groupFlushedMsg{rows: rows})
}

type inputsExpandedMsg struct {
	archives int
}

type archiveStartedMsg struct {
	path string
}

type archiveFinishedMsg struct {
	path string
}

type recordCountMsg struct {
	total int
}

type groupFlushedMsg struct {
	rows int
}

type convertDoneMsg struct {
	err     error
	records int
}

var (
	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Margin(0, 2)

	stageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#04B575")).
			Margin(0, 2)

	progressInfoStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Margin(0, 2)
)

type progressModel struct {
	spinner         spinner.Model
	overallProgress progress.Model
	cancel          func()

	archivesTotal    int
	archivesStarted  int
	archivesFinished int
	currentArchive   string
	records          int
	groups           int

	startTime time.Time
	done      bool
	err       error
	width     int
}

func newProgressModel(cancel func()) progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	return progressModel{
		spinner:         s,
		overallProgress: progress.New(progress.WithDefaultGradient()),
		cancel:          cancel,
		startTime:       time.Now(),
	}
}

func (m progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

func (m progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			// Cooperative cancellation; the pipeline sends
			// convertDoneMsg once it has wound down
			m.cancel()
			return m, nil
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.overallProgress.Width = msg.Width - 8
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case progress.FrameMsg:
		pm, cmd := m.overallProgress.Update(msg)
		m.overallProgress = pm.(progress.Model)
		return m, cmd

	case inputsExpandedMsg:
		m.archivesTotal = msg.archives
		return m, nil

	case archiveStartedMsg:
		m.archivesStarted++
		m.currentArchive = msg.path
		return m, nil

	case archiveFinishedMsg:
		m.archivesFinished++
		if m.archivesTotal > 0 {
			percent := float64(m.archivesFinished) / float64(m.archivesTotal)
			return m, m.overallProgress.SetPercent(percent)
		}
		return m, nil

	case recordCountMsg:
		m.records = msg.total
		return m, nil

	case groupFlushedMsg:
		m.groups++
		return m, nil

	case convertDoneMsg:
		m.done = true
		m.err = msg.err
		m.records = msg.records
		return m, tea.Quit
	}

	return m, nil
}

func (m progressModel) View() string {
	if m.done {
		return ""
	}

	view := "\n"
	view += stageStyle.Render(fmt.Sprintf("%s Converting %d/%d archives",
		m.spinner.View(), m.archivesFinished, m.archivesTotal)) + "\n\n"

	view += "  " + m.overallProgress.View() + "\n\n"

	if m.currentArchive != "" {
		view += progressInfoStyle.Render("Current: "+m.currentArchive) + "\n"
	}
	view += progressInfoStyle.Render(fmt.Sprintf("Records: %d  Row groups: %d  Elapsed: %s",
		m.records, m.groups, time.Since(m.startTime).Round(time.Second))) + "\n\n"

	view += helpStyle.Render("Press q or ctrl-c to cancel (partial output is deleted)") + "\n"
	return view
}
