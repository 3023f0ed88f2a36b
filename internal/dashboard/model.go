// Package dashboard is a read-only terminal view over the job info
// repository: what's queued, what's running, what finished, and the
// log lines of a selected execution.
package dashboard

import (
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/haldane/jobstore/internal/jobinfo"
)

// ViewMode selects between the job list and a single job's history.
type ViewMode int

const (
	ViewModeList ViewMode = iota
	ViewModeDetail
)

// Model holds the dashboard's state. It never mutates the repository —
// all writes to job state happen through the scheduler.
type Model struct {
	service *jobinfo.Service
	logger  *slog.Logger

	viewMode    ViewMode
	jobs        []*jobinfo.JobInfo
	selectedJob int
	detailRuns  []*jobinfo.JobInfo

	logViewport viewport.Model

	width, height int
	lastUpdate    time.Time
	quitting      bool
	errorMessage  string
}

// New builds a dashboard Model over a read-only jobinfo.Service.
func New(service *jobinfo.Service, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	return Model{
		service:     service,
		logger:      logger,
		lastUpdate:  time.Now(),
		logViewport: viewport.New(80, 10),
	}
}

// Init satisfies tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(tickCmd(), tea.EnterAltScreen)
}

type tickMsg time.Time

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// refreshData reloads the most-recent-per-name projection from the
// repository. A failed refresh is surfaced as an error message rather
// than clearing the last known good state.
func (m *Model) refreshData() {
	jobs, err := m.service.MostRecentPerName()
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.errorMessage = ""
	m.jobs = jobs
	if m.selectedJob >= len(m.jobs) {
		m.selectedJob = len(m.jobs) - 1
	}
	if m.selectedJob < 0 {
		m.selectedJob = 0
	}
	m.lastUpdate = time.Now()
}

func (m *Model) loadDetailRuns() {
	if m.selectedJob >= len(m.jobs) {
		return
	}
	name := m.jobs[m.selectedJob].Name
	runs, err := m.service.ByName(name, 10)
	if err != nil {
		m.errorMessage = err.Error()
		return
	}
	m.detailRuns = runs
	m.refreshLogViewport()
}

// refreshLogViewport rewrites the scrollable log panel's content from
// the selected job's log lines, preserving the user's current scroll
// offset unless they were already pinned to the bottom.
func (m *Model) refreshLogViewport() {
	if m.selectedJob >= len(m.jobs) {
		return
	}
	job := m.jobs[m.selectedJob]

	var lines []string
	for _, line := range job.LogLines {
		lines = append(lines, line.Timestamp.Format("15:04:05")+"  "+line.Line)
	}
	if len(lines) == 0 {
		lines = []string{"No log lines"}
	}

	wasAtBottom := m.logViewport.AtBottom()
	m.logViewport.SetContent(strings.Join(lines, "\n"))
	if wasAtBottom {
		m.logViewport.GotoBottom()
	}
}

// Quitting reports whether the user has asked to exit.
func (m Model) Quitting() bool {
	return m.quitting
}
