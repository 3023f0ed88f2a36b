package dashboard

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/haldane/jobstore/internal/jobinfo"
)

// View renders the UI.
func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	if m.viewMode == ViewModeDetail {
		return m.renderDetailView()
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderStats())
	sections = append(sections, m.renderJobList())
	sections = append(sections, m.renderHelpBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func (m Model) renderHeader() string {
	title := titleStyle.Render("⚡ jobstore dashboard")
	subtitle := subtitleStyle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05")))
	header := lipgloss.JoinHorizontal(lipgloss.Top, title, "  ", subtitle)
	return headerStyle.Render(header)
}

func (m Model) renderStats() string {
	running, queued, finished := 0, 0, 0
	for _, job := range m.jobs {
		switch {
		case job.RunningState == jobinfo.Running:
			running++
		case job.RunningState == jobinfo.Queued:
			queued++
		default:
			finished++
		}
	}

	stats := []string{
		fmt.Sprintf("%s %d", keyStyle.Render("Names:"), len(m.jobs)),
		fmt.Sprintf("%s %d", keyStyle.Render("Running:"), running),
		fmt.Sprintf("%s %d", keyStyle.Render("Queued:"), queued),
		fmt.Sprintf("%s %d", keyStyle.Render("Finished:"), finished),
	}
	return statsStyle.Render(strings.Join(stats, "  │  "))
}

func (m Model) renderJobList() string {
	if len(m.jobs) == 0 {
		return jobListStyle.Render(subtitleStyle.Render("No job executions recorded yet"))
	}

	var rows []string
	rows = append(rows, titleStyle.Render("Jobs"))
	rows = append(rows, "")

	header := fmt.Sprintf("   %-24s  %-10s  %-8s  %s", "Job", "Status", "Result", "Last Modified")
	rows = append(rows, keyStyle.Render(header))
	rows = append(rows, keyStyle.Render(strings.Repeat("─", 72)))

	for i, job := range m.jobs {
		rows = append(rows, m.renderJobRow(job, i == m.selectedJob))
	}

	return jobListStyle.Render(strings.Join(rows, "\n"))
}

func (m Model) renderJobRow(job *jobinfo.JobInfo, selected bool) string {
	cursor := " "
	if selected {
		cursor = iconArrow
	}

	name := padRight(truncate(job.Name, 24), 24)
	icon, text, style := statusFor(job)
	statusDisplay := style.Render(fmt.Sprintf("%s %s", icon, padRight(text, 8)))

	result := "-"
	if job.ResultState != "" {
		result = string(job.ResultState)
	}

	modified := "-"
	if !job.LastModificationTime.IsZero() {
		modified = formatTimeAgo(job.LastModificationTime)
	}

	row := fmt.Sprintf("%s  %s  %s  %-8s  %s", cursor, name, statusDisplay, padRight(result, 8), keyStyle.Render(modified))

	if selected {
		return jobItemSelectedStyle.Render(row)
	}
	return jobItemStyle.Render(row)
}

func (m Model) renderHelpBar() string {
	if m.errorMessage != "" {
		return statusBarStyle.Render(statusErrorStyle.Render("Error: " + m.errorMessage))
	}
	return statusBarStyle.Render("q: quit  │  ↑/↓: navigate  │  enter: history  │  r: refresh")
}

func (m Model) renderDetailView() string {
	if m.selectedJob >= len(m.jobs) {
		return "Invalid job selection"
	}
	job := m.jobs[m.selectedJob]

	var sections []string

	header := lipgloss.JoinHorizontal(lipgloss.Top,
		titleStyle.Render(fmt.Sprintf("⚡ jobstore dashboard - %s", job.Name)),
		"  ",
		subtitleStyle.Render(fmt.Sprintf("Last updated: %s", m.lastUpdate.Format("15:04:05"))),
	)
	sections = append(sections, headerStyle.Render(header))

	var info []string
	info = append(info, titleStyle.Render("Current execution"))
	info = append(info, "")
	icon, text, style := statusFor(job)
	info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Status:"), style.Render(icon+" "+text)))
	if job.ResultState != "" {
		info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Result:"), valueStyle.Render(string(job.ResultState))))
	}
	if job.StatusMessage != "" {
		info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Message:"), valueStyle.Render(truncate(job.StatusMessage, 60))))
	}
	info = append(info, fmt.Sprintf("%s %s", keyStyle.Render("Host:"), valueStyle.Render(job.Host)))
	sections = append(sections, jobListStyle.Render(strings.Join(info, "\n")))

	var history []string
	history = append(history, titleStyle.Render(fmt.Sprintf("Run history (%d shown)", len(m.detailRuns))))
	history = append(history, "")
	if len(m.detailRuns) == 0 {
		history = append(history, subtitleStyle.Render("No runs recorded"))
	} else {
		header := fmt.Sprintf("  %-20s  %-8s  %s", "Created", "Result", "Message")
		history = append(history, keyStyle.Render(header))
		history = append(history, keyStyle.Render("  "+strings.Repeat("─", 60)))
		for _, run := range m.detailRuns {
			icon, _, style := statusFor(run)
			created := run.CreationTime.Format("2006-01-02 15:04:05")
			msg := truncate(run.ResultMessage, 40)
			history = append(history, fmt.Sprintf("  %-20s  %s %-6s  %s", created, style.Render(icon), string(run.ResultState), msg))
		}
	}
	sections = append(sections, detailHistoryStyle.Render(strings.Join(history, "\n")))

	logHeader := titleStyle.Render(fmt.Sprintf("Log lines (%d, scroll with ↑/↓)", len(job.LogLines)))
	sections = append(sections, logLinesStyle.Render(logHeader + "\n\n" + m.logViewport.View()))

	sections = append(sections, statusBarStyle.Render("esc: back  │  ↑/↓: scroll log  │  q: quit  │  r: refresh"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func statusFor(job *jobinfo.JobInfo) (icon, text string, style lipgloss.Style) {
	switch {
	case job.RunningState == jobinfo.Running:
		return iconRunning, "Running", statusRunningStyle
	case job.RunningState == jobinfo.Queued:
		return iconQueued, "Queued", statusQueuedStyle
	case job.ResultState == jobinfo.Successful:
		return iconSuccess, "Success", statusSuccessStyle
	case job.ResultState == jobinfo.NotExecuted:
		return iconIdle, "Skipped", statusIdleStyle
	case job.RunningState.IsFinished():
		return iconError, "Failed", statusErrorStyle
	default:
		return iconIdle, "Idle", statusIdleStyle
	}
}

func formatTimeAgo(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

func padRight(s string, length int) string {
	if len(s) >= length {
		return s
	}
	return s + strings.Repeat(" ", length-len(s))
}
