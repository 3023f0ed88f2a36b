package dashboard

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Update handles incoming messages and advances the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.logViewport.Width = msg.Width - 6
		m.logViewport.Height = 8
		return m, nil

	case tickMsg:
		m.refreshData()
		if m.viewMode == ViewModeDetail {
			m.loadDetailRuns()
		}
		return m, tickCmd()

	case error:
		m.errorMessage = msg.Error()
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		m.quitting = true
		return m, tea.Quit

	case "esc":
		if m.viewMode == ViewModeDetail {
			m.viewMode = ViewModeList
			m.detailRuns = nil
		}
		return m, nil

	case "enter":
		if m.viewMode == ViewModeList && len(m.jobs) > 0 {
			m.viewMode = ViewModeDetail
			m.loadDetailRuns()
		}
		return m, nil

	case "up", "k":
		if m.viewMode == ViewModeList && m.selectedJob > 0 {
			m.selectedJob--
		} else if m.viewMode == ViewModeDetail {
			m.logViewport.LineUp(1)
		}
		return m, nil

	case "down", "j":
		if m.viewMode == ViewModeList && m.selectedJob < len(m.jobs)-1 {
			m.selectedJob++
		} else if m.viewMode == ViewModeDetail {
			m.logViewport.LineDown(1)
		}
		return m, nil

	case "g":
		if m.viewMode == ViewModeList {
			m.selectedJob = 0
		}
		return m, nil

	case "G":
		if m.viewMode == ViewModeList && len(m.jobs) > 0 {
			m.selectedJob = len(m.jobs) - 1
		}
		return m, nil

	case "r":
		m.refreshData()
		if m.viewMode == ViewModeDetail {
			m.loadDetailRuns()
		}
		return m, nil
	}

	return m, nil
}
