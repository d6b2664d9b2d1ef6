package livetable

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles bubbletea messages and folds scheduler progress into the
// table state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case NodeStartMsg:
		m.ensureNode(msg.ID)
		state := m.nodes[msg.ID]
		state.Status = StatusRunning
		m.nodes[msg.ID] = state
		return m, nil

	case NodeDoneMsg:
		m.ensureNode(msg.ID)
		state := m.nodes[msg.ID]
		alreadyDone := state.Status == StatusSuccess || state.Status == StatusRestored || state.Status == StatusFailed
		state.Status = msg.Status
		state.Message = msg.Message
		state.Duration = msg.Duration
		m.nodes[msg.ID] = state

		if !alreadyDone {
			switch msg.Status {
			case StatusSuccess:
				m.completed++
			case StatusRestored:
				m.completed++
				m.restored++
			case StatusFailed:
				m.failed++
			}
		}
		return m, nil

	case NodePromotedMsg:
		m.ensureNode(msg.ID)
		return m, nil

	case RunDoneMsg:
		m.finished = true
		m.cancelled = msg.Cancelled
		return m, tea.Quit

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.cancelled = true
			m.finished = true
			return m, tea.Quit
		}
	}

	return m, nil
}
