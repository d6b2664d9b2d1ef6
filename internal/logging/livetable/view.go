package livetable

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/mudyla/mdl/internal/logging/livetable/components"
)

// View renders the current state of the model.
func (m Model) View() string {
	var sections []string

	title := titleStyle.Render(fmt.Sprintf("mdl • run %s", m.runID))
	sections = append(sections, title)

	progress := components.NewProgress(m.total).View(m.completed)
	sections = append(sections, sectionStyle.Render("Progress"), progress)

	listComp := components.NewNodeList(m.order, m.nodes)
	entries := listComp.Entries()
	if len(entries) > 0 {
		sections = append(sections, sectionStyle.Render("Nodes"))
		sections = append(sections, renderNodeEntries(entries))
	}

	summary := components.NewSummary(components.SummaryData{
		Total:     m.total,
		Completed: m.completed,
		Restored:  m.restored,
		Failed:    m.failed,
		Finished:  m.finished,
		Cancelled: m.cancelled,
	}).View()
	if strings.TrimSpace(summary) != "" {
		sections = append(sections, sectionStyle.Render("Summary"), summaryStyle.Render(summary))
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

func renderNodeEntries(entries []components.NodeEntry) string {
	var lines []string
	for _, entry := range entries {
		state := entry.State
		icon := StatusIcon(state.Status)
		line := fmt.Sprintf(" %s %s", icon, entry.ID)
		if strings.TrimSpace(state.Message) != "" {
			line = fmt.Sprintf("%s — %s", line, state.Message)
		}
		if state.Duration > 0 {
			line = fmt.Sprintf("%s (%s)", line, state.Duration.Truncate(10*time.Millisecond))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// StatusIcon returns the glyph representing a node status.
func StatusIcon(status string) string {
	switch status {
	case StatusSuccess:
		return successStyle.Render("✓")
	case StatusRunning:
		return runningStyle.Render("⏳")
	case StatusFailed:
		return failureStyle.Render("✗")
	case StatusRestored:
		return restoreStyle.Render("↩")
	default:
		return pendingStyle.Render("…")
	}
}
