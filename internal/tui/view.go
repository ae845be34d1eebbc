package tui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
)

// View renders the dashboard.
func (m Model) View() string {
	if m.width == 0 {
		return "loading..."
	}

	header := lipgloss.JoinHorizontal(lipgloss.Center,
		m.styles.TitleStyle().Render("CrewHub"),
		"  ",
		m.styles.StateStyle(m.streamState).Render("["+m.streamState.String()+"]"),
		"  ",
		m.styles.SubtitleStyle().Render(m.cfg.ServerURL),
	)

	counts := m.styles.DimStyle().Render(
		fmt.Sprintf("%d sessions · %d tasks", len(m.sessionList.Items()), m.taskCount))

	sections := []string{
		header,
		counts,
	}

	if m.err != nil {
		sections = append(sections, m.styles.ErrorStyle().Render("error: "+m.err.Error()))
	}

	sections = append(sections,
		m.styles.AccentStyle().Render("Sessions"),
		m.sessionList.View(),
		m.styles.AccentStyle().Render("Events"),
	)

	if m.eventReady {
		sections = append(sections, m.styles.BoxStyle().Render(m.eventViewport.View()))
	}

	sections = append(sections,
		m.styles.HelpStyle().Render("r reconnect · j/k scroll events · G follow · q quit"))

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}
