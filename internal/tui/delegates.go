package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
)

// sessionItem is one agent session row.
type sessionItem struct {
	name   string
	status string
	room   string
	agent  string
}

func (i sessionItem) FilterValue() string { return i.name }

// sessionDelegate renders session rows with a status marker.
type sessionDelegate struct {
	styles *Styles
}

func newSessionDelegate(styles *Styles) sessionDelegate {
	return sessionDelegate{styles: styles}
}

func (d sessionDelegate) Height() int                             { return 1 }
func (d sessionDelegate) Spacing() int                            { return 0 }
func (d sessionDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd { return nil }

func (d sessionDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	s, ok := item.(sessionItem)
	if !ok {
		return
	}

	marker := "○"
	markerStyle := d.styles.DimStyle()
	switch s.status {
	case "running", "active":
		marker = "●"
		markerStyle = d.styles.AccentStyle()
	case "error", "failed":
		marker = "✗"
		markerStyle = d.styles.ErrorStyle()
	}

	name := s.name
	if index == m.Index() {
		name = d.styles.TitleStyle().Render(name)
	} else {
		name = d.styles.InfoStyle().Render(name)
	}

	detail := s.status
	if s.room != "" {
		detail += " · " + s.room
	}
	if s.agent != "" {
		detail += " · " + s.agent
	}

	fmt.Fprintf(w, "%s %s  %s",
		markerStyle.Render(marker),
		name,
		d.styles.DimStyle().Render(detail),
	)
}
