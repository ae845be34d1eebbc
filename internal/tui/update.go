// pattern: Imperative Shell

package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tidwall/gjson"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/events"
)

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		listHeight, feedHeight := m.splitHeights()
		m.sessionList.SetSize(m.width-4, listHeight)

		if !m.eventReady {
			m.eventViewport = viewport.New(m.width-4, feedHeight)
			m.eventReady = true
		} else {
			m.eventViewport.Width = m.width - 4
			m.eventViewport.Height = feedHeight
		}
		m.refreshFeedContent()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "r":
			// Force a fresh connection and reload everything
			m.logger.Debug("manual reconnect requested")
			m.mgr.Reconnect()
			return m, tea.Batch(m.fetchSessions(), m.fetchTasks())

		case "j", "down":
			if m.eventReady {
				m.eventViewport.ScrollDown(1)
				m.autoScroll = m.eventViewport.AtBottom()
			}
			return m, nil

		case "k", "up":
			if m.eventReady {
				m.eventViewport.ScrollUp(1)
				m.autoScroll = false
			}
			return m, nil

		case "G":
			if m.eventReady {
				m.eventViewport.GotoBottom()
				m.autoScroll = true
			}
			return m, nil
		}

		// Forward to list for navigation
		var cmd tea.Cmd
		m.sessionList, cmd = m.sessionList.Update(msg)
		return m, cmd

	case events.StreamStateMsg:
		m.streamState = msg.State
		m.appendFeedLine(fmt.Sprintf("%s stream %s",
			time.Now().Format("15:04:05"), msg.State))
		return m, m.waitForStreamMsg()

	case events.StreamEventMsg:
		m.appendFeedLine(formatFeedLine(msg.Type, msg.Data))

		// Refresh-style events tell us the backing data moved.
		cmds := []tea.Cmd{m.waitForStreamMsg()}
		switch msg.Type {
		case "sessions-changed", "session-updated":
			cmds = append(cmds, m.fetchSessions())
		case "task-created", "task-updated", "task-deleted":
			cmds = append(cmds, m.fetchTasks())
		}
		return m, tea.Batch(cmds...)

	case events.SessionsLoadedMsg:
		m.err = nil
		m.sessionList.SetItems(sessionItemsFromJSON(msg.Raw))
		return m, nil

	case events.TasksLoadedMsg:
		m.err = nil
		m.taskCount = taskCountFromJSON(msg.Raw)
		return m, nil

	case events.FetchErrMsg:
		m.logger.Error("backend fetch failed", "error", msg.Err)
		m.err = msg.Err
		return m, nil
	}

	return m, nil
}

// splitHeights divides the content area between the session list and the
// event feed.
func (m Model) splitHeights() (listHeight, feedHeight int) {
	// Header, feed title, help line and borders take roughly 8 rows.
	content := m.height - 8
	if content < 4 {
		content = 4
	}
	listHeight = content / 2
	feedHeight = content - listHeight
	if listHeight < 2 {
		listHeight = 2
	}
	if feedHeight < 2 {
		feedHeight = 2
	}
	return listHeight, feedHeight
}

// appendFeedLine adds a line to the event feed, trimming the backlog.
func (m *Model) appendFeedLine(line string) {
	m.eventLines = append(m.eventLines, line)
	if len(m.eventLines) > maxFeedLines {
		m.eventLines = m.eventLines[len(m.eventLines)-maxFeedLines:]
	}
	m.refreshFeedContent()
}

// refreshFeedContent rewrites the viewport and keeps it pinned to the
// bottom while auto-scroll is on.
func (m *Model) refreshFeedContent() {
	if !m.eventReady {
		return
	}
	m.eventViewport.SetContent(strings.Join(m.eventLines, "\n"))
	if m.autoScroll {
		m.eventViewport.GotoBottom()
	}
}

// formatFeedLine renders one event for the feed.
func formatFeedLine(eventType string, data []byte) string {
	summary := ""
	for _, field := range []string{"session_id", "task_id", "status", "title", "message"} {
		if v := gjson.GetBytes(data, field); v.Exists() {
			summary += " " + field + "=" + v.String()
		}
	}
	return fmt.Sprintf("%s %-18s%s", time.Now().Format("15:04:05"), eventType, summary)
}

// taskCountFromJSON counts tasks in either a bare array or a wrapped
// {"tasks": [...]} response.
func taskCountFromJSON(raw []byte) int {
	parsed := gjson.GetBytes(raw, "tasks")
	if !parsed.Exists() {
		parsed = gjson.ParseBytes(raw)
	}
	if !parsed.IsArray() {
		return 0
	}
	return len(parsed.Array())
}
