package tui

import (
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/tidwall/gjson"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/api"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/config"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/events"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/logging"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/stream"
)

// maxFeedLines bounds the in-memory event feed.
const maxFeedLines = 200

// Model represents the dashboard state.
type Model struct {
	width  int
	height int
	styles *Styles
	logger *logging.ScopedLogger

	cfg    config.Config
	client *api.Client
	mgr    *stream.Manager

	sessionList list.Model

	eventViewport viewport.Model
	eventReady    bool
	eventLines    []string
	autoScroll    bool

	streamState stream.State
	taskCount   int
	msgCh       chan tea.Msg

	err error
}

// NewModel creates a dashboard model and registers its event subscriptions.
// Handler callbacks run on the stream dispatcher goroutine; they forward
// into msgCh, which the bubbletea loop drains via waitForStreamMsg.
func NewModel(cfg config.Config, mgr *stream.Manager, client *api.Client, logger *logging.ScopedLogger) Model {
	if logger == nil {
		logger = logging.NopLogger()
	}

	styles := NewStyles(cfg.Theme)

	sessionList := list.New([]list.Item{}, newSessionDelegate(styles), 0, 0)
	sessionList.SetShowTitle(false)
	sessionList.SetShowStatusBar(false)
	sessionList.SetFilteringEnabled(false)
	sessionList.SetShowHelp(false)

	m := Model{
		styles:      styles,
		logger:      logger,
		cfg:         cfg,
		client:      client,
		mgr:         mgr,
		sessionList: sessionList,
		autoScroll:  true,
		streamState: mgr.State(),
		msgCh:       make(chan tea.Msg, 64),
	}

	mgr.OnStateChange(func(s stream.State) {
		m.send(events.StreamStateMsg{State: s})
	})
	for _, eventType := range events.KnownEventTypes {
		eventType := eventType
		mgr.Subscribe(eventType, func(data []byte) {
			m.send(events.StreamEventMsg{Type: eventType, Data: data})
		})
	}

	return m
}

// send forwards a message into the bubbletea loop without ever blocking the
// dispatcher. A full channel drops the message; the next fetch catches up.
func (m Model) send(msg tea.Msg) {
	select {
	case m.msgCh <- msg:
	default:
	}
}

// Init returns the initial commands to run.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchSessions(),
		m.fetchTasks(),
		m.waitForStreamMsg(),
	)
}

// waitForStreamMsg returns a command that delivers the next forwarded
// stream message.
func (m Model) waitForStreamMsg() tea.Cmd {
	return func() tea.Msg {
		return <-m.msgCh
	}
}

// fetchSessions returns a command to load the session list.
func (m Model) fetchSessions() tea.Cmd {
	return func() tea.Msg {
		raw, err := m.client.Sessions()
		if err != nil {
			return events.FetchErrMsg{Err: err}
		}
		return events.SessionsLoadedMsg{Raw: raw}
	}
}

// fetchTasks returns a command to load the task board.
func (m Model) fetchTasks() tea.Cmd {
	return func() tea.Msg {
		raw, err := m.client.Tasks()
		if err != nil {
			return events.FetchErrMsg{Err: err}
		}
		return events.TasksLoadedMsg{Raw: raw}
	}
}

// sessionItemsFromJSON parses the sessions response into list items. The
// payload is either a bare array or wrapped in {"sessions": [...]}.
func sessionItemsFromJSON(raw []byte) []list.Item {
	parsed := gjson.GetBytes(raw, "sessions")
	if !parsed.Exists() {
		parsed = gjson.ParseBytes(raw)
	}
	if !parsed.IsArray() {
		return nil
	}

	var items []list.Item
	parsed.ForEach(func(_, s gjson.Result) bool {
		name := s.Get("name").String()
		if name == "" {
			name = s.Get("id").String()
		}
		items = append(items, sessionItem{
			name:   name,
			status: s.Get("status").String(),
			room:   s.Get("room").String(),
			agent:  s.Get("agent").String(),
		})
		return true
	})
	return items
}
