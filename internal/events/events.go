// package events contains message types shared between stream and tui packages.
package events

import "github.com/EKINSOL-DEV/crewhub-sub010/internal/stream"

// StreamStateMsg is sent on every connection state transition.
type StreamStateMsg struct{ State stream.State }

// StreamEventMsg carries one server-sent event into the TUI update loop.
type StreamEventMsg struct {
	Type string
	Data []byte
}

// SessionsLoadedMsg is sent when a sessions fetch completes.
type SessionsLoadedMsg struct{ Raw []byte }

// TasksLoadedMsg is sent when a task board fetch completes.
type TasksLoadedMsg struct{ Raw []byte }

// FetchErrMsg is sent when a backend fetch fails.
type FetchErrMsg struct{ Err error }

// KnownEventTypes is the backend's event vocabulary, used when a watch has
// no explicit type filter.
var KnownEventTypes = []string{
	"sessions-changed",
	"session-updated",
	"session-event",
	"rooms-refresh",
	"task-created",
	"task-updated",
	"task-deleted",
	"connection-status",
	"standup-created",
	"standup-entry",
	"thread.created",
	"thread.updated",
	"thread.message.created",
	"thread.participant.joined",
	"thread.participant.left",
	"meeting-error",
	"prop_update",
}
