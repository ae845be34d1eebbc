// pattern: Imperative Shell
package instance

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const stateFileName = "crewhub-state.json"

// State is the last known condition of the running instance, written by the
// dashboard so `crewhub status` can report without attaching to it.
type State struct {
	PID         int       `json:"pid"`
	StreamState string    `json:"stream_state"`
	ServerURL   string    `json:"server_url"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// WriteState persists the instance state file.
func WriteState(dataDir string, st State) error {
	st.UpdatedAt = time.Now()
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	statePath := filepath.Join(dataDir, stateFileName)
	return os.WriteFile(statePath, data, 0600)
}

// ReadState loads the instance state file. A missing file yields a zero
// State and no error: the instance has simply never run.
func ReadState(dataDir string) (State, error) {
	statePath := filepath.Join(dataDir, stateFileName)
	data, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("failed to read state file: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return State{}, fmt.Errorf("failed to parse state file: %w", err)
	}
	return st, nil
}

// RemoveState deletes the state file. Used by cleanup and on shutdown.
func RemoveState(dataDir string) {
	_ = os.Remove(filepath.Join(dataDir, stateFileName))
}
