// pattern: Imperative Shell
package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/api"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/config"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/instance"
)

// newAPIClient builds an api.Client from the resolved config and stored
// credentials.
func newAPIClient(configDir string) (*api.Client, error) {
	cfg, err := config.LoadFromDir(config.Dir(configDir))
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	key, err := config.LoadAPIKey(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	return api.NewClient(cfg.ServerURL, key), nil
}

// runFetchCommand performs one backend request and writes the raw JSON
// response to stdout.
func runFetchCommand(configDir string, fetch func(*api.Client) ([]byte, error)) error {
	client, err := newAPIClient(configDir)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	data, err := fetch(client)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	_, _ = os.Stdout.Write(data)
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Println()
	}
	return nil
}

// statusReport is the output of `crewhub status`.
type statusReport struct {
	ServerURL        string `json:"server_url"`
	BackendReachable bool   `json:"backend_reachable"`
	BackendError     string `json:"backend_error,omitempty"`
	DashboardPID     int    `json:"dashboard_pid,omitempty"`
	StreamState      string `json:"stream_state,omitempty"`
}

// runStatusCommand reports backend reachability plus the last known stream
// state written by a running dashboard.
func runStatusCommand(configDir string) error {
	cfg, err := config.LoadFromDir(config.Dir(configDir))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	report := statusReport{ServerURL: cfg.ServerURL}

	client, err := newAPIClient(configDir)
	if err == nil {
		if _, err := client.Health(); err != nil {
			report.BackendError = err.Error()
		} else {
			report.BackendReachable = true
		}
	} else {
		report.BackendError = err.Error()
	}

	st, err := instance.ReadState(config.Dir(configDir))
	if err == nil && st.PID != 0 {
		report.DashboardPID = st.PID
		report.StreamState = st.StreamState
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
