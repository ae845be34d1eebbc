// pattern: Imperative Shell
package cli

import (
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/tidwall/gjson"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/config"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/events"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/logging"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/stream"
)

// runWatchCommand subscribes to backend events and prints one line per
// event until interrupted. With no arguments it watches every known type.
func runWatchCommand(configDir string, args []string) error {
	cfg, err := config.LoadFromDir(config.Dir(configDir))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	types := args
	if len(types) == 0 {
		types = events.KnownEventTypes
	}

	mgr := stream.NewManager(stream.ManagerConfig{
		URL: cfg.ServerURL + "/api/events",
		TokenFunc: func() string {
			key, _ := config.LoadAPIKey(configDir)
			return key
		},
		BackoffBase: cfg.BackoffBase(),
		BackoffMax:  cfg.BackoffMax(),
		Dedup:       cfg.Stream.Dedup,
		DedupSize:   cfg.Stream.DedupCacheSize,
	}, logging.NopLogger())
	defer mgr.Close()

	unsubState := mgr.OnStateChange(func(s stream.State) {
		fmt.Fprintf(os.Stderr, "# stream %s\n", s)
	})
	defer unsubState()

	for _, eventType := range types {
		eventType := eventType
		defer mgr.Subscribe(eventType, func(data []byte) {
			printEventLine(os.Stdout, eventType, data)
		})()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	return nil
}

// printEventLine writes "<time> <type> <summary>".
func printEventLine(w io.Writer, eventType string, data []byte) {
	fmt.Fprintf(w, "%s %-18s %s\n",
		time.Now().Format("15:04:05"),
		eventType,
		summarizeEvent(data),
	)
}

// summaryFields are probed in order; the ones present become "k=v" pairs.
var summaryFields = []string{
	"session_id", "room_id", "task_id", "status", "state", "title", "message",
}

// summarizeEvent extracts the load-bearing fields from an event payload.
// Payloads without any known field are shown raw (compacted and truncated).
func summarizeEvent(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	var pairs []string
	for _, field := range summaryFields {
		if v := gjson.GetBytes(data, field); v.Exists() {
			pairs = append(pairs, field+"="+v.String())
		}
	}
	if len(pairs) > 0 {
		return StripANSI(strings.Join(pairs, " "))
	}

	raw := StripANSI(string(data))
	raw = strings.Join(strings.Fields(raw), " ")
	if len(raw) > 120 {
		raw = raw[:120] + "..."
	}
	return raw
}
