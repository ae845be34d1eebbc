// pattern: Imperative Shell
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	tea "github.com/charmbracelet/bubbletea"
	flag "github.com/spf13/pflag"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/api"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/cli"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/config"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/instance"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/logging"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/stream"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/tui"
)

var version = "dev"

func main() {
	// Stop parsing flags after the first non-flag arg (the subcommand),
	// so that --help after a subcommand is handled by the subcommand.
	flag.CommandLine.SetInterspersed(false)

	configDir := flag.StringP("config-dir", "c", "", "config directory (default: ~/.config/crewhub)")

	// Override flag.Usage before Parse so --help uses the CLI app's help
	flag.Usage = func() {
		app := cli.BuildApp(version, *configDir)
		app.PrintHelp(os.Stderr)
		flag.PrintDefaults()
	}

	flag.Parse()

	app := cli.BuildApp(version, *configDir)

	if app.Execute(flag.Args()) {
		runDashboard(*configDir)
	}
}

// runDashboard launches the interactive dashboard.
func runDashboard(configDir string) {
	dataDir := config.Dir(configDir)

	cfg, err := config.LoadFromDir(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to load config: %v\n", err)
	}

	// Acquire single-instance lock
	fl, err := instance.Lock(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		instance.RemoveState(dataDir)
		_ = fl.Unlock()
	}()

	logManager, err := logging.NewManager(logging.Config{
		FilePath:       filepath.Join(dataDir, "crewhub.log"),
		MaxSizeMB:      10,
		MaxBackups:     3,
		MaxAgeDays:     7,
		ChannelBufSize: 1000,
		Level:          cfg.LogLevel,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logging: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logManager.Close() }()

	appLogger := logManager.For("app")
	appLogger.Info("application starting", "server_url", cfg.ServerURL)

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
	}, logManager.For("stream"))
	defer mgr.Close()

	// Persist the stream state so `crewhub status` can report it without
	// attaching to this process.
	mgr.OnStateChange(func(s stream.State) {
		_ = instance.WriteState(dataDir, instance.State{
			PID:         os.Getpid(),
			StreamState: s.String(),
			ServerURL:   cfg.ServerURL,
		})
	})

	// Reconnect with the fresh token when the credentials file changes.
	watcher, err := config.NewCredentialsWatcher(configDir, func(string) {
		appLogger.Info("credentials rotated, reconnecting stream")
		mgr.Reconnect()
	})
	if err != nil {
		appLogger.Warn("credentials watcher unavailable", "error", err)
	} else {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go func() { _ = watcher.Start(ctx) }()
	}

	apiKey, _ := config.LoadAPIKey(configDir)
	client := api.NewClient(cfg.ServerURL, apiKey)

	model := tui.NewModel(cfg, mgr, client, logManager.For("tui"))
	p := tea.NewProgram(model, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		appLogger.Error("application exited with error", "error", err)
		fmt.Fprintf(os.Stderr, "Error running program: %v\n", err)
		os.Exit(1)
	}

	appLogger.Info("application stopped")
}
