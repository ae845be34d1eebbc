// pattern: Imperative Shell
package cli

import (
	"fmt"
	"os"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/api"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/config"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/instance"
)

// BuildApp creates and configures the CLI application with all commands and groups.
func BuildApp(version string, configDir string) *App {
	app := NewApp(version)

	app.AddCommand(&Command{
		Name:    "watch",
		Summary: "Stream backend events to stdout as they happen",
		Usage:   "Usage: crewhub watch [event-type ...]",
		Run: func(args []string) error {
			return runWatchCommand(configDir, args)
		},
	})

	app.AddCommand(&Command{
		Name:    "sessions",
		Summary: "Output JSON data about active agent sessions",
		Usage:   "Usage: crewhub sessions",
		Run: func(args []string) error {
			return runFetchCommand(configDir, func(c *api.Client) ([]byte, error) {
				return c.Sessions()
			})
		},
	})

	app.AddCommand(&Command{
		Name:    "rooms",
		Summary: "Output JSON data about rooms",
		Usage:   "Usage: crewhub rooms",
		Run: func(args []string) error {
			return runFetchCommand(configDir, func(c *api.Client) ([]byte, error) {
				return c.Rooms()
			})
		},
	})

	app.AddCommand(&Command{
		Name:    "tasks",
		Summary: "Output JSON data about the task board",
		Usage:   "Usage: crewhub tasks",
		Run: func(args []string) error {
			return runFetchCommand(configDir, func(c *api.Client) ([]byte, error) {
				return c.Tasks()
			})
		},
	})

	app.AddCommand(&Command{
		Name:    "notify",
		Summary: "Send a notification through the backend",
		Usage:   "Usage: crewhub notify <title> <message>",
		Run: func(args []string) error {
			return runNotifyCommand(configDir, args)
		},
	})

	app.AddCommand(&Command{
		Name:    "status",
		Summary: "Report backend health and dashboard stream state",
		Usage:   "Usage: crewhub status",
		Run: func(args []string) error {
			return runStatusCommand(configDir)
		},
	})

	app.AddCommand(&Command{
		Name:    "cleanup",
		Summary: "Remove stale lock/state files from a crashed instance",
		Usage:   "Usage: crewhub cleanup",
		Run: func(args []string) error {
			return runCleanupCommand(configDir)
		},
	})

	app.AddCommand(&Command{
		Name:    "version",
		Summary: "Print version and exit",
		Usage:   "Usage: crewhub version",
		Run: func(args []string) error {
			fmt.Println(version)
			return nil
		},
	})

	gatewayGroup := app.AddGroup("gateway", "Inspect OpenClaw gateway pairing")
	RegisterGatewayCommands(gatewayGroup, configDir)

	return app
}

// runNotifyCommand posts a notification via the backend.
func runNotifyCommand(configDir string, args []string) error {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "Usage: crewhub notify <title> <message>")
		os.Exit(1)
	}
	return runFetchCommand(configDir, func(c *api.Client) ([]byte, error) {
		return c.Notify(args[0], args[1])
	})
}

// runCleanupCommand removes stale lock and state files from a crashed instance.
func runCleanupCommand(configDir string) error {
	dataDir := config.Dir(configDir)

	// Try to acquire the lock to verify no instance is actually running
	fl, err := instance.Lock(dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: a crewhub instance appears to be running. Stop it first.\n")
		os.Exit(1)
	}
	// We got the lock — no instance is running. Clean up and release.
	instance.RemoveState(dataDir)
	_ = fl.Unlock()
	fmt.Println("Cleaned up stale lock and state files.")
	return nil
}
