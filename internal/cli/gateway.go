// pattern: Imperative Shell
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/EKINSOL-DEV/crewhub-sub010/internal/config"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/gateway"
	"github.com/EKINSOL-DEV/crewhub-sub010/internal/logging"
)

const defaultGatewayTokenEnv = "OPENCLAW_GATEWAY_TOKEN"

// RegisterGatewayCommands adds the gateway subcommands to the group.
func RegisterGatewayCommands(g *Group, configDir string) {
	g.AddCommand(&Command{
		Name:    "probe",
		Summary: "Perform one gateway handshake and report the result",
		Usage:   "Usage: crewhub gateway probe",
		Run: func(args []string) error {
			return runGatewayProbe(configDir)
		},
	})

	g.AddCommand(&Command{
		Name:    "identity",
		Summary: "Show the device identity used for gateway pairing",
		Usage:   "Usage: crewhub gateway identity",
		Run: func(args []string) error {
			return runGatewayIdentity(configDir)
		},
	})
}

// runGatewayProbe performs the device handshake once and prints the result.
func runGatewayProbe(configDir string) error {
	cfg, err := config.LoadFromDir(config.Dir(configDir))
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	dir := config.Dir(configDir)
	ident, err := gateway.LoadOrCreateIdentity(dir, "")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	tokenEnv := cfg.Gateway.TokenEnv
	if tokenEnv == "" {
		tokenEnv = defaultGatewayTokenEnv
	}

	status, err := gateway.Probe(context.Background(), gateway.ProbeConfig{
		URL:          cfg.Gateway.URL,
		GatewayToken: os.Getenv(tokenEnv),
		Identity:     ident,
		IdentityDir:  dir,
	}, logging.NopLogger())
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}

// runGatewayIdentity prints the persisted device identity (never the key).
func runGatewayIdentity(configDir string) error {
	dir := config.Dir(configDir)
	ident, err := gateway.LoadOrCreateIdentity(dir, "")
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	out, err := json.MarshalIndent(map[string]any{
		"device_id":    ident.DeviceID,
		"device_name":  ident.DeviceName,
		"public_key":   ident.PublicKeyB64URL(),
		"device_token": ident.DeviceToken != "",
	}, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
