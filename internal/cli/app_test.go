// pattern: Functional Core
package cli

import (
	"bytes"
	"os"
	"testing"
)

func TestApp_PrintHelp_ShowsCommandsAndGroups(t *testing.T) {
	app := BuildApp("1.0.0", "")

	buf := &bytes.Buffer{}
	app.PrintHelp(buf)

	output := buf.String()
	if output == "" {
		t.Fatal("PrintHelp produced no output")
	}

	for _, name := range []string{"watch", "sessions", "tasks", "status", "gateway"} {
		if !bytes.Contains([]byte(output), []byte(name)) {
			t.Errorf("Help missing %q", name)
		}
	}
}

func TestApp_Execute_NoArgs_ReturnsTrueForDashboard(t *testing.T) {
	app := NewApp("1.0.0")
	result := app.Execute(nil)
	if !result {
		t.Errorf("Execute(nil) returned %v, want true", result)
	}
}

func TestApp_Execute_UngroupedCommand_Dispatches(t *testing.T) {
	app := NewApp("1.0.0")
	called := false
	cmd := &Command{
		Name:    "version",
		Summary: "Print version",
		Usage:   "Usage: crewhub version",
		Run: func(args []string) error {
			called = true
			return nil
		},
	}
	app.AddCommand(cmd)

	result := app.Execute([]string{"version"})
	if result {
		t.Errorf("Execute with command returned %v, want false", result)
	}
	if !called {
		t.Errorf("Command Run was not called")
	}
}

func TestApp_Execute_GroupCommand_Dispatches(t *testing.T) {
	app := NewApp("1.0.0")
	group := app.AddGroup("gateway", "Inspect OpenClaw gateway pairing")

	called := false
	passedArgs := []string(nil)
	cmd := &Command{
		Name:    "probe",
		Summary: "Perform one gateway handshake",
		Usage:   "Usage: crewhub gateway probe",
		Run: func(args []string) error {
			called = true
			passedArgs = args
			return nil
		},
	}
	group.AddCommand(cmd)

	result := app.Execute([]string{"gateway", "probe", "extra"})
	if result {
		t.Errorf("Execute with group command returned %v, want false", result)
	}
	if !called {
		t.Errorf("Command Run was not called")
	}
	if len(passedArgs) != 1 || passedArgs[0] != "extra" {
		t.Errorf("Command received args %v, want [extra]", passedArgs)
	}
}

func TestApp_Execute_GroupHelp_PrintsGroupCommands(t *testing.T) {
	app := NewApp("1.0.0")
	group := app.AddGroup("gateway", "Inspect OpenClaw gateway pairing")

	cmd := &Command{
		Name:    "probe",
		Summary: "Perform one gateway handshake",
		Usage:   "Usage: crewhub gateway probe",
		Run: func(args []string) error {
			return nil
		},
	}
	group.AddCommand(cmd)

	// Capture stderr
	oldStderr := os.Stderr
	defer func() { os.Stderr = oldStderr }()

	r, w, _ := os.Pipe()
	os.Stderr = w

	result := app.Execute([]string{"gateway", "help"})

	w.Close()
	buf := &bytes.Buffer{}
	buf.ReadFrom(r)
	os.Stderr = oldStderr

	if result {
		t.Errorf("Execute with group help returned %v, want false", result)
	}
	output := buf.String()
	if !bytes.Contains([]byte(output), []byte("probe")) {
		t.Errorf("Group help output missing 'probe' command")
	}
}

func TestApp_Execute_CommandHelp_PrintsUsage(t *testing.T) {
	app := NewApp("1.0.0")
	group := app.AddGroup("gateway", "Inspect OpenClaw gateway pairing")

	runCalled := false
	cmd := &Command{
		Name:    "probe",
		Summary: "Perform one gateway handshake",
		Usage:   "Usage: crewhub gateway probe",
		Run: func(args []string) error {
			runCalled = true
			return nil
		},
	}
	group.AddCommand(cmd)

	// Capture stderr
	oldStderr := os.Stderr
	defer func() { os.Stderr = oldStderr }()

	r, w, _ := os.Pipe()
	os.Stderr = w

	result := app.Execute([]string{"gateway", "probe", "--help"})

	w.Close()
	buf := &bytes.Buffer{}
	buf.ReadFrom(r)
	os.Stderr = oldStderr

	if result {
		t.Errorf("Execute with --help returned %v, want false", result)
	}
	if runCalled {
		t.Errorf("Command Run was called, should have printed usage instead")
	}
	output := buf.String()
	if !bytes.Contains([]byte(output), []byte("Usage: crewhub gateway probe")) {
		t.Errorf("Usage output missing expected usage string, got: %s", output)
	}
}

func TestBuildApp_RegistersAllCommands(t *testing.T) {
	app := BuildApp("1.0.0", "")

	for _, name := range []string{"watch", "sessions", "rooms", "tasks", "notify", "status", "cleanup", "version"} {
		if _, ok := app.commands[name]; !ok {
			t.Errorf("missing command %q", name)
		}
	}
	group, ok := app.groups["gateway"]
	if !ok {
		t.Fatal("missing gateway group")
	}
	for _, name := range []string{"probe", "identity"} {
		if _, ok := group.Commands[name]; !ok {
			t.Errorf("missing gateway subcommand %q", name)
		}
	}
}
