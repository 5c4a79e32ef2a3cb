package cmd

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
)

const testPassphrase = "correct horse battery staple"

// setupTestEnvironment points forge at temporary config and data
// directories and disables color so output can be matched.
func setupTestEnvironment(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("NO_COLOR", "1")

	ResetGlobalState()
	t.Cleanup(ResetGlobalState)
	return root
}

// runCLI executes forge with args, feeding input on stdin, and returns
// everything written to stdout and stderr.
func runCLI(t *testing.T, input string, args ...string) (string, error) {
	t.Helper()

	rootCmd := &cobra.Command{Use: "forge", SilenceUsage: true, SilenceErrors: true}
	rootCmd.AddCommand(Commands()...)

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetIn(strings.NewReader(input))
	rootCmd.SetArgs(args)

	err := rootCmd.Execute()
	ResetGlobalState()
	return out.String(), err
}

// initializeForge runs init with a fast key derivation setting.
func initializeForge(t *testing.T, extra ...string) {
	t.Helper()
	input := testPassphrase + "\n" + testPassphrase + "\n"
	args := append([]string{"init", "--kdf-memory", "1024"}, extra...)
	if _, err := runCLI(t, input, args...); err != nil {
		t.Fatalf("forge init failed: %v", err)
	}
}
