package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/forge/internal/audit"
	"github.com/PolarWolf314/forge/internal/configs"
	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/ui"
)

var (
	logLimit   int
	logReverse bool
	logJSON    bool
)

func init() {
	LogCmd.Flags().IntVarP(&logLimit, "number", "n", 0, "limit number of entries shown")
	LogCmd.Flags().BoolVar(&logReverse, "reverse", false, "show most recent entries first")
	LogCmd.Flags().BoolVar(&logJSON, "json", false, "output as JSON array")
	addLoggingFlags(LogCmd)
}

func resetLogState() {
	logLimit = 0
	logReverse = false
	logJSON = false
}

// LogCmd prints the lock and unlock history of this device.
var LogCmd = &cobra.Command{
	Use:   "log",
	Short: "View the session audit log",
	Long: `Displays when sessions on this device were unlocked and locked.

Examples:
  forge log              # View full log
  forge log -n 10        # Last 10 entries
  forge log --reverse    # Most recent first
  forge log --json       # JSON output`,
	RunE: runLog,
}

func runLog(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting log command")
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}
	config, err := configs.Load(settings.ConfigPath)
	if kerrors.Is(err, kerrors.ErrNotInitialized) {
		fmt.Fprintln(out, ui.Error.Sprint("✗")+" forge has not been initialized")
		fmt.Fprintln(out, ui.Info.Sprint("→")+" Run "+ui.Code.Sprint("forge init")+" first")
		return nil
	}
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load config: %v", err)
	}

	entries, err := audit.New(config.Audit.Path, "").ReadEntries()
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to read audit log: %v", err)
	}
	Logger.Debugf("Parsed %d entries from audit log", len(entries))

	entries = selectEntries(entries, logLimit, logReverse)
	if len(entries) == 0 {
		fmt.Fprintln(out, "No audit log entries found.")
		return nil
	}

	if logJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal entries to JSON: %w", err)
		}
		fmt.Fprintln(out, string(data))
		return nil
	}

	outputLogDefault(out, entries)
	return nil
}

// selectEntries keeps the newest limit entries, optionally newest first.
func selectEntries(entries []audit.Entry, limit int, reverse bool) []audit.Entry {
	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	if reverse {
		entries = slices.Clone(entries)
		slices.Reverse(entries)
	}
	return entries
}

func outputLogDefault(out io.Writer, entries []audit.Entry) {
	for _, e := range entries {
		fmt.Fprintf(out, "%-19s  %-8s  %s\n", formatDateTime(e.Timestamp), e.Operation, e.Device)
	}
}

// formatDateTime renders an audit timestamp in local time, or returns it
// unchanged when it does not parse.
func formatDateTime(ts string) string {
	t, err := time.Parse(audit.TimestampLayout, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
