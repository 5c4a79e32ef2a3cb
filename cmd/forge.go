package cmd

import (
	"fmt"
	"io"
	"time"

	"github.com/briandowns/spinner"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/PolarWolf314/forge/internal/configs"
	logger "github.com/PolarWolf314/forge/internal/logging"
	"github.com/PolarWolf314/forge/internal/ui"
	"github.com/PolarWolf314/forge/internal/utils"
)

var (
	verbose bool
	debug   bool
	Logger  logger.Logger
)

// Commands returns the top-level forge commands for the root command.
func Commands() []*cobra.Command {
	return []*cobra.Command{InitCmd, ShellCmd, ConfigCmd, LogCmd}
}

// addLoggingFlags gives c the shared --verbose and --debug flags and sets
// up Logger before it runs.
func addLoggingFlags(c *cobra.Command) {
	c.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	c.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug output")
	c.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		Logger = logger.Logger{
			Verbose: verbose,
			Debug:   debug,
			Out:     cmd.OutOrStdout(),
			Err:     cmd.ErrOrStderr(),
		}
		Logger.Debugf("Initializing %s command with verbose=%t, debug=%t", cmd.Name(), verbose, debug)
	}
}

// loadSettings resolves the on-disk locations for this device.
func loadSettings() (*configs.Settings, error) {
	settings, err := configs.ResolveSettings()
	if err != nil {
		return nil, Logger.ErrorfAndReturn("Failed to resolve forge directories: %v", err)
	}
	Logger.Debugf("Config path: %s, data dir: %s", settings.ConfigPath, settings.DataDir)
	return settings, nil
}

// startSpinner shows message with a spinner while a slow step runs. It only
// animates on an interactive terminal outside verbose or debug mode. The
// returned func stops it and prints FinalMSG to out.
func startSpinner(out io.Writer, message string) (*spinner.Spinner, func()) {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	if err := s.Color("cyan"); err != nil {
		Logger.Warnf("Failed to set spinner color: %v", err)
	}

	animate := !verbose && !debug && utils.IsTerminal()
	if animate {
		s.Start()
	} else {
		Logger.Infof("%s", message)
	}

	return s, func() {
		finalMsg := ""
		if s.FinalMSG != "" {
			finalMsg = ui.EnsureNewline(s.FinalMSG)
			s.FinalMSG = ""
		}
		if animate {
			s.Stop()
		}
		if finalMsg != "" {
			fmt.Fprint(out, finalMsg)
		}
	}
}

// ResetGlobalState resets all command globals for testing.
func ResetGlobalState() {
	verbose = false
	debug = false
	Logger = logger.Logger{}
	resetInitState()
	resetConfigShowState()
	resetLogState()
	for _, c := range Commands() {
		resetCobraFlagState(c)
	}
}

func resetCobraFlagState(c *cobra.Command) {
	c.Flags().VisitAll(func(flag *pflag.Flag) {
		flag.Changed = false
	})
	for _, sub := range c.Commands() {
		resetCobraFlagState(sub)
	}
}
