package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/PolarWolf314/forge/internal/configs"
	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/ui"
)

var configShowJSON bool

func init() {
	configShowCmd.Flags().BoolVar(&configShowJSON, "json", false, "output in JSON format")
	ConfigCmd.AddCommand(configShowCmd)
	addLoggingFlags(ConfigCmd)
}

func resetConfigShowState() {
	configShowJSON = false
}

// ConfigCmd is the top-level config command.
var ConfigCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect forge configuration",
	Long: `Provides commands for inspecting the device configuration.

Examples:
  # Show the configuration
  forge config show

  # Output in JSON format
  forge config show --json`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Display current configuration",
	Long: `Displays the configuration from $XDG_CONFIG_HOME/forge/config.toml.

The passphrase hash and decoy secret are never printed, only whether they
are set.`,
	RunE: runConfigShow,
}

// configView is the printable form of a config, without credentials.
type configView struct {
	ConfigPath              string `json:"config_path"`
	StorageLocation         string `json:"storage_location"`
	Engine                  string `json:"engine"`
	IdleTimeout             string `json:"idle_timeout"`
	PollInterval            string `json:"poll_interval"`
	RequireLockBeforeUnlock bool   `json:"require_lock_before_unlock"`
	KDFTime                 uint32 `json:"kdf_time"`
	KDFMemory               uint32 `json:"kdf_memory_kib"`
	KDFThreads              uint8  `json:"kdf_threads"`
	AuditPath               string `json:"audit_path"`
	PassphraseSet           bool   `json:"passphrase_set"`
	DecoySecretSet          bool   `json:"decoy_secret_set"`
}

func newConfigView(path string, c *configs.Config) configView {
	return configView{
		ConfigPath:              path,
		StorageLocation:         c.Vault.StorageLocation,
		Engine:                  c.Vault.Engine,
		IdleTimeout:             c.Session.IdleTimeout.String(),
		PollInterval:            c.Session.PollInterval.String(),
		RequireLockBeforeUnlock: c.Session.RequireLockBeforeUnlock,
		KDFTime:                 c.Keys.Time,
		KDFMemory:               c.Keys.Memory,
		KDFThreads:              c.Keys.Threads,
		AuditPath:               c.Audit.Path,
		PassphraseSet:           c.Credentials.PassphraseHash != "",
		DecoySecretSet:          c.Credentials.DecoySecret != "",
	}
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting config show command")
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	config, err := configs.Load(settings.ConfigPath)
	if kerrors.Is(err, kerrors.ErrNotInitialized) {
		Logger.Infof("No config at %s", settings.ConfigPath)
		if configShowJSON {
			fmt.Fprintln(out, "{}")
			return nil
		}
		fmt.Fprintln(out, ui.Warning.Sprint("⚠")+" No configuration found.")
		fmt.Fprintln(out)
		fmt.Fprintln(out, ui.Info.Sprint("→")+" Run "+ui.Code.Sprint("forge init")+" to set up this device")
		return nil
	}
	if err != nil {
		return Logger.ErrorfAndReturn("Failed to load config: %v", err)
	}

	view := newConfigView(settings.ConfigPath, config)
	if configShowJSON {
		output, err := json.MarshalIndent(view, "", "  ")
		if err != nil {
			return Logger.ErrorfAndReturn("Failed to marshal config to JSON: %v", err)
		}
		fmt.Fprintln(out, string(output))
		return nil
	}

	outputConfigText(out, view)
	return nil
}

func outputConfigText(out io.Writer, v configView) {
	set := func(ok bool) string {
		if ok {
			return color.GreenString("set")
		}
		return color.RedString("not set")
	}

	fmt.Fprintf(out, "%s (%s):\n\n", color.CyanString("Configuration"), ui.Path.Sprint(v.ConfigPath))
	fmt.Fprintf(out, "  %-18s %s\n", "Vault:", ui.Path.Sprint(v.StorageLocation))
	fmt.Fprintf(out, "  %-18s %s\n", "Engine:", v.Engine)
	fmt.Fprintf(out, "  %-18s %s\n", "Idle timeout:", v.IdleTimeout)
	fmt.Fprintf(out, "  %-18s %s\n", "Poll interval:", v.PollInterval)
	fmt.Fprintf(out, "  %-18s %t\n", "Lock before unlock:", v.RequireLockBeforeUnlock)
	fmt.Fprintf(out, "  %-18s t=%d m=%dKiB p=%d\n", "Argon2id:", v.KDFTime, v.KDFMemory, v.KDFThreads)
	if v.AuditPath != "" {
		fmt.Fprintf(out, "  %-18s %s\n", "Audit log:", ui.Path.Sprint(v.AuditPath))
	} else {
		fmt.Fprintf(out, "  %-18s %s\n", "Audit log:", ui.Muted.Sprint("disabled"))
	}
	fmt.Fprintf(out, "  %-18s %s\n", "Passphrase:", set(v.PassphraseSet))
	fmt.Fprintf(out, "  %-18s %s\n", "Decoy secret:", set(v.DecoySecretSet))
}
