package cmd

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/spf13/cobra"

	"github.com/PolarWolf314/forge/internal/configs"
	"github.com/PolarWolf314/forge/internal/keys"
	"github.com/PolarWolf314/forge/internal/ui"
	"github.com/PolarWolf314/forge/internal/utils"
)

const minPassphraseLength = 8

var (
	initForce     bool
	initEngine    string
	initKDFMemory uint32
	initKDFTime   uint32
)

func init() {
	InitCmd.Flags().BoolVarP(&initForce, "force", "f", false, "overwrite an existing configuration")
	InitCmd.Flags().StringVar(&initEngine, "engine", configs.EngineSQLite, "vault storage engine (sqlite or memory)")
	InitCmd.Flags().Uint32Var(&initKDFMemory, "kdf-memory", keys.DefaultParams.Memory, "Argon2id memory in KiB")
	InitCmd.Flags().Uint32Var(&initKDFTime, "kdf-time", keys.DefaultParams.Time, "Argon2id iterations")
	addLoggingFlags(InitCmd)
}

func resetInitState() {
	initForce = false
	initEngine = configs.EngineSQLite
	initKDFMemory = keys.DefaultParams.Memory
	initKDFTime = keys.DefaultParams.Time
}

// InitCmd sets up forge on this device.
var InitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize forge on this device",
	Long: `Creates the forge configuration for this device.

You are asked for a passphrase, which unlocks the real vault. Only an
Argon2id hash of it is stored. A random decoy secret is also generated for
the decoy vault shown under duress.

Examples:
  # Initialize with the default SQLite vault
  forge init

  # Start over, replacing the existing configuration
  forge init --force`,
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	Logger.Infof("Starting init command")
	out := cmd.OutOrStdout()

	settings, err := loadSettings()
	if err != nil {
		return err
	}

	if _, err := os.Stat(settings.ConfigPath); err == nil && !initForce {
		fmt.Fprintf(out, "%s forge is already initialized at %s\n", ui.Warning.Sprint("⚠"), ui.Path.Sprint(settings.ConfigPath))
		fmt.Fprintf(out, "%s Run %s to start over\n", ui.Info.Sprint("→"), ui.Code.Sprint("forge init --force"))
		return nil
	} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Logger.ErrorfAndReturn("Failed to check for existing config: %v", err)
	}

	reader := bufio.NewReader(cmd.InOrStdin())
	passphrase, err := utils.ReadPassphraseFrom(reader, "Choose a passphrase: ")
	if err != nil {
		return Logger.ErrorfAndReturn("%v", err)
	}
	defer keys.Wipe(passphrase)

	if len(passphrase) < minPassphraseLength {
		return Logger.ErrorfAndReturn("Passphrase must be at least %d characters", minPassphraseLength)
	}

	confirm, err := utils.ReadPassphraseFrom(reader, "Confirm passphrase: ")
	if err != nil {
		return Logger.ErrorfAndReturn("%v", err)
	}
	defer keys.Wipe(confirm)

	if !bytes.Equal(passphrase, confirm) {
		return Logger.ErrorfAndReturn("Passphrases do not match")
	}

	config := configs.DefaultConfig(settings)
	config.Vault.Engine = initEngine
	config.Keys.Memory = initKDFMemory
	config.Keys.Time = initKDFTime

	spinner, cleanup := startSpinner(out, "Deriving keys...")
	defer cleanup()

	hash, err := keys.Hash(string(passphrase), config.Keys)
	if err != nil {
		spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to hash passphrase"
		return Logger.ErrorfAndReturn("Failed to hash passphrase: %v", err)
	}
	config.Credentials.PassphraseHash = hash

	decoy, err := keys.NewSecret()
	if err != nil {
		spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to generate decoy secret"
		return Logger.ErrorfAndReturn("Failed to generate decoy secret: %v", err)
	}
	config.SetDecoySecret(decoy)
	keys.Wipe(decoy)

	if err := configs.Save(settings.ConfigPath, config); err != nil {
		spinner.FinalMSG = ui.Error.Sprint("✗") + " Failed to save configuration"
		return Logger.ErrorfAndReturn("Failed to save configuration: %v", err)
	}
	Logger.Infof("Configuration written to %s", settings.ConfigPath)

	spinner.FinalMSG = ui.Success.Sprint("✓") + " forge initialized" +
		utils.FormatPaths([]string{settings.ConfigPath, config.Vault.StorageLocation}) +
		ui.Info.Sprint("→") + " Run " + ui.Code.Sprint("forge shell") + " to start a session"
	return nil
}
