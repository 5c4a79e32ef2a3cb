package configs

import (
	"fmt"
	"os"
	"path/filepath"
)

const appDir = "forge"

// Settings holds the resolved on-disk locations for this device.
type Settings struct {
	ConfigDir  string
	ConfigPath string
	DataDir    string
}

// ResolveSettings computes the config and data locations from the user's
// environment. XDG_CONFIG_HOME and XDG_DATA_HOME are honored.
func ResolveSettings() (*Settings, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return nil, fmt.Errorf("error getting config directory: %w", err)
	}

	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("error getting home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return &Settings{
		ConfigDir:  filepath.Join(configDir, appDir),
		ConfigPath: filepath.Join(configDir, appDir, "config.toml"),
		DataDir:    filepath.Join(dataDir, appDir),
	}, nil
}

// VaultPath is the default SQLite vault location.
func (s *Settings) VaultPath() string {
	return filepath.Join(s.DataDir, "vault.db")
}

// AuditPath is the default audit log location.
func (s *Settings) AuditPath() string {
	return filepath.Join(s.DataDir, "audit.jsonl")
}
