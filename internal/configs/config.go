package configs

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/keys"
)

// Storage engines accepted in [vault] engine.
const (
	EngineSQLite = "sqlite"
	EngineMemory = "memory"
)

const (
	DefaultIdleTimeout  = 5 * time.Minute
	DefaultPollInterval = time.Second
)

type Config struct {
	Vault       Vault       `toml:"vault"`
	Session     Session     `toml:"session"`
	Keys        keys.Params `toml:"keys"`
	Credentials Credentials `toml:"credentials"`
	Audit       Audit       `toml:"audit"`
}

type Vault struct {
	StorageLocation string `toml:"storage_location"`
	Engine          string `toml:"engine"`
}

// Session controls idle locking. An IdleTimeout of zero disables it.
// RequireLockBeforeUnlock refuses a direct move from a duress session to a
// real unlock.
type Session struct {
	IdleTimeout             Duration `toml:"idle_timeout"`
	PollInterval            Duration `toml:"poll_interval"`
	RequireLockBeforeUnlock bool     `toml:"require_lock_before_unlock"`
}

// Credentials never holds the passphrase itself, only its Argon2id hash.
type Credentials struct {
	PassphraseHash string `toml:"passphrase_hash"`
	DecoySecret    string `toml:"decoy_secret"`
}

type Audit struct {
	// Path of the JSON lines log. Empty disables auditing.
	Path string `toml:"path"`
}

// Duration is a time.Duration written as "5m0s" in TOML.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = parsed
	return nil
}

// DefaultConfig returns a config with every location under s and no
// credentials.
func DefaultConfig(s *Settings) *Config {
	return &Config{
		Vault: Vault{
			StorageLocation: s.VaultPath(),
			Engine:          EngineSQLite,
		},
		Session: Session{
			IdleTimeout:  Duration{DefaultIdleTimeout},
			PollInterval: Duration{DefaultPollInterval},
		},
		Keys:  keys.DefaultParams,
		Audit: Audit{Path: s.AuditPath()},
	}
}

// Load reads the config at path. A missing file returns ErrNotInitialized.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: no config at %s", kerrors.ErrNotInitialized, path)
	}

	config := &Config{}
	if err := LoadTOML(path, config); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", kerrors.ErrInvalidConfig, path, err)
	}
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

// Save validates the config and writes it to path with mode 0600.
func Save(path string, config *Config) error {
	if err := config.Validate(); err != nil {
		return err
	}
	if err := SaveTOML(path, config); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Vault.Engine == "" {
		c.Vault.Engine = EngineSQLite
	}
	if c.Session.PollInterval.Duration == 0 {
		c.Session.PollInterval = Duration{DefaultPollInterval}
	}
	if c.Keys.Time == 0 {
		c.Keys.Time = keys.DefaultParams.Time
	}
	if c.Keys.Memory == 0 {
		c.Keys.Memory = keys.DefaultParams.Memory
	}
	if c.Keys.Threads == 0 {
		c.Keys.Threads = keys.DefaultParams.Threads
	}
}

// Validate reports the first problem found, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", kerrors.ErrInvalidConfig, fmt.Sprintf(format, args...))
	}

	switch c.Vault.Engine {
	case EngineSQLite, EngineMemory:
	default:
		return invalid("unknown vault engine %q", c.Vault.Engine)
	}
	if c.Vault.StorageLocation == "" {
		return invalid("vault storage_location is empty")
	}
	if c.Session.IdleTimeout.Duration < 0 {
		return invalid("session idle_timeout is negative")
	}
	if c.Session.PollInterval.Duration <= 0 {
		return invalid("session poll_interval must be positive")
	}
	if c.Keys.Time == 0 || c.Keys.Memory == 0 || c.Keys.Threads == 0 {
		return invalid("keys parameters must be positive")
	}
	if c.Credentials.DecoySecret != "" {
		if _, err := c.DecoySecret(); err != nil {
			return invalid("credentials decoy_secret: %v", err)
		}
	}
	return nil
}

// Initialized reports whether credentials have been written by init.
func (c *Config) Initialized() bool {
	return c.Credentials.PassphraseHash != "" && c.Credentials.DecoySecret != ""
}

// DecoySecret decodes the device-local decoy secret.
func (c *Config) DecoySecret() ([]byte, error) {
	if c.Credentials.DecoySecret == "" {
		return nil, fmt.Errorf("%w: decoy secret missing", kerrors.ErrNotInitialized)
	}
	secret, err := base64.StdEncoding.DecodeString(c.Credentials.DecoySecret)
	if err != nil {
		return nil, err
	}
	return secret, nil
}

// SetDecoySecret stores secret in its encoded form.
func (c *Config) SetDecoySecret(secret []byte) {
	c.Credentials.DecoySecret = base64.StdEncoding.EncodeToString(secret)
}
