// Package configs manages the forge device configuration.
//
// Configuration is a single TOML file at $XDG_CONFIG_HOME/forge/config.toml:
//
//	[vault]        storage_location, engine ("sqlite" or "memory")
//	[session]      idle_timeout, poll_interval (Go durations, e.g. "5m"),
//	               require_lock_before_unlock
//	[keys]         Argon2id time, memory (KiB), threads
//	[credentials]  passphrase_hash, decoy_secret (base64)
//	[audit]        path
//
// The passphrase itself is never stored. Data files (vault.db and
// audit.jsonl) live under $XDG_DATA_HOME/forge by default.
//
// Load returns ErrNotInitialized when the file does not exist, and
// ErrInvalidConfig for syntax errors, unknown keys or bad values. Zero
// values are filled with defaults before validation. Save writes
// atomically with mode 0600.
package configs
