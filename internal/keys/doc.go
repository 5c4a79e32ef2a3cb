// Package keys derives and verifies key material for the vault.
//
// Each vault namespace (Real, Decoy) has its own random salt and its own
// secret. Keys are derived with Argon2id and are 32 bytes, the size NaCl
// secretbox expects.
//
// The Real secret is the user's passphrase and is only present after a
// successful unlock. The Decoy secret is a random device-local value kept in
// the config, so a decoy session can be opened without the passphrase.
//
// Hash and Verify encode passphrase hashes for the config file in the form:
//
//	argon2id$<time>$<memory>$<threads>$<salt>$<hash>
//
// Callers should Wipe derived keys once they are no longer needed.
package keys
