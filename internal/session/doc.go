// Package session assembles the forge components for one process.
//
// A Session starts locked (Ghost). Unlock checks the passphrase against the
// Argon2id hash in the config before moving to Kernel mode and opening the
// real vault namespace. DeclareDuress moves to Duress and opens the decoy
// namespace without asking for a passphrase. Lock, the idle watchdog and
// Close all return to Ghost, which closes the vault through its kernel
// subscription.
//
// The audit log follows the kernel for the life of the session and records
// both kinds of unlock identically.
package session
