// Package vault provides the mode-gated encrypted key-value store.
//
// # Gating
//
// Every call asks the kernel for the current mode first, before any I/O:
//
//   - Ghost: Open, Read, Write and Delete fail with ErrNotAuthorized.
//   - Kernel: the real namespace is reachable.
//   - Duress: only the decoy namespace is reachable. The real key is never
//     derived and real entries are never read or modified.
//
// A handle is bound to the mode it was opened in. The vault subscribes to
// the kernel and closes itself whenever that mode is left, wiping key
// material. Calls in an unlocked mode without a matching handle fail with
// ErrVaultClosed; the caller reopens explicitly.
//
// # Storage Layout
//
// Each namespace stores a random salt and a sealed check record used to
// detect a wrong key. Entry names are keyed BLAKE2b digests of the caller's
// key, so key names are not visible to the storage engine. Values are sealed
// with NaCl secretbox with a random 24-byte nonce prepended.
//
// No retries happen here. Storage errors are wrapped and returned.
package vault
