// Package storage defines the engine contract behind the vault.
//
// The vault never talks to a database directly. It asks an Opener for an
// Engine at the configured storage location and performs namespaced
// Get/Put/Delete on it. Engines hold only ciphertext; sealing happens in the
// vault.
//
// Implementations:
//
//   - memstore: process-local maps, for tests and ephemeral sessions
//   - sqlitestore: a single SQLite file via modernc.org/sqlite
//   - testkit: counting and failing wrappers plus a conformance suite
package storage
