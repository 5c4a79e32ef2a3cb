// Package errors provides typed error values for forge.
//
// Sentinel errors let callers handle specific conditions with errors.Is()
// rather than string matching.
//
// # Error Categories
//
//   - Authorization errors: the mode is insufficient (ErrNotAuthorized,
//     ErrTransitionDenied, ErrInvalidPassphrase)
//   - Vault errors: storage or key failures (ErrUnavailable,
//     ErrKeyDerivationFailed, ErrVaultClosed, ErrKeyNotFound, ErrInvalidKey)
//   - Factory errors: task queue invariants (ErrDuplicateID,
//     ErrInvalidTransition, ErrInvalidTask, ErrTaskNotFound)
//   - Configuration errors (ErrNotInitialized, ErrInvalidConfig)
//
// # Propagation
//
// Authorization failures are never retried. The caller must change mode and
// retry explicitly. Storage failures are wrapped with context and surfaced
// as-is:
//
//	return fmt.Errorf("opening %s: %w", location, errors.ErrUnavailable)
//
// Check them in the CLI layer:
//
//	if kerrors.Is(err, kerrors.ErrNotAuthorized) {
//	    // Ask the user to unlock first
//	}
package errors
