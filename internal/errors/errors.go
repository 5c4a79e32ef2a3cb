package errors

import "errors"

// Authorization errors indicate the current mode is insufficient for the
// requested operation. They are always returned before any I/O.
var (
	// ErrNotAuthorized indicates the session mode does not permit the operation.
	ErrNotAuthorized = errors.New("operation not authorized in current mode")

	// ErrTransitionDenied indicates the kernel policy rejected a mode change.
	ErrTransitionDenied = errors.New("mode transition denied")

	// ErrInvalidPassphrase indicates the passphrase did not match the stored hash.
	ErrInvalidPassphrase = errors.New("invalid passphrase")
)

// Vault errors indicate storage or key material failures.
var (
	// ErrUnavailable indicates the storage location is unreachable or corrupt.
	ErrUnavailable = errors.New("vault storage unavailable")

	// ErrKeyDerivationFailed indicates key material could not be derived or verified.
	ErrKeyDerivationFailed = errors.New("vault key derivation failed")

	// ErrVaultClosed indicates the vault has no handle open for the current mode.
	ErrVaultClosed = errors.New("vault is not open")

	// ErrKeyNotFound indicates the requested key has no value in the vault.
	ErrKeyNotFound = errors.New("key not found")

	// ErrInvalidKey indicates an empty vault key.
	ErrInvalidKey = errors.New("invalid vault key")
)

// Factory errors indicate task queue invariant violations.
var (
	// ErrDuplicateID indicates a task with the same id is already queued.
	ErrDuplicateID = errors.New("duplicate task id")

	// ErrInvalidTransition indicates a status change not allowed by the task status machine.
	ErrInvalidTransition = errors.New("invalid task status transition")

	// ErrInvalidTask indicates a task is missing an id or carries an unknown kind or status.
	ErrInvalidTask = errors.New("invalid task")

	// ErrTaskNotFound indicates no task exists with the given id.
	ErrTaskNotFound = errors.New("task not found")
)

// Configuration errors.
var (
	// ErrNotInitialized indicates forge has not been initialized on this device.
	ErrNotInitialized = errors.New("forge has not been initialized")

	// ErrInvalidConfig indicates the configuration file is malformed.
	ErrInvalidConfig = errors.New("configuration is invalid")
)

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}
