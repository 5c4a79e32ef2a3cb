package kernel

import (
	"fmt"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
)

// Policy decides whether a transition from one mode to another is allowed.
// A non-nil error rejects the transition and leaves state untouched.
type Policy func(from, to Mode) error

// AllowAll permits all nine Mode x Mode transitions, including
// self-transitions. It is the default policy and denies no edge.
func AllowAll(from, to Mode) error {
	return nil
}

// RequireLockBeforeUnlock denies Duress -> Kernel. A coerced session has to
// pass through Ghost, and therefore through credential verification, before
// real access is granted.
func RequireLockBeforeUnlock(from, to Mode) error {
	if from == Duress && to == Kernel {
		return fmt.Errorf("%s -> %s requires re-authentication: %w", from, to, kerrors.ErrTransitionDenied)
	}
	return nil
}
