// Package kernel holds the session mode state machine.
//
// The kernel is the single source of truth for the current Mode. Every gated
// component (vault, factory) asks it before acting and never caches the
// answer.
//
// # Modes
//
//   - Ghost: default, unauthenticated. Nothing real is visible.
//   - Kernel: authenticated. Full access.
//   - Duress: authenticated under coercion. A decoy view is shown.
//
// # Transitions
//
// Every mode may move to every other mode, including itself. Triggers come
// from outside: a credential check calls SetMode(Kernel), a duress signal
// calls SetMode(Duress), a lock or idle timeout calls SetMode(Ghost).
//
// The default policy (AllowAll) has no denied edges. RequireLockBeforeUnlock
// is available for deployments that want Duress -> Kernel to go through
// Ghost first.
//
// # Event Clock
//
// LastEventAt moves forward on every SetMode and Touch. Idle watchdogs read
// it through Snapshot to decide when to force Ghost, and lock with
// SetModeIf so that activity after the snapshot keeps the session open.
//
// # Listeners
//
// Subscribers run synchronously after each committed transition. They must
// not block: a listener that waits on storage would stall every SetMode.
// Generation in State changes exactly when the mode does, so components can
// tell a handle opened before a transition from one opened after it.
//
// State lives in memory only and is never persisted.
package kernel
