// Package factory provides the mode-gated task queue.
//
// Tasks keep insertion order, which is also display and processing order.
// They are never deleted here.
//
// # Gating
//
// Only Kernel mode may add, list, fetch or advance tasks. In Ghost and Duress
// ListTasks returns an empty slice and every mutation fails with
// ErrNotAuthorized, so a decoy session can neither see nor enqueue real work.
//
// # Status Machine
//
//	pending -> running
//	running -> done
//	running -> failed
//	running -> pending   (requeue)
//
// done and failed are terminal. Any other change fails with
// ErrInvalidTransition.
package factory
