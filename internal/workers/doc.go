// Package workers runs factory tasks.
//
// A Runner claims pending tasks (pending -> running), hands each to the
// Handler registered for its kind, and records the outcome (done or
// failed). Concurrency is bounded with an errgroup limit.
//
// Workers only act while the kernel is in Kernel mode. If the session locks
// while a handler is running, the outcome is kept and applied on the next
// pass after unlock.
//
// The Gauntlet handler processes blueprint tasks through a fixed pipeline:
//
//	intake -> fixer -> outline -> linearize -> prepare
//
// and stores the resulting draft as JSON in the vault.
package workers
