// Package watchdog forces the session back to Ghost after a period of
// inactivity.
//
// A Watchdog reads the kernel's LastEventAt on every interval. When an
// unlocked session has been idle for at least the timeout it moves the
// kernel to Ghost, which closes the vault and hides the task queue. The
// transition is conditional on the snapshot it checked, so a Touch that
// lands between the check and the lock keeps the session open.
//
// Run blocks until its context is cancelled:
//
//	w := watchdog.New(k, 5*time.Minute)
//	go w.Run(ctx)
package watchdog
