package watchdog

import (
	"context"
	"time"

	"github.com/PolarWolf314/forge/internal/kernel"
)

// DefaultInterval is how often Run checks the event clock.
const DefaultInterval = time.Second

// Watchdog polls the kernel event clock and locks idle sessions.
type Watchdog struct {
	kernel   *kernel.Machine
	timeout  time.Duration
	interval time.Duration
	now      func() time.Time
	onLock   func()
}

// Option configures a Watchdog.
type Option func(*Watchdog)

// WithInterval sets how often the event clock is checked.
func WithInterval(d time.Duration) Option {
	return func(w *Watchdog) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(w *Watchdog) {
		w.now = now
	}
}

// OnLock registers fn to run after the watchdog forces Ghost.
func OnLock(fn func()) Option {
	return func(w *Watchdog) {
		w.onLock = fn
	}
}

// New returns a watchdog that locks k after timeout without activity. A
// non-positive timeout disables it.
func New(k *kernel.Machine, timeout time.Duration, opts ...Option) *Watchdog {
	w := &Watchdog{
		kernel:   k,
		timeout:  timeout,
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Check locks the session if it is unlocked and idle for at least the
// timeout. It reports whether it locked.
func (w *Watchdog) Check() bool {
	if w.timeout <= 0 {
		return false
	}
	s := w.kernel.Snapshot()
	if s.Mode == kernel.Ghost {
		return false
	}
	if w.now().Sub(s.LastEventAt) < w.timeout {
		return false
	}
	// Activity after the snapshot wins over the timeout.
	locked, err := w.kernel.SetModeIf(s, kernel.Ghost)
	if err != nil || !locked {
		return false
	}
	if w.onLock != nil {
		w.onLock()
	}
	return true
}

// Run checks on every interval until ctx is done.
func (w *Watchdog) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Check()
		}
	}
}
