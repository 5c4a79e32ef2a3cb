package kernel

import (
	"fmt"
	"sync"
	"time"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
)

// State is a consistent snapshot of the kernel.
type State struct {
	Mode        Mode
	LastEventAt time.Time
	// Generation counts committed mode changes. Self-transitions and Touch
	// leave it unchanged.
	Generation uint64
}

// Transition describes a committed mode change.
type Transition struct {
	From Mode
	To   Mode
	At   time.Time
}

// Listener is notified after a transition has been committed.
type Listener func(Transition)

type subscription struct {
	id int
	fn Listener
}

// Machine owns the session mode. It is safe for concurrent use by many
// readers and one or more writers.
type Machine struct {
	mu     sync.RWMutex
	state  State
	now    func() time.Time
	policy Policy

	subMu  sync.Mutex
	subs   []subscription
	nextID int
}

// Option configures a Machine.
type Option func(*Machine)

// WithClock replaces time.Now as the event clock.
func WithClock(now func() time.Time) Option {
	return func(k *Machine) {
		k.now = now
	}
}

// WithPolicy installs a transition policy. The default is AllowAll.
func WithPolicy(p Policy) Option {
	return func(k *Machine) {
		k.policy = p
	}
}

// New returns a kernel in Ghost mode.
func New(opts ...Option) *Machine {
	k := &Machine{
		now:    time.Now,
		policy: AllowAll,
	}
	for _, opt := range opts {
		opt(k)
	}
	k.state = State{Mode: Ghost, LastEventAt: k.now()}
	return k
}

// CurrentMode returns the current mode.
func (k *Machine) CurrentMode() Mode {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state.Mode
}

// Snapshot returns the mode and last event time as one consistent pair.
func (k *Machine) Snapshot() State {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.state
}

// IsAuthenticated reports whether the session has genuine access. Duress is
// not authenticated even though it unlocks a decoy view.
func (k *Machine) IsAuthenticated() bool {
	return k.CurrentMode() == Kernel
}

// SetMode transitions to target and refreshes the event clock. A
// self-transition still counts as activity. Under the default policy this
// never fails; ErrTransitionDenied is returned only when an installed policy
// rejects the edge.
//
// Listeners run synchronously after the new state is visible and outside
// the state lock. They must not block.
func (k *Machine) SetMode(target Mode) error {
	_, err := k.transition(target, nil)
	return err
}

// SetModeIf transitions to target only if the kernel still matches
// expected, as returned by an earlier Snapshot. It reports whether the
// transition was applied. Any SetMode or Touch since the snapshot makes it
// a no-op.
func (k *Machine) SetModeIf(expected State, target Mode) (bool, error) {
	return k.transition(target, func(s State) bool {
		return s.Mode == expected.Mode &&
			s.Generation == expected.Generation &&
			s.LastEventAt.Equal(expected.LastEventAt)
	})
}

func (k *Machine) transition(target Mode, cond func(State) bool) (bool, error) {
	if !target.Valid() {
		return false, fmt.Errorf("unknown mode %d: %w", target, kerrors.ErrTransitionDenied)
	}

	k.mu.Lock()
	if cond != nil && !cond(k.state) {
		k.mu.Unlock()
		return false, nil
	}
	from := k.state.Mode
	if err := k.policy(from, target); err != nil {
		k.mu.Unlock()
		return false, err
	}
	gen := k.state.Generation
	if from != target {
		gen++
	}
	at := k.tick()
	k.state = State{Mode: target, LastEventAt: at, Generation: gen}
	k.mu.Unlock()

	k.notify(Transition{From: from, To: target, At: at})
	return true, nil
}

// Touch refreshes the event clock without changing mode.
func (k *Machine) Touch() {
	k.mu.Lock()
	k.state.LastEventAt = k.tick()
	k.mu.Unlock()
}

// Subscribe registers fn for mode changes. The returned func removes it.
func (k *Machine) Subscribe(fn Listener) (cancel func()) {
	k.subMu.Lock()
	defer k.subMu.Unlock()

	id := k.nextID
	k.nextID++
	k.subs = append(k.subs, subscription{id: id, fn: fn})

	return func() {
		k.subMu.Lock()
		defer k.subMu.Unlock()
		for i, s := range k.subs {
			if s.id == id {
				k.subs = append(k.subs[:i], k.subs[i+1:]...)
				return
			}
		}
	}
}

func (k *Machine) notify(t Transition) {
	k.subMu.Lock()
	subs := make([]subscription, len(k.subs))
	copy(subs, k.subs)
	k.subMu.Unlock()

	for _, s := range subs {
		s.fn(t)
	}
}

// tick returns the next event time. Must be called with mu held.
// The clock is forced to move forward so LastEventAt strictly increases.
func (k *Machine) tick() time.Time {
	now := k.now()
	if last := k.state.LastEventAt; !now.After(last) {
		now = last.Add(time.Nanosecond)
	}
	return now
}
