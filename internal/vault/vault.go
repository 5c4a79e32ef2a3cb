package vault

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/kernel"
	"github.com/PolarWolf314/forge/internal/keys"
	logger "github.com/PolarWolf314/forge/internal/logging"
	"github.com/PolarWolf314/forge/internal/storage"
)

// Reserved entry names. User entries are hex digests and cannot collide.
const (
	saltEntry  = "_meta/salt"
	checkEntry = "_meta/check"
)

var checkPlaintext = []byte("forge vault key check v1")

// Config locates the vault storage. It is immutable once passed to Open.
type Config struct {
	StorageLocation string
}

// Vault is an encrypted key-value store gated by the kernel mode.
//
// Kernel mode reaches the real namespace; Duress mode reaches the decoy
// namespace; Ghost reaches nothing. A handle opened in one mode is closed
// as soon as the kernel leaves that mode: it stops authorizing calls the
// moment the transition commits, and its key material is wiped as soon as
// no call is in flight.
type Vault struct {
	kernel *kernel.Machine
	opener storage.Opener
	keys   keys.Source

	// Logger receives storage close failures that have no caller to
	// return to.
	Logger logger.Logger

	mu     sync.Mutex
	engine storage.Engine
	sk     *sessionKeys
	mode   kernel.Mode
	gen    uint64
	ns     keys.Namespace
	config Config

	// pending is set by the kernel listener when a transition may have
	// left the handle stale.
	pending atomic.Bool

	unsubscribe func()
}

// New returns a closed vault and subscribes it to k's mode changes.
func New(k *kernel.Machine, opener storage.Opener, src keys.Source) *Vault {
	v := &Vault{
		kernel: k,
		opener: opener,
		keys:   src,
	}
	v.unsubscribe = k.Subscribe(v.onTransition)
	return v
}

// namespaceFor maps a mode to the namespace it may reach.
func namespaceFor(m kernel.Mode) (keys.Namespace, error) {
	switch m {
	case kernel.Kernel:
		return keys.Real, nil
	case kernel.Duress:
		return keys.Decoy, nil
	case kernel.Ghost:
		return "", kerrors.ErrNotAuthorized
	default:
		return "", kerrors.ErrNotAuthorized
	}
}

// Open acquires the storage handle and derives key material for the
// namespace of the current mode. In Ghost it fails with ErrNotAuthorized
// before touching storage. Under Duress the real key is never derived.
func (v *Vault) Open(ctx context.Context, cfg Config) error {
	v.mu.Lock()
	defer v.unlock()

	state := v.kernel.Snapshot()
	mode := state.Mode
	ns, err := namespaceFor(mode)
	if err != nil {
		return fmt.Errorf("opening vault in %s mode: %w", mode, err)
	}

	if v.engine != nil {
		if v.mode == mode && v.gen == state.Generation && v.config == cfg {
			return nil
		}
		if err := v.closeLocked(); err != nil {
			v.Logger.WarnfAlways("%v", err)
		}
	}

	if cfg.StorageLocation == "" {
		return fmt.Errorf("%w: empty storage location", kerrors.ErrUnavailable)
	}

	engine, err := v.opener.Open(ctx, cfg.StorageLocation)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", kerrors.ErrUnavailable, cfg.StorageLocation, err)
	}

	sk, err := v.unlockNamespace(ctx, engine, ns)
	if err != nil {
		if cerr := engine.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("closing vault storage: %w", cerr))
		}
		return err
	}

	v.engine = engine
	v.sk = sk
	v.mode = mode
	v.gen = state.Generation
	v.ns = ns
	v.config = cfg

	if v.staleLocked() {
		if err := v.closeLocked(); err != nil {
			v.Logger.WarnfAlways("%v", err)
		}
		return fmt.Errorf("opening vault: mode changed during open: %w", kerrors.ErrVaultClosed)
	}
	return nil
}

// unlockNamespace loads or creates the namespace salt, derives its keys and
// verifies them against the stored check record.
func (v *Vault) unlockNamespace(ctx context.Context, engine storage.Engine, ns keys.Namespace) (*sessionKeys, error) {
	firstUse := false
	salt, err := engine.Get(ctx, string(ns), saltEntry)
	switch {
	case storage.IsNotFound(err):
		firstUse = true
		if salt, err = keys.NewSalt(); err != nil {
			return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyDerivationFailed, err)
		}
		if err := engine.Put(ctx, string(ns), saltEntry, salt); err != nil {
			return nil, fmt.Errorf("%w: writing salt: %w", kerrors.ErrUnavailable, err)
		}
	case err != nil:
		return nil, fmt.Errorf("%w: reading salt: %w", kerrors.ErrUnavailable, err)
	case len(salt) != keys.SaltLength:
		return nil, fmt.Errorf("%w: corrupt salt record", kerrors.ErrUnavailable)
	}

	master, err := v.keys.Derive(ns, salt)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyDerivationFailed, err)
	}
	sk, err := deriveSessionKeys(master)
	keys.Wipe(master)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyDerivationFailed, err)
	}

	if firstUse {
		check, err := sk.sealValue(checkPlaintext)
		if err != nil {
			sk.wipe()
			return nil, fmt.Errorf("%w: %w", kerrors.ErrKeyDerivationFailed, err)
		}
		if err := engine.Put(ctx, string(ns), checkEntry, check); err != nil {
			sk.wipe()
			return nil, fmt.Errorf("%w: writing key check: %w", kerrors.ErrUnavailable, err)
		}
		return sk, nil
	}

	check, err := engine.Get(ctx, string(ns), checkEntry)
	if err != nil {
		sk.wipe()
		return nil, fmt.Errorf("%w: reading key check: %w", kerrors.ErrUnavailable, err)
	}
	plain, ok := sk.openValue(check)
	if !ok || !bytes.Equal(plain, checkPlaintext) {
		sk.wipe()
		return nil, fmt.Errorf("%w: key does not match vault", kerrors.ErrKeyDerivationFailed)
	}
	return sk, nil
}

// authorizeLocked checks the current mode against the open handle.
// Must be called with mu held.
func (v *Vault) authorizeLocked() error {
	state := v.kernel.Snapshot()
	switch state.Mode {
	case kernel.Ghost:
		return kerrors.ErrNotAuthorized
	case kernel.Kernel, kernel.Duress:
		if v.engine == nil || v.mode != state.Mode || v.gen != state.Generation {
			return kerrors.ErrVaultClosed
		}
		return nil
	default:
		return kerrors.ErrNotAuthorized
	}
}

// staleLocked reports whether a transition has committed since the handle
// was opened. Must be called with mu held.
func (v *Vault) staleLocked() bool {
	return v.engine != nil && v.kernel.Snapshot().Generation != v.gen
}

// Read returns the value stored under key in the namespace of the current mode.
func (v *Vault) Read(ctx context.Context, key string) ([]byte, error) {
	v.mu.Lock()
	defer v.unlock()

	if err := v.authorizeLocked(); err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}
	if key == "" {
		return nil, kerrors.ErrInvalidKey
	}

	blob, err := v.engine.Get(ctx, string(v.ns), v.sk.entryName(key))
	if v.staleLocked() {
		return nil, fmt.Errorf("reading %q: %w", key, kerrors.ErrVaultClosed)
	}
	if storage.IsNotFound(err) {
		return nil, fmt.Errorf("reading %q: %w", key, kerrors.ErrKeyNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("reading %q: %w", key, err)
	}

	plain, ok := v.sk.openValue(blob)
	if !ok {
		return nil, fmt.Errorf("%w: entry %q failed authentication", kerrors.ErrUnavailable, key)
	}
	return plain, nil
}

// Write seals value and stores it under key in the namespace of the current mode.
func (v *Vault) Write(ctx context.Context, key string, value []byte) error {
	v.mu.Lock()
	defer v.unlock()

	if err := v.authorizeLocked(); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return v.writeLocked(ctx, key, value)
}

// WriteAs is Write for callers acting on behalf of one mode, such as
// background workers. It fails with ErrNotAuthorized unless the kernel is
// still in mode, so work started in one session never lands in another
// session's namespace.
func (v *Vault) WriteAs(ctx context.Context, mode kernel.Mode, key string, value []byte) error {
	v.mu.Lock()
	defer v.unlock()

	if current := v.kernel.CurrentMode(); current != mode {
		return fmt.Errorf("writing %q: %w", key, kerrors.ErrNotAuthorized)
	}
	if err := v.authorizeLocked(); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return v.writeLocked(ctx, key, value)
}

func (v *Vault) writeLocked(ctx context.Context, key string, value []byte) error {
	if key == "" {
		return kerrors.ErrInvalidKey
	}

	blob, err := v.sk.sealValue(value)
	if err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	if err := v.engine.Put(ctx, string(v.ns), v.sk.entryName(key), blob); err != nil {
		return fmt.Errorf("writing %q: %w", key, err)
	}
	return nil
}

// Delete removes key from the namespace of the current mode.
func (v *Vault) Delete(ctx context.Context, key string) error {
	v.mu.Lock()
	defer v.unlock()

	if err := v.authorizeLocked(); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	if key == "" {
		return kerrors.ErrInvalidKey
	}

	if err := v.engine.Delete(ctx, string(v.ns), v.sk.entryName(key)); err != nil {
		return fmt.Errorf("deleting %q: %w", key, err)
	}
	return nil
}

// IsOpen reports whether a handle is currently held.
func (v *Vault) IsOpen() bool {
	v.mu.Lock()
	defer v.unlock()
	return v.engine != nil && !v.staleLocked()
}

// Close wipes key material and releases the storage handle. Closing a
// closed vault is a no-op.
func (v *Vault) Close() error {
	v.mu.Lock()
	defer v.unlock()
	return v.closeLocked()
}

// Release closes the vault and stops following the kernel.
func (v *Vault) Release() error {
	v.unsubscribe()
	return v.Close()
}

func (v *Vault) closeLocked() error {
	if v.engine == nil {
		return nil
	}
	if v.sk != nil {
		v.sk.wipe()
		v.sk = nil
	}
	err := v.engine.Close()
	v.engine = nil
	v.ns = ""
	v.config = Config{}
	if err != nil && !errors.Is(err, storage.ErrClosed) {
		return fmt.Errorf("closing vault storage: %w", err)
	}
	return nil
}

// unlock releases mu, first closing the handle if a transition made it
// stale. If the kernel listener flagged a transition while mu was held, the
// check is repeated once the lock can be taken again.
func (v *Vault) unlock() {
	for {
		v.pending.Store(false)
		if v.staleLocked() {
			if err := v.closeLocked(); err != nil {
				v.Logger.WarnfAlways("%v", err)
			}
		}
		v.mu.Unlock()

		if !v.pending.Load() || !v.mu.TryLock() {
			return
		}
	}
}

// onTransition runs on the kernel's notify path and never waits for mu. A
// call in flight closes the handle itself when it finishes.
func (v *Vault) onTransition(kernel.Transition) {
	v.pending.Store(true)
	if v.mu.TryLock() {
		v.unlock()
	}
}
