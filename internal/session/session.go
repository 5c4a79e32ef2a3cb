package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/PolarWolf314/forge/internal/audit"
	"github.com/PolarWolf314/forge/internal/configs"
	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/factory"
	"github.com/PolarWolf314/forge/internal/kernel"
	"github.com/PolarWolf314/forge/internal/keys"
	logger "github.com/PolarWolf314/forge/internal/logging"
	"github.com/PolarWolf314/forge/internal/storage"
	"github.com/PolarWolf314/forge/internal/storage/memstore"
	"github.com/PolarWolf314/forge/internal/storage/sqlitestore"
	"github.com/PolarWolf314/forge/internal/utils"
	"github.com/PolarWolf314/forge/internal/vault"
	"github.com/PolarWolf314/forge/internal/watchdog"
	"github.com/PolarWolf314/forge/internal/workers"
)

// Session wires one process's kernel to its vault, task queue, audit log,
// idle watchdog and workers.
type Session struct {
	Kernel   *kernel.Machine
	Vault    *vault.Vault
	Factory  *factory.Factory
	Runner   *workers.Runner
	Watchdog *watchdog.Watchdog
	Audit    *audit.Log

	config  *configs.Config
	secrets *keys.Passphrase
	logger  logger.Logger

	mu      sync.Mutex
	cancel  context.CancelFunc
	group   *errgroup.Group
	cleanup []func()
}

type options struct {
	clock  func() time.Time
	logger logger.Logger
	device string
}

// Option configures a Session.
type Option func(*options)

// WithClock replaces time.Now for the kernel and watchdog.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.clock = now }
}

// WithLogger sets the logger shared by the session, vault and workers.
func WithLogger(l logger.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithDevice sets the device name recorded in the audit log.
func WithDevice(name string) Option {
	return func(o *options) { o.device = name }
}

// OpenerFor returns the storage opener for a configured engine name.
func OpenerFor(engine string) (storage.Opener, error) {
	switch engine {
	case configs.EngineSQLite, "":
		return sqlitestore.Opener{}, nil
	case configs.EngineMemory:
		return memstore.NewOpener(), nil
	default:
		return nil, fmt.Errorf("%w: unknown vault engine %q", kerrors.ErrInvalidConfig, engine)
	}
}

// New builds a locked session from an initialized config. A nil opener
// selects the engine named in the config.
func New(cfg *configs.Config, opener storage.Opener, opts ...Option) (*Session, error) {
	if !cfg.Initialized() {
		return nil, kerrors.ErrNotInitialized
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	if o.device == "" {
		o.device = utils.DeviceName()
	}

	if opener == nil {
		var err error
		if opener, err = OpenerFor(cfg.Vault.Engine); err != nil {
			return nil, err
		}
	}

	decoy, err := cfg.DecoySecret()
	if err != nil {
		return nil, fmt.Errorf("loading decoy secret: %w", err)
	}
	secrets := keys.NewPassphrase(cfg.Keys)
	secrets.Set(keys.Decoy, decoy)
	keys.Wipe(decoy)

	policy := kernel.AllowAll
	if cfg.Session.RequireLockBeforeUnlock {
		policy = kernel.RequireLockBeforeUnlock
	}
	k := kernel.New(kernel.WithClock(o.clock), kernel.WithPolicy(policy))

	s := &Session{
		Kernel:  k,
		Vault:   vault.New(k, opener, secrets),
		Factory: factory.New(k),
		Audit:   audit.New(cfg.Audit.Path, o.device),
		config:  cfg,
		secrets: secrets,
		logger:  o.logger,
	}

	s.Vault.Logger = o.logger
	s.Runner = workers.NewRunner(s.Factory, workers.DefaultConcurrency)
	s.Runner.Logger = o.logger
	s.Runner.Register(factory.KindBlueprint, workers.NewGauntlet(s.Vault))

	s.Watchdog = watchdog.New(k, cfg.Session.IdleTimeout.Duration,
		watchdog.WithInterval(cfg.Session.PollInterval.Duration),
		watchdog.WithClock(o.clock),
		watchdog.OnLock(func() { s.logger.Infof("Session locked after %s idle", cfg.Session.IdleTimeout) }),
	)

	s.cleanup = append(s.cleanup,
		s.Audit.Follow(k),
		k.Subscribe(s.onTransition),
	)
	return s, nil
}

// onTransition drops the passphrase-derived secret whenever the real
// session ends.
func (s *Session) onTransition(t kernel.Transition) {
	if t.To != kernel.Kernel {
		s.secrets.Forget(keys.Real)
	}
}

// Unlock verifies passphrase against the stored hash, enters Kernel mode
// and opens the real vault. A wrong passphrase leaves the mode unchanged.
func (s *Session) Unlock(ctx context.Context, passphrase []byte) error {
	ok, err := keys.Verify(string(passphrase), s.config.Credentials.PassphraseHash)
	if err != nil {
		return fmt.Errorf("verifying passphrase: %w", err)
	}
	if !ok {
		return kerrors.ErrInvalidPassphrase
	}

	// Set before the transition: any later move out of Kernel forgets it.
	s.secrets.Set(keys.Real, passphrase)
	if err := s.Kernel.SetMode(kernel.Kernel); err != nil {
		if s.Kernel.CurrentMode() != kernel.Kernel {
			s.secrets.Forget(keys.Real)
		}
		return err
	}
	s.logger.Debugf("Session unlocked")

	return s.openVault(ctx)
}

// DeclareDuress enters Duress mode and opens the decoy vault. The
// passphrase is never consulted.
func (s *Session) DeclareDuress(ctx context.Context) error {
	if err := s.Kernel.SetMode(kernel.Duress); err != nil {
		return err
	}
	s.logger.Debugf("Session unlocked")

	return s.openVault(ctx)
}

// Lock returns to Ghost. The vault closes itself on the transition.
func (s *Session) Lock() error {
	if err := s.Kernel.SetMode(kernel.Ghost); err != nil {
		return err
	}
	s.logger.Debugf("Session locked")
	return nil
}

// Touch records user activity for the idle watchdog.
func (s *Session) Touch() {
	s.Kernel.Touch()
}

// Status returns the current kernel snapshot.
func (s *Session) Status() kernel.State {
	return s.Kernel.Snapshot()
}

// Config returns the configuration the session was built from.
func (s *Session) Config() *configs.Config {
	return s.config
}

func (s *Session) openVault(ctx context.Context) error {
	err := s.Vault.Open(ctx, vault.Config{StorageLocation: s.config.Vault.StorageLocation})
	if err != nil {
		return fmt.Errorf("opening vault: %w", err)
	}
	return nil
}

// Start runs the idle watchdog in the background until Close.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.group != nil {
		return
	}

	ctx, s.cancel = context.WithCancel(ctx)
	s.group, ctx = errgroup.WithContext(ctx)
	s.group.Go(func() error {
		return s.Watchdog.Run(ctx)
	})
}

// Close locks the session, stops background work and releases the vault.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var errs []error
	if s.Kernel.CurrentMode() != kernel.Ghost {
		errs = append(errs, s.Kernel.SetMode(kernel.Ghost))
	}
	if s.group != nil {
		s.cancel()
		if err := s.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			errs = append(errs, err)
		}
		s.group = nil
	}
	for _, fn := range s.cleanup {
		fn()
	}
	s.cleanup = nil

	errs = append(errs, s.Vault.Release())
	s.secrets.Forget(keys.Real)
	s.secrets.Forget(keys.Decoy)
	return errors.Join(errs...)
}
