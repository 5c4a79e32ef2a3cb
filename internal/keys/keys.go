package keys

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/crypto/argon2"
)

// Namespace names an isolated key and storage space in the vault.
type Namespace string

const (
	// Real holds genuine secrets. Only reachable in Kernel mode.
	Real Namespace = "real"
	// Decoy holds the believable substitute shown under duress.
	Decoy Namespace = "decoy"
)

const (
	KeyLength  = 32 // secretbox key size
	SaltLength = 16
)

// Params defines the Argon2id tuning parameters.
type Params struct {
	Time    uint32 `toml:"time"`
	Memory  uint32 `toml:"memory"`
	Threads uint8  `toml:"threads"`
}

// DefaultParams are the interactive-unlock settings.
var DefaultParams = Params{
	Time:    1,
	Memory:  64 * 1024,
	Threads: 4,
}

// withDefaults fills zero fields from DefaultParams.
func (p Params) withDefaults() Params {
	if p.Time == 0 {
		p.Time = DefaultParams.Time
	}
	if p.Memory == 0 {
		p.Memory = DefaultParams.Memory
	}
	if p.Threads == 0 {
		p.Threads = DefaultParams.Threads
	}
	return p
}

var (
	ErrNoSecret    = errors.New("keys: no secret for namespace")
	ErrInvalidSalt = errors.New("keys: invalid salt length")
)

// Source derives the key for a namespace from a per-namespace salt.
type Source interface {
	Derive(ns Namespace, salt []byte) ([]byte, error)
}

// Passphrase derives namespace keys with Argon2id from secrets held in
// memory. The real secret is the user's passphrase; the decoy secret is a
// device-local value that needs no passphrase.
type Passphrase struct {
	mu      sync.Mutex
	params  Params
	secrets map[Namespace][]byte
}

// NewPassphrase returns a source holding no secrets that derives keys with
// params.
func NewPassphrase(params Params) *Passphrase {
	return &Passphrase{
		params:  params.withDefaults(),
		secrets: make(map[Namespace][]byte),
	}
}

// Set stores a copy of secret for ns, wiping any previous one.
func (p *Passphrase) Set(ns Namespace, secret []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.secrets[ns]; ok {
		Wipe(old)
	}
	p.secrets[ns] = append([]byte(nil), secret...)
}

// Forget wipes the secret for ns.
func (p *Passphrase) Forget(ns Namespace) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.secrets[ns]; ok {
		Wipe(old)
		delete(p.secrets, ns)
	}
}

// Has reports whether a secret is held for ns.
func (p *Passphrase) Has(ns Namespace) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.secrets[ns]
	return ok
}

func (p *Passphrase) Derive(ns Namespace, salt []byte) ([]byte, error) {
	if len(salt) != SaltLength {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidSalt, SaltLength, len(salt))
	}
	p.mu.Lock()
	secret, ok := p.secrets[ns]
	if !ok {
		p.mu.Unlock()
		return nil, fmt.Errorf("%w %q", ErrNoSecret, ns)
	}
	secret = append([]byte(nil), secret...)
	p.mu.Unlock()
	defer Wipe(secret)

	return argon2.IDKey(secret, salt, p.params.Time, p.params.Memory, p.params.Threads, KeyLength), nil
}

// NewSalt returns SaltLength random bytes.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}

// NewSecret returns a random 32-byte secret, e.g. for the decoy namespace.
func NewSecret() ([]byte, error) {
	secret := make([]byte, KeyLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generate secret: %w", err)
	}
	return secret, nil
}

// Wipe overwrites b with zeros.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
