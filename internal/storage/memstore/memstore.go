// Package memstore is an in-memory storage engine.
package memstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/PolarWolf314/forge/internal/storage"
)

// Store holds namespaced values in memory. Engines opened on the same
// location through the same Opener share one Store.
type Store struct {
	mu   sync.RWMutex
	data map[string]map[string][]byte
}

// New returns an empty store.
func New() *Store {
	return &Store{data: make(map[string]map[string][]byte)}
}

func (s *Store) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[namespace][key]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", namespace, key, storage.ErrNotFound)
	}
	return append([]byte(nil), v...), nil
}

func (s *Store) Put(ctx context.Context, namespace, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	ns, ok := s.data[namespace]
	if !ok {
		ns = make(map[string][]byte)
		s.data[namespace] = ns
	}
	ns[key] = append([]byte(nil), value...)
	return nil
}

func (s *Store) Delete(ctx context.Context, namespace, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data[namespace], key)
	return nil
}

// Len returns the number of keys stored in namespace.
func (s *Store) Len(namespace string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data[namespace])
}

// Close is a no-op. Handles returned by Opener close independently.
func (s *Store) Close() error {
	return nil
}

// Opener hands out handles onto per-location stores kept for the life of
// the Opener.
type Opener struct {
	mu     sync.Mutex
	stores map[string]*Store
}

// NewOpener returns an opener with no stores.
func NewOpener() *Opener {
	return &Opener{stores: make(map[string]*Store)}
}

// Open returns a handle onto the store for location, creating it on first use.
func (o *Opener) Open(ctx context.Context, location string) (storage.Engine, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if location == "" {
		return nil, fmt.Errorf("memstore: empty location")
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	s, ok := o.stores[location]
	if !ok {
		s = New()
		o.stores[location] = s
	}
	return &handle{store: s}, nil
}

// Store returns the backing store for location, or nil.
func (o *Opener) Store(location string) *Store {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stores[location]
}

// handle is a closable view onto a shared Store.
type handle struct {
	mu     sync.RWMutex
	store  *Store
	closed bool
}

func (h *handle) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return nil, storage.ErrClosed
	}
	return h.store.Get(ctx, namespace, key)
}

func (h *handle) Put(ctx context.Context, namespace, key string, value []byte) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return storage.ErrClosed
	}
	return h.store.Put(ctx, namespace, key, value)
}

func (h *handle) Delete(ctx context.Context, namespace, key string) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return storage.ErrClosed
	}
	return h.store.Delete(ctx, namespace, key)
}

func (h *handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}
