package storage

import (
	"context"
	"errors"
)

// Engine is the byte-level store the vault delegates to.
//
// Contract:
//   - Keys are scoped by namespace; the same key in two namespaces names two
//     independent values.
//   - Get MUST return ErrNotFound when the key is absent.
//   - Delete of an absent key is not an error.
//   - Values passed to Put and returned from Get are not retained or shared
//     with the caller.
//   - Engines do not retry. Errors are returned as-is.
type Engine interface {
	Get(ctx context.Context, namespace, key string) ([]byte, error)
	Put(ctx context.Context, namespace, key string, value []byte) error
	Delete(ctx context.Context, namespace, key string) error
	Close() error
}

// Opener acquires an Engine for a storage location.
type Opener interface {
	Open(ctx context.Context, location string) (Engine, error)
}

// OpenerFunc adapts a function to the Opener interface.
type OpenerFunc func(ctx context.Context, location string) (Engine, error)

func (f OpenerFunc) Open(ctx context.Context, location string) (Engine, error) {
	return f(ctx, location)
}

var (
	ErrNotFound = errors.New("storage: not found")
	ErrClosed   = errors.New("storage: engine closed")
)

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }
