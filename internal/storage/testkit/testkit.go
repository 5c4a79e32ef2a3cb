// Package testkit provides storage engine helpers for tests.
package testkit

import (
	"bytes"
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/PolarWolf314/forge/internal/storage"
)

// Counting wraps an Opener and counts every storage access, including opens.
type Counting struct {
	Opener storage.Opener

	opens    atomic.Int64
	accesses atomic.Int64
}

// NewCounting wraps o.
func NewCounting(o storage.Opener) *Counting {
	return &Counting{Opener: o}
}

// Accesses returns the total number of Open, Get, Put and Delete calls.
func (c *Counting) Accesses() int64 {
	return c.opens.Load() + c.accesses.Load()
}

// Opens returns the number of Open calls.
func (c *Counting) Opens() int64 {
	return c.opens.Load()
}

func (c *Counting) Open(ctx context.Context, location string) (storage.Engine, error) {
	c.opens.Add(1)
	e, err := c.Opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return &countingEngine{Engine: e, n: &c.accesses}, nil
}

type countingEngine struct {
	storage.Engine
	n *atomic.Int64
}

func (e *countingEngine) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	e.n.Add(1)
	return e.Engine.Get(ctx, namespace, key)
}

func (e *countingEngine) Put(ctx context.Context, namespace, key string, value []byte) error {
	e.n.Add(1)
	return e.Engine.Put(ctx, namespace, key, value)
}

func (e *countingEngine) Delete(ctx context.Context, namespace, key string) error {
	e.n.Add(1)
	return e.Engine.Delete(ctx, namespace, key)
}

// ErrInjected is returned by Failing.
var ErrInjected = errors.New("testkit: injected failure")

// Failing is an Opener whose Open always fails.
type Failing struct{}

func (Failing) Open(ctx context.Context, location string) (storage.Engine, error) {
	return nil, ErrInjected
}

// NewEngine constructs a fresh, empty engine for a test.
type NewEngine func(t *testing.T) storage.Engine

// RunEngineConformance checks the storage.Engine contract.
func RunEngineConformance(t *testing.T, newEngine NewEngine) {
	t.Helper()
	ctx := context.Background()

	t.Run("PutGetRoundTrip", func(t *testing.T) {
		e := newEngine(t)
		want := []byte("ciphertext bytes")

		if err := e.Put(ctx, "real", "k", want); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := e.Get(ctx, "real", "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("Get returned %q, want %q", got, want)
		}
	})

	t.Run("GetMissingReturnsNotFound", func(t *testing.T) {
		e := newEngine(t)
		if _, err := e.Get(ctx, "real", "missing"); !storage.IsNotFound(err) {
			t.Fatalf("Expected ErrNotFound, got %v", err)
		}
	})

	t.Run("NamespacesAreIsolated", func(t *testing.T) {
		e := newEngine(t)
		if err := e.Put(ctx, "real", "k", []byte("secret")); err != nil {
			t.Fatalf("Put(real) failed: %v", err)
		}
		if _, err := e.Get(ctx, "decoy", "k"); !storage.IsNotFound(err) {
			t.Fatalf("Expected ErrNotFound from other namespace, got %v", err)
		}
		if err := e.Put(ctx, "decoy", "k", []byte("decoy")); err != nil {
			t.Fatalf("Put(decoy) failed: %v", err)
		}
		got, err := e.Get(ctx, "real", "k")
		if err != nil {
			t.Fatalf("Get(real) failed: %v", err)
		}
		if string(got) != "secret" {
			t.Fatalf("Write to decoy namespace changed real value to %q", got)
		}
	})

	t.Run("PutOverwrites", func(t *testing.T) {
		e := newEngine(t)
		_ = e.Put(ctx, "real", "k", []byte("one"))
		if err := e.Put(ctx, "real", "k", []byte("two")); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := e.Get(ctx, "real", "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "two" {
			t.Fatalf("Expected overwritten value, got %q", got)
		}
	})

	t.Run("DeleteRemoves", func(t *testing.T) {
		e := newEngine(t)
		_ = e.Put(ctx, "real", "k", []byte("v"))
		if err := e.Delete(ctx, "real", "k"); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := e.Get(ctx, "real", "k"); !storage.IsNotFound(err) {
			t.Fatalf("Expected ErrNotFound after delete, got %v", err)
		}
		if err := e.Delete(ctx, "real", "k"); err != nil {
			t.Fatalf("Delete of absent key failed: %v", err)
		}
	})

	t.Run("ValuesAreCopied", func(t *testing.T) {
		e := newEngine(t)
		in := []byte("abc")
		_ = e.Put(ctx, "real", "k", in)
		in[0] = 'X'
		got, err := e.Get(ctx, "real", "k")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != "abc" {
			t.Fatalf("Engine retained caller slice, got %q", got)
		}
	})
}
