package sqlitestore

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/PolarWolf314/forge/internal/storage"
	"github.com/PolarWolf314/forge/internal/storage/testkit"
)

func TestConformance(t *testing.T) {
	testkit.RunEngineConformance(t, func(t *testing.T) storage.Engine {
		e, err := Open(context.Background(), filepath.Join(t.TempDir(), "vault.db"))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		t.Cleanup(func() { e.Close() })
		return e
	})
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "vault.db")

	e, err := Open(ctx, path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := e.Put(ctx, "real", "k", []byte("v")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := e.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	e, err = Open(ctx, path)
	if err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	defer e.Close()
	got, err := e.Get(ctx, "real", "k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if string(got) != "v" {
		t.Errorf("Expected persisted value, got %q", got)
	}
}

func TestOpen_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.db")
	if err := os.WriteFile(path, bytes.Repeat([]byte("not a database "), 512), 0600); err != nil {
		t.Fatalf("Failed to write corrupt file: %v", err)
	}

	if _, err := Open(context.Background(), path); err == nil {
		t.Fatal("Expected error opening corrupt database")
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := (Opener{}).Open(context.Background(), ""); err == nil {
		t.Fatal("Expected error for empty path")
	}
}
