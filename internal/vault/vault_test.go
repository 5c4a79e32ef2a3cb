package vault

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/kernel"
	"github.com/PolarWolf314/forge/internal/keys"
	logger "github.com/PolarWolf314/forge/internal/logging"
	"github.com/PolarWolf314/forge/internal/storage"
	"github.com/PolarWolf314/forge/internal/storage/memstore"
	"github.com/PolarWolf314/forge/internal/storage/sqlitestore"
	"github.com/PolarWolf314/forge/internal/storage/testkit"
)

const testLocation = "mem://vault"

var fastParams = keys.Params{Time: 1, Memory: 1024, Threads: 1}

type fixture struct {
	kernel  *kernel.Machine
	opener  *memstore.Opener
	counter *testkit.Counting
	source  *keys.Passphrase
	vault   *Vault
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		kernel: kernel.New(),
		opener: memstore.NewOpener(),
		source: keys.NewPassphrase(fastParams),
	}
	f.source.Set(keys.Real, []byte("real passphrase"))
	f.source.Set(keys.Decoy, []byte("decoy secret"))
	f.counter = testkit.NewCounting(f.opener)
	f.vault = New(f.kernel, f.counter, f.source)
	t.Cleanup(func() { f.vault.Release() })
	return f
}

func (f *fixture) setMode(t *testing.T, m kernel.Mode) {
	t.Helper()
	if err := f.kernel.SetMode(m); err != nil {
		t.Fatalf("SetMode(%s) failed: %v", m, err)
	}
}

func (f *fixture) open(t *testing.T) {
	t.Helper()
	if err := f.vault.Open(context.Background(), Config{StorageLocation: testLocation}); err != nil {
		t.Fatalf("Open in %s failed: %v", f.kernel.CurrentMode(), err)
	}
}

func TestOpen_GhostNotAuthorizedWithoutStorageAccess(t *testing.T) {
	f := newFixture(t)

	err := f.vault.Open(context.Background(), Config{StorageLocation: testLocation})
	if !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}
	if n := f.counter.Accesses(); n != 0 {
		t.Errorf("Expected 0 storage accesses, got %d", n)
	}
	if f.vault.IsOpen() {
		t.Error("Vault should not be open")
	}
}

func TestGhostCalls_NoStorageAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.vault.Read(ctx, "k"); !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Errorf("Read: expected ErrNotAuthorized, got %v", err)
	}
	if err := f.vault.Write(ctx, "k", []byte("v")); !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Errorf("Write: expected ErrNotAuthorized, got %v", err)
	}
	if err := f.vault.Delete(ctx, "k"); !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Errorf("Delete: expected ErrNotAuthorized, got %v", err)
	}
	if n := f.counter.Accesses(); n != 0 {
		t.Errorf("Expected 0 storage accesses, got %d", n)
	}
}

func TestWriteRead_KernelMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMode(t, kernel.Kernel)
	f.open(t)

	if err := f.vault.Write(ctx, "api-token", []byte("s3cr3t")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	got, err := f.vault.Read(ctx, "api-token")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "s3cr3t" {
		t.Errorf("Expected %q, got %q", "s3cr3t", got)
	}

	if _, err := f.vault.Read(ctx, "missing"); !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound, got %v", err)
	}
}

func TestWrite_GhostAfterKernelLeavesValueUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMode(t, kernel.Kernel)
	f.open(t)
	if err := f.vault.Write(ctx, "k", []byte("original")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f.setMode(t, kernel.Ghost)

	if _, err := f.vault.Read(ctx, "k"); !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized in Ghost, got %v", err)
	}
	if err := f.vault.Write(ctx, "k", []byte("tampered")); !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized in Ghost, got %v", err)
	}

	f.setMode(t, kernel.Kernel)
	f.open(t)
	got, err := f.vault.Read(ctx, "k")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "original" {
		t.Errorf("Expected value unchanged, got %q", got)
	}
}

func TestDuressIsolation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMode(t, kernel.Kernel)
	f.open(t)
	if err := f.vault.Write(ctx, "K", []byte("secret")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f.setMode(t, kernel.Duress)

	// The real handle is gone the moment duress is declared.
	if _, err := f.vault.Read(ctx, "K"); !errors.Is(err, kerrors.ErrVaultClosed) {
		t.Fatalf("Expected ErrVaultClosed right after Duress, got %v", err)
	}

	f.open(t)
	got, err := f.vault.Read(ctx, "K")
	if err == nil && string(got) == "secret" {
		t.Fatal("Duress read returned the real value")
	}
	if !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Fatalf("Expected ErrKeyNotFound in empty decoy namespace, got %v", err)
	}

	if err := f.vault.Write(ctx, "K", []byte("groceries")); err != nil {
		t.Fatalf("Decoy write failed: %v", err)
	}
	got, err = f.vault.Read(ctx, "K")
	if err != nil {
		t.Fatalf("Decoy read failed: %v", err)
	}
	if string(got) != "groceries" {
		t.Errorf("Expected decoy value, got %q", got)
	}

	f.setMode(t, kernel.Kernel)
	f.open(t)
	got, err = f.vault.Read(ctx, "K")
	if err != nil {
		t.Fatalf("Read after duress failed: %v", err)
	}
	if string(got) != "secret" {
		t.Errorf("Real value changed to %q", got)
	}
}

func TestDuress_NeverDerivesRealKey(t *testing.T) {
	f := newFixture(t)
	f.source.Forget(keys.Real)
	f.setMode(t, kernel.Duress)

	f.open(t)

	if err := f.vault.Write(context.Background(), "k", []byte("v")); err != nil {
		t.Fatalf("Decoy write failed: %v", err)
	}
	store := f.opener.Store(testLocation)
	if n := store.Len(string(keys.Real)); n != 0 {
		t.Errorf("Expected real namespace untouched, found %d entries", n)
	}
}

func TestAutoCloseOnModeChange(t *testing.T) {
	tests := []struct {
		name string
		from kernel.Mode
		to   kernel.Mode
		open bool
	}{
		{"kernel to ghost", kernel.Kernel, kernel.Ghost, false},
		{"kernel to duress", kernel.Kernel, kernel.Duress, false},
		{"duress to kernel", kernel.Duress, kernel.Kernel, false},
		{"duress to ghost", kernel.Duress, kernel.Ghost, false},
		{"kernel to kernel", kernel.Kernel, kernel.Kernel, true},
		{"duress to duress", kernel.Duress, kernel.Duress, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.setMode(t, tt.from)
			f.open(t)

			f.setMode(t, tt.to)

			if got := f.vault.IsOpen(); got != tt.open {
				t.Errorf("IsOpen() = %v, want %v", got, tt.open)
			}
		})
	}
}

func TestOpen_WrongPassphrase(t *testing.T) {
	f := newFixture(t)
	f.setMode(t, kernel.Kernel)
	f.open(t)
	if err := f.vault.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f.source.Set(keys.Real, []byte("not the passphrase"))
	err := f.vault.Open(context.Background(), Config{StorageLocation: testLocation})
	if !errors.Is(err, kerrors.ErrKeyDerivationFailed) {
		t.Fatalf("Expected ErrKeyDerivationFailed, got %v", err)
	}
	if f.vault.IsOpen() {
		t.Error("Vault should stay closed after failed open")
	}
}

func TestOpen_MissingSecret(t *testing.T) {
	f := newFixture(t)
	f.source.Forget(keys.Real)
	f.setMode(t, kernel.Kernel)

	err := f.vault.Open(context.Background(), Config{StorageLocation: testLocation})
	if !errors.Is(err, kerrors.ErrKeyDerivationFailed) {
		t.Fatalf("Expected ErrKeyDerivationFailed, got %v", err)
	}
}

func TestOpen_Unavailable(t *testing.T) {
	k := kernel.New()
	_ = k.SetMode(kernel.Kernel)
	src := keys.NewPassphrase(fastParams)
	src.Set(keys.Real, []byte("x"))

	v := New(k, testkit.Failing{}, src)
	defer v.Release()

	err := v.Open(context.Background(), Config{StorageLocation: "anywhere"})
	if !errors.Is(err, kerrors.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable, got %v", err)
	}
	if !errors.Is(err, testkit.ErrInjected) {
		t.Errorf("Expected underlying error preserved, got %v", err)
	}

	err = v.Open(context.Background(), Config{})
	if !errors.Is(err, kerrors.ErrUnavailable) {
		t.Fatalf("Expected ErrUnavailable for empty location, got %v", err)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	f := newFixture(t)
	f.setMode(t, kernel.Kernel)
	f.open(t)
	opens := f.counter.Opens()

	f.open(t)

	if f.counter.Opens() != opens {
		t.Error("Reopening with the same config should reuse the handle")
	}
}

func TestEntryNamesHideKeys(t *testing.T) {
	f := newFixture(t)
	f.setMode(t, kernel.Kernel)
	f.open(t)

	if err := f.vault.Write(context.Background(), "bank-password", []byte("hunter2")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	f.vault.mu.Lock()
	name := f.vault.sk.entryName("bank-password")
	f.vault.mu.Unlock()
	if strings.Contains(name, "bank") {
		t.Errorf("Entry name leaks key: %s", name)
	}
	raw, err := f.opener.Store(testLocation).Get(context.Background(), string(keys.Real), name)
	if err != nil {
		t.Fatalf("Raw get failed: %v", err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Error("Stored value is not encrypted")
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMode(t, kernel.Kernel)
	f.open(t)
	_ = f.vault.Write(ctx, "k", []byte("v"))

	if err := f.vault.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.vault.Read(ctx, "k"); !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Errorf("Expected ErrKeyNotFound after delete, got %v", err)
	}
}

func TestEmptyKey(t *testing.T) {
	f := newFixture(t)
	f.setMode(t, kernel.Kernel)
	f.open(t)

	if err := f.vault.Write(context.Background(), "", []byte("v")); !errors.Is(err, kerrors.ErrInvalidKey) {
		t.Errorf("Expected ErrInvalidKey, got %v", err)
	}
}

func TestSQLiteBackedVault(t *testing.T) {
	ctx := context.Background()
	location := filepath.Join(t.TempDir(), "vault.db")
	k := kernel.New()
	src := keys.NewPassphrase(fastParams)
	src.Set(keys.Real, []byte("passphrase"))
	v := New(k, sqlitestore.Opener{}, src)
	defer v.Release()

	_ = k.SetMode(kernel.Kernel)
	if err := v.Open(ctx, Config{StorageLocation: location}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := v.Write(ctx, "k", []byte("persisted")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	_ = k.SetMode(kernel.Ghost)
	_ = k.SetMode(kernel.Kernel)

	if err := v.Open(ctx, Config{StorageLocation: location}); err != nil {
		t.Fatalf("Reopen failed: %v", err)
	}
	got, err := v.Read(ctx, "k")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(got) != "persisted" {
		t.Errorf("Expected persisted value, got %q", got)
	}
}

// stallingOpener hands out engines whose Get parks until release is closed
// once stall is set.
type stallingOpener struct {
	storage.Opener
	stall   atomic.Bool
	entered chan struct{}
	release chan struct{}
}

func newStallingOpener() *stallingOpener {
	return &stallingOpener{
		Opener:  memstore.NewOpener(),
		entered: make(chan struct{}, 1),
		release: make(chan struct{}),
	}
}

func (o *stallingOpener) Open(ctx context.Context, location string) (storage.Engine, error) {
	e, err := o.Opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return &stallingEngine{Engine: e, o: o}, nil
}

type stallingEngine struct {
	storage.Engine
	o *stallingOpener
}

func (e *stallingEngine) Get(ctx context.Context, namespace, key string) ([]byte, error) {
	if e.o.stall.Load() {
		select {
		case e.o.entered <- struct{}{}:
		default:
		}
		<-e.o.release
	}
	return e.Engine.Get(ctx, namespace, key)
}

func TestSetMode_NotBlockedBySlowStorage(t *testing.T) {
	ctx := context.Background()
	k := kernel.New()
	opener := newStallingOpener()
	src := keys.NewPassphrase(fastParams)
	src.Set(keys.Real, []byte("real passphrase"))
	v := New(k, opener, src)
	defer v.Release()

	_ = k.SetMode(kernel.Kernel)
	if err := v.Open(ctx, Config{StorageLocation: testLocation}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if err := v.Write(ctx, "k", []byte("secret")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	opener.stall.Store(true)
	readErr := make(chan error, 1)
	go func() {
		_, err := v.Read(ctx, "k")
		readErr <- err
	}()
	<-opener.entered

	locked := make(chan error, 1)
	go func() { locked <- k.SetMode(kernel.Ghost) }()

	select {
	case err := <-locked:
		if err != nil {
			t.Fatalf("SetMode(Ghost) failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		close(opener.release)
		t.Fatal("SetMode(Ghost) blocked behind a slow storage read")
	}

	if got := k.CurrentMode(); got != kernel.Ghost {
		t.Errorf("Expected %s, got %s", kernel.Ghost, got)
	}

	close(opener.release)
	if err := <-readErr; !errors.Is(err, kerrors.ErrVaultClosed) {
		t.Errorf("In-flight read should not return data after lock, got %v", err)
	}
	if v.IsOpen() {
		t.Error("Vault should be closed once the in-flight read finished")
	}
}

func TestWriteAs_RejectsOtherMode(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.setMode(t, kernel.Kernel)
	f.open(t)
	if err := f.vault.WriteAs(ctx, kernel.Kernel, "draft", []byte("real plan")); err != nil {
		t.Fatalf("WriteAs in Kernel failed: %v", err)
	}

	f.setMode(t, kernel.Duress)
	f.open(t)

	err := f.vault.WriteAs(ctx, kernel.Kernel, "leak", []byte("real plan"))
	if !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized under Duress, got %v", err)
	}
	if _, err := f.vault.Read(ctx, "leak"); !errors.Is(err, kerrors.ErrKeyNotFound) {
		t.Errorf("Expected nothing written to the decoy namespace, got %v", err)
	}
}

var errCloseFailed = errors.New("close failed")

type badCloseOpener struct{ storage.Opener }

func (o badCloseOpener) Open(ctx context.Context, location string) (storage.Engine, error) {
	e, err := o.Opener.Open(ctx, location)
	if err != nil {
		return nil, err
	}
	return badCloseEngine{e}, nil
}

type badCloseEngine struct{ storage.Engine }

func (badCloseEngine) Close() error { return errCloseFailed }

func TestAutoClose_LogsCloseFailure(t *testing.T) {
	k := kernel.New()
	src := keys.NewPassphrase(fastParams)
	src.Set(keys.Real, []byte("real passphrase"))
	v := New(k, badCloseOpener{memstore.NewOpener()}, src)
	var stderr bytes.Buffer
	v.Logger = logger.Logger{Err: &stderr}
	defer v.Release()

	_ = k.SetMode(kernel.Kernel)
	if err := v.Open(context.Background(), Config{StorageLocation: testLocation}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = k.SetMode(kernel.Ghost)

	if !strings.Contains(stderr.String(), "close failed") {
		t.Errorf("Expected close failure to be logged, got %q", stderr.String())
	}
}

func TestOpen_FailureReportsCloseError(t *testing.T) {
	ctx := context.Background()
	k := kernel.New()
	src := keys.NewPassphrase(fastParams)
	opener := badCloseOpener{memstore.NewOpener()}
	v := New(k, opener, src)
	defer v.Release()

	_ = k.SetMode(kernel.Kernel)
	src.Set(keys.Real, []byte("real passphrase"))
	if err := v.Open(ctx, Config{StorageLocation: testLocation}); err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	_ = v.Close()

	src.Set(keys.Real, []byte("wrong passphrase"))
	err := v.Open(ctx, Config{StorageLocation: testLocation})
	if !errors.Is(err, kerrors.ErrKeyDerivationFailed) {
		t.Fatalf("Expected ErrKeyDerivationFailed, got %v", err)
	}
	if !errors.Is(err, errCloseFailed) {
		t.Errorf("Expected close error joined into %v", err)
	}
}
