package factory

import (
	"errors"
	"testing"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/kernel"
)

func newAuthorized(t *testing.T) (*kernel.Machine, *Factory) {
	t.Helper()
	k := kernel.New()
	if err := k.SetMode(kernel.Kernel); err != nil {
		t.Fatalf("SetMode failed: %v", err)
	}
	return k, New(k)
}

func TestAddTask_PreservesOrder(t *testing.T) {
	_, f := newAuthorized(t)
	ids := []string{"c", "a", "b"}
	for _, id := range ids {
		if err := f.AddTask(Task{ID: id, Kind: KindBackend, Summary: "task " + id}); err != nil {
			t.Fatalf("AddTask(%s) failed: %v", id, err)
		}
	}

	tasks := f.ListTasks()
	if len(tasks) != len(ids) {
		t.Fatalf("Expected %d tasks, got %d", len(ids), len(tasks))
	}
	for i, id := range ids {
		if tasks[i].ID != id {
			t.Errorf("Task %d: expected id %s, got %s", i, id, tasks[i].ID)
		}
		if tasks[i].Status != StatusPending {
			t.Errorf("Task %s: expected default status pending, got %s", id, tasks[i].Status)
		}
	}
}

func TestAddTask_DuplicateID(t *testing.T) {
	_, f := newAuthorized(t)
	task := Task{ID: "t1", Kind: KindFrontend, Summary: "first"}

	if err := f.AddTask(task); err != nil {
		t.Fatalf("First AddTask failed: %v", err)
	}
	err := f.AddTask(Task{ID: "t1", Kind: KindAutomation, Summary: "second"})
	if !errors.Is(err, kerrors.ErrDuplicateID) {
		t.Fatalf("Expected ErrDuplicateID, got %v", err)
	}
	if n := len(f.ListTasks()); n != 1 {
		t.Errorf("Expected queue length 1 after duplicate, got %d", n)
	}
}

func TestAddTask_NotAuthorized(t *testing.T) {
	for _, mode := range []kernel.Mode{kernel.Ghost, kernel.Duress} {
		t.Run(mode.String(), func(t *testing.T) {
			k, f := newAuthorized(t)
			_ = k.SetMode(mode)

			err := f.AddTask(Task{ID: "t1", Kind: KindBackend})
			if !errors.Is(err, kerrors.ErrNotAuthorized) {
				t.Fatalf("Expected ErrNotAuthorized, got %v", err)
			}

			_ = k.SetMode(kernel.Kernel)
			if n := len(f.ListTasks()); n != 0 {
				t.Errorf("Unauthorized AddTask left %d tasks", n)
			}
		})
	}
}

func TestAddTask_Invalid(t *testing.T) {
	tests := []struct {
		name string
		task Task
	}{
		{"empty id", Task{Kind: KindBackend}},
		{"unknown kind", Task{ID: "x", Kind: "database"}},
		{"unknown status", Task{ID: "x", Kind: KindBackend, Status: "paused"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, f := newAuthorized(t)
			if err := f.AddTask(tt.task); !errors.Is(err, kerrors.ErrInvalidTask) {
				t.Errorf("Expected ErrInvalidTask, got %v", err)
			}
		})
	}
}

func TestListTasks_HiddenOutsideKernel(t *testing.T) {
	k, f := newAuthorized(t)
	_ = f.AddTask(Task{ID: "t1", Kind: KindBlueprint, Summary: "real work"})

	for _, mode := range []kernel.Mode{kernel.Duress, kernel.Ghost} {
		_ = k.SetMode(mode)
		tasks := f.ListTasks()
		if tasks == nil {
			t.Errorf("%s: expected empty slice, got nil", mode)
		}
		if len(tasks) != 0 {
			t.Errorf("%s: expected no tasks, got %d", mode, len(tasks))
		}
		if _, ok := f.Next(); ok {
			t.Errorf("%s: Next returned a task", mode)
		}
		if _, err := f.Get("t1"); !errors.Is(err, kerrors.ErrNotAuthorized) {
			t.Errorf("%s: expected ErrNotAuthorized from Get, got %v", mode, err)
		}
	}

	_ = k.SetMode(kernel.Kernel)
	if n := len(f.ListTasks()); n != 1 {
		t.Errorf("Expected task to reappear in Kernel mode, got %d", n)
	}
}

func TestListTasks_ReturnsCopy(t *testing.T) {
	_, f := newAuthorized(t)
	_ = f.AddTask(Task{ID: "t1", Kind: KindBackend})

	tasks := f.ListTasks()
	tasks[0].Status = StatusDone

	got, err := f.Get("t1")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Status != StatusPending {
		t.Errorf("Caller mutation leaked into queue: %s", got.Status)
	}
}

func TestAdvance_StatusMachine(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		ok   bool
	}{
		{StatusPending, StatusRunning, true},
		{StatusPending, StatusDone, false},
		{StatusPending, StatusFailed, false},
		{StatusPending, StatusPending, false},
		{StatusRunning, StatusDone, true},
		{StatusRunning, StatusFailed, true},
		{StatusRunning, StatusPending, true},
		{StatusRunning, StatusRunning, false},
		{StatusDone, StatusPending, false},
		{StatusDone, StatusRunning, false},
		{StatusDone, StatusFailed, false},
		{StatusDone, StatusDone, false},
		{StatusFailed, StatusPending, false},
		{StatusFailed, StatusRunning, false},
		{StatusFailed, StatusDone, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"->"+string(tt.to), func(t *testing.T) {
			_, f := newAuthorized(t)
			if err := f.AddTask(Task{ID: "t", Kind: KindBackend, Status: tt.from}); err != nil {
				t.Fatalf("AddTask failed: %v", err)
			}

			err := f.Advance("t", tt.to)
			if tt.ok && err != nil {
				t.Fatalf("Expected transition to succeed, got %v", err)
			}
			if !tt.ok && !errors.Is(err, kerrors.ErrInvalidTransition) {
				t.Fatalf("Expected ErrInvalidTransition, got %v", err)
			}

			got, _ := f.Get("t")
			want := tt.from
			if tt.ok {
				want = tt.to
			}
			if got.Status != want {
				t.Errorf("Expected status %s, got %s", want, got.Status)
			}
		})
	}
}

func TestAdvance_DoneIsTerminal(t *testing.T) {
	_, f := newAuthorized(t)
	_ = f.AddTask(Task{ID: "t", Kind: KindAutomation})
	_ = f.Advance("t", StatusRunning)
	if err := f.Advance("t", StatusDone); err != nil {
		t.Fatalf("Advance to done failed: %v", err)
	}

	for _, s := range []Status{StatusPending, StatusRunning, StatusDone, StatusFailed} {
		if err := f.Advance("t", s); !errors.Is(err, kerrors.ErrInvalidTransition) {
			t.Errorf("done -> %s: expected ErrInvalidTransition, got %v", s, err)
		}
	}
}

func TestAdvance_UnknownTask(t *testing.T) {
	_, f := newAuthorized(t)
	if err := f.Advance("nope", StatusRunning); !errors.Is(err, kerrors.ErrTaskNotFound) {
		t.Errorf("Expected ErrTaskNotFound, got %v", err)
	}
}

func TestAdvance_NotAuthorized(t *testing.T) {
	k, f := newAuthorized(t)
	_ = f.AddTask(Task{ID: "t", Kind: KindBackend})
	_ = k.SetMode(kernel.Duress)

	if err := f.Advance("t", StatusRunning); !errors.Is(err, kerrors.ErrNotAuthorized) {
		t.Fatalf("Expected ErrNotAuthorized, got %v", err)
	}

	_ = k.SetMode(kernel.Kernel)
	got, _ := f.Get("t")
	if got.Status != StatusPending {
		t.Errorf("Unauthorized advance changed status to %s", got.Status)
	}
}

func TestNext_FiltersByKind(t *testing.T) {
	_, f := newAuthorized(t)
	_ = f.AddTask(Task{ID: "b1", Kind: KindBackend})
	_ = f.AddTask(Task{ID: "p1", Kind: KindBlueprint})
	_ = f.AddTask(Task{ID: "p2", Kind: KindBlueprint})
	_ = f.Advance("p1", StatusRunning)

	task, ok := f.Next(KindBlueprint)
	if !ok {
		t.Fatal("Expected a pending blueprint task")
	}
	if task.ID != "p2" {
		t.Errorf("Expected p2, got %s", task.ID)
	}

	task, ok = f.Next()
	if !ok || task.ID != "b1" {
		t.Errorf("Expected b1 as first pending task, got %+v", task)
	}
}
