package factory

import (
	"fmt"
	"slices"
	"sync"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/kernel"
)

// Factory is an ordered task queue gated by the kernel mode. Only Kernel
// mode may see or change tasks. Ghost and Duress see an empty queue.
type Factory struct {
	kernel *kernel.Machine

	mu    sync.Mutex
	tasks []Task
	index map[string]int
}

// New returns an empty task queue gated by k.
func New(k *kernel.Machine) *Factory {
	return &Factory{
		kernel: k,
		index:  make(map[string]int),
	}
}

// authorized reports whether the current mode grants genuine access.
func (f *Factory) authorized() bool {
	switch f.kernel.CurrentMode() {
	case kernel.Kernel:
		return true
	case kernel.Ghost, kernel.Duress:
		return false
	default:
		return false
	}
}

// AddTask appends task to the queue. An empty status defaults to pending.
func (f *Factory) AddTask(task Task) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorized() {
		return fmt.Errorf("adding task: %w", kerrors.ErrNotAuthorized)
	}

	if task.Status == "" {
		task.Status = StatusPending
	}
	if err := validate(task); err != nil {
		return err
	}
	if _, exists := f.index[task.ID]; exists {
		return fmt.Errorf("task %q: %w", task.ID, kerrors.ErrDuplicateID)
	}

	f.index[task.ID] = len(f.tasks)
	f.tasks = append(f.tasks, task)
	return nil
}

func validate(task Task) error {
	if task.ID == "" {
		return fmt.Errorf("%w: empty id", kerrors.ErrInvalidTask)
	}
	if !task.Kind.Valid() {
		return fmt.Errorf("%w: unknown kind %q", kerrors.ErrInvalidTask, task.Kind)
	}
	if !task.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", kerrors.ErrInvalidTask, task.Status)
	}
	return nil
}

// ListTasks returns a copy of the queue in insertion order. Outside Kernel
// mode the result is empty.
func (f *Factory) ListTasks() []Task {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorized() {
		return []Task{}
	}
	return slices.Clone(f.tasks)
}

// Get returns the task with id.
func (f *Factory) Get(id string) (Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorized() {
		return Task{}, fmt.Errorf("getting task: %w", kerrors.ErrNotAuthorized)
	}
	i, ok := f.index[id]
	if !ok {
		return Task{}, fmt.Errorf("task %q: %w", id, kerrors.ErrTaskNotFound)
	}
	return f.tasks[i], nil
}

// Next returns the first pending task, restricted to kinds when given.
// The boolean is false when nothing is pending or access is not granted.
func (f *Factory) Next(kinds ...Kind) (Task, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorized() {
		return Task{}, false
	}
	for _, t := range f.tasks {
		if t.Status != StatusPending {
			continue
		}
		if len(kinds) > 0 && !slices.Contains(kinds, t.Kind) {
			continue
		}
		return t, true
	}
	return Task{}, false
}

// Advance moves task id to status to, following the status machine.
func (f *Factory) Advance(id string, to Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.authorized() {
		return fmt.Errorf("advancing task %q: %w", id, kerrors.ErrNotAuthorized)
	}
	i, ok := f.index[id]
	if !ok {
		return fmt.Errorf("task %q: %w", id, kerrors.ErrTaskNotFound)
	}
	from := f.tasks[i].Status
	if !CanTransition(from, to) {
		return fmt.Errorf("task %q %s -> %s: %w", id, from, to, kerrors.ErrInvalidTransition)
	}
	f.tasks[i].Status = to
	return nil
}
