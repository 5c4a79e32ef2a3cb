package workers

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	kerrors "github.com/PolarWolf314/forge/internal/errors"
	"github.com/PolarWolf314/forge/internal/factory"
	logger "github.com/PolarWolf314/forge/internal/logging"

	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many tasks run at once.
const DefaultConcurrency = 4

// Handler performs the work for one task.
type Handler interface {
	Handle(ctx context.Context, task factory.Task) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, task factory.Task) error

func (f HandlerFunc) Handle(ctx context.Context, task factory.Task) error {
	return f(ctx, task)
}

// Report summarizes one RunOnce pass.
type Report struct {
	Done     []string
	Failed   []string
	Requeued []string
	// Stranded tasks finished while the session was locked. Their outcome
	// is applied on the next pass in Kernel mode.
	Stranded []string
}

// Runner claims pending tasks from a factory and advances them through the
// status machine as their handlers finish.
type Runner struct {
	factory     *factory.Factory
	handlers    map[factory.Kind]Handler
	concurrency int
	Logger      logger.Logger

	mu       sync.Mutex
	stranded map[string]factory.Status
}

// NewRunner returns a runner over f. A non-positive concurrency selects
// DefaultConcurrency.
func NewRunner(f *factory.Factory, concurrency int) *Runner {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Runner{
		factory:     f,
		handlers:    make(map[factory.Kind]Handler),
		concurrency: concurrency,
		stranded:    make(map[string]factory.Status),
	}
}

// Register routes tasks of kind to h.
func (r *Runner) Register(kind factory.Kind, h Handler) {
	r.handlers[kind] = h
}

// RunOnce claims every pending task with a registered handler and runs
// them, at most concurrency at a time. Handler errors mark the task failed.
// Cancelling ctx requeues tasks whose handlers have not finished, and so
// does a handler refused with ErrNotAuthorized because the session left
// Kernel mode.
func (r *Runner) RunOnce(ctx context.Context) (*Report, error) {
	report := &Report{}
	r.settleStranded(report)

	kinds := slices.Collect(maps.Keys(r.handlers))
	if len(kinds) == 0 {
		return report, nil
	}

	var claimed []factory.Task
	for {
		task, ok := r.factory.Next(kinds...)
		if !ok {
			break
		}
		if err := r.factory.Advance(task.ID, factory.StatusRunning); err != nil {
			if errors.Is(err, kerrors.ErrNotAuthorized) {
				break
			}
			return report, fmt.Errorf("claiming task %q: %w", task.ID, err)
		}
		r.Logger.Debugf("Claimed task %s (%s)", task.ID, task.Kind)
		claimed = append(claimed, task)
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)

	for _, task := range claimed {
		g.Go(func() error {
			outcome := factory.StatusDone
			if err := r.handlers[task.Kind].Handle(gctx, task); err != nil {
				outcome = factory.StatusFailed
				if ctx.Err() != nil || errors.Is(err, kerrors.ErrNotAuthorized) {
					outcome = factory.StatusPending
				}
				r.Logger.Infof("Task %s finished with error: %v", task.ID, err)
			}

			mu.Lock()
			defer mu.Unlock()
			r.settle(report, task.ID, outcome)
			return nil
		})
	}
	_ = g.Wait()

	return report, ctx.Err()
}

// settle applies outcome to a running task, or parks it when the session
// is no longer authorized.
func (r *Runner) settle(report *Report, id string, outcome factory.Status) {
	err := r.factory.Advance(id, outcome)
	switch {
	case err == nil:
		report.record(id, outcome)
	case errors.Is(err, kerrors.ErrNotAuthorized):
		r.mu.Lock()
		r.stranded[id] = outcome
		r.mu.Unlock()
		report.Stranded = append(report.Stranded, id)
	default:
		r.Logger.Warnf("Failed to advance task %s to %s: %v", id, outcome, err)
	}
}

func (r *Runner) settleStranded(report *Report) {
	r.mu.Lock()
	pending := maps.Clone(r.stranded)
	r.mu.Unlock()

	for _, id := range slices.Sorted(maps.Keys(pending)) {
		outcome := pending[id]
		err := r.factory.Advance(id, outcome)
		if errors.Is(err, kerrors.ErrNotAuthorized) {
			report.Stranded = append(report.Stranded, id)
			continue
		}
		r.mu.Lock()
		delete(r.stranded, id)
		r.mu.Unlock()
		if err != nil {
			r.Logger.Warnf("Failed to settle task %s: %v", id, err)
			continue
		}
		report.record(id, outcome)
	}
}

func (rep *Report) record(id string, outcome factory.Status) {
	switch outcome {
	case factory.StatusDone:
		rep.Done = append(rep.Done, id)
	case factory.StatusFailed:
		rep.Failed = append(rep.Failed, id)
	case factory.StatusPending:
		rep.Requeued = append(rep.Requeued, id)
	}
}
