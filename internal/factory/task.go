package factory

// Kind classifies a task.
type Kind string

const (
	KindBlueprint  Kind = "blueprint"
	KindBackend    Kind = "backend"
	KindFrontend   Kind = "frontend"
	KindAutomation Kind = "automation"
)

// Kinds lists every task kind.
var Kinds = []Kind{KindBlueprint, KindBackend, KindFrontend, KindAutomation}

// Valid reports whether k is a known task kind.
func (k Kind) Valid() bool {
	switch k {
	case KindBlueprint, KindBackend, KindFrontend, KindAutomation:
		return true
	default:
		return false
	}
}

// Status is the position of a task in its lifecycle.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is allowed from s.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// transitions is the task status machine:
//
//	pending -> running
//	running -> done | failed | pending (requeue)
var transitions = map[Status][]Status{
	StatusPending: {StatusRunning},
	StatusRunning: {StatusDone, StatusFailed, StatusPending},
}

// CanTransition reports whether from -> to is allowed.
func CanTransition(from, to Status) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Task is a unit of long-running work.
type Task struct {
	ID      string `json:"id"`
	Kind    Kind   `json:"kind"`
	Status  Status `json:"status"`
	Summary string `json:"summary"`
}
