package upload

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"carlog/internal/types"
)

// ErrRunInProgress is returned when a run is started while another is active.
var ErrRunInProgress = errors.New("upload run already in progress")

// State describes the runner lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateCompleted
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Result carries the summary and terminal error of a finished run.
type Result struct {
	Summary types.Summary
	Err     error
}

// Runner admits at most one run at a time.
type Runner struct {
	sem *semaphore.Weighted
	log *zap.Logger

	mu    sync.Mutex
	state State
}

func NewRunner(log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{sem: semaphore.NewWeighted(1), log: log}
}

// State returns the lifecycle state of the most recent run.
func (r *Runner) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Runner) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Start launches a run in the background. It returns ErrRunInProgress without
// blocking if another run holds the slot. The returned channel delivers
// exactly one Result when the run finishes.
func (r *Runner) Start(ctx context.Context, run func(context.Context) (types.Summary, error)) (<-chan Result, error) {
	if !r.sem.TryAcquire(1) {
		return nil, ErrRunInProgress
	}
	r.setState(StateRunning)

	done := make(chan Result, 1)
	go func() {
		defer r.sem.Release(1)
		summary, err := run(ctx)
		if err != nil {
			r.setState(StateAborted)
		} else {
			r.setState(StateCompleted)
		}
		done <- Result{Summary: summary, Err: err}
	}()
	return done, nil
}
