package app

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/neomorfeo/celsiusify/internal/domain"
)

// Lifecycle gates request handling on the process state. Reads are lock-free;
// transitions are serialized.
type Lifecycle struct {
	validator domain.TransitionValidator

	mu     sync.Mutex
	status atomic.Value // domain.Status
}

// NewLifecycle returns a lifecycle in the starting state.
func NewLifecycle(validator domain.TransitionValidator) *Lifecycle {
	l := &Lifecycle{validator: validator}
	l.status.Store(domain.StatusStarting)
	return l
}

// Status returns the current lifecycle state.
func (l *Lifecycle) Status() domain.Status {
	return l.status.Load().(domain.Status)
}

// Ready reports whether requests may be served.
func (l *Lifecycle) Ready() bool {
	return l.Status() == domain.StatusReady
}

// Fire applies event and returns the new state. The state is unchanged when
// the event is not valid from the current one.
func (l *Lifecycle) Fire(ctx context.Context, event domain.Event) (domain.Status, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	next, err := l.validator.Apply(ctx, l.Status(), event)
	if err != nil {
		return "", err
	}

	l.status.Store(next)
	return next, nil
}
