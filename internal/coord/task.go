package coord

import (
	"context"
	"sync"
)

// Task is a handle on one running operation. It does not allow cancelling
// the operation: results always land in the store.
type Task struct {
	// ID correlates the operation's log lines.
	ID string
	// Kind is the operation name, e.g. "fetch_all".
	Kind string

	done chan struct{}
	once sync.Once
	err  error
}

func newTask(id, kind string) *Task {
	return &Task{ID: id, Kind: kind, done: make(chan struct{})}
}

// Done is closed when the operation has finished, including any follow-up
// writes such as the image attachment of a detail fetch.
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task finishes or ctx is cancelled. Cancelling ctx
// only stops the wait.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return t.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the operation's error once Done is closed, nil before.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

func (t *Task) complete(err error) {
	t.once.Do(func() {
		t.err = err
		close(t.done)
	})
}
