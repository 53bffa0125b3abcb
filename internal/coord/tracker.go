package coord

import (
	"context"
	"sync"
)

// Phase is the lifecycle position of an operation.
type Phase int

const (
	Idle Phase = iota
	Loading
	Success
	Failed
)

func (p Phase) String() string {
	switch p {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Success:
		return "success"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is what a screen sees of its operations. Err is the cause of the
// most recent failure. It survives a new Loading phase and is cleared by the
// next success.
type Status struct {
	Phase Phase
	Err   error
}

// Loading reports whether any operation is still in flight.
func (s Status) Loading() bool { return s.Phase == Loading }

// Tracker holds the status of one screen's operations. Several operations
// may overlap: the tracker stays Loading until all of them have finished and
// then reports the outcome of the one that finished last.
//
// The zero Tracker is Idle and ready to use.
type Tracker struct {
	mu       sync.Mutex
	inFlight int
	outcome  Status
	nextID   int
	subs     map[int]chan Status
}

// NewTracker returns an Idle tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// Status returns the current status.
func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.statusLocked()
}

// InFlight returns the number of unfinished operations.
func (t *Tracker) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

func (t *Tracker) statusLocked() Status {
	if t.inFlight > 0 {
		return Status{Phase: Loading, Err: t.outcome.Err}
	}
	return t.outcome
}

// Observe streams status changes until ctx is cancelled. The first value is
// the current status. Unread values are replaced by newer ones.
func (t *Tracker) Observe(ctx context.Context) <-chan Status {
	ch := make(chan Status, 1)

	t.mu.Lock()
	t.nextID++
	id := t.nextID
	if t.subs == nil {
		t.subs = make(map[int]chan Status)
	}
	t.subs[id] = ch
	ch <- t.statusLocked()
	t.mu.Unlock()

	go func() {
		<-ctx.Done()
		t.mu.Lock()
		delete(t.subs, id)
		close(ch)
		t.mu.Unlock()
	}()
	return ch
}

// begin moves the tracker to Loading.
func (t *Tracker) begin() {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.inFlight++
	t.publishLocked()
}

// finish records the outcome of one operation started with begin.
func (t *Tracker) finish(err error) {
	if t == nil {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.inFlight > 0 {
		t.inFlight--
	}
	if err != nil {
		t.outcome = Status{Phase: Failed, Err: err}
	} else {
		t.outcome = Status{Phase: Success}
	}
	t.publishLocked()
}

func (t *Tracker) publishLocked() {
	st := t.statusLocked()
	for _, ch := range t.subs {
		offer(ch, st)
	}
}

// offer replaces whatever ch is holding with v. Only the owner of ch may
// send on it, with its lock held.
func offer[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
