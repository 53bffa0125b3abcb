package view

import (
	"context"
	"strings"
	"sync"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/coord"
	"github.com/five82/tabby/internal/state"
)

// ListScreen keeps the list frame current while the screen is open. It owns
// a tracker for its fetch and search operations and re-projects whenever the
// collection or the tracker changes.
type ListScreen struct {
	coord   *coord.Coordinator
	tracker *coord.Tracker

	mu         sync.Mutex
	query      string
	collection []breed.Breed
	status     coord.Status
	current    ListState
	updates    chan ListState
	closed     bool

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenList opens the list screen and starts loading it: a full fetch for a
// blank query, a search otherwise. The screen stays open until ctx is
// cancelled or Close is called.
func OpenList(ctx context.Context, c *coord.Coordinator, query string) *ListScreen {
	ctx, cancel := context.WithCancel(ctx)
	s := &ListScreen{
		coord:   c,
		tracker: coord.NewTracker(),
		query:   strings.TrimSpace(query),
		updates: make(chan ListState, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	collection := c.Store().ObserveAll(ctx)
	statuses := s.tracker.Observe(ctx)
	s.load(s.query)

	s.mu.Lock()
	s.collection = c.Store().All()
	s.status = s.tracker.Status()
	s.publishLocked()
	s.mu.Unlock()

	go s.run(collection, statuses)
	return s
}

func (s *ListScreen) run(collection <-chan []breed.Breed, statuses <-chan coord.Status) {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.closed = true
		close(s.updates)
		s.mu.Unlock()
	}()
	for collection != nil || statuses != nil {
		select {
		case items, ok := <-collection:
			if !ok {
				collection = nil
				continue
			}
			s.mu.Lock()
			s.collection = items
			s.status = s.tracker.Status()
			s.publishLocked()
			s.mu.Unlock()
		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			s.mu.Lock()
			// Results are stored before the status changes, so the store is
			// at least as new as st.
			s.status = st
			s.collection = s.coord.Store().All()
			s.publishLocked()
			s.mu.Unlock()
		}
	}
}

func (s *ListScreen) publishLocked() {
	s.current = ProjectList(s.collection, s.query, s.status)
	if !s.closed {
		offer(s.updates, s.current)
	}
}

// Updates streams list frames. Unread frames are replaced by newer ones. The
// channel is closed when the screen closes.
func (s *ListScreen) Updates() <-chan ListState {
	return s.updates
}

// State returns the latest frame.
func (s *ListScreen) State() ListState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Query returns the active search query.
func (s *ListScreen) Query() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.query
}

// Tracker returns the tracker of this screen's operations.
func (s *ListScreen) Tracker() *coord.Tracker {
	return s.tracker
}

// Search narrows the list to query at once and asks the API for it. A blank
// query is the same as ClearSearch.
func (s *ListScreen) Search(query string) *coord.Task {
	query = strings.TrimSpace(query)
	s.mu.Lock()
	s.query = query
	s.publishLocked()
	s.mu.Unlock()
	return s.load(query)
}

// ClearSearch drops the query and reloads the full list.
func (s *ListScreen) ClearSearch() *coord.Task {
	return s.Search("")
}

// Refresh repeats the active operation.
func (s *ListScreen) Refresh() *coord.Task {
	return s.load(s.Query())
}

func (s *ListScreen) load(query string) *coord.Task {
	return s.coord.SearchCats(s.tracker, query)
}

// Close detaches the screen from the store. Operations it started keep
// running and still write their results.
func (s *ListScreen) Close() {
	s.cancel()
	<-s.done
}

// DetailScreen keeps the frame of one breed current while the screen is open.
type DetailScreen struct {
	coord   *coord.Coordinator
	tracker *coord.Tracker
	id      string

	mu      sync.Mutex
	record  *state.Detail
	status  coord.Status
	current DetailState
	updates chan DetailState
	closed  bool

	cancel context.CancelFunc
	done   chan struct{}
}

// OpenDetail opens the detail screen for id and starts fetching it. Cached
// data, if any, is shown while the fetch runs.
func OpenDetail(ctx context.Context, c *coord.Coordinator, id string) *DetailScreen {
	ctx, cancel := context.WithCancel(ctx)
	id = strings.TrimSpace(id)
	s := &DetailScreen{
		coord:   c,
		tracker: coord.NewTracker(),
		id:      id,
		updates: make(chan DetailState, 1),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	records := c.Store().ObserveDetail(ctx, id)
	statuses := s.tracker.Observe(ctx)
	s.Retry()

	s.mu.Lock()
	if d, ok := c.Store().Detail(id); ok {
		s.record = &d
	}
	s.status = s.tracker.Status()
	s.publishLocked()
	s.mu.Unlock()

	go s.run(records, statuses)
	return s
}

func (s *DetailScreen) run(records <-chan *state.Detail, statuses <-chan coord.Status) {
	defer close(s.done)
	defer func() {
		s.mu.Lock()
		s.closed = true
		close(s.updates)
		s.mu.Unlock()
	}()
	for records != nil || statuses != nil {
		select {
		case rec, ok := <-records:
			if !ok {
				records = nil
				continue
			}
			s.mu.Lock()
			s.record = rec
			s.status = s.tracker.Status()
			s.publishLocked()
			s.mu.Unlock()
		case st, ok := <-statuses:
			if !ok {
				statuses = nil
				continue
			}
			s.mu.Lock()
			s.status = st
			if d, ok := s.coord.Store().Detail(s.id); ok {
				s.record = &d
			}
			s.publishLocked()
			s.mu.Unlock()
		}
	}
}

func (s *DetailScreen) publishLocked() {
	s.current = ProjectDetail(s.id, s.record, s.status)
	if !s.closed {
		offer(s.updates, s.current)
	}
}

// ID returns the breed id shown by the screen.
func (s *DetailScreen) ID() string { return s.id }

// Updates streams detail frames. Unread frames are replaced by newer ones.
// The channel is closed when the screen closes.
func (s *DetailScreen) Updates() <-chan DetailState {
	return s.updates
}

// State returns the latest frame.
func (s *DetailScreen) State() DetailState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// Tracker returns the tracker of this screen's operations.
func (s *DetailScreen) Tracker() *coord.Tracker {
	return s.tracker
}

// Retry fetches the breed again.
func (s *DetailScreen) Retry() *coord.Task {
	return s.coord.FetchCatDetails(s.tracker, s.id)
}

// Close detaches the screen. A running fetch still completes and writes to
// the store.
func (s *DetailScreen) Close() {
	s.cancel()
	<-s.done
}

// offer replaces whatever ch is holding with v.
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
