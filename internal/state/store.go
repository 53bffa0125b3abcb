package state

import (
	"context"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/five82/tabby/internal/breed"
)

// Detail is the cached record for one breed id: the breed itself plus its
// reference image once resolved. Image is the zero value until then.
type Detail struct {
	Breed breed.Breed
	Image breed.Image
}

// HasImage reports whether the image has been attached.
func (d Detail) HasImage() bool {
	return !d.Image.IsZero()
}

// snapshot is never modified after it has been published.
type snapshot struct {
	all     []breed.Breed
	details map[string]Detail
}

var emptySnapshot = &snapshot{details: map[string]Detail{}}

// Store is the in-memory single source of truth for breeds.
//
// Reads load the current snapshot without locking. Writes build a new
// snapshot under mu and swap it in, then notify observers while still holding
// mu so that every observer sees writes in the order they were applied.
type Store struct {
	current atomic.Pointer[snapshot]

	mu         sync.Mutex
	nextID     int
	allSubs    map[int]chan []breed.Breed
	detailSubs map[string]map[int]*detailSub
}

type detailSub struct {
	ch   chan *Detail
	last *Detail
}

func (s *Store) load() *snapshot {
	if snap := s.current.Load(); snap != nil {
		return snap
	}
	return emptySnapshot
}

// All returns a copy of the current collection in arrival order.
func (s *Store) All() []breed.Breed {
	return slices.Clone(s.load().all)
}

// Lookup finds a breed in the current collection by id.
func (s *Store) Lookup(id string) (breed.Breed, bool) {
	for _, b := range s.load().all {
		if b.ID == id {
			return b, true
		}
	}
	return breed.Breed{}, false
}

// Detail returns the cached detail record for id.
func (s *Store) Detail(id string) (Detail, bool) {
	d, ok := s.load().details[id]
	return d, ok
}

// ReplaceAll swaps the whole collection for entities. Readers see either the
// previous collection or the new one, never a mix.
func (s *Store) ReplaceAll(entities []breed.Breed) {
	all := slices.Clone(entities)

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.load()
	s.current.Store(&snapshot{all: all, details: prev.details})

	for _, ch := range s.allSubs {
		offer(ch, slices.Clone(all))
	}
}

// UpsertDetail writes or overwrites the detail record for id. A nil image
// stores the record without one.
func (s *Store) UpsertDetail(id string, entity breed.Breed, image *breed.Image) {
	rec := Detail{Breed: entity}
	if image != nil {
		rec.Image = *image
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev := s.load()
	details := make(map[string]Detail, len(prev.details)+1)
	for k, v := range prev.details {
		details[k] = v
	}
	details[id] = rec
	s.current.Store(&snapshot{all: prev.all, details: details})

	for _, sub := range s.detailSubs[id] {
		sub.publish(&rec)
	}
}

// ObserveAll streams collection snapshots until ctx is cancelled, after which
// the channel is closed. The first value is the current collection (possibly
// empty); each ReplaceAll produces another. A slow reader only ever misses
// intermediate values: the channel always ends up holding the latest one.
func (s *Store) ObserveAll(ctx context.Context) <-chan []breed.Breed {
	ch := make(chan []breed.Breed, 1)

	s.mu.Lock()
	id := s.register()
	if s.allSubs == nil {
		s.allSubs = make(map[int]chan []breed.Breed)
	}
	s.allSubs[id] = ch
	ch <- slices.Clone(s.load().all)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.allSubs, id)
		close(ch)
		s.mu.Unlock()
	}()
	return ch
}

// ObserveDetail streams the record for id until ctx is cancelled. The first
// value is the current record, or nil when there is none. Later values are
// sent only when a write for this id changes the record; writes to other ids
// and value-equal rewrites are not delivered.
func (s *Store) ObserveDetail(ctx context.Context, id string) <-chan *Detail {
	sub := &detailSub{ch: make(chan *Detail, 1)}

	s.mu.Lock()
	subID := s.register()
	if s.detailSubs == nil {
		s.detailSubs = make(map[string]map[int]*detailSub)
	}
	if s.detailSubs[id] == nil {
		s.detailSubs[id] = make(map[int]*detailSub)
	}
	s.detailSubs[id][subID] = sub
	var initial *Detail
	if d, ok := s.load().details[id]; ok {
		initial = &d
	}
	sub.last = initial
	sub.ch <- copyDetail(initial)
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(s.detailSubs[id], subID)
		if len(s.detailSubs[id]) == 0 {
			delete(s.detailSubs, id)
		}
		close(sub.ch)
		s.mu.Unlock()
	}()
	return sub.ch
}

// Observers returns the number of attached observers.
func (s *Store) Observers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.allSubs)
	for _, subs := range s.detailSubs {
		n += len(subs)
	}
	return n
}

// register must be called with mu held.
func (s *Store) register() int {
	s.nextID++
	return s.nextID
}

// publish must be called with the store mutex held.
func (d *detailSub) publish(rec *Detail) {
	if d.last != nil && *d.last == *rec {
		return
	}
	d.last = copyDetail(rec)
	offer(d.ch, copyDetail(rec))
}

func copyDetail(d *Detail) *Detail {
	if d == nil {
		return nil
	}
	dup := *d
	return &dup
}

// offer replaces whatever ch is holding with v. ch must have capacity 1 and
// only the store (under its mutex) may send on it.
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
