// Package state holds the in-memory breed cache for Tabby.
//
// # Overview
//
// The Store is the single source of truth the UI renders from. Remote
// fetches never hand data to screens directly: the coordinator writes into
// the Store and screens observe it. Two independent records live here:
//
//   - the collection: an ordered list of breeds, replaced wholesale
//   - detail records: one per breed id, each an entity plus an optional image
//
// Writing one never touches the other.
//
// # Architecture
//
//	Writers (coordinator):          Observers (screens):
//	┌──────────────────┐           ┌────────────────────┐
//	│ ReplaceAll()     │           │ ObserveAll(ctx)    │
//	│ UpsertDetail()   │──────────→│ ObserveDetail(ctx) │
//	│      ↓           │  (mutex + │      ↓             │
//	│ swap snapshot    │  atomic)  │ render             │
//	└──────────────────┘           └────────────────────┘
//
// # Concurrency Model
//
// State is kept in an immutable snapshot behind an atomic pointer:
//
//   - All/Lookup/Detail load the pointer and never block
//   - writers hold a mutex, build a fresh snapshot and swap it in
//   - observers are notified before the mutex is released
//
// A reader therefore sees either the previous collection or the next one.
// There is no moment where a half-applied replace is visible.
//
// # Observation
//
// Observer channels have capacity one and conflate: a new value replaces an
// unread one. A slow screen skips intermediate states but always converges
// on the latest. ObserveDetail additionally suppresses value-equal rewrites
// and writes for other ids.
//
//	ch := store.ObserveDetail(ctx, "pers")
//	for d := range ch {
//		if d == nil {
//			continue // nothing cached yet
//		}
//		render(d.Breed, d.Image)
//	}
//
// Cancelling ctx detaches the observer and closes its channel.
//
// # Testing Considerations
//
// The zero Store is ready to use and starts empty:
//
//	store := &state.Store{}
//	store.All()            // []
//	store.Detail("pers")   // Detail{}, false
package state
