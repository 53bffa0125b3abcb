package coord

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/catapi"
	"github.com/five82/tabby/internal/metrics"
	"github.com/five82/tabby/internal/state"
)

var (
	catA = breed.Breed{ID: "abys", Name: "Abyssinian", ReferenceImageID: "imgA"}
	catB = breed.Breed{ID: "pers", Name: "Persian", ReferenceImageID: "imgB"}
	catC = breed.Breed{ID: "siam", Name: "Siamese"}
)

// reply is one scripted answer of fakeSource. A non-nil gate blocks the call
// until it is closed.
type reply struct {
	breeds []breed.Breed
	one    breed.Breed
	image  breed.Image
	err    error
	gate   chan struct{}
}

// fakeSource implements catapi.Source with scripted replies. Every call
// announces itself on calls before blocking on its gate.
type fakeSource struct {
	mu       sync.Mutex
	fetchAll []reply // consumed in call order; the last one repeats
	search   map[string]reply
	one      map[string]reply
	images   map[string]reply

	calls chan string

	inFlight    int
	maxInFlight int
}

var _ catapi.Source = (*fakeSource)(nil)

func newFakeSource() *fakeSource {
	return &fakeSource{
		search: map[string]reply{},
		one:    map[string]reply{},
		images: map[string]reply{},
		calls:  make(chan string, 64),
	}
}

func (f *fakeSource) enter(call string) {
	f.mu.Lock()
	f.inFlight++
	if f.inFlight > f.maxInFlight {
		f.maxInFlight = f.inFlight
	}
	f.mu.Unlock()
	f.calls <- call
}

func (f *fakeSource) leave() {
	f.mu.Lock()
	f.inFlight--
	f.mu.Unlock()
}

func (f *fakeSource) await(ctx context.Context, r reply) error {
	if r.gate == nil {
		return nil
	}
	select {
	case <-r.gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) FetchAll(ctx context.Context) ([]breed.Breed, error) {
	f.mu.Lock()
	var r reply
	switch len(f.fetchAll) {
	case 0:
	case 1:
		r = f.fetchAll[0]
	default:
		r = f.fetchAll[0]
		f.fetchAll = f.fetchAll[1:]
	}
	f.mu.Unlock()

	f.enter("fetch_all")
	defer f.leave()
	if err := f.await(ctx, r); err != nil {
		return nil, err
	}
	return r.breeds, r.err
}

func (f *fakeSource) Search(ctx context.Context, query string) ([]breed.Breed, error) {
	f.mu.Lock()
	r := f.search[query]
	f.mu.Unlock()

	f.enter("search " + query)
	defer f.leave()
	if err := f.await(ctx, r); err != nil {
		return nil, err
	}
	return r.breeds, r.err
}

func (f *fakeSource) FetchOne(ctx context.Context, id string) (breed.Breed, error) {
	f.mu.Lock()
	r, ok := f.one[id]
	f.mu.Unlock()

	f.enter("fetch_one " + id)
	defer f.leave()
	if err := f.await(ctx, r); err != nil {
		return breed.Breed{}, err
	}
	if !ok {
		return breed.Breed{}, &catapi.TransportError{Op: "fetch breed " + id, Kind: catapi.KindNotFound, Err: catapi.ErrNotFound}
	}
	return r.one, r.err
}

func (f *fakeSource) FetchImage(ctx context.Context, imageID string) (breed.Image, error) {
	f.mu.Lock()
	r, ok := f.images[imageID]
	f.mu.Unlock()

	f.enter("fetch_image " + imageID)
	defer f.leave()
	if err := f.await(ctx, r); err != nil {
		return breed.Image{}, err
	}
	if !ok {
		return breed.Image{}, &catapi.TransportError{Op: "fetch image " + imageID, Kind: catapi.KindNotFound, Err: catapi.ErrNotFound}
	}
	return r.image, r.err
}

func (f *fakeSource) expectCall(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-f.calls:
		if got != want {
			t.Fatalf("source call = %q, want %q", got, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for source call %q", want)
	}
}

func newTestCoordinator(t *testing.T, src *fakeSource, m *metrics.Metrics) (*Coordinator, *state.Store) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	store := &state.Store{}
	c := New(ctx, src, store, Options{Metrics: m})
	t.Cleanup(func() {
		cancel()
		c.Wait()
	})
	return c, store
}

func waitTask(t *testing.T, task *Task) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	err := task.Wait(ctx)
	if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
		t.Fatalf("task %s did not finish", task.Kind)
	}
	return err
}

func TestFetchAllCats_ReplacesCollection(t *testing.T) {
	src := newFakeSource()
	src.fetchAll = []reply{{breeds: []breed.Breed{catA, catB, catC}}}
	m := metrics.New()
	c, store := newTestCoordinator(t, src, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	observed := store.ObserveAll(ctx)
	if first := <-observed; len(first) != 0 {
		t.Fatalf("first emission = %#v, want empty", first)
	}

	tracker := NewTracker()
	task := c.FetchAllCats(tracker)
	if err := waitTask(t, task); err != nil {
		t.Fatalf("FetchAllCats returned error: %v", err)
	}

	if got := <-observed; !reflect.DeepEqual(got, []breed.Breed{catA, catB, catC}) {
		t.Fatalf("second emission = %#v, want [A B C]", got)
	}
	if st := tracker.Status(); st.Phase != Success || st.Err != nil {
		t.Fatalf("status = %+v, want success", st)
	}
	if got := testutil.ToFloat64(m.CacheWriteTotal.WithLabelValues("collection")); got != 1 {
		t.Fatalf("collection writes = %v, want 1", got)
	}
	if task.ID == "" || task.Kind != KindFetchAll {
		t.Fatalf("task = %+v, want id and kind %q", task, KindFetchAll)
	}
}

func TestFetchAllCats_IsIdempotent(t *testing.T) {
	src := newFakeSource()
	src.fetchAll = []reply{{breeds: []breed.Breed{catA, catB, catC}}}
	c, store := newTestCoordinator(t, src, nil)

	_ = waitTask(t, c.FetchAllCats(nil))
	first := store.All()
	_ = waitTask(t, c.FetchAllCats(nil))
	if !reflect.DeepEqual(first, store.All()) {
		t.Fatalf("collection after second fetch = %#v, want %#v", store.All(), first)
	}
}

func TestFetchAllCats_WriteHappensBeforeSuccess(t *testing.T) {
	gate := make(chan struct{})
	src := newFakeSource()
	src.fetchAll = []reply{{breeds: []breed.Breed{catA, catB}, gate: gate}}
	c, store := newTestCoordinator(t, src, nil)

	tracker := NewTracker()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	statuses := tracker.Observe(ctx)
	<-statuses // idle

	task := c.FetchAllCats(tracker)
	if st := tracker.Status(); st.Phase != Loading {
		t.Fatalf("status right after issue = %v, want loading", st.Phase)
	}
	src.expectCall(t, "fetch_all")
	close(gate)

	deadline := time.After(2 * time.Second)
	for {
		select {
		case st := <-statuses:
			if st.Phase != Success {
				continue
			}
			if got := len(store.All()); got != 2 {
				t.Fatalf("collection size when success observed = %d, want 2", got)
			}
			_ = waitTask(t, task)
			return
		case <-deadline:
			t.Fatal("never observed success")
		}
	}
}

func TestFetchAllCats_FailureKeepsCache(t *testing.T) {
	src := newFakeSource()
	boom := &catapi.TransportError{Op: "fetch breeds", Kind: catapi.KindStatus, StatusCode: 500, Err: errors.New("boom")}
	src.fetchAll = []reply{{breeds: []breed.Breed{catA, catB, catC}}, {err: boom}}
	c, store := newTestCoordinator(t, src, nil)

	tracker := NewTracker()
	_ = waitTask(t, c.FetchAllCats(tracker))
	err := waitTask(t, c.FetchAllCats(tracker))
	if !errors.Is(err, boom) {
		t.Fatalf("second fetch error = %v, want %v", err, boom)
	}
	if got := store.All(); len(got) != 3 {
		t.Fatalf("collection after failure = %#v, want previous 3 breeds", got)
	}
	st := tracker.Status()
	if st.Phase != Failed || !errors.Is(st.Err, boom) {
		t.Fatalf("status = %+v, want failed with boom", st)
	}
}

func TestSearchCats_BlankQueryRestoresFullList(t *testing.T) {
	src := newFakeSource()
	src.fetchAll = []reply{{breeds: []breed.Breed{catA, catB, catC}}}
	src.search["per"] = reply{breeds: []breed.Breed{catB}}
	c, store := newTestCoordinator(t, src, nil)
	tracker := NewTracker()

	_ = waitTask(t, c.FetchAllCats(tracker))
	src.expectCall(t, "fetch_all")

	task := c.SearchCats(tracker, "per")
	if err := waitTask(t, task); err != nil {
		t.Fatalf("SearchCats returned error: %v", err)
	}
	src.expectCall(t, "search per")
	if got := store.All(); !reflect.DeepEqual(got, []breed.Breed{catB}) {
		t.Fatalf("collection after search = %#v, want [B]", got)
	}

	task = c.SearchCats(tracker, "   ")
	if task.Kind != KindFetchAll {
		t.Fatalf("blank search kind = %q, want %q", task.Kind, KindFetchAll)
	}
	_ = waitTask(t, task)
	src.expectCall(t, "fetch_all")
	if got := store.All(); !reflect.DeepEqual(got, []breed.Breed{catA, catB, catC}) {
		t.Fatalf("collection after blank search = %#v, want [A B C]", got)
	}
	if st := tracker.Status(); st.Phase != Success {
		t.Fatalf("status = %v, want success", st.Phase)
	}
}

func TestFetchAllCats_LastCompletionWins(t *testing.T) {
	first := []breed.Breed{catA}
	second := []breed.Breed{catB, catC}

	tests := []struct {
		name        string
		secondFirst bool
		want        []breed.Breed
	}{
		{"first resolves first", false, second},
		{"second resolves first", true, first},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gate1, gate2 := make(chan struct{}), make(chan struct{})
			src := newFakeSource()
			src.fetchAll = []reply{{breeds: first, gate: gate1}, {breeds: second, gate: gate2}}
			c, store := newTestCoordinator(t, src, nil)
			tracker := NewTracker()

			t1 := c.FetchAllCats(tracker)
			src.expectCall(t, "fetch_all")
			t2 := c.FetchAllCats(tracker)
			src.expectCall(t, "fetch_all")

			if got := tracker.InFlight(); got != 2 {
				t.Fatalf("in flight = %d, want 2", got)
			}

			earlyGate, earlyTask, earlyData := gate1, t1, first
			lateGate, lateTask := gate2, t2
			if tt.secondFirst {
				earlyGate, earlyTask, earlyData = gate2, t2, second
				lateGate, lateTask = gate1, t1
			}

			close(earlyGate)
			_ = waitTask(t, earlyTask)
			if got := store.All(); !reflect.DeepEqual(got, earlyData) {
				t.Fatalf("collection after early completion = %#v, want %#v", got, earlyData)
			}
			if st := tracker.Status(); st.Phase != Loading {
				t.Fatalf("status with one fetch pending = %v, want loading", st.Phase)
			}

			close(lateGate)
			_ = waitTask(t, lateTask)
			if got := store.All(); !reflect.DeepEqual(got, tt.want) {
				t.Fatalf("final collection = %#v, want %#v", got, tt.want)
			}
			if st := tracker.Status(); st.Phase != Success {
				t.Fatalf("final status = %v, want success", st.Phase)
			}
		})
	}
}

func TestFetchCatDetails_WritesEntityThenImage(t *testing.T) {
	imgGate := make(chan struct{})
	img := breed.Image{ID: "imgB", URL: "https://cdn/b.jpg", Width: 640, Height: 480}
	src := newFakeSource()
	src.one["pers"] = reply{one: catB}
	src.images["imgB"] = reply{image: img, gate: imgGate}
	m := metrics.New()
	c, store := newTestCoordinator(t, src, m)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	details := store.ObserveDetail(ctx, "pers")
	if first := <-details; first != nil {
		t.Fatalf("first emission = %#v, want nil", first)
	}

	tracker := NewTracker()
	task := c.FetchCatDetails(tracker, "pers")
	src.expectCall(t, "fetch_one pers")
	src.expectCall(t, "fetch_image imgB")

	withoutImage := <-details
	if withoutImage == nil || withoutImage.Breed != catB || withoutImage.HasImage() {
		t.Fatalf("first write = %#v, want breed without image", withoutImage)
	}
	if st := tracker.Status(); st.Phase != Success {
		t.Fatalf("status while image pending = %v, want success", st.Phase)
	}
	select {
	case <-task.Done():
		t.Fatal("task finished before image attached")
	default:
	}

	close(imgGate)
	withImage := <-details
	if withImage == nil || withImage.Image != img || withImage.Breed != catB {
		t.Fatalf("second write = %#v, want breed with image", withImage)
	}
	if err := waitTask(t, task); err != nil {
		t.Fatalf("FetchCatDetails returned error: %v", err)
	}
	if got := testutil.ToFloat64(m.CacheWriteTotal.WithLabelValues("detail")); got != 2 {
		t.Fatalf("detail writes = %v, want 2", got)
	}
}

func TestFetchCatDetails_ImageFailureKeepsEntity(t *testing.T) {
	src := newFakeSource()
	src.one["abys"] = reply{one: catA} // imgA not scripted: not found
	c, store := newTestCoordinator(t, src, nil)

	tracker := NewTracker()
	if err := waitTask(t, c.FetchCatDetails(tracker, "abys")); err != nil {
		t.Fatalf("FetchCatDetails returned error: %v", err)
	}
	d, ok := store.Detail("abys")
	if !ok || d.Breed != catA || d.HasImage() {
		t.Fatalf("Detail(abys) = %#v, %v; want breed without image", d, ok)
	}
	if st := tracker.Status(); st.Phase != Success || st.Err != nil {
		t.Fatalf("status = %+v, want success", st)
	}
}

func TestFetchCatDetails_SkipsImageWithoutReference(t *testing.T) {
	src := newFakeSource()
	src.one["siam"] = reply{one: catC}
	c, store := newTestCoordinator(t, src, nil)

	_ = waitTask(t, c.FetchCatDetails(nil, "siam"))
	src.expectCall(t, "fetch_one siam")
	select {
	case call := <-src.calls:
		t.Fatalf("unexpected source call %q", call)
	default:
	}
	if _, ok := store.Detail("siam"); !ok {
		t.Fatal("Detail(siam) missing")
	}
}

func TestFetchCatDetails_FailureLeavesRecord(t *testing.T) {
	src := newFakeSource()
	c, store := newTestCoordinator(t, src, nil)

	prior := breed.Breed{ID: "x", Name: "Old"}
	store.UpsertDetail("x", prior, nil)

	tracker := NewTracker()
	err := waitTask(t, c.FetchCatDetails(tracker, "x"))
	if !errors.Is(err, catapi.ErrNotFound) {
		t.Fatalf("error = %v, want not found", err)
	}
	d, ok := store.Detail("x")
	if !ok || d.Breed != prior {
		t.Fatalf("Detail(x) = %#v, %v; want prior record", d, ok)
	}
	st := tracker.Status()
	if st.Phase != Failed || st.Err == nil {
		t.Fatalf("status = %+v, want failed", st)
	}

	// A record that never existed stays absent.
	_ = waitTask(t, c.FetchCatDetails(tracker, "y"))
	if _, ok := store.Detail("y"); ok {
		t.Fatal("failed fetch created a record")
	}
}

func TestPrefetch_BoundsConcurrencyAndSkipsCached(t *testing.T) {
	gate := make(chan struct{})
	src := newFakeSource()
	ids := []string{"b1", "b2", "b3", "b4", "b5", "b6", "cached"}
	for _, id := range ids[:6] {
		src.one[id] = reply{one: breed.Breed{ID: id, Name: id}, gate: gate}
	}
	src.one["bad"] = reply{err: errors.New("boom")}
	c, store := newTestCoordinator(t, src, nil)
	store.UpsertDetail("cached", breed.Breed{ID: "cached"}, nil)

	task := c.Prefetch(append(ids, "b1", " ", "bad")...)

	for i := 0; i < maxConcurrentPrefetches; i++ {
		<-src.calls
	}
	select {
	case call := <-src.calls:
		t.Fatalf("call %q started beyond the concurrency limit", call)
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)

	err := waitTask(t, task)
	if err == nil {
		t.Fatal("Prefetch error = nil, want failure for bad")
	}
	src.mu.Lock()
	peak := src.maxInFlight
	src.mu.Unlock()
	if peak > maxConcurrentPrefetches {
		t.Fatalf("peak concurrency = %d, want <= %d", peak, maxConcurrentPrefetches)
	}
	for _, id := range ids[:6] {
		if _, ok := store.Detail(id); !ok {
			t.Errorf("Detail(%s) missing after prefetch", id)
		}
	}
	if d, _ := store.Detail("cached"); d.Breed.Name != "" {
		t.Fatalf("cached record was refetched: %#v", d)
	}
}

func TestWait_DrainsRunningOperations(t *testing.T) {
	gate := make(chan struct{})
	src := newFakeSource()
	src.fetchAll = []reply{{breeds: []breed.Breed{catA}, gate: gate}}
	c := New(context.Background(), src, &state.Store{}, Options{})

	c.FetchAllCats(nil)
	src.expectCall(t, "fetch_all")

	drained := make(chan struct{})
	go func() {
		c.Wait()
		close(drained)
	}()
	select {
	case <-drained:
		t.Fatal("Wait returned with an operation in flight")
	case <-time.After(50 * time.Millisecond):
	}
	close(gate)
	select {
	case <-drained:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait did not return after operation finished")
	}
}

func TestOperations_RunOnCoordinatorLifetime(t *testing.T) {
	gate := make(chan struct{})
	src := newFakeSource()
	src.fetchAll = []reply{{breeds: []breed.Breed{catA}, gate: gate}}

	lifetime, cancel := context.WithCancel(context.Background())
	c := New(lifetime, src, &state.Store{}, Options{})

	tracker := NewTracker()
	task := c.FetchAllCats(tracker)
	src.expectCall(t, "fetch_all")

	// Abandoning the wait does not stop the operation.
	waitCtx, stopWaiting := context.WithCancel(context.Background())
	stopWaiting()
	if err := task.Wait(waitCtx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Wait with cancelled ctx = %v, want context.Canceled", err)
	}
	if task.Err() != nil {
		t.Fatalf("Err() before completion = %v, want nil", task.Err())
	}

	cancel()
	c.Wait()
	if err := task.Err(); !errors.Is(err, context.Canceled) {
		t.Fatalf("task error after shutdown = %v, want context.Canceled", err)
	}
	if st := tracker.Status(); st.Phase != Failed {
		t.Fatalf("status after shutdown = %v, want failed", st.Phase)
	}
}

func TestOperations_TrackInFlightMetric(t *testing.T) {
	gate := make(chan struct{})
	src := newFakeSource()
	src.search["per"] = reply{breeds: []breed.Breed{catB}, gate: gate}
	m := metrics.New()
	c, _ := newTestCoordinator(t, src, m)

	task := c.SearchCats(nil, " per ")
	src.expectCall(t, "search per")
	if got := testutil.ToFloat64(m.OperationsInFlight.WithLabelValues(KindSearch)); got != 1 {
		t.Fatalf("in flight = %v, want 1", got)
	}
	close(gate)
	_ = waitTask(t, task)
	c.Wait()
	if got := testutil.ToFloat64(m.OperationsInFlight.WithLabelValues(KindSearch)); got != 0 {
		t.Fatalf("in flight after finish = %v, want 0", got)
	}
}

func ExampleCoordinator_SearchCats() {
	src := newFakeSource()
	src.search["sia"] = reply{breeds: []breed.Breed{catC}}
	store := &state.Store{}
	c := New(context.Background(), src, store, Options{})

	_ = c.SearchCats(nil, "sia").Wait(context.Background())
	for _, b := range store.All() {
		fmt.Println(b.ID, b.Name)
	}
	// Output: siam Siamese
}
