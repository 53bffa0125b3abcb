package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/coord"
	"github.com/five82/tabby/internal/state"
)

func TestCalculateBackoff(t *testing.T) {
	baseInterval := 2 * time.Second

	tests := []struct {
		name     string
		failures int
		want     time.Duration
	}{
		{"zero failures", 0, 2 * time.Second},
		{"negative failures", -1, 2 * time.Second},
		{"one failure", 1, 4 * time.Second},
		{"two failures", 2, 8 * time.Second},
		{"three failures", 3, 16 * time.Second},
		{"four failures capped", 4, 30 * time.Second}, // Would be 32s, capped to 30s
		{"many failures capped", 10, 30 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calculateBackoff(tt.failures, baseInterval)
			if got != tt.want {
				t.Errorf("calculateBackoff(%d, %v) = %v, want %v", tt.failures, baseInterval, got, tt.want)
			}
		})
	}
}

func TestCalculateBackoff_MaxCap(t *testing.T) {
	// Verify that backoff never exceeds maxBackoff regardless of input
	baseInterval := 2 * time.Second
	for failures := 0; failures <= 20; failures++ {
		got := calculateBackoff(failures, baseInterval)
		if got > maxBackoff {
			t.Errorf("calculateBackoff(%d, %v) = %v, exceeds maxBackoff %v", failures, baseInterval, got, maxBackoff)
		}
	}
}

func TestCalculateBackoff_LongIntervalIsNotShortened(t *testing.T) {
	base := time.Minute
	if got := calculateBackoff(3, base); got != base {
		t.Fatalf("calculateBackoff(3, %v) = %v, want %v", base, got, base)
	}
}

// countingSource answers FetchAll with a scripted sequence of errors and
// announces every call.
type countingSource struct {
	mu     sync.Mutex
	errs   []error
	calls  int
	called chan int
}

func (s *countingSource) FetchAll(context.Context) ([]breed.Breed, error) {
	s.mu.Lock()
	s.calls++
	n := s.calls
	var err error
	if n <= len(s.errs) {
		err = s.errs[n-1]
	}
	s.mu.Unlock()
	select {
	case s.called <- n:
	default:
	}
	if err != nil {
		return nil, err
	}
	return []breed.Breed{{ID: "abys", Name: "Abyssinian"}}, nil
}

func (s *countingSource) FetchOne(context.Context, string) (breed.Breed, error) {
	return breed.Breed{}, errors.New("unused")
}

func (s *countingSource) Search(context.Context, string) ([]breed.Breed, error) {
	return nil, errors.New("unused")
}

func (s *countingSource) FetchImage(context.Context, string) (breed.Image, error) {
	return breed.Image{}, errors.New("unused")
}

type fetchAllRefresher struct {
	c *coord.Coordinator
}

func (r fetchAllRefresher) Refresh() *coord.Task {
	return r.c.FetchAllCats(nil)
}

func TestStartRefresher_RefreshesUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &countingSource{
		errs:   []error{errors.New("offline")},
		called: make(chan int, 16),
	}
	store := &state.Store{}
	c := coord.New(ctx, src, store, coord.Options{})
	t.Cleanup(c.Wait)
	defer cancel()

	StartRefresher(ctx, fetchAllRefresher{c: c}, 10*time.Millisecond, nil)

	// The first refresh fails, the retry after the backoff succeeds.
	for want := 1; want <= 2; want++ {
		select {
		case n := <-src.called:
			if n != want {
				t.Fatalf("refresh call = %d, want %d", n, want)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("refresh %d never happened", want)
		}
	}

	deadline := time.After(2 * time.Second)
	for len(store.All()) != 1 {
		select {
		case <-deadline:
			t.Fatalf("store = %+v, want the refreshed collection", store.All())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestStartRefresher_NonPositiveIntervalIsDisabled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	src := &countingSource{called: make(chan int, 1)}
	c := coord.New(ctx, src, &state.Store{}, coord.Options{})
	t.Cleanup(c.Wait)

	StartRefresher(ctx, fetchAllRefresher{c: c}, 0, nil)

	select {
	case <-src.called:
		t.Fatal("refresh ran with interval 0")
	case <-time.After(50 * time.Millisecond):
	}
}
