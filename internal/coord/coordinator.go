// Package coord runs fetch, search and detail operations against the cat API
// and applies their results to the shared store.
package coord

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/five82/tabby/internal/breed"
	"github.com/five82/tabby/internal/catapi"
	"github.com/five82/tabby/internal/logging"
	"github.com/five82/tabby/internal/metrics"
	"github.com/five82/tabby/internal/state"
)

// maxConcurrentPrefetches limits parallel detail fetches in Prefetch.
const maxConcurrentPrefetches = 4

// Operation kinds, used for task kinds, log fields and metric labels.
const (
	KindFetchAll = "fetch_all"
	KindSearch   = "search"
	KindDetail   = "detail"
	KindPrefetch = "prefetch"
)

// Options carries the optional collaborators of a Coordinator.
type Options struct {
	Logger  *log.Logger      // nil discards
	Metrics *metrics.Metrics // nil records nothing
}

// Coordinator issues remote calls and writes their results into the store.
//
// Every operation runs in its own goroutine bound to the context given to
// New, never to the caller's: a screen that goes away does not cancel the
// work it started. Overlapping operations are not coalesced; the store ends
// up holding whichever result completed last. Cancel the lifetime context
// and call Wait to shut down.
type Coordinator struct {
	ctx     context.Context
	source  catapi.Source
	store   *state.Store
	logger  *log.Logger
	metrics *metrics.Metrics
	wg      sync.WaitGroup
}

// New creates a Coordinator whose operations live as long as ctx.
func New(ctx context.Context, source catapi.Source, store *state.Store, opts Options) *Coordinator {
	return &Coordinator{
		ctx:     ctx,
		source:  source,
		store:   store,
		logger:  logging.OrDiscard(opts.Logger),
		metrics: opts.Metrics,
	}
}

// Store returns the store the coordinator writes to.
func (c *Coordinator) Store() *state.Store {
	return c.store
}

// Wait blocks until every started operation has finished.
// Call after cancelling the lifetime context for a prompt return.
func (c *Coordinator) Wait() {
	c.wg.Wait()
}

// FetchAllCats replaces the collection with the full breed list. On failure
// the collection is left as it was and tracker reports Failed.
func (c *Coordinator) FetchAllCats(tracker *Tracker) *Task {
	return c.start(KindFetchAll, tracker, func(ctx context.Context, logger *log.Logger, settle func(error)) error {
		breeds, err := c.source.FetchAll(ctx)
		if err != nil {
			return fmt.Errorf("fetch all breeds: %w", err)
		}
		c.replaceAll(breeds)
		logger.Debug("collection replaced", "count", len(breeds))
		return nil
	})
}

// SearchCats replaces the collection with the breeds matching query. A blank
// query clears the search: it behaves exactly like FetchAllCats.
func (c *Coordinator) SearchCats(tracker *Tracker, query string) *Task {
	query = strings.TrimSpace(query)
	if query == "" {
		return c.FetchAllCats(tracker)
	}
	return c.start(KindSearch, tracker, func(ctx context.Context, logger *log.Logger, settle func(error)) error {
		breeds, err := c.source.Search(ctx, query)
		if err != nil {
			return fmt.Errorf("search breeds %q: %w", query, err)
		}
		c.replaceAll(breeds)
		logger.Debug("collection replaced", "query", query, "count", len(breeds))
		return nil
	}, "query", query)
}

// FetchCatDetails loads the detail record for id. The record is written
// twice: first the breed alone, which is when tracker reports Success, then
// the breed with its reference image. An image failure is logged and leaves
// the first write in place. On a breed failure the record is untouched.
func (c *Coordinator) FetchCatDetails(tracker *Tracker, id string) *Task {
	id = strings.TrimSpace(id)
	return c.start(KindDetail, tracker, func(ctx context.Context, logger *log.Logger, settle func(error)) error {
		return c.loadDetail(ctx, logger, id, settle)
	}, "id", id)
}

// Prefetch loads detail records for ids that have none yet, a few at a time.
// It reports to no tracker; the returned task's error joins the per-id
// failures.
func (c *Coordinator) Prefetch(ids ...string) *Task {
	pending := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		if _, ok := c.store.Detail(id); ok {
			continue
		}
		pending = append(pending, id)
	}

	return c.start(KindPrefetch, nil, func(ctx context.Context, logger *log.Logger, settle func(error)) error {
		var (
			g    errgroup.Group
			mu   sync.Mutex
			errs []error
		)
		g.SetLimit(maxConcurrentPrefetches)

		for _, id := range pending {
			id := id
			g.Go(func() error {
				if ctx.Err() != nil {
					return nil
				}
				if err := c.loadDetail(ctx, logger.With("id", id), id, nil); err != nil {
					mu.Lock()
					errs = append(errs, err)
					mu.Unlock()
				}
				return nil // failures are per id
			})
		}
		_ = g.Wait()
		logger.Debug("prefetch finished", "count", len(pending), "failed", len(errs))
		return errors.Join(errs...)
	}, "count", len(pending))
}

// loadDetail fetches one breed, writes it, calls settle, then attaches the
// reference image with a second write.
func (c *Coordinator) loadDetail(ctx context.Context, logger *log.Logger, id string, settle func(error)) error {
	if id == "" {
		return fmt.Errorf("breed id required")
	}
	entity, err := c.source.FetchOne(ctx, id)
	if err != nil {
		return fmt.Errorf("fetch breed %s: %w", id, err)
	}
	c.upsertDetail(id, entity, nil)
	if settle != nil {
		settle(nil)
	}

	if entity.ReferenceImageID == "" {
		logger.Debug("breed has no reference image")
		return nil
	}
	img, err := c.source.FetchImage(ctx, entity.ReferenceImageID)
	if err != nil {
		logger.Warn("image fetch failed", "image_id", entity.ReferenceImageID, "err", err)
		return nil
	}
	c.upsertDetail(id, entity, &img)
	return nil
}

func (c *Coordinator) replaceAll(breeds []breed.Breed) {
	c.store.ReplaceAll(breeds)
	c.metrics.CacheWrite("collection")
}

func (c *Coordinator) upsertDetail(id string, entity breed.Breed, img *breed.Image) {
	c.store.UpsertDetail(id, entity, img)
	c.metrics.CacheWrite("detail")
}

// start puts tracker into Loading and runs fn in the background. fn may call
// settle to report its outcome to tracker early; otherwise its return value
// is reported when it finishes. Store writes inside fn happen before the
// outcome reaches tracker.
func (c *Coordinator) start(kind string, tracker *Tracker, fn func(ctx context.Context, logger *log.Logger, settle func(error)) error, fields ...any) *Task {
	task := newTask(uuid.NewString(), kind)
	logger := c.logger.With(append([]any{"op", kind, "op_id", task.ID}, fields...)...)

	var once sync.Once
	settle := func(err error) {
		once.Do(func() { tracker.finish(err) })
	}

	tracker.begin()
	c.metrics.OperationStarted(kind)
	logger.Debug("operation started")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.metrics.OperationFinished(kind)

		err := fn(c.ctx, logger, settle)
		settle(err)
		if err != nil {
			logger.Error("operation failed", "err", err)
		} else {
			logger.Debug("operation finished")
		}
		task.complete(err)
	}()
	return task
}
