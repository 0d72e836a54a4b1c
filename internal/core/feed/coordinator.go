package feed

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// fetchTask is one logical request. Retries reuse the task and its token.
type fetchTask struct {
	cancel context.CancelFunc
	retry  Timer
	gapKey string // key of the gap being loaded, for AtIndex requests
	tail   bool   // AtIndex request past the end, merged below the last entry
	rng    RequestRange
	at     InsertionPoint
	id     uuid.UUID
}

// Coordinator turns insertion requests into cursor-bounded fetches and hands
// the results to the store.
//
// All methods must be called on the coordination goroutine.
type Coordinator[E Keyed] struct {
	store       *Store[E]
	fetcher     Fetcher[E]
	exec        Executor
	logger      *slog.Logger
	metrics     *Metrics
	pending     map[uuid.UUID]*fetchTask
	loadingGaps map[string]uuid.UUID
	spawn       func(func())
	pageSize    int
	retryDelay  time.Duration
}

// NewCoordinator creates a coordinator writing into store
func NewCoordinator[E Keyed](store *Store[E], fetcher Fetcher[E], exec Executor, opts Options) *Coordinator[E] {
	opts = opts.withDefaults()
	return &Coordinator[E]{
		store:       store,
		fetcher:     fetcher,
		exec:        exec,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
		pending:     make(map[uuid.UUID]*fetchTask),
		loadingGaps: make(map[string]uuid.UUID),
		spawn:       func(fn func()) { go fn() },
		pageSize:    opts.PageSize,
		retryDelay:  opts.RetryDelay,
	}
}

// RangeFor computes the fetch range that satisfies an insertion request
func (c *Coordinator[E]) RangeFor(at InsertionPoint) RequestRange {
	switch at.Kind {
	case InsertDetachedAbove:
		return DefaultRange(c.pageSize)

	case InsertAbove:
		if key, ok := c.store.FirstEntryKey(); ok {
			return MinRange(key, c.pageSize)
		}

	case InsertBelow:
		if key, ok := c.store.LastEntryKey(); ok {
			return MaxRange(key, c.pageSize)
		}

	case InsertAtIndex:
		if at.Index >= c.store.Len() {
			// A stale index loads whatever is older than the last entry
			c.logger.Warn("gap index beyond sequence, loading older entries instead",
				"index", at.Index, "slots", c.store.Len(), "error", ErrStaleIndex)
			if key, ok := c.store.LastEntryKey(); ok {
				return MaxRange(key, c.pageSize)
			}
			return DefaultRange(c.pageSize)
		}
		if key, ok := c.store.LastEntryKeyBefore(at.Index); ok {
			return MaxRange(key, c.pageSize)
		}
	}

	return DefaultRange(c.pageSize)
}

// Fetch issues the request for an insertion point. A gap that is already
// loading is not requested twice.
func (c *Coordinator[E]) Fetch(at InsertionPoint) {
	task := &fetchTask{id: uuid.New(), at: at}

	if at.Kind == InsertAtIndex {
		if slot, ok := c.store.SlotAt(at.Index); ok && slot.IsGap() {
			if _, loading := c.loadingGaps[slot.Key]; loading {
				return
			}
			task.gapKey = slot.Key
		} else if at.Index >= c.store.Len() {
			task.tail = true
		}
	}

	task.rng = c.RangeFor(at)
	if task.gapKey != "" {
		c.loadingGaps[task.gapKey] = task.id
		c.store.Touch(at.Index)
	}

	c.logger.Debug("fetching entries", "insertion", at.String(), "range", task.rng.String(), "task", task.id)
	c.start(task)
}

// GapLoading reports whether the gap at index has a fetch in flight
func (c *Coordinator[E]) GapLoading(index int) bool {
	slot, ok := c.store.SlotAt(index)
	if !ok || !slot.IsGap() {
		return false
	}
	_, loading := c.loadingGaps[slot.Key]
	return loading
}

// Pending returns the number of requests in flight or waiting to retry
func (c *Coordinator[E]) Pending() int {
	return len(c.pending)
}

// CancelAll aborts every in-flight and retrying request. Their completions
// become no-ops.
func (c *Coordinator[E]) CancelAll() {
	for id, task := range c.pending {
		if task.cancel != nil {
			task.cancel()
		}
		if task.retry != nil {
			task.retry.Stop()
		}
		delete(c.pending, id)
	}
	clear(c.loadingGaps)
}

func (c *Coordinator[E]) start(task *fetchTask) {
	ctx, cancel := context.WithCancel(context.Background())
	task.cancel = cancel
	task.retry = nil
	c.pending[task.id] = task

	id, rng := task.id, task.rng
	c.spawn(func() {
		page, err := c.fetcher.FetchEntries(ctx, rng)
		if postErr := c.exec.Post(func() { c.complete(id, page, err) }); postErr != nil {
			cancel()
		}
	})
}

func (c *Coordinator[E]) complete(id uuid.UUID, page *Page[E], err error) {
	task, ok := c.pending[id]
	if !ok {
		// Canceled by a reload; never applied
		c.metrics.observeStaleCompletion()
		return
	}
	task.cancel()

	if err != nil {
		c.failed(task, err)
		return
	}
	delete(c.pending, id)

	at := task.at
	if task.gapKey != "" {
		delete(c.loadingGaps, task.gapKey)
		i := c.store.IndexOf(task.gapKey)
		if i < 0 {
			c.logger.Debug("gap disappeared while loading, dropping page", "gap", task.gapKey)
			return
		}
		at = AtIndex(i)
	} else if task.tail {
		// The page is older than the last entry, whatever arrived meanwhile
		at = Below
	}

	var entries []E
	var pagination *Pagination
	if page != nil {
		entries, pagination = page.Entries, page.Pagination
	}
	c.store.Merge(entries, at, pagination)
}

func (c *Coordinator[E]) failed(task *fetchTask, err error) {
	c.metrics.observeFetchFailure(task.at)
	c.logger.Warn("failed fetching entries",
		"insertion", task.at.String(), "range", task.rng.String(), "error", err)

	if !task.at.Retriable() {
		delete(c.pending, task.id)
		if task.gapKey != "" {
			delete(c.loadingGaps, task.gapKey)
			if i := c.store.IndexOf(task.gapKey); i >= 0 {
				c.store.Touch(i)
			}
		}
		return
	}

	task.cancel = nil
	task.retry = c.exec.AfterFunc(c.retryDelay, func() {
		if current, ok := c.pending[task.id]; !ok || current != task {
			return
		}
		c.start(task)
	})
}
