package feed

import (
	"context"
	"log/slog"
)

// SlotView is a read-only snapshot of one slot for presentation
type SlotView struct {
	Entry    any    `json:"entry,omitempty"`
	Kind     string `json:"kind"`
	Key      string `json:"key"`
	Filtered bool   `json:"filtered,omitempty"`
	Loading  bool   `json:"loading,omitempty"`
}

// Timeline is one feed instance: the store plus the components writing into
// it, all driven from a private coordination loop. Its methods are safe to
// call from any goroutine.
type Timeline[E Keyed] struct {
	loop        *Loop
	store       *Store[E]
	coordinator *Coordinator[E]
	reconciler  *Reconciler[E]
	overlay     *FilterOverlay[E]
	viewport    Viewport
	filtersHook func()
	logger      *slog.Logger
}

// NewTimeline builds a timeline around fetcher
func NewTimeline[E Keyed](fetcher Fetcher[E], opts Options) (*Timeline[E], error) {
	if fetcher == nil {
		return nil, ErrNoFetcher
	}
	opts = opts.withDefaults()

	loop := NewLoop(opts.Logger)
	store := NewStore[E](opts)
	coordinator := NewCoordinator(store, fetcher, loop, opts)
	moderator := NewReconnectModerator(opts.ReconnectFloor, opts.ReconnectCeiling)
	reconciler := NewReconciler(store, coordinator, moderator, loop, opts)

	t := &Timeline[E]{
		loop:        loop,
		store:       store,
		coordinator: coordinator,
		reconciler:  reconciler,
		overlay:     NewFilterOverlay(store),
		logger:      opts.Logger,
	}
	reconciler.OnFiltersChanged(func() {
		t.refreshFiltered()
		if t.filtersHook != nil {
			t.filtersHook()
		}
	})
	return t, nil
}

// Run loads the newest page and processes work until ctx is canceled or
// Stop is called. In-flight fetches are canceled on the way out.
func (t *Timeline[E]) Run(ctx context.Context) error {
	if err := t.loop.Post(func() { t.coordinator.Fetch(Above) }); err != nil {
		return err
	}
	defer t.coordinator.CancelAll()
	return t.loop.Run(ctx)
}

// Stop ends the coordination loop
func (t *Timeline[E]) Stop() {
	t.loop.Stop()
}

// Subscribe registers fn for every changeset. fn runs on the coordination
// goroutine and must not block.
func (t *Timeline[E]) Subscribe(fn func(Changeset)) error {
	return t.loop.Post(func() { t.store.Subscribe(fn) })
}

// Refresh loads entries newer than the newest one
func (t *Timeline[E]) Refresh() error {
	return t.loop.Post(func() { t.coordinator.Fetch(Above) })
}

// LoadOlder loads entries older than the oldest one
func (t *Timeline[E]) LoadOlder() error {
	return t.loop.Post(func() { t.coordinator.Fetch(Below) })
}

// LoadGap fills the gap at index
func (t *Timeline[E]) LoadGap(ctx context.Context, index int) error {
	var err error
	if callErr := t.loop.Call(ctx, func() {
		slot, ok := t.store.SlotAt(index)
		if ok && !slot.IsGap() {
			err = ErrNotGap
			return
		}
		t.coordinator.Fetch(AtIndex(index))
	}); callErr != nil {
		return callErr
	}
	return err
}

// Reload cancels all in-flight work, clears the feed and loads it again
func (t *Timeline[E]) Reload() error {
	return t.loop.Post(func() {
		t.logger.Info("reloading timeline", "pending", t.coordinator.Pending())
		t.coordinator.CancelAll()
		t.reconciler.Cancel()
		t.store.Reset()
		t.overlay.Reset()
		t.coordinator.Fetch(Above)
	})
}

// HandleStreamEvent applies a live event
func (t *Timeline[E]) HandleStreamEvent(ev StreamEvent[E]) error {
	return t.loop.Post(func() { t.reconciler.HandleEvent(ev) })
}

// StreamConnected reports that the live stream is up
func (t *Timeline[E]) StreamConnected() error {
	return t.loop.Post(t.reconciler.Connected)
}

// StreamDisconnected reports that the live stream dropped
func (t *Timeline[E]) StreamDisconnected() error {
	return t.loop.Post(t.reconciler.Disconnected)
}

// SetSleeping records whether the system is asleep
func (t *Timeline[E]) SetSleeping(sleeping bool) error {
	return t.loop.Post(func() { t.reconciler.SetSleeping(sleeping) })
}

// SetViewport installs the presentation viewport
func (t *Timeline[E]) SetViewport(vp Viewport) error {
	return t.loop.Post(func() {
		t.viewport = vp
		t.store.SetViewport(vp)
	})
}

// SetFilters replaces the filter predicates and refreshes visible rows
func (t *Timeline[E]) SetFilters(predicates []Predicate[E]) error {
	return t.loop.Post(func() {
		t.overlay.SetPredicates(predicates)
		t.refreshFiltered()
	})
}

// OnFiltersChanged installs fn, run when the stream reports that the
// server-side filter set changed. It typically refetches filters and calls
// SetFilters.
func (t *Timeline[E]) OnFiltersChanged(fn func()) error {
	return t.loop.Post(func() { t.filtersHook = fn })
}

// Reveal un-hides a filtered entry for good
func (t *Timeline[E]) Reveal(ctx context.Context, key string) error {
	var err error
	if callErr := t.loop.Call(ctx, func() {
		if !t.store.Contains(key) {
			err = ErrUnknownEntry
			return
		}
		if t.overlay.Reveal(key) {
			t.store.Touch(t.store.IndexOf(key))
		}
	}); callErr != nil {
		return callErr
	}
	return err
}

// PinSpecial inserts a special slot at index
func (t *Timeline[E]) PinSpecial(key string, index int) error {
	return t.loop.Post(func() { t.store.InsertSpecial(key, index) })
}

// UnpinSpecial removes a special slot
func (t *Timeline[E]) UnpinSpecial(key string) error {
	return t.loop.Post(func() { t.store.RemoveSpecial(key) })
}

// Entry returns the stored entry for key
func (t *Timeline[E]) Entry(ctx context.Context, key string) (E, bool, error) {
	var (
		e  E
		ok bool
	)
	err := t.loop.Call(ctx, func() { e, ok = t.store.Entry(key) })
	return e, ok, err
}

// Snapshot returns the current slot sequence with entries resolved
func (t *Timeline[E]) Snapshot(ctx context.Context) ([]SlotView, error) {
	var views []SlotView
	err := t.loop.Call(ctx, func() {
		slots := t.store.Slots()
		views = make([]SlotView, len(slots))
		for i, slot := range slots {
			view := SlotView{Kind: slot.Kind.String(), Key: slot.Key}
			switch slot.Kind {
			case SlotEntry:
				if e, ok := t.store.Entry(slot.Key); ok {
					view.Entry = e
					view.Filtered = t.overlay.Matches(e)
				}
			case SlotGap:
				view.Loading = t.coordinator.GapLoading(i)
			}
			views[i] = view
		}
	})
	return views, err
}

func (t *Timeline[E]) refreshFiltered() {
	start, end := 0, t.store.Len()
	if t.viewport != nil {
		start, end = t.viewport.VisibleRange()
	}
	t.store.Touch(t.overlay.FiltersChanged(start, end)...)
}
