package feed

import "log/slog"

// Reconciler applies live stream events to the store with the same merge
// rules as pagination, and schedules a catch-up fetch after disconnects.
//
// All methods must be called on the coordination goroutine.
type Reconciler[E Keyed] struct {
	store            *Store[E]
	coordinator      *Coordinator[E]
	moderator        *ReconnectModerator
	exec             Executor
	logger           *slog.Logger
	metrics          *Metrics
	onFiltersChanged func()
	catchUp          Timer
	catchUpSeq       uint64
	sleeping         bool
	connected        bool
}

// NewReconciler wires a reconciler to its collaborators
func NewReconciler[E Keyed](store *Store[E], coordinator *Coordinator[E], moderator *ReconnectModerator, exec Executor, opts Options) *Reconciler[E] {
	opts = opts.withDefaults()
	return &Reconciler[E]{
		store:       store,
		coordinator: coordinator,
		moderator:   moderator,
		exec:        exec,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
}

// OnFiltersChanged installs the hook run for filters_changed events
func (r *Reconciler[E]) OnFiltersChanged(fn func()) {
	r.onFiltersChanged = fn
}

// HandleEvent applies one live event
func (r *Reconciler[E]) HandleEvent(ev StreamEvent[E]) {
	switch ev.Kind {
	case EventCreated:
		// A live creation is contiguous with "now"; never a gap above it.
		r.store.Merge([]E{ev.Entry}, Above, nil)

	case EventUpdated:
		if !r.store.HandleUpdated(ev.Entry) {
			r.logger.Debug("dropping update for unknown entry", "key", ev.Entry.Key())
		}

	case EventDeleted:
		r.store.HandleDeleted(ev.Key)

	case EventFiltersChanged:
		if r.onFiltersChanged != nil {
			r.onFiltersChanged()
		}

	default:
		r.logger.Warn("ignoring unknown stream event", "kind", ev.Kind.String())
	}
}

// Connected resets the backoff
func (r *Reconciler[E]) Connected() {
	r.connected = true
	r.moderator.OnConnected()
}

// Disconnected schedules a detached-above fetch after the moderated delay,
// unless the system is asleep.
func (r *Reconciler[E]) Disconnected() {
	r.connected = false
	if r.sleeping {
		r.logger.Debug("stream disconnected while sleeping, not scheduling catch-up")
		return
	}

	delay := r.moderator.OnDisconnected()
	r.metrics.observeReconnectDelay(delay)
	r.logger.Info("stream disconnected, scheduling catch-up fetch", "delay", delay)

	r.Cancel()
	seq := r.catchUpSeq
	r.catchUp = r.exec.AfterFunc(delay, func() {
		if seq != r.catchUpSeq {
			return
		}
		r.catchUp = nil
		r.coordinator.Fetch(DetachedAbove)
	})
}

// SetSleeping records the system sleep state. Waking up fetches the newest
// page right away, which also covers whatever the stream missed.
func (r *Reconciler[E]) SetSleeping(sleeping bool) {
	wasSleeping := r.sleeping
	r.sleeping = sleeping

	if sleeping {
		r.Cancel()
		return
	}
	if wasSleeping {
		r.coordinator.Fetch(DetachedAbove)
	}
}

// IsConnected reports the last known stream state
func (r *Reconciler[E]) IsConnected() bool {
	return r.connected
}

// Cancel drops a scheduled catch-up fetch
func (r *Reconciler[E]) Cancel() {
	if r.catchUp != nil {
		r.catchUp.Stop()
		r.catchUp = nil
	}
	r.catchUpSeq++
}
