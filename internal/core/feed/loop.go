package feed

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Timer is a pending delayed call
type Timer interface {
	Stop() bool
}

// Executor runs work on the single coordination goroutine.
// Everything that mutates a Store is funneled through it.
type Executor interface {
	// Post queues fn to run on the coordination goroutine
	Post(fn func()) error
	// AfterFunc posts fn after d has elapsed
	AfterFunc(d time.Duration, fn func()) Timer
}

// Loop is the default Executor: a goroutine draining a queue of closures
type Loop struct {
	tasks    chan func()
	done     chan struct{}
	logger   *slog.Logger
	stopOnce sync.Once
}

// NewLoop creates a loop. It does nothing until Run is called.
func NewLoop(logger *slog.Logger) *Loop {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		tasks:  make(chan func(), 256),
		done:   make(chan struct{}),
		logger: logger,
	}
}

// Run processes posted work until ctx is canceled or Stop is called
func (l *Loop) Run(ctx context.Context) error {
	defer l.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.done:
			return nil
		case fn := <-l.tasks:
			l.invoke(fn)
		}
	}
}

// Stop makes the loop exit. Work posted afterwards fails with ErrLoopStopped.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() { close(l.done) })
}

// Done is closed once the loop has stopped
func (l *Loop) Done() <-chan struct{} {
	return l.done
}

// Post queues fn. It must not be called from the loop goroutine while the
// queue is full.
func (l *Loop) Post(fn func()) error {
	select {
	case <-l.done:
		return ErrLoopStopped
	default:
	}

	select {
	case l.tasks <- fn:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Call runs fn on the loop and waits for it to return
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if err := l.Post(func() {
		defer close(finished)
		fn()
	}); err != nil {
		return err
	}

	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// AfterFunc posts fn to the loop after d
func (l *Loop) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, func() {
		if err := l.Post(fn); err != nil {
			l.logger.Debug("dropping delayed call", "error", err)
		}
	})
}

func (l *Loop) invoke(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic on coordination loop", "panic", r)
		}
	}()
	fn()
}
