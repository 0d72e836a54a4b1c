package feed

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"
)

type testEntry struct {
	ID   string
	Body string
}

func (e testEntry) Key() string { return e.ID }

func entries(keys ...string) []testEntry {
	out := make([]testEntry, len(keys))
	for i, k := range keys {
		out[i] = testEntry{ID: k}
	}
	return out
}

func cursor(s string) *string { return &s }

func quietOptions() Options {
	return Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// render turns a slot sequence into a compact, gap-key agnostic form
func render(slots []Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		switch s.Kind {
		case SlotGap:
			out[i] = "gap"
		case SlotSpecial:
			out[i] = "*" + s.Key
		default:
			out[i] = s.Key
		}
	}
	return out
}

type fixedViewport struct {
	start, end int
	nearTail   bool
}

func (v fixedViewport) NearTail() bool               { return v.nearTail }
func (v fixedViewport) VisibleRange() (start, end int) { return v.start, v.end }

// manualExecutor queues posted work and timers until the test drains them
type manualExecutor struct {
	queue  []func()
	timers []*manualTimer
	now    time.Duration
	mu     sync.Mutex
}

type manualTimer struct {
	fn      func()
	exec    *manualExecutor
	at      time.Duration
	stopped bool
	fired   bool
}

func (t *manualTimer) Stop() bool {
	t.exec.mu.Lock()
	defer t.exec.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

func (m *manualExecutor) Post(fn func()) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.queue = append(m.queue, fn)
	return nil
}

func (m *manualExecutor) AfterFunc(d time.Duration, fn func()) Timer {
	m.mu.Lock()
	defer m.mu.Unlock()
	t := &manualTimer{fn: fn, exec: m, at: m.now + d}
	m.timers = append(m.timers, t)
	return t
}

// drain runs queued work, including work queued while draining
func (m *manualExecutor) drain() {
	for {
		m.mu.Lock()
		if len(m.queue) == 0 {
			m.mu.Unlock()
			return
		}
		fn := m.queue[0]
		m.queue = m.queue[1:]
		m.mu.Unlock()
		fn()
	}
}

// advance moves the clock forward, firing due timers in order
func (m *manualExecutor) advance(d time.Duration) {
	m.mu.Lock()
	m.now += d
	var due []*manualTimer
	for _, t := range m.timers {
		if !t.stopped && !t.fired && t.at <= m.now {
			t.fired = true
			due = append(due, t)
		}
	}
	sort.SliceStable(due, func(i, j int) bool { return due[i].at < due[j].at })
	for _, t := range due {
		m.queue = append(m.queue, t.fn)
	}
	m.mu.Unlock()
	m.drain()
}

func (m *manualExecutor) activeTimers() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, t := range m.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) FetchEntries(ctx context.Context, r RequestRange) (*Page[testEntry], error) {
	args := m.Called(r)
	page, _ := args.Get(0).(*Page[testEntry])
	return page, args.Error(1)
}

func page(pagination *Pagination, keys ...string) *Page[testEntry] {
	return &Page[testEntry]{Entries: entries(keys...), Pagination: pagination}
}

// heldSpawn defers spawned fetches until release is called
type heldSpawn struct {
	fns []func()
}

func (h *heldSpawn) spawn(fn func()) { h.fns = append(h.fns, fn) }

func (h *heldSpawn) release() {
	fns := h.fns
	h.fns = nil
	for _, fn := range fns {
		fn()
	}
}

func syncSpawn(fn func()) { fn() }
