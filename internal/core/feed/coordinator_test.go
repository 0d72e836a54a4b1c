package feed

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestCoordinator(t *testing.T, fetcher Fetcher[testEntry]) (*Coordinator[testEntry], *Store[testEntry], *manualExecutor) {
	t.Helper()
	opts := quietOptions()
	opts.PageSize = 10
	opts.RetryDelay = 10 * time.Second

	exec := &manualExecutor{}
	store := NewStore[testEntry](opts)
	c := NewCoordinator(store, fetcher, exec, opts)
	c.spawn = syncSpawn
	return c, store, exec
}

func TestCoordinator_RangeFor(t *testing.T) {
	c, store, _ := newTestCoordinator(t, &mockFetcher{})

	// Empty store: everything falls back to the newest page
	for _, at := range []InsertionPoint{DetachedAbove, Above, Below, AtIndex(0)} {
		assert.Equal(t, DefaultRange(10), c.RangeFor(at), at.String())
	}

	store.Merge(entries("e5"), Above, nil)
	store.Merge(entries("e1", "e2"), DetachedAbove, &Pagination{Next: cursor("e2")})
	require.Equal(t, []string{"e1", "e2", "gap", "e5"}, render(store.Slots()))

	tests := []struct {
		at   InsertionPoint
		want RequestRange
	}{
		{DetachedAbove, DefaultRange(10)},
		{Above, MinRange("e1", 10)},
		{Below, MaxRange("e5", 10)},
		{AtIndex(2), MaxRange("e2", 10)},
		{AtIndex(0), DefaultRange(10)},
		// Stale index loads below the last entry
		{AtIndex(9), MaxRange("e5", 10)},
	}
	for _, tt := range tests {
		t.Run(tt.at.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, c.RangeFor(tt.at))
		})
	}
}

func TestCoordinator_FetchMergesPage(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	fetcher.On("FetchEntries", DefaultRange(10)).
		Return(page(&Pagination{Next: cursor("e2")}, "e1", "e2"), nil).Once()

	c.Fetch(Above)
	assert.Equal(t, 1, c.Pending())
	exec.drain()

	assert.Equal(t, []string{"e1", "e2"}, render(store.Slots()))
	assert.Equal(t, 0, c.Pending())
	fetcher.AssertExpectations(t)
}

func TestCoordinator_RetriesAfterFailure(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	fetcher.On("FetchEntries", DefaultRange(10)).Return(nil, errors.New("connection reset")).Once()
	fetcher.On("FetchEntries", DefaultRange(10)).Return(page(nil, "e1"), nil).Once()

	c.Fetch(DetachedAbove)
	exec.drain()

	// Still pending, waiting for the retry
	assert.Equal(t, 1, c.Pending())
	assert.Empty(t, store.Slots())

	exec.advance(9 * time.Second)
	fetcher.AssertNumberOfCalls(t, "FetchEntries", 1)

	exec.advance(time.Second)
	assert.Equal(t, []string{"e1"}, render(store.Slots()))
	assert.Equal(t, 0, c.Pending())
	fetcher.AssertExpectations(t)
}

func TestCoordinator_GapLoadIsNotRetried(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	store.Merge(entries("e5"), Above, nil)
	store.Merge(entries("e1"), DetachedAbove, &Pagination{Next: cursor("e1")})
	fetcher.On("FetchEntries", MaxRange("e1", 10)).Return(nil, errors.New("timeout")).Once()

	var updates [][]int
	store.Subscribe(func(cs Changeset) {
		for _, e := range cs.Edits {
			if e.Kind == EditUpdate {
				updates = append(updates, e.Indexes)
			}
		}
	})

	c.Fetch(AtIndex(1))
	assert.True(t, c.GapLoading(1))

	exec.drain()

	assert.False(t, c.GapLoading(1))
	assert.Equal(t, 0, c.Pending())
	assert.Equal(t, 0, exec.activeTimers())
	assert.Equal(t, []string{"e1", "gap", "e5"}, render(store.Slots()))
	// Once when loading starts, once when it fails
	assert.Equal(t, [][]int{{1}, {1}}, updates)
	fetcher.AssertExpectations(t)
}

func TestCoordinator_DuplicateGapLoadSuppressed(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	held := &heldSpawn{}
	c.spawn = held.spawn
	store.Merge(entries("e5"), Above, nil)
	store.Merge(entries("e1"), DetachedAbove, &Pagination{Next: cursor("e1")})
	fetcher.On("FetchEntries", MaxRange("e1", 10)).Return(page(nil, "e2"), nil).Once()

	c.Fetch(AtIndex(1))
	c.Fetch(AtIndex(1))
	held.release()
	exec.drain()

	assert.Equal(t, []string{"e1", "e2", "e5"}, render(store.Slots()))
	fetcher.AssertNumberOfCalls(t, "FetchEntries", 1)
}

func TestCoordinator_GapFollowedAcrossInsertions(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	held := &heldSpawn{}
	c.spawn = held.spawn
	store.Merge(entries("e5"), Above, nil)
	store.Merge(entries("e1"), DetachedAbove, &Pagination{Next: cursor("e1")})
	fetcher.On("FetchEntries", MaxRange("e1", 10)).
		Return(page(&Pagination{Next: cursor("e3")}, "e2", "e3"), nil).Once()

	c.Fetch(AtIndex(1))

	// A live entry arrives while the gap is loading and shifts it down
	store.Merge(entries("e0"), Above, nil)
	require.Equal(t, []string{"e0", "e1", "gap", "e5"}, render(store.Slots()))
	assert.True(t, c.GapLoading(2))

	held.release()
	exec.drain()

	assert.Equal(t, []string{"e0", "e1", "e2", "e3", "gap", "e5"}, render(store.Slots()))
}

func TestCoordinator_DropsPageForVanishedGap(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	held := &heldSpawn{}
	c.spawn = held.spawn
	store.Merge(entries("e1"), Below, &Pagination{Next: cursor("e1")})
	fetcher.On("FetchEntries", MaxRange("e1", 10)).Return(page(nil, "e2"), nil).Once()

	c.Fetch(AtIndex(1))
	// An empty older page settles the tail first
	store.Merge(nil, Below, nil)
	held.release()
	exec.drain()

	assert.Equal(t, []string{"e1"}, render(store.Slots()))
}

func TestCoordinator_CancelAll(t *testing.T) {
	t.Run("in-flight completion is ignored", func(t *testing.T) {
		fetcher := &mockFetcher{}
		c, store, exec := newTestCoordinator(t, fetcher)
		held := &heldSpawn{}
		c.spawn = held.spawn
		store.Merge(entries("e1"), Above, nil)
		fetcher.On("FetchEntries", MinRange("e1", 10)).Return(page(nil, "e0"), nil).Once()

		c.Fetch(Above)
		c.CancelAll()
		store.Reset()
		held.release()
		exec.drain()

		assert.Empty(t, store.Slots())
		assert.Equal(t, 0, c.Pending())
	})

	t.Run("scheduled retry is dropped", func(t *testing.T) {
		fetcher := &mockFetcher{}
		c, store, exec := newTestCoordinator(t, fetcher)
		fetcher.On("FetchEntries", DefaultRange(10)).Return(nil, errors.New("unavailable")).Once()

		c.Fetch(Below)
		exec.drain()
		require.Equal(t, 1, exec.activeTimers())

		c.CancelAll()
		assert.Equal(t, 0, exec.activeTimers())

		exec.advance(time.Minute)
		assert.Empty(t, store.Slots())
		fetcher.AssertNumberOfCalls(t, "FetchEntries", 1)
	})
}

func TestCoordinator_StaleIndexFetchesOlder(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	store.Merge(entries("e1", "e2"), Above, nil)
	fetcher.On("FetchEntries", MaxRange("e2", 10)).Return(page(nil, "e3"), nil).Once()

	c.Fetch(AtIndex(7))
	exec.drain()

	// The page lands at the tail
	assert.Equal(t, []string{"e1", "e2", "e3"}, render(store.Slots()))
	fetcher.AssertExpectations(t)
}

func TestCoordinator_StaleIndexIgnoresGrowth(t *testing.T) {
	t.Run("entries arrive above while loading", func(t *testing.T) {
		fetcher := &mockFetcher{}
		c, store, exec := newTestCoordinator(t, fetcher)
		held := &heldSpawn{}
		c.spawn = held.spawn
		store.Merge(entries("e1", "e2"), Above, nil)
		fetcher.On("FetchEntries", MaxRange("e2", 10)).Return(page(nil, "e3"), nil).Once()

		c.Fetch(AtIndex(3))
		store.Merge(entries("n1", "n2"), Above, nil)
		held.release()
		exec.drain()

		assert.Equal(t, []string{"n1", "n2", "e1", "e2", "e3"}, render(store.Slots()))
	})

	t.Run("trailing gap is filled", func(t *testing.T) {
		fetcher := &mockFetcher{}
		c, store, exec := newTestCoordinator(t, fetcher)
		held := &heldSpawn{}
		c.spawn = held.spawn
		store.Merge(entries("e1", "e2"), Below, &Pagination{Next: cursor("e2")})
		require.Equal(t, []string{"e1", "e2", "gap"}, render(store.Slots()))
		fetcher.On("FetchEntries", MaxRange("e2", 10)).Return(page(nil, "e3"), nil).Once()

		c.Fetch(AtIndex(5))
		held.release()
		exec.drain()

		assert.Equal(t, []string{"e1", "e2", "e3"}, render(store.Slots()))
	})
}

func TestCoordinator_EmptyPage(t *testing.T) {
	fetcher := &mockFetcher{}
	c, store, exec := newTestCoordinator(t, fetcher)
	fetcher.On("FetchEntries", mock.AnythingOfType("feed.RequestRange")).Return(page(nil), nil).Once()

	c.Fetch(DetachedAbove)
	exec.drain()

	assert.Empty(t, store.Slots())
	assert.Equal(t, 0, c.Pending())
	fetcher.AssertExpectations(t)
}
