package feed

import (
	"fmt"
	"log/slog"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Store owns the canonical key to entry mapping and the ordered slot sequence
// of a single feed.
//
// Store is not safe for concurrent use. It belongs to the coordination loop
// and every mutation must run there.
type Store[E Keyed] struct {
	entries     map[string]E
	tombstones  *lru.Cache[string, struct{}] // keys removed by delete events
	viewport    Viewport
	logger      *slog.Logger
	metrics     *Metrics
	slots       []Slot
	subscribers []func(Changeset)
	maxEntries  int
	gapSeq      uint64
}

// NewStore creates an empty store
func NewStore[E Keyed](opts Options) *Store[E] {
	opts = opts.withDefaults()

	tombstones, err := lru.New[string, struct{}](opts.TombstoneSize)
	if err != nil {
		opts.Logger.Warn("failed to create tombstone cache, using minimal size", "error", err)
		tombstones, _ = lru.New[string, struct{}](1)
	}

	return &Store[E]{
		entries:    make(map[string]E),
		tombstones: tombstones,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		slots:      []Slot{},
		maxEntries: opts.MaxEntries,
	}
}

// Subscribe registers fn to receive every non-empty changeset
func (s *Store[E]) Subscribe(fn func(Changeset)) {
	s.subscribers = append(s.subscribers, fn)
}

// SetViewport installs the viewport consulted by truncation.
// Without a viewport the list is assumed to be scrolled to the top.
func (s *Store[E]) SetViewport(vp Viewport) {
	s.viewport = vp
}

// Len returns the number of slots
func (s *Store[E]) Len() int { return len(s.slots) }

// EntryCount returns the number of entry-backed slots
func (s *Store[E]) EntryCount() int { return len(s.entries) }

// Slots returns a copy of the slot sequence
func (s *Store[E]) Slots() []Slot { return slices.Clone(s.slots) }

// SlotAt returns the slot at index i
func (s *Store[E]) SlotAt(i int) (Slot, bool) {
	if i < 0 || i >= len(s.slots) {
		return Slot{}, false
	}
	return s.slots[i], true
}

// Entry returns the stored value for key
func (s *Store[E]) Entry(key string) (E, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Contains reports whether key is stored
func (s *Store[E]) Contains(key string) bool {
	_, ok := s.entries[key]
	return ok
}

// IndexOf returns the index of the slot with the given key, or -1
func (s *Store[E]) IndexOf(key string) int {
	return slices.IndexFunc(s.slots, func(sl Slot) bool { return sl.Key == key })
}

// FirstEntryKey returns the key of the newest stored entry
func (s *Store[E]) FirstEntryKey() (string, bool) {
	for _, sl := range s.slots {
		if sl.IsEntry() {
			return sl.Key, true
		}
	}
	return "", false
}

// LastEntryKey returns the key of the oldest stored entry
func (s *Store[E]) LastEntryKey() (string, bool) {
	return s.LastEntryKeyBefore(len(s.slots))
}

// LastEntryKeyBefore returns the key of the nearest entry slot above index i
func (s *Store[E]) LastEntryKeyBefore(i int) (string, bool) {
	i = min(i, len(s.slots))
	for j := i - 1; j >= 0; j-- {
		if s.slots[j].IsEntry() {
			return s.slots[j].Key, true
		}
	}
	return "", false
}

// Upsert returns the subset of entries whose key is not already stored.
// It does not modify the store; callers use it to decide how to merge.
func (s *Store[E]) Upsert(entries []E) []E {
	fresh := make([]E, 0, len(entries))
	seen := make(map[string]struct{}, len(entries))
	for _, e := range entries {
		key := e.Key()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if s.Contains(key) {
			continue
		}
		fresh = append(fresh, e)
	}
	return fresh
}

// Merge reconciles a batch of entries into the sequence at the given
// insertion point. page may be nil for live events.
func (s *Store[E]) Merge(entries []E, at InsertionPoint, page *Pagination) Changeset {
	fresh := s.Upsert(entries)
	fresh = slices.DeleteFunc(fresh, func(e E) bool { return s.tombstones.Contains(e.Key()) })

	// Cursor satisfaction is judged against what was stored before this batch.
	wasEmpty := len(s.entries) == 0
	nextOpen := page != nil && s.cursorOpen(page.Next)
	prevOpen := page != nil && s.cursorOpen(page.Previous)

	cs := newChangeset()

	switch at.Kind {
	case InsertDetachedAbove:
		index := s.firstNonSpecial()
		s.insertEntries(&cs, index, fresh)
		if len(fresh) > 0 && nextOpen {
			s.insertGap(&cs, index+len(fresh))
		}

	case InsertAbove:
		index := s.firstNonSpecial()
		s.insertEntries(&cs, index, fresh)
		if len(fresh) > 0 && prevOpen && !wasEmpty {
			s.insertGap(&cs, index+len(fresh))
		}

	case InsertBelow:
		index := len(s.slots)
		if index > 0 && s.slots[index-1].IsGap() {
			index--
			s.replaceGap(&cs, index, fresh)
		} else {
			s.insertEntries(&cs, index, fresh)
		}
		if nextOpen {
			s.insertGap(&cs, index+len(fresh))
		}

	case InsertAtIndex:
		index := at.Index
		if index < 0 || index > len(s.slots) {
			s.logger.Warn("discarding merge for out of range index",
				"index", index, "slots", len(s.slots), "error", ErrStaleIndex)
			return cs
		}
		if index < len(s.slots) && s.slots[index].IsGap() {
			s.replaceGap(&cs, index, fresh)
			cs.ReplacedGap = index
		} else {
			s.insertEntries(&cs, index, fresh)
		}
		switch {
		case len(entries) == 0 && wasEmpty:
			// An empty answer for an empty feed proves nothing
			s.insertGap(&cs, index)
		case nextOpen:
			s.insertGap(&cs, index+len(fresh))
		}
	}

	if len(fresh) > 0 && (at.Kind == InsertAbove || at.Kind == InsertDetachedAbove) {
		s.truncateInto(&cs, s.maxEntries)
	}
	s.compactGaps(&cs)

	s.metrics.observeMerge(at, len(entries), len(fresh))
	s.logger.Debug("merged entries",
		"insertion", at.String(), "received", len(entries), "inserted", len(fresh), "slots", len(s.slots))

	s.publish(cs)
	return cs
}

// HandleUpdated replaces the stored value for an existing key without moving
// its slot. Updates for unknown keys are dropped.
func (s *Store[E]) HandleUpdated(e E) bool {
	key := e.Key()
	if !s.Contains(key) {
		return false
	}
	s.entries[key] = e

	cs := newChangeset()
	if i := s.indexOfEntry(key); i >= 0 {
		cs.update(i)
	}
	s.publish(cs)
	return true
}

// HandleDeleted removes the slot and mapping for key. The key is remembered
// so a page fetched before the deletion cannot bring it back.
func (s *Store[E]) HandleDeleted(key string) bool {
	s.tombstones.Add(key, struct{}{})

	i := s.indexOfEntry(key)
	if i < 0 {
		return false
	}
	s.slots = slices.Delete(s.slots, i, i+1)
	delete(s.entries, key)

	cs := newChangeset()
	cs.remove(i)
	s.compactGaps(&cs)
	s.metrics.observeDeleted()
	s.publish(cs)
	return true
}

// Truncate evicts the oldest entries beyond maxCount unless the viewport is
// near the tail. Only entry slots are ever removed.
func (s *Store[E]) Truncate(maxCount int) Changeset {
	cs := newChangeset()
	s.truncateInto(&cs, maxCount)
	s.compactGaps(&cs)
	s.publish(cs)
	return cs
}

// Reset drops every entry and gap. Special slots survive.
func (s *Store[E]) Reset() Changeset {
	cs := newChangeset()

	var removed []int
	kept := s.slots[:0]
	for i := len(s.slots) - 1; i >= 0; i-- {
		if !s.slots[i].IsSpecial() {
			removed = append(removed, i)
		}
	}
	for _, sl := range s.slots {
		if sl.IsSpecial() {
			kept = append(kept, sl)
		}
	}
	s.slots = kept
	clear(s.entries)
	s.tombstones.Purge()

	cs.remove(removed...)
	s.publish(cs)
	return cs
}

// InsertSpecial pins a special slot at index. Index is clamped to the
// sequence bounds; a key that is already present is left alone.
func (s *Store[E]) InsertSpecial(key string, index int) bool {
	if slices.Contains(s.slots, SpecialSlot(key)) {
		return false
	}
	index = max(0, min(index, len(s.slots)))
	s.slots = slices.Insert(s.slots, index, SpecialSlot(key))

	cs := newChangeset()
	cs.insert(index, SpecialSlot(key))
	s.publish(cs)
	return true
}

// RemoveSpecial removes the special slot with key
func (s *Store[E]) RemoveSpecial(key string) bool {
	i := slices.Index(s.slots, SpecialSlot(key))
	if i < 0 {
		return false
	}
	s.slots = slices.Delete(s.slots, i, i+1)

	cs := newChangeset()
	cs.remove(i)
	s.compactGaps(&cs)
	s.publish(cs)
	return true
}

// Touch publishes a redisplay request for the given slot indexes
func (s *Store[E]) Touch(indexes ...int) {
	if len(indexes) == 0 {
		return
	}
	cs := newChangeset()
	cs.update(indexes...)
	s.publish(cs)
}

func (s *Store[E]) cursorOpen(cursor *string) bool {
	return cursor != nil && !s.Contains(*cursor)
}

func (s *Store[E]) firstNonSpecial() int {
	for i, sl := range s.slots {
		if !sl.IsSpecial() {
			return i
		}
	}
	return len(s.slots)
}

func (s *Store[E]) indexOfEntry(key string) int {
	return slices.Index(s.slots, EntrySlot(key))
}

func (s *Store[E]) store(entries []E) []Slot {
	slots := make([]Slot, len(entries))
	for i, e := range entries {
		s.entries[e.Key()] = e
		slots[i] = EntrySlot(e.Key())
	}
	return slots
}

func (s *Store[E]) insertEntries(cs *Changeset, index int, entries []E) {
	if len(entries) == 0 {
		return
	}
	slots := s.store(entries)
	s.slots = slices.Insert(s.slots, index, slots...)
	cs.insert(index, slots...)
}

func (s *Store[E]) replaceGap(cs *Changeset, index int, entries []E) {
	slots := s.store(entries)
	s.slots = slices.Delete(s.slots, index, index+1)
	s.slots = slices.Insert(s.slots, index, slots...)
	cs.Edits = append(cs.Edits, Edit{Kind: EditReplaceGap, Index: index, Slots: slots})
}

// insertGap places a gap at index unless a neighbor already is one
func (s *Store[E]) insertGap(cs *Changeset, index int) bool {
	if index > 0 && s.slots[index-1].IsGap() {
		return false
	}
	if index < len(s.slots) && s.slots[index].IsGap() {
		return false
	}
	s.gapSeq++
	gap := Slot{Kind: SlotGap, Key: fmt.Sprintf("gap-%d", s.gapSeq)}
	s.slots = slices.Insert(s.slots, index, gap)
	cs.insert(index, gap)
	s.metrics.observeGap()
	return true
}

func (s *Store[E]) truncateInto(cs *Changeset, maxCount int) {
	if s.viewport != nil && s.viewport.NearTail() {
		return
	}
	excess := len(s.entries) - maxCount
	if excess <= 0 {
		return
	}

	removed := make([]int, 0, excess)
	for i := len(s.slots) - 1; i >= 0 && len(removed) < excess; i-- {
		if s.slots[i].IsEntry() {
			removed = append(removed, i)
		}
	}
	for _, i := range removed {
		delete(s.entries, s.slots[i].Key)
		s.slots = slices.Delete(s.slots, i, i+1)
	}
	cs.remove(removed...)
	s.metrics.observeTruncated(len(removed))
}

// compactGaps drops the lower of any two adjacent gaps
func (s *Store[E]) compactGaps(cs *Changeset) {
	var removed []int
	for i := len(s.slots) - 1; i > 0; i-- {
		if s.slots[i].IsGap() && s.slots[i-1].IsGap() {
			s.slots = slices.Delete(s.slots, i, i+1)
			removed = append(removed, i)
		}
	}
	cs.remove(removed...)
}

func (s *Store[E]) publish(cs Changeset) {
	if cs.Empty() {
		return
	}
	for _, fn := range s.subscribers {
		fn(cs)
	}
}
