package feed

// Predicate reports whether an entry should be hidden
type Predicate[E Keyed] func(E) bool

// FilterOverlay flags entries as filtered without removing them from the store.
//
// Once an entry is flagged it stays flagged until the filter set changes, so
// rows do not reappear mid-scroll. Revealed keys are never hidden again.
type FilterOverlay[E Keyed] struct {
	store      *Store[E]
	predicates []Predicate[E]
	filtered   map[string]struct{}
	revealed   map[string]struct{}
}

// NewFilterOverlay creates an overlay reading from store
func NewFilterOverlay[E Keyed](store *Store[E]) *FilterOverlay[E] {
	return &FilterOverlay[E]{
		store:    store,
		filtered: make(map[string]struct{}),
		revealed: make(map[string]struct{}),
	}
}

// SetPredicates replaces the active filter set. Callers follow up with
// FiltersChanged to refresh visible rows.
func (f *FilterOverlay[E]) SetPredicates(predicates []Predicate[E]) {
	f.predicates = predicates
}

// Matches reports whether e is hidden, memoizing positive answers
func (f *FilterOverlay[E]) Matches(e E) bool {
	key := e.Key()
	if _, ok := f.revealed[key]; ok {
		return false
	}
	if _, ok := f.filtered[key]; ok {
		return true
	}
	for _, p := range f.predicates {
		if p(e) {
			f.filtered[key] = struct{}{}
			return true
		}
	}
	return false
}

// IsFiltered reports the memoized state for key without evaluating predicates
func (f *FilterOverlay[E]) IsFiltered(key string) bool {
	if _, ok := f.revealed[key]; ok {
		return false
	}
	_, ok := f.filtered[key]
	return ok
}

// Reveal exempts key from filtering for good. It returns true when the key
// was hidden and its row needs redisplay.
func (f *FilterOverlay[E]) Reveal(key string) bool {
	if _, ok := f.revealed[key]; ok {
		return false
	}
	_, wasFiltered := f.filtered[key]
	f.revealed[key] = struct{}{}
	return wasFiltered
}

// FiltersChanged clears the memo and re-evaluates the realized slots in
// [start, end). It returns the indexes whose presentation may have changed:
// entries that match now or were hidden before.
func (f *FilterOverlay[E]) FiltersChanged(start, end int) []int {
	if f.store.EntryCount() == 0 {
		clear(f.filtered)
		return nil
	}

	previous := f.filtered
	f.filtered = make(map[string]struct{}, len(previous))

	var redisplay []int
	for i := max(0, start); i < min(end, f.store.Len()); i++ {
		slot, _ := f.store.SlotAt(i)
		if !slot.IsEntry() {
			continue
		}
		e, ok := f.store.Entry(slot.Key)
		if !ok {
			continue
		}
		_, wasFiltered := previous[slot.Key]
		if f.Matches(e) || wasFiltered {
			redisplay = append(redisplay, i)
		}
	}
	return redisplay
}

// Reset forgets revealed and memoized keys
func (f *FilterOverlay[E]) Reset() {
	clear(f.filtered)
	clear(f.revealed)
}
