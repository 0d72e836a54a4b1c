package feed

import "slices"

// EditKind enumerates slot-sequence edits published to the presentation layer
type EditKind int

const (
	// EditInsert inserts Slots starting at Index
	EditInsert EditKind = iota
	// EditRemove removes the slots at Indexes, listed in descending order
	EditRemove
	// EditReplaceGap replaces the gap at Index with Slots (possibly none)
	EditReplaceGap
	// EditUpdate asks for the slots at Indexes to be redisplayed
	EditUpdate
)

func (k EditKind) String() string {
	switch k {
	case EditInsert:
		return "insert"
	case EditRemove:
		return "remove"
	case EditReplaceGap:
		return "replaceGap"
	case EditUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Edit is one slot-sequence operation
type Edit struct {
	Slots   []Slot
	Indexes []int
	Index   int
	Kind    EditKind
}

// Changeset is the ordered list of edits produced by one store operation.
//
// Edits are listed in application order and every index is valid against the
// sequence produced by applying the preceding edits of the same changeset.
// A merge always emits remove-stale-gap, then insert-range, then insert-gap,
// then truncation and gap compaction.
type Changeset struct {
	Edits []Edit
	// ReplacedGap is the index of the gap consumed by an AtIndex merge, or -1.
	// Callers that had that row selected should move the selection to the
	// first slot of the replacement range.
	ReplacedGap int
}

func newChangeset() Changeset {
	return Changeset{ReplacedGap: -1}
}

// Empty reports whether the changeset carries no edits
func (c Changeset) Empty() bool { return len(c.Edits) == 0 }

// Apply replays the changeset against a copy of slots and returns the result.
// Presentation layers that mirror the sequence can use it directly.
func (c Changeset) Apply(slots []Slot) []Slot {
	out := slices.Clone(slots)
	for _, e := range c.Edits {
		switch e.Kind {
		case EditInsert:
			out = slices.Insert(out, e.Index, e.Slots...)
		case EditRemove:
			for _, i := range e.Indexes {
				out = slices.Delete(out, i, i+1)
			}
		case EditReplaceGap:
			out = slices.Delete(out, e.Index, e.Index+1)
			out = slices.Insert(out, e.Index, e.Slots...)
		case EditUpdate:
		}
	}
	return out
}

func (c *Changeset) insert(index int, slots ...Slot) {
	c.Edits = append(c.Edits, Edit{Kind: EditInsert, Index: index, Slots: slots})
}

func (c *Changeset) remove(indexes ...int) {
	if len(indexes) == 0 {
		return
	}
	c.Edits = append(c.Edits, Edit{Kind: EditRemove, Indexes: indexes})
}

func (c *Changeset) update(indexes ...int) {
	c.Edits = append(c.Edits, Edit{Kind: EditUpdate, Indexes: indexes})
}
