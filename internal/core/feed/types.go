package feed

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Keyed is implemented by every entry the engine tracks. The key must be
// stable and unique within a single feed.
type Keyed interface {
	Key() string
}

// SlotKind identifies what occupies a position in the visual ordering
type SlotKind int

const (
	SlotEntry SlotKind = iota
	SlotGap
	SlotSpecial
)

func (k SlotKind) String() string {
	switch k {
	case SlotEntry:
		return "entry"
	case SlotGap:
		return "gap"
	case SlotSpecial:
		return "special"
	default:
		return fmt.Sprintf("SlotKind(%d)", int(k))
	}
}

// Slot is one position of the ordered sequence.
// Entry slots carry the entry key, special slots their own key and gap
// slots a store-generated key that only serves to track a gap while it loads.
type Slot struct {
	Key  string
	Kind SlotKind
}

// EntrySlot references a stored entry
func EntrySlot(key string) Slot {
	return Slot{Kind: SlotEntry, Key: key}
}

// SpecialSlot is a pinned row that is not backed by an entry
func SpecialSlot(key string) Slot {
	return Slot{Kind: SlotSpecial, Key: key}
}

// IsGap reports whether the slot marks missing data
func (s Slot) IsGap() bool { return s.Kind == SlotGap }

// IsEntry reports whether the slot references a stored entry
func (s Slot) IsEntry() bool { return s.Kind == SlotEntry }

// IsSpecial reports whether the slot is a pinned special row
func (s Slot) IsSpecial() bool { return s.Kind == SlotSpecial }

// InsertionKind is the caller's declared relationship of a batch to the
// existing sequence.
type InsertionKind int

const (
	InsertDetachedAbove InsertionKind = iota
	InsertAbove
	InsertBelow
	InsertAtIndex
)

// InsertionPoint says where a batch of entries belongs.
// Index is only meaningful for InsertAtIndex.
type InsertionPoint struct {
	Kind  InsertionKind
	Index int
}

var (
	// DetachedAbove is the newest page fetched independently of what is loaded
	DetachedAbove = InsertionPoint{Kind: InsertDetachedAbove}
	// Above holds the direct successors of the newest stored entry
	Above = InsertionPoint{Kind: InsertAbove}
	// Below holds the direct predecessors of the oldest stored entry
	Below = InsertionPoint{Kind: InsertBelow}
)

// AtIndex fills the gap at slot index i
func AtIndex(i int) InsertionPoint {
	return InsertionPoint{Kind: InsertAtIndex, Index: i}
}

// Retriable reports whether a failed fetch for this insertion point is
// resubmitted automatically.
func (p InsertionPoint) Retriable() bool {
	return p.Kind != InsertAtIndex
}

func (p InsertionPoint) String() string {
	switch p.Kind {
	case InsertDetachedAbove:
		return "detachedAbove"
	case InsertAbove:
		return "above"
	case InsertBelow:
		return "below"
	case InsertAtIndex:
		return fmt.Sprintf("atIndex(%d)", p.Index)
	default:
		return fmt.Sprintf("InsertionPoint(%d)", int(p.Kind))
	}
}

// Pagination carries the cursors returned alongside a page.
// Next points in the older direction, Previous in the newer direction.
// A nil cursor means the boundary is known to be complete.
type Pagination struct {
	Next     *string `json:"next,omitempty"`
	Previous *string `json:"previous,omitempty"`
}

// Direction selects which side of the boundary key a fetch targets
type Direction int

const (
	// DirectionDefault requests the newest page, ignoring any boundary
	DirectionDefault Direction = iota
	// DirectionMin requests entries strictly newer than the boundary key
	DirectionMin
	// DirectionMax requests entries strictly older than the boundary key
	DirectionMax
)

func (d Direction) String() string {
	switch d {
	case DirectionMin:
		return "min"
	case DirectionMax:
		return "max"
	default:
		return "default"
	}
}

// RequestRange is a cursor-bounded fetch request
type RequestRange struct {
	BoundaryKey string
	Direction   Direction
	Limit       int
}

// DefaultRange asks for the newest page
func DefaultRange(limit int) RequestRange {
	return RequestRange{Direction: DirectionDefault, Limit: limit}
}

// MinRange asks for entries newer than key
func MinRange(key string, limit int) RequestRange {
	return RequestRange{Direction: DirectionMin, BoundaryKey: key, Limit: limit}
}

// MaxRange asks for entries older than key
func MaxRange(key string, limit int) RequestRange {
	return RequestRange{Direction: DirectionMax, BoundaryKey: key, Limit: limit}
}

func (r RequestRange) String() string {
	if r.Direction == DirectionDefault {
		return fmt.Sprintf("default(limit: %d)", r.Limit)
	}
	return fmt.Sprintf("%s(id: %s, limit: %d)", r.Direction, r.BoundaryKey, r.Limit)
}

// Page is a successful fetch result
type Page[E Keyed] struct {
	Pagination *Pagination
	Entries    []E
}

// Fetcher retrieves a page of entries for a range.
// Implementations must honor ctx cancellation on a best effort basis.
type Fetcher[E Keyed] interface {
	FetchEntries(ctx context.Context, r RequestRange) (*Page[E], error)
}

// FetcherFunc adapts a plain function to Fetcher
type FetcherFunc[E Keyed] func(ctx context.Context, r RequestRange) (*Page[E], error)

// FetchEntries calls f
func (f FetcherFunc[E]) FetchEntries(ctx context.Context, r RequestRange) (*Page[E], error) {
	return f(ctx, r)
}

// StreamEventKind enumerates live events delivered by the push stream
type StreamEventKind int

const (
	EventCreated StreamEventKind = iota
	EventUpdated
	EventDeleted
	EventFiltersChanged
)

func (k StreamEventKind) String() string {
	switch k {
	case EventCreated:
		return "created"
	case EventUpdated:
		return "updated"
	case EventDeleted:
		return "deleted"
	case EventFiltersChanged:
		return "filtersChanged"
	default:
		return fmt.Sprintf("StreamEventKind(%d)", int(k))
	}
}

// StreamEvent is a single live event. Entry is set for created and updated
// events, Key for deleted events.
type StreamEvent[E Keyed] struct {
	Entry E
	Key   string
	Kind  StreamEventKind
}

// Created builds a creation event
func Created[E Keyed](e E) StreamEvent[E] {
	return StreamEvent[E]{Kind: EventCreated, Entry: e}
}

// Updated builds an update event
func Updated[E Keyed](e E) StreamEvent[E] {
	return StreamEvent[E]{Kind: EventUpdated, Entry: e}
}

// Deleted builds a deletion event
func Deleted[E Keyed](key string) StreamEvent[E] {
	return StreamEvent[E]{Kind: EventDeleted, Key: key}
}

// Viewport is reported by the presentation layer
type Viewport interface {
	// NearTail reports whether the visible area is within the bottom half of
	// the scrollable content. Truncation is suppressed while it is.
	NearTail() bool
	// VisibleRange returns the half-open range of realized slot indices
	VisibleRange() (start, end int)
}

// Options configures a Timeline and its components
type Options struct {
	Logger           *slog.Logger
	Metrics          *Metrics
	PageSize         int
	MaxEntries       int
	RetryDelay       time.Duration
	ReconnectFloor   time.Duration
	ReconnectCeiling time.Duration
	TombstoneSize    int
}

const (
	DefaultPageSize         = 20
	DefaultMaxEntries       = 150
	DefaultRetryDelay       = 10 * time.Second
	DefaultReconnectFloor   = 500 * time.Millisecond
	DefaultReconnectCeiling = 10 * time.Second
	DefaultTombstoneSize    = 512
)

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.MaxEntries <= 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = DefaultRetryDelay
	}
	if o.ReconnectFloor <= 0 {
		o.ReconnectFloor = DefaultReconnectFloor
	}
	if o.ReconnectCeiling <= 0 {
		o.ReconnectCeiling = DefaultReconnectCeiling
	}
	if o.ReconnectCeiling < o.ReconnectFloor {
		o.ReconnectCeiling = o.ReconnectFloor
	}
	if o.TombstoneSize <= 0 {
		o.TombstoneSize = DefaultTombstoneSize
	}
	return o
}
