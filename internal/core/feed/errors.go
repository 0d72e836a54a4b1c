package feed

import "errors"

var (
	// ErrLoopStopped indicates work was posted after the coordination loop exited
	ErrLoopStopped = errors.New("coordination loop stopped")

	// ErrNoFetcher indicates a timeline was built without a fetch collaborator
	ErrNoFetcher = errors.New("no fetcher configured")

	// ErrStaleIndex indicates a gap index that no longer exists in the sequence.
	// It is only used for diagnostics; the fetch falls back to loading older entries.
	ErrStaleIndex = errors.New("stale gap index")

	// ErrNotGap indicates a load was requested for a slot that is not a gap
	ErrNotGap = errors.New("slot is not a gap")

	// ErrUnknownEntry indicates an entry key that is not in the store
	ErrUnknownEntry = errors.New("unknown entry")
)
