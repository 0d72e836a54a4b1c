package timeline

import (
	"context"

	"Tootline/internal/core/feed"
)

// Service is the part of a running feed the debug API drives.
// *feed.Timeline implements it for every entry type.
type Service interface {
	Snapshot(ctx context.Context) ([]feed.SlotView, error)
	Refresh() error
	LoadOlder() error
	Reload() error
	LoadGap(ctx context.Context, index int) error
	Reveal(ctx context.Context, key string) error
	SetViewport(vp feed.Viewport) error
	SetSleeping(sleeping bool) error
	PinSpecial(key string, index int) error
	UnpinSpecial(key string) error
}
