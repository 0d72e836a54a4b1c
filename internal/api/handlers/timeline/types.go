package timeline

import (
	"fmt"

	"Tootline/internal/core/feed"
)

// SlotView is one slot of the response, tagged with its index
type SlotView struct {
	feed.SlotView
	Index int `json:"index"`
}

// errInvalidParam reports a malformed query or path parameter
func errInvalidParam(name string) error {
	return fmt.Errorf("%s must be a non-negative integer", name)
}
