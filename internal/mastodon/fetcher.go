package mastodon

import (
	"context"
	"net/url"
	"strconv"

	"Tootline/internal/core/feed"
)

// StatusFetcher loads pages of a status timeline
type StatusFetcher struct {
	client   *Client
	timeline Timeline
}

// NewStatusFetcher creates a fetcher for a status timeline
func NewStatusFetcher(client *Client, timeline Timeline) *StatusFetcher {
	return &StatusFetcher{client: client, timeline: timeline}
}

// FetchEntries implements feed.Fetcher
func (f *StatusFetcher) FetchEntries(ctx context.Context, r feed.RequestRange) (*feed.Page[*Status], error) {
	return fetchPage[*Status](ctx, f.client, f.timeline, r)
}

// NotificationFetcher loads pages of the notifications feed
type NotificationFetcher struct {
	client *Client
}

// NewNotificationFetcher creates a fetcher for /api/v1/notifications
func NewNotificationFetcher(client *Client) *NotificationFetcher {
	return &NotificationFetcher{client: client}
}

// FetchEntries implements feed.Fetcher
func (f *NotificationFetcher) FetchEntries(ctx context.Context, r feed.RequestRange) (*feed.Page[*Notification], error) {
	return fetchPage[*Notification](ctx, f.client, Timeline{Kind: TimelineNotifications}, r)
}

func fetchPage[E feed.Keyed](ctx context.Context, c *Client, tl Timeline, r feed.RequestRange) (*feed.Page[E], error) {
	path, query := tl.endpoint()
	rangeQuery(query, r)

	var entries []E
	links, err := c.get(ctx, path, query, &entries)
	if err != nil {
		return nil, err
	}
	return &feed.Page[E]{Entries: entries, Pagination: pagination(r, links, len(entries))}, nil
}

func rangeQuery(query url.Values, r feed.RequestRange) {
	if r.Limit > 0 {
		query.Set("limit", strconv.Itoa(r.Limit))
	}
	switch r.Direction {
	case feed.DirectionMin:
		query.Set("min_id", r.BoundaryKey)
	case feed.DirectionMax:
		query.Set("max_id", r.BoundaryKey)
	}
}

// pagination turns Link cursors into feed cursors.
//
// A short page means the older end was reached. Pages fetched with min_id
// are contiguous with their boundary and the newest page has nothing above
// it, so only older-side cursors are reported for those.
func pagination(r feed.RequestRange, links pageLinks, count int) *feed.Pagination {
	var p feed.Pagination
	if links.maxID != "" && (r.Limit <= 0 || count >= r.Limit) {
		next := links.maxID
		p.Next = &next
	}
	if links.minID != "" && r.Direction == feed.DirectionMax {
		prev := links.minID
		p.Previous = &prev
	}
	if p.Next == nil && p.Previous == nil {
		return nil
	}
	return &p
}
