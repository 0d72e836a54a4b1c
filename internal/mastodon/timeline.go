package mastodon

import (
	"fmt"
	"net/url"
	"strings"
)

// TimelineKind enumerates the feeds a client can follow
type TimelineKind string

const (
	TimelineHome          TimelineKind = "home"
	TimelinePublic        TimelineKind = "public"
	TimelineLocal         TimelineKind = "local"
	TimelineTag           TimelineKind = "tag"
	TimelineList          TimelineKind = "list"
	TimelineNotifications TimelineKind = "notifications"
)

// Timeline selects one feed. Arg is the hashtag or list ID where applicable.
type Timeline struct {
	Kind TimelineKind
	Arg  string
}

// ParseTimeline parses selectors like "home", "local", "tag:golang" or "list:42"
func ParseTimeline(s string) (Timeline, error) {
	kind, arg, _ := strings.Cut(strings.TrimSpace(s), ":")
	tl := Timeline{Kind: TimelineKind(strings.ToLower(kind)), Arg: arg}

	switch tl.Kind {
	case TimelineHome, TimelinePublic, TimelineLocal, TimelineNotifications:
		if arg != "" {
			return Timeline{}, fmt.Errorf("%w: %q takes no argument", ErrUnknownTimeline, s)
		}
	case TimelineTag, TimelineList:
		if arg == "" {
			return Timeline{}, fmt.Errorf("%w: %q needs an argument", ErrUnknownTimeline, s)
		}
	default:
		return Timeline{}, fmt.Errorf("%w: %q", ErrUnknownTimeline, s)
	}
	return tl, nil
}

func (t Timeline) String() string {
	if t.Arg == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.Arg
}

// IsNotifications reports whether the feed carries notifications instead of statuses
func (t Timeline) IsNotifications() bool {
	return t.Kind == TimelineNotifications
}

// endpoint returns the REST path and fixed query parameters
func (t Timeline) endpoint() (string, url.Values) {
	query := url.Values{}
	switch t.Kind {
	case TimelinePublic:
		return "/api/v1/timelines/public", query
	case TimelineLocal:
		query.Set("local", "true")
		return "/api/v1/timelines/public", query
	case TimelineTag:
		return "/api/v1/timelines/tag/" + url.PathEscape(t.Arg), query
	case TimelineList:
		return "/api/v1/timelines/list/" + url.PathEscape(t.Arg), query
	case TimelineNotifications:
		return "/api/v1/notifications", query
	default:
		return "/api/v1/timelines/home", query
	}
}

// stream returns the streaming API stream name and its extra parameters
func (t Timeline) stream() (string, url.Values) {
	query := url.Values{}
	switch t.Kind {
	case TimelinePublic:
		return "public", query
	case TimelineLocal:
		return "public:local", query
	case TimelineTag:
		query.Set("tag", t.Arg)
		return "hashtag", query
	case TimelineList:
		query.Set("list", t.Arg)
		return "list", query
	case TimelineNotifications:
		return "user:notification", query
	default:
		return "user", query
	}
}

// FilterContext is the keyword filter context that applies to this feed
func (t Timeline) FilterContext() string {
	switch t.Kind {
	case TimelinePublic, TimelineLocal, TimelineTag:
		return FilterContextPublic
	case TimelineNotifications:
		return FilterContextNotifications
	default:
		return FilterContextHome
	}
}
