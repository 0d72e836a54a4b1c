package mastodon

import "time"

// Account is the subset of a Mastodon account the feed needs
type Account struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Acct        string `json:"acct"`
	DisplayName string `json:"display_name"`
	Note        string `json:"note"`
	URL         string `json:"url"`
	Avatar      string `json:"avatar"`
}

// Status is a Mastodon status as returned by the timeline endpoints
type Status struct {
	CreatedAt       time.Time  `json:"created_at"`
	EditedAt        *time.Time `json:"edited_at,omitempty"`
	Reblog          *Status    `json:"reblog,omitempty"`
	Account         Account    `json:"account"`
	ID              string     `json:"id"`
	URI             string     `json:"uri"`
	URL             string     `json:"url,omitempty"`
	Content         string     `json:"content"`
	SpoilerText     string     `json:"spoiler_text"`
	Visibility      string     `json:"visibility"`
	Language        string     `json:"language,omitempty"`
	InReplyToID     string     `json:"in_reply_to_id,omitempty"`
	RepliesCount    int        `json:"replies_count"`
	ReblogsCount    int        `json:"reblogs_count"`
	FavouritesCount int        `json:"favourites_count"`
	Sensitive       bool       `json:"sensitive"`
}

// Key identifies the status within a feed
func (s *Status) Key() string { return s.ID }

// Shown returns the status whose content is displayed: the reblogged one for boosts
func (s *Status) Shown() *Status {
	if s.Reblog != nil {
		return s.Reblog
	}
	return s
}

// Notification types delivered by /api/v1/notifications
const (
	NotificationMention   = "mention"
	NotificationStatus    = "status"
	NotificationReblog    = "reblog"
	NotificationFollow    = "follow"
	NotificationFavourite = "favourite"
	NotificationPoll      = "poll"
	NotificationUpdate    = "update"
)

// Notification is a Mastodon notification
type Notification struct {
	CreatedAt time.Time `json:"created_at"`
	Status    *Status   `json:"status,omitempty"`
	Account   Account   `json:"account"`
	ID        string    `json:"id"`
	Type      string    `json:"type"`
}

// Key identifies the notification within a feed
func (n *Notification) Key() string { return n.ID }
