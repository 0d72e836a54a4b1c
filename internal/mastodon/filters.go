package mastodon

import (
	"context"
	"regexp"
	"slices"
	"strings"
	"time"

	"Tootline/internal/core/feed"
)

// Keyword filter contexts
const (
	FilterContextHome          = "home"
	FilterContextNotifications = "notifications"
	FilterContextPublic        = "public"
	FilterContextThread        = "thread"
	FilterContextAccount       = "account"
)

// KeywordFilter is a v1 keyword filter
type KeywordFilter struct {
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	ID           string     `json:"id"`
	Phrase       string     `json:"phrase"`
	Context      []string   `json:"context"`
	Irreversible bool       `json:"irreversible"`
	WholeWord    bool       `json:"whole_word"`
}

// Active reports whether the filter has not expired at now
func (f KeywordFilter) Active(now time.Time) bool {
	return f.ExpiresAt == nil || f.ExpiresAt.After(now)
}

// AppliesTo reports whether the filter is enabled for context
func (f KeywordFilter) AppliesTo(context string) bool {
	return slices.Contains(f.Context, context)
}

// Filters fetches the account's keyword filters
func (c *Client) Filters(ctx context.Context) ([]KeywordFilter, error) {
	var filters []KeywordFilter
	if _, err := c.get(ctx, "/api/v1/filters", nil, &filters); err != nil {
		return nil, err
	}
	return filters, nil
}

// matcher tests plain text against one filter phrase
type matcher struct {
	wholeWord *regexp.Regexp
	phrase    string
	expiresAt *time.Time
}

func newMatcher(f KeywordFilter) matcher {
	m := matcher{phrase: strings.ToLower(f.Phrase), expiresAt: f.ExpiresAt}
	if f.WholeWord {
		m.wholeWord = regexp.MustCompile(`(?i)(^|[^\p{L}\p{N}_])` + regexp.QuoteMeta(f.Phrase) + `([^\p{L}\p{N}_]|$)`)
	}
	return m
}

func (m matcher) active(now time.Time) bool {
	return m.expiresAt == nil || m.expiresAt.After(now)
}

func (m matcher) match(text string) bool {
	if text == "" || m.phrase == "" {
		return false
	}
	if m.wholeWord != nil {
		return m.wholeWord.MatchString(text)
	}
	return strings.Contains(strings.ToLower(text), m.phrase)
}

func (m matcher) matchStatus(s *Status) bool {
	s = s.Shown()
	return m.match(s.SpoilerText) || m.match(PlainText(s.Content))
}

func matchers(filters []KeywordFilter, context string, now time.Time) []matcher {
	var out []matcher
	for _, f := range filters {
		if !f.AppliesTo(context) || !f.Active(now) {
			continue
		}
		out = append(out, newMatcher(f))
	}
	return out
}

// StatusPredicates turns the filters enabled for context into feed predicates.
// Expiry is re-checked on every evaluation using now.
func StatusPredicates(filters []KeywordFilter, context string, now func() time.Time) []feed.Predicate[*Status] {
	var preds []feed.Predicate[*Status]
	for _, m := range matchers(filters, context, now()) {
		preds = append(preds, func(s *Status) bool {
			return m.active(now()) && m.matchStatus(s)
		})
	}
	return preds
}

// NotificationPredicates is StatusPredicates for notifications. Notifications
// without a status are matched on the account note.
func NotificationPredicates(filters []KeywordFilter, now func() time.Time) []feed.Predicate[*Notification] {
	var preds []feed.Predicate[*Notification]
	for _, m := range matchers(filters, FilterContextNotifications, now()) {
		preds = append(preds, func(n *Notification) bool {
			if !m.active(now()) {
				return false
			}
			if n.Status != nil {
				return m.matchStatus(n.Status)
			}
			return m.match(PlainText(n.Account.Note))
		})
	}
	return preds
}

// LocalFilters builds filters from plain phrases configured on this side,
// applied to every context.
func LocalFilters(phrases []string) []KeywordFilter {
	var filters []KeywordFilter
	for _, p := range phrases {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		filters = append(filters, KeywordFilter{
			ID:     "local:" + p,
			Phrase: p,
			Context: []string{
				FilterContextHome, FilterContextNotifications, FilterContextPublic,
				FilterContextThread, FilterContextAccount,
			},
			WholeWord: true,
		})
	}
	return filters
}
