package mastodon

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var filterNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return filterNow }

func TestKeywordFilter_ActiveAndContext(t *testing.T) {
	past := filterNow.Add(-time.Hour)
	future := filterNow.Add(time.Hour)

	assert.True(t, KeywordFilter{}.Active(filterNow))
	assert.True(t, KeywordFilter{ExpiresAt: &future}.Active(filterNow))
	assert.False(t, KeywordFilter{ExpiresAt: &past}.Active(filterNow))

	f := KeywordFilter{Context: []string{FilterContextHome, FilterContextThread}}
	assert.True(t, f.AppliesTo(FilterContextHome))
	assert.False(t, f.AppliesTo(FilterContextPublic))
}

func TestStatusPredicates(t *testing.T) {
	past := filterNow.Add(-time.Minute)
	filters := []KeywordFilter{
		{ID: "1", Phrase: "Election", Context: []string{FilterContextHome}},
		{ID: "2", Phrase: "cat", Context: []string{FilterContextHome}, WholeWord: true},
		{ID: "3", Phrase: "expired", Context: []string{FilterContextHome}, ExpiresAt: &past},
		{ID: "4", Phrase: "public only", Context: []string{FilterContextPublic}},
	}
	preds := StatusPredicates(filters, FilterContextHome, fixedNow)
	require.Len(t, preds, 2)

	matches := func(s *Status) bool {
		for _, p := range preds {
			if p(s) {
				return true
			}
		}
		return false
	}

	tests := []struct {
		name   string
		status *Status
		want   bool
	}{
		{name: "substring, case insensitive", status: &Status{Content: "<p>election results</p>"}, want: true},
		{name: "whole word", status: &Status{Content: "<p>my cat, again</p>"}, want: true},
		{name: "not a whole word", status: &Status{Content: "<p>concatenate</p>"}, want: false},
		{name: "spoiler text", status: &Status{SpoilerText: "cat pics", Content: "<p>hidden</p>"}, want: true},
		{name: "markup is not text", status: &Status{Content: `<p><a href="https://cat.example">link</a></p>`}, want: false},
		{name: "boosted content", status: &Status{Reblog: &Status{Content: "<p>Election day</p>"}}, want: true},
		{name: "expired phrase", status: &Status{Content: "<p>expired</p>"}, want: false},
		{name: "other context", status: &Status{Content: "<p>public only</p>"}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, matches(tt.status))
		})
	}
}

func TestStatusPredicates_ExpireWhileActive(t *testing.T) {
	expiry := filterNow.Add(time.Minute)
	now := filterNow
	preds := StatusPredicates([]KeywordFilter{
		{Phrase: "soon", Context: []string{FilterContextHome}, ExpiresAt: &expiry},
	}, FilterContextHome, func() time.Time { return now })
	require.Len(t, preds, 1)

	s := &Status{Content: "<p>soon</p>"}
	assert.True(t, preds[0](s))

	now = filterNow.Add(2 * time.Minute)
	assert.False(t, preds[0](s))
}

func TestNotificationPredicates(t *testing.T) {
	preds := NotificationPredicates([]KeywordFilter{
		{Phrase: "crypto", Context: []string{FilterContextNotifications}},
	}, fixedNow)
	require.Len(t, preds, 1)

	assert.True(t, preds[0](&Notification{Status: &Status{Content: "<p>buy crypto</p>"}}))
	assert.True(t, preds[0](&Notification{Type: NotificationFollow, Account: Account{Note: "<p>crypto bro</p>"}}))
	assert.False(t, preds[0](&Notification{Type: NotificationFollow, Account: Account{Note: "<p>gardener</p>"}}))
}

func TestLocalFilters(t *testing.T) {
	filters := LocalFilters([]string{" spoilers ", "", "nft"})

	require.Len(t, filters, 2)
	assert.Equal(t, "spoilers", filters[0].Phrase)
	assert.True(t, filters[0].WholeWord)
	assert.True(t, filters[1].AppliesTo(FilterContextNotifications))
}

func TestClient_Filters(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/filters", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"9","phrase":"golf","context":["home","public"],"whole_word":true,"irreversible":false,"expires_at":null}]`))
	})

	filters, err := client.Filters(context.Background())
	require.NoError(t, err)

	require.Len(t, filters, 1)
	assert.Equal(t, "golf", filters[0].Phrase)
	assert.True(t, filters[0].WholeWord)
	assert.Nil(t, filters[0].ExpiresAt)
	assert.True(t, filters[0].AppliesTo(FilterContextPublic))
}
