package mastodon

import (
	"net/url"
	"strings"

	"github.com/tomnomnom/linkheader"
)

// pageLinks holds the cursors found in a Link response header
type pageLinks struct {
	maxID string // from rel="next", pages toward older entries
	minID string // from rel="prev", pages toward newer entries
}

// parseLinkHeader extracts pagination cursors from headers such as
//
//	<https://example.social/api/v1/timelines/home?max_id=103>; rel="next",
//	<https://example.social/api/v1/timelines/home?min_id=107>; rel="prev"
func parseLinkHeader(headers ...string) pageLinks {
	var links pageLinks
	for _, link := range linkheader.ParseMultiple(headers) {
		u, err := url.Parse(link.URL)
		if err != nil {
			continue
		}
		for _, rel := range strings.Fields(strings.ToLower(link.Rel)) {
			switch rel {
			case "next":
				links.maxID = u.Query().Get("max_id")
			case "prev":
				links.minID = u.Query().Get("min_id")
				if links.minID == "" {
					links.minID = u.Query().Get("since_id")
				}
			}
		}
	}
	return links
}
