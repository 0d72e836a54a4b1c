package mastodon

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const defaultUserAgent = "Tootline/1.0"

// Client talks to the REST API of a single Mastodon instance
type Client struct {
	httpClient *http.Client
	limiter    *rate.Limiter
	baseURL    string
	token      string
	userAgent  string
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRateLimit bounds outbound requests to r per second with the given burst
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithUserAgent sets the User-Agent header
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a client for the instance at baseURL, e.g. https://mastodon.social.
// Mastodon allows 300 requests per 5 minutes; the default limiter stays under that.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(1, 5),
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		userAgent:  defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the instance URL
func (c *Client) BaseURL() string {
	return c.baseURL
}

// get performs an authenticated GET and decodes the JSON body into out.
// The parsed Link header is returned for paginated endpoints.
func (c *Client) get(ctx context.Context, path string, query url.Values, out any) (pageLinks, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return pageLinks{}, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return pageLinks{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pageLinks{}, fmt.Errorf("failed to fetch %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		// Limit error body to 1KB to prevent unbounded reads
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		var apiErr apiErrorBody
		message := string(body)
		if json.Unmarshal(body, &apiErr) == nil && apiErr.Error != "" {
			message = apiErr.Error
		}
		return pageLinks{}, statusError(resp.StatusCode, message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return pageLinks{}, fmt.Errorf("failed to decode %s response: %w", path, err)
	}
	return parseLinkHeader(resp.Header.Values("Link")...), nil
}

type instanceInfo struct {
	URLs struct {
		StreamingAPI string `json:"streaming_api"`
	} `json:"urls"`
}

// StreamingBaseURL asks the instance where its streaming API lives.
// Instances that do not say are assumed to serve it themselves.
func (c *Client) StreamingBaseURL(ctx context.Context) (string, error) {
	var info instanceInfo
	if _, err := c.get(ctx, "/api/v1/instance", nil, &info); err != nil {
		return "", err
	}
	if info.URLs.StreamingAPI == "" {
		return c.baseURL, nil
	}
	return info.URLs.StreamingAPI, nil
}
