// Package upstream fetches pages of the mirrored auction feed, using a
// dedicated *http.Client with a bounded timeout and cenkalti/backoff
// retries on a fixed 250+350·i ms schedule, capped at 4 retries.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// AuctionPayload is one entry of the upstream feed's auctions array.
type AuctionPayload struct {
	UUID        string `json:"uuid"`
	ItemName    string `json:"item_name"`
	BIN         bool   `json:"bin"`
	Start       int64  `json:"start"`
	End         int64  `json:"end"`
	StartingBid int64  `json:"starting_bid"`
	HighestBid  int64  `json:"highest_bid"`
	Tier        string `json:"tier"`
	ItemLore    string `json:"item_lore"`
	ItemBytes   string `json:"item_bytes"`
}

// PageResponse is the upstream feed's page envelope.
type PageResponse struct {
	Success    bool             `json:"success"`
	TotalPages int              `json:"totalPages"`
	Auctions   []AuctionPayload `json:"auctions"`
}

// Client fetches pages of the upstream auction feed.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient builds a client with a bounded per-request timeout; the
// upstream's own default client timeout is too permissive for a polling
// loop that must fail fast and retry.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 20 * time.Second},
	}
}

// FetchPage retrieves a single page, retrying up to 4 times with a fixed
// 250+350·i ms backoff schedule. A network error or
// non-2xx response exhausting the retry budget is returned to the caller,
// who must abort the whole cycle (no partial snapshot is usable).
func (c *Client) FetchPage(ctx context.Context, page int) (*PageResponse, error) {
	var result *PageResponse

	attempt := 0
	operation := func() error {
		resp, err := c.doFetch(ctx, page)
		if err != nil {
			attempt++
			return err
		}
		result = resp
		return nil
	}

	bo := &fixedScheduleBackoff{maxRetries: 4}
	if err := backoff.Retry(operation, backoff.WithContext(bo, ctx)); err != nil {
		return nil, fmt.Errorf("upstream: fetch page %d: %w", page, err)
	}
	return result, nil
}

func (c *Client) doFetch(ctx context.Context, page int) (*PageResponse, error) {
	u, err := url.Parse(c.baseURL + "/auctions")
	if err != nil {
		return nil, fmt.Errorf("upstream: parse base url: %w", err)
	}
	q := u.Query()
	q.Set("page", strconv.Itoa(page))
	q.Set("key", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("upstream: build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream: request page %d: %w", page, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("upstream: page %d returned status %d", page, resp.StatusCode)
	}

	var out PageResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("upstream: decode page %d: %w", page, err)
	}
	if !out.Success {
		return nil, fmt.Errorf("upstream: page %d reported success=false", page)
	}
	return &out, nil
}

// fixedScheduleBackoff implements an exact "250 + 350·i ms" schedule
// (i = retry attempt, 0-indexed) via backoff.BackOff, capped at 4 retries.
type fixedScheduleBackoff struct {
	maxRetries int
	attempt    int
}

func (b *fixedScheduleBackoff) Reset() { b.attempt = 0 }

func (b *fixedScheduleBackoff) NextBackOff() time.Duration {
	if b.attempt >= b.maxRetries {
		return backoff.Stop
	}
	d := time.Duration(250+350*b.attempt) * time.Millisecond
	b.attempt++
	return d
}
