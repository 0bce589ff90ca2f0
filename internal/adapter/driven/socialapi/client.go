// Package socialapi implements the ContentSource and ActionClient ports
// against the external content/action HTTP API.
package socialapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/gregjones/httpcache"

	"github.com/boostpanel/boostpanel/internal/domain/model"
	"github.com/boostpanel/boostpanel/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.ContentSource = (*Client)(nil)
	_ driven.ActionClient  = (*Client)(nil)
)

// Client talks to the external content/action API. The transport stack is:
//  1. httpcache (ETag-based conditional request caching, keeps repeat content
//     polls cheap)
//  2. resty with a hard per-request timeout so one hung call cannot stall a
//     target's polling cadence
//
// Retries are deliberately NOT handled here; the dispatcher owns the
// retry/backoff policy and the poller treats a failed fetch as zero items.
type Client struct {
	rc *resty.Client
}

// NewClient creates a Client for the API at baseURL. timeout bounds every
// request including connection setup and body read.
func NewClient(baseURL string, timeout time.Duration) *Client {
	httpClient := &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   timeout,
	}

	rc := resty.NewWithClient(httpClient).
		SetBaseURL(baseURL).
		SetHeader("Content-Type", "application/json")

	return &Client{rc: rc}
}

// apiEnvelope is the common response wrapper of the external API. A response
// carrying any error field is a failure regardless of transport status.
type apiEnvelope struct {
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type itemJSON struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
}

type itemsResponse struct {
	apiEnvelope
	Items []itemJSON `json:"items"`
}

// FetchRecent returns up to limit of the target's most recent items, newest
// first, as seen through the given account.
func (c *Client) FetchRecent(ctx context.Context, targetID string, account model.Account, limit int) ([]model.ContentItem, error) {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(account.Secret).
		SetQueryParam("limit", fmt.Sprint(limit)).
		SetPathParam("target", targetID).
		Get("/v1/targets/{target}/items")
	if err != nil {
		return nil, fmt.Errorf("fetch recent items for %s: %w", targetID, err)
	}

	var body itemsResponse
	if err := json.Unmarshal(resp.Body(), &body); err != nil {
		return nil, fmt.Errorf("decode items for %s: %w", targetID, err)
	}
	if apiErr := classify(resp, body.apiEnvelope); apiErr != nil {
		return nil, fmt.Errorf("fetch recent items for %s: %w", targetID, apiErr)
	}

	items := make([]model.ContentItem, 0, len(body.Items))
	for _, it := range body.Items {
		items = append(items, model.ContentItem{ID: it.ID, CreatedAt: it.CreatedAt})
	}
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

// React leaves a reaction of the given kind on an item.
func (c *Client) React(ctx context.Context, account model.Account, itemID, reactionKind string) error {
	return c.post(ctx, account, itemID, "/v1/items/{item}/reactions", map[string]string{"kind": reactionKind})
}

// Comment posts a comment on an item.
func (c *Client) Comment(ctx context.Context, account model.Account, itemID, text string) error {
	return c.post(ctx, account, itemID, "/v1/items/{item}/comments", map[string]string{"text": text})
}

// Share re-shares an item to the account's own stream.
func (c *Client) Share(ctx context.Context, account model.Account, itemID string) error {
	return c.post(ctx, account, itemID, "/v1/items/{item}/shares", struct{}{})
}

func (c *Client) post(ctx context.Context, account model.Account, itemID, path string, payload any) error {
	resp, err := c.rc.R().
		SetContext(ctx).
		SetAuthToken(account.Secret).
		SetPathParam("item", itemID).
		SetBody(payload).
		Post(path)
	if err != nil {
		return fmt.Errorf("post %s for item %s: %w", path, itemID, err)
	}

	var body apiEnvelope
	// An empty or non-JSON success body is fine; only decode errors on a
	// non-2xx response matter and classify handles those via the status.
	_ = json.Unmarshal(resp.Body(), &body)

	if apiErr := classify(resp, body); apiErr != nil {
		return apiErr
	}
	return nil
}

// classify turns a response into an *APIError if it carries any error
// indicator: error code, error message, or a non-success transport status.
func classify(resp *resty.Response, env apiEnvelope) *driven.APIError {
	if resp.IsSuccess() && env.ErrorCode == "" && env.ErrorMessage == "" {
		return nil
	}
	return &driven.APIError{
		Status:  resp.StatusCode(),
		Code:    env.ErrorCode,
		Message: env.ErrorMessage,
	}
}
