// Package reputation calls the user-reputation service to award or deduct
// points when helpfulness votes land on a user's reviews.
package reputation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dinewise/analysis/pkg/httpclient"
)

// HTTPDoer is the interface for executing HTTP requests.
// Both httpclient.Client and httpclient.CircuitBreakerClient satisfy this.
type HTTPDoer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Client is the reputation service gateway.
type Client struct {
	httpClient HTTPDoer
	baseURL    string
}

// NewClient creates a reputation client targeting the given base URL.
func NewClient(httpClient HTTPDoer, baseURL string) *Client {
	return &Client{
		httpClient: httpClient,
		baseURL:    baseURL,
	}
}

type adjustRequest struct {
	Points float64 `json:"points"`
	Reason string  `json:"reason"`
}

// AdjustPoints applies a signed reputation delta to a user. The caller decides
// whether a failure is fatal; vote recording treats it as best-effort.
func (c *Client) AdjustPoints(ctx context.Context, userID string, points float64, reason string) error {
	payload, err := json.Marshal(adjustRequest{Points: points, Reason: reason})
	if err != nil {
		return fmt.Errorf("marshal reputation request: %w", err)
	}

	url := fmt.Sprintf("%s/api/v1/users/%s/reputation", c.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build reputation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(ctx, req)
	if err != nil {
		return fmt.Errorf("call reputation service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return httpclient.ParseResponseError(resp, "reputation")
	}

	return nil
}
