// Package payment wraps the external payment provider. The service only
// needs to know whether a previously captured payment reference settled;
// anything else is a hard precondition failure for promotion creation.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Status is the normalized provider-side payment state.
type Status string

// Normalized payment states.
const (
	StatusSucceeded Status = "succeeded"
	StatusPending   Status = "pending"
	StatusFailed    Status = "failed"
)

// Settled reports whether the payment cleared.
func (s Status) Settled() bool { return s == StatusSucceeded }

// Confirmer defines the subset of the payment provider API the service
// requires.
type Confirmer interface {
	Confirm(ctx context.Context, reference string) (Status, error)
}

// HTTPClient implements Confirmer against the provider's HTTP API.
type HTTPClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewHTTPClient constructs an HTTP client with sane defaults.
func NewHTTPClient(baseURL, apiKey string) *HTTPClient {
	return &HTTPClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type confirmResponse struct {
	Reference string `json:"reference"`
	Status    string `json:"status"`
}

// Confirm looks up a payment reference and maps the provider status onto
// the normalized set. Provider spellings such as "finished" or "paid"
// count as settled.
func (c *HTTPClient) Confirm(ctx context.Context, reference string) (Status, error) {
	if c == nil {
		return StatusFailed, fmt.Errorf("payment: client not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/payments/%s", c.baseURL, reference), nil)
	if err != nil {
		return StatusFailed, err
	}
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return StatusFailed, err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return StatusFailed, nil
	}
	if resp.StatusCode != http.StatusOK {
		return StatusFailed, fmt.Errorf("payment: provider returned status %d", resp.StatusCode)
	}
	var body confirmResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return StatusFailed, err
	}
	return Normalize(body.Status), nil
}

// Normalize maps provider status spellings onto the service's set.
func Normalize(raw string) Status {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "succeeded", "finished", "confirmed", "completed", "paid", "captured":
		return StatusSucceeded
	case "pending", "waiting", "confirming", "processing":
		return StatusPending
	}
	return StatusFailed
}

// Static is a fixed-answer Confirmer used by tests.
type Static map[string]Status

// Confirm implements Confirmer from the fixed map; unknown references
// report failed.
func (s Static) Confirm(_ context.Context, reference string) (Status, error) {
	if st, ok := s[reference]; ok {
		return st, nil
	}
	return StatusFailed, nil
}
