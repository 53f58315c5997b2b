// Package astra provides a client for the Astra Dialer phone lookup API.
package astra

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/resilience"
)

// DefaultBaseURL is the Astra Dialer endpoint.
const DefaultBaseURL = "https://api.genesy.ai/api/tmp/astraDialer"

// Client defines the Astra Dialer operations.
type Client interface {
	// Lookup returns the phone Astra has on file for an email address.
	// An empty Phone means no match.
	Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error)
}

// LookupRequest is the Astra Dialer request body.
type LookupRequest struct {
	Email string `json:"email"`
}

// LookupResponse is the Astra Dialer response body.
type LookupResponse struct {
	Phone string `json:"phoneNmbr"`
}

// Option configures the Astra client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Astra Dialer client.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *httpClient) Lookup(ctx context.Context, lr LookupRequest) (*LookupResponse, error) {
	payload, err := json.Marshal(lr)
	if err != nil {
		return nil, eris.Wrap(err, "astra: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "astra: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apiKey", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "astra: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(resilience.NewTransientError(err, resp.StatusCode), "astra: read response body")
	}

	switch {
	case resp.StatusCode == http.StatusNoContent:
		return &LookupResponse{}, nil
	case resp.StatusCode != http.StatusOK:
		return nil, resilience.StatusError(
			eris.Errorf("astra: unexpected status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	var result LookupResponse
	if len(bytes.TrimSpace(body)) == 0 {
		return &result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		zap.L().Warn("astra: unreadable response body, treating as no phone", zap.Error(err))
		return &LookupResponse{}, nil
	}
	return &result, nil
}
