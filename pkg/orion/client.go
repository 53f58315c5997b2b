// Package orion provides a client for the Orion Connect phone lookup API.
package orion

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

// DefaultBaseURL is the Orion Connect lookup endpoint.
const DefaultBaseURL = "https://api.genesy.ai/api/tmp/orionConnect"

// Client defines the Orion Connect operations.
type Client interface {
	// Lookup returns the phone Orion knows for a person at a company.
	// An empty Phone means no match.
	Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error)
}

// LookupRequest is the Orion Connect request body.
type LookupRequest struct {
	FullName       string `json:"fullName"`
	CompanyWebsite string `json:"companyWebsite"`
}

// LookupResponse is the Orion Connect response body.
type LookupResponse struct {
	Phone string `json:"phone"`
}

// Option configures the Orion client.
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
	authKey string
	baseURL string
	http    *http.Client
}

// NewClient creates a new Orion Connect client authenticated by authKey.
func NewClient(authKey string, opts ...Option) Client {
	c := &httpClient{
		authKey: authKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
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
		return nil, eris.Wrap(err, "orion: marshal request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "orion: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-auth-me", c.authKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "orion: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(resilience.NewTransientError(err, resp.StatusCode), "orion: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError(
			eris.Errorf("orion: unexpected status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	result := &LookupResponse{}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		zap.L().Warn("orion: unreadable response body, treating as no phone", zap.Error(err))
		return &LookupResponse{}, nil
	}
	return result, nil
}
