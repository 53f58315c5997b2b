// Package nimbus provides a client for the Nimbus Lookup phone API.
package nimbus

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-enrich/internal/resilience"
)

// DefaultBaseURL is the Nimbus Lookup endpoint.
const DefaultBaseURL = "https://api.genesy.ai/api/tmp/numbusLookup"

// Client defines the Nimbus Lookup operations.
type Client interface {
	// Lookup returns the phone Nimbus associates with an email and job title.
	// An empty Phone means no match.
	Lookup(ctx context.Context, req LookupRequest) (*LookupResponse, error)
}

// LookupRequest is the Nimbus Lookup request body.
type LookupRequest struct {
	Email    string `json:"email"`
	JobTitle string `json:"jobTitle"`
}

// LookupResponse is the Nimbus Lookup response body.
type LookupResponse struct {
	Phone Number `json:"phoneNmbr"`
}

// Number decodes a phone sent either as a JSON string or a bare JSON number.
type Number string

// UnmarshalJSON implements json.Unmarshaler.
func (n *Number) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch {
	case raw == "null":
		*n = ""
		return nil
	case strings.HasPrefix(raw, `"`):
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	default:
		var num json.Number
		if err := json.Unmarshal(data, &num); err != nil {
			return eris.Wrap(err, "nimbus: phoneNmbr is neither string nor number")
		}
		*n = Number(num.String())
		return nil
	}
}

// Option configures the Nimbus client.
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

// NewClient creates a new Nimbus Lookup client. The key travels in the
// "api" query parameter.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: DefaultBaseURL,
		http: &http.Client{
			Timeout: 20 * time.Second,
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
		return nil, eris.Wrap(err, "nimbus: marshal request")
	}

	u, err := url.Parse(c.baseURL)
	if err != nil {
		return nil, eris.Wrap(err, "nimbus: parse base url")
	}
	q := u.Query()
	q.Set("api", c.apiKey)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u.String(), bytes.NewReader(payload))
	if err != nil {
		return nil, eris.Wrap(err, "nimbus: create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "nimbus: do request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(resilience.NewTransientError(err, resp.StatusCode), "nimbus: read response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, resilience.StatusError(
			eris.Errorf("nimbus: unexpected status %d: %s", resp.StatusCode, string(body)),
			resp.StatusCode,
		)
	}

	result := &LookupResponse{}
	if len(bytes.TrimSpace(body)) == 0 {
		return result, nil
	}
	if err := json.Unmarshal(body, result); err != nil {
		zap.L().Warn("nimbus: unreadable response body, treating as no phone", zap.Error(err))
		return &LookupResponse{}, nil
	}
	return result, nil
}
