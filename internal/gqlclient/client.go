// Package gqlclient is a small GraphQL-over-HTTP client for the CMS API.
package gqlclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/vektah/gqlparser/v2/gqlerror"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout = 30 * time.Second
	// maxErrorBody caps how much of a failed response is read.
	maxErrorBody = 1 << 20
)

// Request is a GraphQL operation.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors gqlerror.List   `json:"errors"`
}

// Options configures a Client.
type Options struct {
	Token string
	// RequestsPerSecond paces requests. Zero disables pacing.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Client sends operations to a single GraphQL endpoint.
type Client struct {
	endpoint string
	token    string
	client   *http.Client
	limiter  *rate.Limiter
}

// New creates a client for the API rooted at apiURL. The GraphQL endpoint is
// apiURL + "/graphql".
func New(apiURL string, opts Options) *Client {
	c := &Client{
		endpoint: strings.TrimRight(apiURL, "/") + "/graphql",
		token:    opts.Token,
		client:   opts.HTTPClient,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: defaultTimeout}
	}
	if opts.RequestsPerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}
	return c
}

// Endpoint returns the GraphQL endpoint URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Do executes req and decodes the `data` object. Numbers are kept as
// json.Number so ids survive untouched. When the response carries GraphQL
// errors they are returned as a gqlerror.List next to whatever data was
// sent; transport failures are returned as *NetworkError.
func (c *Client) Do(ctx context.Context, req Request) (map[string]any, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	if len(resp.Data) > 0 && string(resp.Data) != "null" {
		dec := json.NewDecoder(bytes.NewReader(resp.Data))
		dec.UseNumber()
		if err := dec.Decode(&data); err != nil {
			return nil, fmt.Errorf("failed to decode response data: %w", err)
		}
	}

	if len(resp.Errors) > 0 {
		return data, resp.Errors
	}
	return data, nil
}

func (c *Client) do(ctx context.Context, req Request) (*response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.token)
	}

	httpResp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, &NetworkError{Err: err}
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		netErr := &NetworkError{StatusCode: httpResp.StatusCode}
		raw, _ := io.ReadAll(io.LimitReader(httpResp.Body, maxErrorBody))
		var failed response
		if json.Unmarshal(raw, &failed) == nil {
			netErr.Errors = compactErrors(failed.Errors)
		}
		return nil, netErr
	}

	var out response
	if err := json.NewDecoder(httpResp.Body).Decode(&out); err != nil {
		return nil, &NetworkError{StatusCode: httpResp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	out.Errors = compactErrors(out.Errors)
	return &out, nil
}
