// Package api is the request/response client for the chat backend. It is
// the durable read/write path; low-latency fan-out happens on the realtime
// channel instead.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"chat-sync/internal/errs"
	"chat-sync/internal/observability"
)

// requestTimeout bounds every backend call; a timeout surfaces as a
// NetworkError like any other transport failure.
const requestTimeout = 10 * time.Second

// Client talks to the chat backend REST API.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// NewClient builds a Client for the given base URL. The bearer token is
// attached to every request when non-empty.
func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http: &http.Client{
			Timeout:   requestTimeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// do performs one JSON request and decodes the response into out when
// out is non-nil. The operation name labels metrics and error messages.
func (c *Client) do(ctx context.Context, operation, method, path string, body, out interface{}) error {
	start := time.Now()
	err := c.doOnce(ctx, method, path, body, out)
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	observability.ObserveAPIRequest(operation, outcome, time.Since(start))
	if err != nil {
		return err
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return errs.Network(method+" "+path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errs.NetworkStatus(method+" "+path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errs.Network(method+" "+path, fmt.Errorf("decode response: %w", err))
	}
	return nil
}
