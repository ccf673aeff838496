package remote

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
)

const (
	defaultUserAgent = "attendance/1.0"
	// text/plain keeps the request "simple" so Apps Script web apps answer
	// without a CORS preflight round trip.
	requestContentType = "text/plain;charset=utf-8"
	maxResponseBytes   = 8 << 20
)

// Transport carries one serialized request to the endpoint and returns the
// raw response body.
type Transport interface {
	Post(ctx context.Context, endpoint string, body []byte) ([]byte, error)
}

// userAgentTransport adds the client User-Agent to each request.
type userAgentTransport struct {
	UserAgent string
	Transport http.RoundTripper
}

// RoundTrip sets the User-Agent header and delegates to the wrapped transport.
func (t *userAgentTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req = req.Clone(req.Context())
	req.Header.Set("User-Agent", t.UserAgent)
	return t.Transport.RoundTrip(req)
}

// HTTPTransport posts requests with a plain net/http client.
type HTTPTransport struct {
	client *http.Client
}

// NewHTTPTransport wraps client, or a default client when nil. The client
// may come from an oauth2 config so requests carry a bearer token.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = &http.Client{}
	}
	base := client.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	wrapped := *client
	wrapped.Transport = &userAgentTransport{UserAgent: defaultUserAgent, Transport: base}
	return &HTTPTransport{client: &wrapped}
}

// Post sends body to endpoint. Non-2xx answers become *TransportError.
func (t *HTTPTransport) Post(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", requestContentType)
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{Status: resp.StatusCode}
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return data, nil
}
