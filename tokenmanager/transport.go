package tokenmanager

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Transport performs a single token endpoint request. Implementations send
// params as the request form and return the response status and decoded JSON
// object body. A body that is not a JSON object is reported as *DecodeError.
//
//go:generate go tool mockgen -source=transport.go -package tokenmanager -destination transport_mock.go Transport
type Transport interface {
	Request(ctx context.Context, method, url string, params map[string]string) (int, map[string]any, error)
}

// maxResponseSize bounds how much of a token endpoint response is read.
const maxResponseSize = 1 << 20

// HTTPTransportOption configures an HTTPTransport.
type HTTPTransportOption func(*HTTPTransport)

// WithRoundTripper sets the base transport for token endpoint requests.
// If not provided, http.DefaultTransport is used.
func WithRoundTripper(rt http.RoundTripper) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client.Transport = rt
	}
}

// WithTimeout bounds each request, including reading the response body.
func WithTimeout(d time.Duration) HTTPTransportOption {
	return func(t *HTTPTransport) {
		t.client.Timeout = d
	}
}

// HTTPTransport sends form-encoded requests over HTTP.
type HTTPTransport struct {
	client *http.Client
}

// Compile-time check to ensure HTTPTransport implements Transport
var _ Transport = (*HTTPTransport)(nil)

// NewHTTPTransport creates an HTTPTransport with a 30 second timeout.
func NewHTTPTransport(opts ...HTTPTransportOption) *HTTPTransport {
	t := &HTTPTransport{
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: http.DefaultTransport,
		},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Request implements Transport.
func (t *HTTPTransport) Request(ctx context.Context, method, rawURL string, params map[string]string) (int, map[string]any, error) {
	form := make(url.Values, len(params))
	for k, v := range params {
		form.Set(k, v)
	}

	var body io.Reader
	target := rawURL
	if method == http.MethodGet {
		u, err := url.Parse(rawURL)
		if err != nil {
			return 0, nil, fmt.Errorf("parsing URL: %w", err)
		}
		u.RawQuery = form.Encode()
		target = u.String()
	} else {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return 0, nil, fmt.Errorf("creating request for %s %s: %w", method, rawURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("calling %s %s: %w", method, rawURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response from %s %s: %w", method, rawURL, err)
	}

	decoded, err := decodeObject(raw)
	if err != nil {
		return resp.StatusCode, nil, &DecodeError{StatusCode: resp.StatusCode, Raw: raw, Err: err}
	}
	return resp.StatusCode, decoded, nil
}

// decodeObject decodes a JSON object, keeping numbers as json.Number. An empty
// body decodes to an empty map.
func decodeObject(raw []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, fmt.Errorf("response body is null")
	}
	return obj, nil
}
