// Package netutil holds the shared outbound HTTP plumbing used by the router,
// billing, alert and messaging clients.
package netutil

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultUserAgent = "uisp-suspend/1.0"

// maxErrorBody caps how much of a failed response body is kept for diagnostics.
const maxErrorBody = 2048

// HTTPStatusError indicates the server responded, but with an unexpected
// HTTP status code. This is a non-network failure.
type HTTPStatusError struct {
	StatusCode int
	URL        string
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
	}
	return fmt.Sprintf("unexpected status %d from %s: %s", e.StatusCode, e.URL, e.Body)
}

// RequestError indicates request setup failed before any transport attempt
// was made (for example, a malformed URL or unencodable body).
type RequestError struct {
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("build request: %v", e.Err)
}

func (e *RequestError) Unwrap() error {
	return e.Err
}

// NewHTTPClient returns a client with the given overall timeout. insecure
// disables TLS certificate verification (routers commonly use self-signed certs).
func NewHTTPClient(timeout time.Duration, insecure bool) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	return &http.Client{Timeout: timeout, Transport: transport}
}

// Request describes one JSON exchange.
type Request struct {
	Method  string
	URL     string
	Header  http.Header
	Body    any // JSON-encoded when non-nil
	Timeout time.Duration

	// OK decides which statuses count as success. Defaults to any 2xx.
	OK func(status int) bool

	// BasicAuth is applied when User is non-empty.
	User     string
	Password string
}

// StatusOKOnly accepts nothing but 200.
func StatusOKOnly(status int) bool { return status == http.StatusOK }

func status2xx(status int) bool { return status >= 200 && status < 300 }

// DoJSON executes req and decodes a JSON response into out (ignored when nil
// or when the body is empty). A deadline from req.Timeout is applied unless ctx
// already carries one. Failed statuses yield *HTTPStatusError.
func DoJSON(ctx context.Context, client *http.Client, req Request, out any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return &RequestError{Err: err}
		}
		body = bytes.NewReader(b)
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, req.URL, body)
	if err != nil {
		return &RequestError{Err: err}
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	if httpReq.Header.Get("User-Agent") == "" {
		httpReq.Header.Set("User-Agent", defaultUserAgent)
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.User != "" {
		httpReq.SetBasicAuth(req.User, req.Password)
	}

	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, req.URL, err)
	}
	defer resp.Body.Close()

	ok := req.OK
	if ok == nil {
		ok = status2xx
	}
	if !ok(resp.StatusCode) {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPStatusError{StatusCode: resp.StatusCode, URL: req.URL, Body: string(bytes.TrimSpace(snippet))}
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", method, req.URL, err)
	}
	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", method, req.URL, err)
	}
	return nil
}
