// Package transport issues the HTTP requests that carry XML-RPC payloads.
//
// Every call is a single attempt. Network-level failures are returned as
// *Error and non-2xx answers as *StatusError so callers can tell them apart.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	contentType      = "text/xml"
	userAgent        = "erpquote/1.0"
	maxResponseBytes = 16 * 1024 * 1024 // 16 MiB guard
	maxErrorBody     = 512
)

// Error is a transport-level failure: the request never produced an HTTP answer.
type Error struct {
	Op      string // "post" | "head" | "read"
	URL     string
	Err     error
	Timeout bool
}

func (e *Error) Error() string {
	if e.Timeout {
		return fmt.Sprintf("transport %s %s: timeout: %v", e.Op, e.URL, e.Err)
	}
	return fmt.Sprintf("transport %s %s: %v", e.Op, e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP answer.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string // truncated
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("http status %s", e.Status)
	}
	return fmt.Sprintf("http status %s: %s", e.Status, e.Body)
}

// HTTP sends XML-RPC payloads over HTTP POST.
type HTTP struct {
	client *http.Client
}

// NewHTTP returns an HTTP transport. insecureSkipVerify disables TLS
// certificate verification; it is meant for internal endpoints with
// self-signed certificates only.
func NewHTTP(insecureSkipVerify bool) *HTTP {
	tr := http.DefaultTransport.(*http.Transport).Clone()
	if insecureSkipVerify {
		tr.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	return &HTTP{client: &http.Client{Transport: tr}}
}

// Send POSTs body to endpoint and returns the response body.
// timeout applies to the entire round-trip (connect + write + read).
func (t *HTTP) Send(ctx context.Context, endpoint string, timeout time.Duration, body []byte) ([]byte, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, newError("post", endpoint, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, newError("read", endpoint, err)
	}
	if len(data) > maxResponseBytes {
		return nil, &Error{Op: "read", URL: endpoint, Err: fmt.Errorf("response exceeds %d bytes", maxResponseBytes)}
	}

	if resp.StatusCode/100 != 2 {
		return nil, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(strings.TrimSpace(string(data)), maxErrorBody),
		}
	}
	return data, nil
}

// Head issues a HEAD request and returns the status code. Any HTTP answer,
// whatever its status, counts as reachable.
func (t *HTTP) Head(ctx context.Context, endpoint string, timeout time.Duration) (int, error) {
	ctx, cancel := withTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := t.client.Do(req)
	if err != nil {
		return 0, newError("head", endpoint, err)
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

// CheckURL reports whether rawURL is something this transport can talk to.
func CheckURL(rawURL string) error {
	if strings.TrimSpace(rawURL) == "" {
		return errors.New("endpoint url is empty")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse endpoint url: %w", err)
	}
	switch u.Scheme {
	case "http", "https":
	default:
		return fmt.Errorf("unsupported url scheme %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("endpoint url %q has no host", rawURL)
	}
	return nil
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, timeout)
}

func newError(op, endpoint string, err error) *Error {
	e := &Error{Op: op, URL: endpoint, Err: err}
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		e.Timeout = true
	}
	return e
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
