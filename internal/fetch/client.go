// Package fetch issues conditional HTTP GETs against the remote origin.
// It knows nothing about bundles or registries; callers branch on the
// Result status before touching disk or stored etags.
package fetch

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/starford/primer/internal/apperr"
)

// DefaultTimeout bounds a single request when no timeout is configured.
const DefaultTimeout = 30 * time.Second

// Status discriminates the outcome of a conditional fetch.
type Status int

const (
	// Changed means the origin returned a fresh body.
	Changed Status = iota
	// Unmodified means the caller's etag is still valid (HTTP 304).
	Unmodified
)

// Result is the outcome of one conditional fetch. Content and ETag are
// only meaningful when Status is Changed; ETag may be empty if the
// origin did not send one.
type Result struct {
	Status  Status
	Content []byte
	ETag    string
}

// Client is a conditional-GET HTTP client. The zero value is not usable;
// construct with New.
type Client struct {
	hc    *http.Client
	token string
}

// New creates a Client with the given per-request timeout and optional
// bearer token. A non-positive timeout falls back to DefaultTimeout.
func New(timeout time.Duration, token string) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		hc:    &http.Client{Timeout: timeout},
		token: token,
	}
}

// Get retrieves url, sending If-None-Match when etag is non-empty.
// A 2xx response yields Changed with the body and the response ETag;
// a 304 yields Unmodified. Any other status or transport failure is a
// FetchError carrying the url.
func (c *Client) Get(ctx context.Context, url, etag string) (*Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &apperr.FetchError{URL: url, Err: err}
	}
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, &apperr.FetchError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{Status: Unmodified}, nil
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, &apperr.FetchError{URL: url, Err: err}
		}
		return &Result{Status: Changed, Content: body, ETag: resp.Header.Get("ETag")}, nil
	default:
		return nil, &apperr.FetchError{URL: url, StatusCode: resp.StatusCode}
	}
}
