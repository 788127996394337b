// Package api is the only place credentials are attached to outbound calls.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/jrsteele09/go-learnhub-client/internal/errors"
)

// Client issues authorized requests against the platform API. Responses are
// returned unmodified; status handling is the caller's business.
type Client struct {
	baseURL string
	http    *http.Client
}

type Option func(*Client)

// WithHTTPClient uses base for timeouts and as the underlying transport.
func WithHTTPClient(base *http.Client) Option {
	return func(c *Client) {
		c.http.Timeout = base.Timeout
		c.http.Transport.(*Transport).Base = base.Transport
	}
}

func New(baseURL string, tokens TokenProvider, options ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Transport: &Transport{Tokens: tokens}},
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

// Do performs req with the bearer credential attached.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.http.Do(req)
	if apperrors.Is(err, ErrNotAuthenticated) {
		return nil, ErrNotAuthenticated
	}
	return resp, err
}

// NewRequest builds a request for path relative to the base URL, JSON
// encoding body when it is not nil.
func (c *Client) NewRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	return NewJSONRequest(ctx, method, c.URL(path), body)
}

// NewJSONRequest builds a request for an absolute URL. It carries no
// credential; only Client.Do attaches one.
func NewJSONRequest(ctx context.Context, method, url string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("[api.NewJSONRequest] encoding body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("[api.NewJSONRequest] %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) Get(ctx context.Context, path string) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

func (c *Client) PostJSON(ctx context.Context, path string, body any) (*http.Response, error) {
	req, err := c.NewRequest(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}

// URL resolves path against the base URL.
func (c *Client) URL(path string) string {
	return c.baseURL + "/" + strings.TrimLeft(path, "/")
}
