// Package httpclient wraps net/http with buffered replayable requests,
// per-call timeouts, and error classification that separates dependency
// faults (5xx, timeout, connection refused) from caller faults (4xx).
package httpclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client is a reusable HTTP client with a base configuration that
// per-call options can override.
type Client struct {
	httpClient *http.Client
	config     *config
}

// NewClient creates a client.
func NewClient(opts ...Option) *Client {
	cfg := newConfig()
	applyOptions(cfg, opts)

	if cfg.transport == nil {
		cfg.transport = http.DefaultTransport.(*http.Transport).Clone()
	}

	return &Client{
		httpClient: &http.Client{Transport: cfg.transport},
		config:     cfg,
	}
}

// Do executes req. Non-2xx responses return both the drained Response
// and a *StatusError so callers can classify without re-reading.
func (c *Client) Do(ctx context.Context, req *Request, opts ...Option) (*Response, error) {
	reqCfg := newConfig()
	applyOptions(reqCfg, opts)
	cfg := c.config.merge(reqCfg)

	if ctx == nil {
		ctx = context.Background()
	}

	if cfg.baseURL != "" && !strings.HasPrefix(req.URL, "http://") && !strings.HasPrefix(req.URL, "https://") {
		req.URL = strings.TrimRight(cfg.baseURL, "/") + "/" + strings.TrimLeft(req.URL, "/")
	}
	for k, v := range cfg.headers {
		if _, exists := req.Headers[k]; !exists {
			req.Headers[k] = v
		}
	}

	httpReq, err := req.build()
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	if cfg.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
		defer cancel()
	}
	httpReq = httpReq.WithContext(ctx)

	if cfg.beforeRequest != nil {
		if err := cfg.beforeRequest(httpReq); err != nil {
			return nil, fmt.Errorf("before request hook: %w", err)
		}
	}

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}

	resp, err := newResponse(httpResp)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	resp.Duration = time.Since(start)

	if cfg.afterResponse != nil {
		if err := cfg.afterResponse(resp); err != nil {
			return resp, err
		}
	}

	if !resp.IsSuccess() {
		return resp, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       resp.Body,
		}
	}
	return resp, nil
}

// Get executes a GET request.
func (c *Client) Get(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, NewGetRequest(url), opts...)
}

// Post executes a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, url string, data any, opts ...Option) (*Response, error) {
	return c.Do(ctx, NewPostRequest(url).WithJSON(data), opts...)
}

// Put executes a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, url string, data any, opts ...Option) (*Response, error) {
	return c.Do(ctx, NewPutRequest(url).WithJSON(data), opts...)
}

// Delete executes a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...Option) (*Response, error) {
	return c.Do(ctx, NewDeleteRequest(url), opts...)
}

// Get executes a GET and unmarshals the 2xx body into T.
func Get[T any](client *Client, ctx context.Context, url string, opts ...Option) (*T, error) {
	resp, err := client.Get(ctx, url, opts...)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}

// Post executes a POST and unmarshals the 2xx body into T.
func Post[T any](client *Client, ctx context.Context, url string, data any, opts ...Option) (*T, error) {
	resp, err := client.Post(ctx, url, data, opts...)
	if err != nil {
		return nil, err
	}
	var result T
	if err := json.Unmarshal(resp.Body, &result); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	return &result, nil
}
