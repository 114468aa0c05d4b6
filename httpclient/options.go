package httpclient

import (
	"net/http"
	"time"
)

// Option configures a Client or a single call.
type Option func(*config)

type config struct {
	baseURL       string
	timeout       time.Duration
	transport     http.RoundTripper
	headers       map[string]string
	beforeRequest func(*http.Request) error
	afterResponse func(*Response) error
}

func newConfig() *config {
	return &config{
		timeout: 10 * time.Second,
		headers: make(map[string]string),
	}
}

func (c *config) merge(override *config) *config {
	merged := *c
	if override.baseURL != "" {
		merged.baseURL = override.baseURL
	}
	if override.timeout > 0 {
		merged.timeout = override.timeout
	}
	if override.transport != nil {
		merged.transport = override.transport
	}
	if len(override.headers) > 0 {
		headers := make(map[string]string, len(c.headers)+len(override.headers))
		for k, v := range c.headers {
			headers[k] = v
		}
		for k, v := range override.headers {
			headers[k] = v
		}
		merged.headers = headers
	}
	if override.beforeRequest != nil {
		merged.beforeRequest = override.beforeRequest
	}
	if override.afterResponse != nil {
		merged.afterResponse = override.afterResponse
	}
	return &merged
}

func applyOptions(cfg *config, opts []Option) {
	for _, opt := range opts {
		opt(cfg)
	}
}

// WithBaseURL prefixes relative request URLs.
func WithBaseURL(baseURL string) Option {
	return func(c *config) { c.baseURL = baseURL }
}

// WithTimeout bounds each call (default 10s).
func WithTimeout(timeout time.Duration) Option {
	return func(c *config) { c.timeout = timeout }
}

// WithTransport overrides the HTTP transport.
func WithTransport(transport http.RoundTripper) Option {
	return func(c *config) { c.transport = transport }
}

// WithHeader sets a default header on every call.
func WithHeader(key, value string) Option {
	return func(c *config) { c.headers[key] = value }
}

// WithBeforeRequest registers a pre-send hook.
func WithBeforeRequest(hook func(*http.Request) error) Option {
	return func(c *config) { c.beforeRequest = hook }
}

// WithAfterResponse registers a post-receive hook.
func WithAfterResponse(hook func(*Response) error) Option {
	return func(c *config) { c.afterResponse = hook }
}
