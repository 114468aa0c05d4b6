package httpclient

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request is a buildable HTTP request. The body is buffered so the
// same request can be replayed across retry attempts.
type Request struct {
	Method  string
	URL     string
	Headers map[string]string
	Query   url.Values

	bodyBytes []byte
}

// NewRequest creates a request for method and url.
func NewRequest(method, urlStr string) *Request {
	return &Request{
		Method:  method,
		URL:     urlStr,
		Headers: make(map[string]string),
		Query:   make(url.Values),
	}
}

// NewGetRequest creates a GET request.
func NewGetRequest(urlStr string) *Request {
	return NewRequest(http.MethodGet, urlStr)
}

// NewPostRequest creates a POST request.
func NewPostRequest(urlStr string) *Request {
	return NewRequest(http.MethodPost, urlStr)
}

// NewPutRequest creates a PUT request.
func NewPutRequest(urlStr string) *Request {
	return NewRequest(http.MethodPut, urlStr)
}

// NewDeleteRequest creates a DELETE request.
func NewDeleteRequest(urlStr string) *Request {
	return NewRequest(http.MethodDelete, urlStr)
}

// WithHeader sets a header.
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithQuery sets a query parameter.
func (r *Request) WithQuery(key, value string) *Request {
	r.Query.Set(key, value)
	return r
}

// WithBody buffers body for replay.
func (r *Request) WithBody(body io.Reader) *Request {
	if body == nil {
		return r
	}
	if data, err := io.ReadAll(body); err == nil {
		r.bodyBytes = data
	}
	return r
}

// WithJSON marshals data as the JSON body.
func (r *Request) WithJSON(data any) *Request {
	if data == nil {
		return r
	}
	jsonData, err := json.Marshal(data)
	if err != nil {
		return r
	}
	r.bodyBytes = jsonData
	r.Headers["Content-Type"] = "application/json"
	return r
}

// WithForm encodes data as a form body.
func (r *Request) WithForm(data map[string]string) *Request {
	if data == nil {
		return r
	}
	form := make(url.Values)
	for k, v := range data {
		form.Set(k, v)
	}
	r.bodyBytes = []byte(form.Encode())
	r.Headers["Content-Type"] = "application/x-www-form-urlencoded"
	return r
}

// build materializes an *http.Request with a fresh body reader.
func (r *Request) build() (*http.Request, error) {
	fullURL := r.URL
	if len(r.Query) > 0 {
		if strings.Contains(fullURL, "?") {
			fullURL += "&" + r.Query.Encode()
		} else {
			fullURL += "?" + r.Query.Encode()
		}
	}

	var body io.Reader
	if len(r.bodyBytes) > 0 {
		body = bytes.NewReader(r.bodyBytes)
	}

	req, err := http.NewRequest(r.Method, fullURL, body)
	if err != nil {
		return nil, err
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}
