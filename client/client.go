// Package client is a thin wrapper around net/http for talking to the
// Satellite REST API. It applies the auth, TLS and logging settings
// from a config.Server, JSON-encodes request bodies and exposes the
// raw response alongside helpers for decoding and status checking.
package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/piwi3910/gosatellite/config"
)

// DefaultTimeout bounds a single request/response cycle when the
// caller's context carries no deadline of its own.
const DefaultTimeout = 120 * time.Second

// HTTPError is returned by Response.Err for 4xx and 5xx responses.
type HTTPError struct {
	// Method and URL identify the request that failed.
	Method string
	URL    string

	// StatusCode is the HTTP status, e.g. 404.
	StatusCode int

	// Status is the full status line, e.g. "404 Not Found".
	Status string

	// Body is the raw response body, often a JSON error document.
	Body []byte
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Method, e.URL, e.Status)
}

// Response holds a fully read HTTP response.
type Response struct {
	// StatusCode is the HTTP status, e.g. 200.
	StatusCode int

	// Status is the full status line.
	Status string

	// Header holds the response headers.
	Header http.Header

	// Body is the raw response body.
	Body []byte

	method string
	url    string
}

// Err returns an *HTTPError when the status code is 400 or above, nil
// otherwise.
func (r *Response) Err() error {
	if r.StatusCode < http.StatusBadRequest {
		return nil
	}
	return &HTTPError{
		Method:     r.method,
		URL:        r.url,
		StatusCode: r.StatusCode,
		Status:     r.Status,
		Body:       r.Body,
	}
}

// Decode unmarshals the response body into v.
func (r *Response) Decode(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode %s %s response: %w", r.method, r.url, err)
	}
	return nil
}

// JSON decodes the response body as a JSON object.
func (r *Response) JSON() (map[string]any, error) {
	out := map[string]any{}
	if err := r.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}

// Client issues requests against one Satellite server.
type Client struct {
	httpClient *http.Client
	auth       *config.Auth
	logger     *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying *http.Client. TLS settings
// from the server config are not applied to a replacement client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger for request and response logging.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a Client from a server config. TLS verification is
// disabled when the config says so, basic auth credentials are applied
// to every request, and the config's logger (if any) receives debug
// logs of each exchange.
func New(cfg *config.Server, opts ...Option) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if !cfg.VerifyTLS() {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec
	}
	c := &Client{
		httpClient: &http.Client{Transport: transport, Timeout: DefaultTimeout},
		auth:       cfg.Auth,
		logger:     cfg.Logger,
	}
	if c.logger == nil {
		c.logger = zap.NewNop()
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Do sends a request. A non-nil body is JSON-encoded and sent with
// Content-Type application/json; params, when non-nil, are appended to
// the URL's query string. Any response, success or failure, is fully
// read and returned; only transport-level problems produce an error.
func (c *Client) Do(ctx context.Context, method, rawURL string, body any, params url.Values) (*Response, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode %s %s body: %w", method, rawURL, err)
		}
		reader = bytes.NewReader(encoded)
	}
	if len(params) > 0 {
		u, err := url.Parse(rawURL)
		if err != nil {
			return nil, fmt.Errorf("parse url %s: %w", rawURL, err)
		}
		q := u.Query()
		for key, vals := range params {
			for _, v := range vals {
				q.Add(key, v)
			}
		}
		u.RawQuery = q.Encode()
		rawURL = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("build %s %s request: %w", method, rawURL, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.send(req)
}

// Get issues a GET request. Params, when non-nil, become the query
// string.
func (c *Client) Get(ctx context.Context, rawURL string, params url.Values) (*Response, error) {
	return c.Do(ctx, http.MethodGet, rawURL, nil, params)
}

// Post issues a POST request with a JSON body.
func (c *Client) Post(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPost, rawURL, body, nil)
}

// Put issues a PUT request with a JSON body.
func (c *Client) Put(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPut, rawURL, body, nil)
}

// Patch issues a PATCH request with a JSON body.
func (c *Client) Patch(ctx context.Context, rawURL string, body any) (*Response, error) {
	return c.Do(ctx, http.MethodPatch, rawURL, body, nil)
}

// Delete issues a DELETE request.
func (c *Client) Delete(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, http.MethodDelete, rawURL, nil, nil)
}

// Head issues a HEAD request.
func (c *Client) Head(ctx context.Context, rawURL string) (*Response, error) {
	return c.Do(ctx, http.MethodHead, rawURL, nil, nil)
}

// PostMultipart issues a POST request with a multipart/form-data body
// containing the given form fields plus one file part.
func (c *Client) PostMultipart(ctx context.Context, rawURL string, fields map[string]string, fileField, fileName string, file io.Reader) (*Response, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for key, value := range fields {
		if err := writer.WriteField(key, value); err != nil {
			return nil, fmt.Errorf("write form field %s: %w", key, err)
		}
	}
	part, err := writer.CreateFormFile(fileField, fileName)
	if err != nil {
		return nil, fmt.Errorf("create form file %s: %w", fileField, err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, fmt.Errorf("copy file %s: %w", fileName, err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("build POST %s request: %w", rawURL, err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return c.send(req)
}

func (c *Client) send(req *http.Request) (*Response, error) {
	if c.auth != nil {
		req.SetBasicAuth(c.auth.Username, c.auth.Password)
	}
	c.logger.Debug("satellite request",
		zap.String("method", req.Method),
		zap.String("url", req.URL.String()))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s %s response: %w", req.Method, req.URL, err)
	}

	if resp.StatusCode >= http.StatusBadRequest {
		c.logger.Warn("satellite error response",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", data))
	} else {
		c.logger.Debug("satellite response",
			zap.String("method", req.Method),
			zap.String("url", req.URL.String()),
			zap.Int("status", resp.StatusCode),
			zap.Int("body_bytes", len(data)))
	}

	return &Response{
		StatusCode: resp.StatusCode,
		Status:     resp.Status,
		Header:     resp.Header,
		Body:       data,
		method:     req.Method,
		url:        req.URL.String(),
	}, nil
}
