// Package llmclient provides the base HTTP client used by the completion provider:
//   - JSON request marshaling and response decoding
//   - provider header injection (authorization)
//   - standardized error mapping for non-2xx responses
//   - request lifecycle hooks for metrics
//
// Requests are never retried: a streaming call may already have delivered
// text to the caller when it fails.
package llmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"lexichat/internal/core"
	"lexichat/internal/httpclient"
)

// maxErrorBodySize caps how much of a failed response is read for the error message.
const maxErrorBodySize = 64 * 1024

// Config holds configuration for the LLM client
type Config struct {
	// ProviderName identifies the provider for error messages and metrics
	ProviderName string

	// Hooks observe every request
	Hooks Hooks
}

// RequestInfo describes a request that is about to be sent.
type RequestInfo struct {
	Provider  string
	Operation string
	Method    string
	URL       string
}

// ResponseInfo describes the outcome of a request. For streams it is reported
// once headers arrive, not when the body is drained.
type ResponseInfo struct {
	RequestInfo
	StatusCode int
	Duration   time.Duration
	Err        error
}

// Hooks are optional callbacks around each request. Nil fields are skipped.
type Hooks struct {
	OnRequestStart func(ctx context.Context, info RequestInfo)
	OnRequestEnd   func(ctx context.Context, info ResponseInfo)
}

// HeaderSetter is a function that sets headers on an HTTP request
type HeaderSetter func(req *http.Request)

// Client is a base HTTP client for LLM providers
type Client struct {
	httpClient   *http.Client
	config       Config
	headerSetter HeaderSetter
}

// New creates a new LLM client using the streaming-safe default transport.
func New(config Config, headerSetter HeaderSetter) *Client {
	return NewWithHTTPClient(httpclient.NewDefaultHTTPClient(), config, headerSetter)
}

// NewWithHTTPClient creates a new LLM client with a custom HTTP client
func NewWithHTTPClient(httpClient *http.Client, config Config, headerSetter HeaderSetter) *Client {
	if httpClient == nil {
		httpClient = httpclient.NewDefaultHTTPClient()
	}
	return &Client{
		httpClient:   httpClient,
		config:       config,
		headerSetter: headerSetter,
	}
}

// ProviderName returns the provider label used in errors.
func (c *Client) ProviderName() string {
	return c.config.ProviderName
}

// Request represents an HTTP request to be made
type Request struct {
	// Operation labels the request in hooks, e.g. "stream" or "balance"
	Operation string
	Method    string
	URL       string
	Body      any // Will be JSON marshaled if not nil
	Headers   map[string]string
}

// Do executes a request and unmarshals a 2xx JSON response into result.
func (c *Client) Do(ctx context.Context, req Request, result any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return c.transportError(ctx, "failed to read response", err)
	}

	if result != nil {
		if err := json.Unmarshal(body, result); err != nil {
			return core.NewProviderError(c.config.ProviderName, resp.StatusCode, "failed to unmarshal response: "+err.Error(), err)
		}
	}
	return nil
}

// DoStream executes a streaming request and returns the response body once a
// 2xx status has been received. The caller must close the body.
func (c *Client) DoStream(ctx context.Context, req Request) (io.ReadCloser, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// send performs one round trip and converts transport failures and non-2xx
// statuses into *core.ClientError. On success the body is left open.
func (c *Client) send(ctx context.Context, req Request) (*http.Response, error) {
	httpReq, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	info := RequestInfo{
		Provider:  c.config.ProviderName,
		Operation: req.Operation,
		Method:    req.Method,
		URL:       req.URL,
	}
	if c.config.Hooks.OnRequestStart != nil {
		c.config.Hooks.OnRequestStart(ctx, info)
	}
	start := time.Now()

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		err = c.transportError(ctx, "failed to send request", err)
		c.end(ctx, info, 0, start, err)
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodySize))
		if readErr != nil {
			respBody = []byte("failed to read error response")
		}
		_ = resp.Body.Close()

		err := core.ParseProviderError(c.config.ProviderName, resp.StatusCode, respBody, nil)
		c.end(ctx, info, resp.StatusCode, start, err)
		return nil, err
	}

	c.end(ctx, info, resp.StatusCode, start, nil)
	return resp, nil
}

func (c *Client) end(ctx context.Context, info RequestInfo, status int, start time.Time, err error) {
	if c.config.Hooks.OnRequestEnd == nil {
		return
	}
	c.config.Hooks.OnRequestEnd(ctx, ResponseInfo{
		RequestInfo: info,
		StatusCode:  status,
		Duration:    time.Since(start),
		Err:         err,
	})
}

// transportError wraps a network failure. If ctx is done, its error is
// joined in so callers can tell an interrupt from a broken connection.
func (c *Client) transportError(ctx context.Context, message string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
		err = errors.Join(ctxErr, err)
	}
	return core.NewTransportError(c.config.ProviderName, message+": "+err.Error(), err)
}

// buildRequest creates an HTTP request from a Request
func (c *Client) buildRequest(ctx context.Context, req Request) (*http.Request, error) {
	var bodyReader io.Reader
	if req.Body != nil {
		bodyBytes, err := json.Marshal(req.Body)
		if err != nil {
			return nil, core.NewInvalidRequestError("failed to marshal request", err)
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bodyReader)
	if err != nil {
		return nil, core.NewInvalidRequestError("failed to create request", err)
	}

	// Set default content type for requests with body
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	// Apply provider-specific headers
	if c.headerSetter != nil {
		c.headerSetter(httpReq)
	}

	// Apply request-specific headers
	for key, value := range req.Headers {
		httpReq.Header.Set(key, value)
	}

	return httpReq, nil
}
