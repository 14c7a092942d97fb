// Package deepseek streams chat completions from the DeepSeek API (or any
// OpenAI-compatible endpoint) and queries the account balance.
package deepseek

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"lexichat/internal/core"
	"lexichat/internal/httpclient"
	"lexichat/internal/llmclient"
	"lexichat/internal/sse"
)

const (
	providerName = "deepseek"

	// DefaultEndpoint is the streaming chat completions URL.
	DefaultEndpoint = "https://api.deepseek.com/chat/completions"
	// DefaultBalanceEndpoint is the account balance URL.
	DefaultBalanceEndpoint = "https://api.deepseek.com/user/balance"
	// DefaultBalanceTimeout bounds a whole balance query.
	DefaultBalanceTimeout = 30 * time.Second
)

// Config holds the connection parameters of a Client.
type Config struct {
	// APIKey is sent as a bearer token. Required.
	APIKey string
	// Endpoint is the chat completions URL (default: DefaultEndpoint).
	Endpoint string
	// BalanceEndpoint is the balance URL (default: DefaultBalanceEndpoint).
	BalanceEndpoint string
	// Timeouts is the per-phase transport policy (default: httpclient.DefaultTimeouts).
	Timeouts *httpclient.Timeouts
	// BalanceTimeout bounds one balance query end to end (default: DefaultBalanceTimeout).
	BalanceTimeout time.Duration
}

// Client implements core.ChatClient. It is immutable after New and safe
// for concurrent use; every call owns its own connection.
type Client struct {
	client          *llmclient.Client
	apiKey          string
	endpoint        string
	balanceEndpoint string
	balanceTimeout  time.Duration
	observeFrame    func(sse.Kind)
	logger          *slog.Logger
}

var _ core.ChatClient = (*Client)(nil)

type options struct {
	httpClient   *http.Client
	hooks        llmclient.Hooks
	observeFrame func(sse.Kind)
	logger       *slog.Logger
}

// Option customizes a Client.
type Option func(*options)

// WithHTTPClient replaces the transport built from Config.Timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithHooks installs request lifecycle hooks.
func WithHooks(h llmclient.Hooks) Option {
	return func(o *options) { o.hooks = h }
}

// WithFrameObserver is called with the kind of every parsed stream line.
func WithFrameObserver(fn func(sse.Kind)) Option {
	return func(o *options) { o.observeFrame = fn }
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// New creates a Client. It fails without touching the network when no API
// key is configured.
func New(cfg Config, opts ...Option) (*Client, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, core.NewConfigurationError("cannot create deepseek client", core.ErrMissingCredential)
	}

	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.httpClient == nil {
		httpCfg := httpclient.DefaultConfig()
		if cfg.Timeouts != nil {
			httpCfg.Timeouts = *cfg.Timeouts
		}
		o.httpClient = httpclient.NewHTTPClient(&httpCfg)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	c := &Client{
		apiKey:          apiKey,
		endpoint:        orDefault(cfg.Endpoint, DefaultEndpoint),
		balanceEndpoint: orDefault(cfg.BalanceEndpoint, DefaultBalanceEndpoint),
		balanceTimeout:  cfg.BalanceTimeout,
		observeFrame:    o.observeFrame,
		logger:          o.logger.With("provider", providerName),
	}
	if c.balanceTimeout <= 0 {
		c.balanceTimeout = DefaultBalanceTimeout
	}
	c.client = llmclient.NewWithHTTPClient(o.httpClient, llmclient.Config{
		ProviderName: providerName,
		Hooks:        o.hooks,
	}, c.setHeaders)

	return c, nil
}

// Endpoint returns the chat completions URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// setHeaders sets the required headers for DeepSeek API requests
func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	if requestID := core.GetRequestID(req.Context()); requestID != "" && isValidClientRequestID(requestID) {
		req.Header.Set("X-Client-Request-Id", requestID)
	}
}

// isValidClientRequestID accepts printable ASCII IDs of at most 512 bytes.
func isValidClientRequestID(id string) bool {
	if len(id) > 512 {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x20 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// parse runs the shared frame parser and reports the outcome.
func (c *Client) parse(line []byte) sse.Frame {
	frame := sse.ParseLine(line)
	if c.observeFrame != nil {
		c.observeFrame(frame.Kind)
	}
	if frame.Kind == sse.KindMalformed {
		c.logger.Debug("skipping malformed frame", "line", truncate(line, 200))
	}
	return frame
}

func orDefault(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
