// Package httpclient builds HTTP clients whose timeouts are split by phase,
// so that long-running streaming reads are never cut off by a global deadline.
package httpclient

import (
	"context"
	"net"
	"net/http"
	"time"
)

// Timeouts holds the per-phase limits of a client. A zero value disables
// the corresponding limit.
type Timeouts struct {
	// Connect bounds dialing and the TLS handshake. Go dials on demand, so this
	// also bounds acquiring a connection when the pool is empty.
	Connect time.Duration

	// Read is an inactivity limit applied to every socket read. Streaming
	// responses may legitimately stay silent while tokens are generated, so it
	// defaults to zero (unbounded).
	Read time.Duration

	// Write bounds every socket write, including sending the request body.
	Write time.Duration

	// Idle is how long an unused keep-alive connection stays in the pool.
	Idle time.Duration
}

// ClientConfig holds configuration options for creating HTTP clients
type ClientConfig struct {
	Timeouts Timeouts

	// MaxIdleConnsPerHost controls the maximum idle (keep-alive) connections to keep per-host
	MaxIdleConnsPerHost int

	// KeepAlive specifies the interval between keep-alive probes for an active network connection
	KeepAlive time.Duration
}

// DefaultTimeouts returns the streaming-safe timeout policy: short connect and
// write limits, no read limit.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect: 10 * time.Second,
		Read:    0,
		Write:   10 * time.Second,
		Idle:    90 * time.Second,
	}
}

// DefaultConfig returns a ClientConfig with DefaultTimeouts.
func DefaultConfig() ClientConfig {
	return ClientConfig{
		Timeouts:            DefaultTimeouts(),
		MaxIdleConnsPerHost: 10,
		KeepAlive:           30 * time.Second,
	}
}

// NewHTTPClient creates a new HTTP client with the provided configuration.
// If config is nil, DefaultConfig() is used. The returned client never sets
// http.Client.Timeout: that limit would include reading the body and abort
// healthy streams.
func NewHTTPClient(config *ClientConfig) *http.Client {
	if config == nil {
		cfg := DefaultConfig()
		config = &cfg
	}

	dialer := &net.Dialer{
		Timeout:   config.Timeouts.Connect,
		KeepAlive: config.KeepAlive,
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		DialContext:         deadlineDialer(dialer, config.Timeouts.Read, config.Timeouts.Write),
		MaxIdleConnsPerHost: config.MaxIdleConnsPerHost,
		IdleConnTimeout:     config.Timeouts.Idle,
		TLSHandshakeTimeout: config.Timeouts.Connect,
		ForceAttemptHTTP2:   true,
	}

	return &http.Client{Transport: transport}
}

// NewDefaultHTTPClient creates a new HTTP client with default configuration.
func NewDefaultHTTPClient() *http.Client {
	return NewHTTPClient(nil)
}

func deadlineDialer(d *net.Dialer, read, write time.Duration) func(ctx context.Context, network, addr string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		conn, err := d.DialContext(ctx, network, addr)
		if err != nil {
			return nil, err
		}
		if read <= 0 && write <= 0 {
			return conn, nil
		}
		return &deadlineConn{Conn: conn, read: read, write: write}, nil
	}
}

// deadlineConn refreshes a deadline before each Read and Write, turning the
// configured durations into per-operation inactivity limits.
type deadlineConn struct {
	net.Conn
	read  time.Duration
	write time.Duration
}

func (c *deadlineConn) Read(p []byte) (int, error) {
	if c.read > 0 {
		if err := c.Conn.SetReadDeadline(time.Now().Add(c.read)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Read(p)
}

func (c *deadlineConn) Write(p []byte) (int, error) {
	if c.write > 0 {
		if err := c.Conn.SetWriteDeadline(time.Now().Add(c.write)); err != nil {
			return 0, err
		}
	}
	return c.Conn.Write(p)
}
