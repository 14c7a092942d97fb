package httpclient

import (
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultTimeouts(t *testing.T) {
	d := DefaultTimeouts()

	assert.Equal(t, 10*time.Second, d.Connect)
	assert.Equal(t, 10*time.Second, d.Write)
	assert.Equal(t, 90*time.Second, d.Idle)
	assert.Zero(t, d.Read, "streaming reads must be unbounded by default")
}

func TestNewHTTPClient_MapsTimeouts(t *testing.T) {
	cfg := ClientConfig{
		Timeouts: Timeouts{
			Connect: 3 * time.Second,
			Idle:    45 * time.Second,
		},
		MaxIdleConnsPerHost: 4,
	}

	client := NewHTTPClient(&cfg)

	assert.Zero(t, client.Timeout, "an overall client timeout would cut off streams")
	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 3*time.Second, transport.TLSHandshakeTimeout)
	assert.Equal(t, 45*time.Second, transport.IdleConnTimeout)
	assert.Equal(t, 4, transport.MaxIdleConnsPerHost)
	assert.Zero(t, transport.ResponseHeaderTimeout)
}

func TestNewHTTPClient_NilUsesDefaults(t *testing.T) {
	client := NewDefaultHTTPClient()

	transport, ok := client.Transport.(*http.Transport)
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, transport.IdleConnTimeout)
	assert.Zero(t, client.Timeout)
}

func slowBodyServer(t *testing.T, pause time.Duration) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("first\n"))
		w.(http.Flusher).Flush()
		time.Sleep(pause)
		_, _ = w.Write([]byte("second\n"))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestNewHTTPClient_UnboundedReadToleratesSlowStream(t *testing.T) {
	server := slowBodyServer(t, 300*time.Millisecond)
	client := NewHTTPClient(&ClientConfig{Timeouts: Timeouts{Connect: time.Second, Write: time.Second}})

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "first\nsecond\n", string(body))
}

func TestNewHTTPClient_ReadLimitAbortsSilentStream(t *testing.T) {
	server := slowBodyServer(t, 500*time.Millisecond)
	client := NewHTTPClient(&ClientConfig{Timeouts: Timeouts{Connect: time.Second, Read: 100 * time.Millisecond}})

	resp, err := client.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()

	_, err = io.ReadAll(resp.Body)
	require.Error(t, err)
}

func TestNewHTTPClient_ConnectFailure(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	client := NewHTTPClient(&ClientConfig{Timeouts: Timeouts{Connect: 500 * time.Millisecond}})
	_, err = client.Get("http://" + addr)
	require.Error(t, err)
}

func TestDeadlineConn(t *testing.T) {
	t.Run("read deadline", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()
		conn := &deadlineConn{Conn: local, read: 50 * time.Millisecond}
		defer conn.Close()

		_, err := conn.Read(make([]byte, 1))
		assert.True(t, errors.Is(err, os.ErrDeadlineExceeded), "got %v", err)
	})

	t.Run("write deadline", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()
		conn := &deadlineConn{Conn: local, write: 50 * time.Millisecond}
		defer conn.Close()

		// net.Pipe is synchronous: nobody reads the other end.
		_, err := conn.Write([]byte("x"))
		assert.True(t, errors.Is(err, os.ErrDeadlineExceeded), "got %v", err)
	})

	t.Run("passes data through", func(t *testing.T) {
		local, remote := net.Pipe()
		defer remote.Close()
		conn := &deadlineConn{Conn: local, read: time.Second, write: time.Second}
		defer conn.Close()

		go func() { _, _ = remote.Write([]byte("ok")) }()
		buf := make([]byte, 2)
		_, err := io.ReadFull(conn, buf)
		require.NoError(t, err)
		assert.Equal(t, "ok", string(buf))
	})
}
