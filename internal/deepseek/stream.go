package deepseek

import (
	"context"
	"errors"
	"io"
	"net/http"

	"lexichat/internal/core"
	"lexichat/internal/llmclient"
	"lexichat/internal/sse"
)

// open validates req and issues the streaming POST. It returns only after
// a 2xx status line, so every pre-stream failure reaches the caller here.
func (c *Client) open(ctx context.Context, req *core.StreamRequest, operation string) (io.ReadCloser, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.logger.DebugContext(ctx, "opening stream",
		"operation", operation,
		"model", req.Model,
		"messages", len(req.Messages),
		"request_id", core.GetRequestID(ctx),
	)

	body, err := c.client.DoStream(ctx, llmclient.Request{
		Operation: operation,
		Method:    http.MethodPost,
		URL:       c.endpoint,
		Body:      req.Body(),
		Headers:   map[string]string{"Accept": "text/event-stream"},
	})
	if err != nil {
		if ctx.Err() == nil {
			c.logger.WarnContext(ctx, "stream request failed", "operation", operation, "error", err)
		}
		return nil, err
	}
	return body, nil
}

// StreamConcurrent implements core.ChatClient.
//
// The returned channel is unbuffered: the producer goroutine blocks on each
// send until the consumer is ready. The consumer must either drain the
// channel or cancel ctx; otherwise the goroutine and its connection leak.
func (c *Client) StreamConcurrent(ctx context.Context, req *core.StreamRequest) (<-chan core.Fragment, error) {
	body, err := c.open(ctx, req, "stream_concurrent")
	if err != nil {
		return nil, err
	}

	out := make(chan core.Fragment)
	go c.produce(ctx, body, out)
	return out, nil
}

func (c *Client) produce(ctx context.Context, body io.ReadCloser, out chan<- core.Fragment) {
	defer close(out)
	defer func() {
		_ = body.Close()
	}()

	// Unblock a pending read as soon as the consumer goes away.
	stop := context.AfterFunc(ctx, func() {
		_ = body.Close()
	})
	defer stop()

	send := func(f core.Fragment) bool {
		if ctx.Err() != nil {
			return false
		}
		select {
		case out <- f:
			return true
		case <-ctx.Done():
			return false
		}
	}

	lines := sse.NewLineReader(body)
	for {
		line, err := lines.Next()
		if err != nil {
			switch {
			case ctx.Err() != nil:
				c.logger.DebugContext(ctx, "stream cancelled", "error", ctx.Err())
			case errors.Is(err, io.EOF):
				send(core.EndOfStream)
			default:
				c.logger.WarnContext(ctx, "stream interrupted", "error", err)
				send(core.Fragment{Err: core.NewTransportError(providerName, "stream interrupted: "+err.Error(), err)})
			}
			return
		}

		if ctx.Err() != nil {
			return
		}
		if frame := c.parse(line); frame.Kind == sse.KindDelta {
			if !send(core.Fragment{Text: frame.Text}) {
				return
			}
		}
	}
}
