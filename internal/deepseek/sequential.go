package deepseek

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"lexichat/internal/core"
	"lexichat/internal/sse"
)

// ErrStreamClosed is returned by Recv after Close ended the stream before the
// server finished it.
var ErrStreamClosed = errors.New("deepseek: stream closed before completion")

// SequentialStream reads fragments on the caller's goroutine. It has no
// terminal sentinel: Recv returns io.EOF once the server closes the stream.
type SequentialStream struct {
	ctx    context.Context
	c      *Client
	body   io.ReadCloser
	lines  *sse.LineReader
	err    error // sticky terminal error
	closed sync.Once
	stop   func() bool
}

var _ core.FragmentReader = (*SequentialStream)(nil)

// StreamSequential implements core.ChatClient.
func (c *Client) StreamSequential(ctx context.Context, req *core.StreamRequest) (core.FragmentReader, error) {
	s, err := c.OpenSequential(ctx, req)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// OpenSequential is StreamSequential returning the concrete type.
func (c *Client) OpenSequential(ctx context.Context, req *core.StreamRequest) (*SequentialStream, error) {
	body, err := c.open(ctx, req, "stream_sequential")
	if err != nil {
		return nil, err
	}
	s := &SequentialStream{
		ctx:   ctx,
		c:     c,
		body:  body,
		lines: sse.NewLineReader(body),
	}
	// An interrupt must abort a read that is blocked in the kernel.
	s.stop = context.AfterFunc(ctx, func() {
		_ = body.Close()
	})
	return s, nil
}

// Recv blocks until the next text fragment. It returns io.EOF after normal
// completion, ctx.Err() after an interrupt, or a *core.ClientError if the
// connection broke. The connection is released before any of these return.
func (s *SequentialStream) Recv() (string, error) {
	if s.err != nil {
		return "", s.err
	}

	for {
		line, err := s.lines.Next()
		if err != nil {
			return "", s.finish(err)
		}
		if s.ctx.Err() != nil {
			return "", s.finish(s.ctx.Err())
		}
		if frame := s.c.parse(line); frame.Kind == sse.KindDelta {
			return frame.Text, nil
		}
	}
}

// All adapts the stream to a range-over-func iterator. Iteration stops at
// the first error; io.EOF ends it without yielding an error. Breaking out of
// the loop closes the stream.
func (s *SequentialStream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer func() {
			_ = s.Close()
		}()
		for {
			text, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(text, err) || err != nil {
				return
			}
		}
	}
}

// Close releases the connection. It is safe to call more than once.
func (s *SequentialStream) Close() error {
	var err error
	s.closed.Do(func() {
		s.stop()
		err = s.body.Close()
		if s.err == nil {
			s.err = ErrStreamClosed
		}
	})
	return err
}

func (s *SequentialStream) finish(err error) error {
	switch {
	case s.ctx.Err() != nil:
		err = s.ctx.Err()
	case errors.Is(err, io.EOF):
		err = io.EOF
	default:
		s.c.logger.WarnContext(s.ctx, "stream interrupted", "error", err)
		err = core.NewTransportError(providerName, "stream interrupted: "+err.Error(), err)
	}
	_ = s.Close()
	s.err = err
	return err
}
