package core

import "context"

// ChatClient is the capability set of a completion provider client.
type ChatClient interface {
	// StreamConcurrent starts a streaming completion and returns an unbuffered
	// channel of fragments produced by a background goroutine. A failure before
	// the first fragment (transport, non-2xx) is returned directly. A completed
	// stream ends with EndOfStream; a broken one ends with an error fragment.
	// Cancelling ctx stops the stream and closes the channel without a sentinel.
	StreamConcurrent(ctx context.Context, req *StreamRequest) (<-chan Fragment, error)

	// StreamSequential starts a streaming completion read on the caller's
	// goroutine. The reader returns io.EOF after the last fragment.
	StreamSequential(ctx context.Context, req *StreamRequest) (FragmentReader, error)

	// GetBalance queries the provider balance. Failures are reported in the
	// result, never as a returned error.
	GetBalance(ctx context.Context) BalanceResult
}

// FragmentReader is a blocking pull iterator over a stream's text fragments.
type FragmentReader interface {
	// Recv blocks until the next non-empty fragment arrives. It returns io.EOF
	// when the server closed the stream normally.
	Recv() (string, error)

	// Close releases the underlying connection. It is safe to call more than once.
	Close() error
}
