package sse

import (
	"bufio"
	"io"
)

const readBufferSize = 64 * 1024

// LineReader splits a response body into lines without a length limit.
// Unlike bufio.Scanner it never fails on a long chunk.
type LineReader struct {
	r *bufio.Reader
}

// NewLineReader returns a LineReader over r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: bufio.NewReaderSize(r, readBufferSize)}
}

// Next returns the next line including its terminator. A final line without
// a newline is returned with a nil error; the following call returns io.EOF.
// Any other read error is returned as is and may come with a partial line,
// which the caller must discard.
func (l *LineReader) Next() ([]byte, error) {
	line, err := l.r.ReadBytes('\n')
	if err == io.EOF && len(line) > 0 {
		return line, nil
	}
	return line, err
}
