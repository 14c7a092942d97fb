// Package sse decodes the line-oriented event stream returned by
// OpenAI-compatible chat completion endpoints.
package sse

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// DataPrefix marks a line that carries a data frame. Only the exact prefix,
// including the single space, counts.
const DataPrefix = "data: "

// contentPath is the gjson path of the text delta inside a chunk.
const contentPath = "choices.0.delta.content"

var doneMarker = []byte("[DONE]")

// Kind classifies a single line of the stream.
type Kind int

const (
	// KindSkip is a line without a usable delta: blank, comment, non-data
	// field, [DONE], or a chunk whose content is absent or empty.
	KindSkip Kind = iota
	// KindMalformed is a data line whose payload is not valid JSON.
	KindMalformed
	// KindDelta is a data line carrying non-empty text.
	KindDelta
)

// String returns the metric label for k.
func (k Kind) String() string {
	switch k {
	case KindSkip:
		return "skip"
	case KindMalformed:
		return "malformed"
	case KindDelta:
		return "delta"
	default:
		return "unknown"
	}
}

// Frame is the outcome of parsing one line.
type Frame struct {
	Kind Kind
	// Text is set only for KindDelta.
	Text string
}

// ParseLine classifies one raw line. It never fails: lines that cannot be
// decoded are reported as KindMalformed so the caller can keep reading.
func ParseLine(line []byte) Frame {
	line = bytes.TrimRight(line, "\r\n")
	if !bytes.HasPrefix(line, []byte(DataPrefix)) {
		return Frame{Kind: KindSkip}
	}

	payload := line[len(DataPrefix):]
	if len(payload) == 0 || bytes.Equal(payload, doneMarker) {
		return Frame{Kind: KindSkip}
	}
	if !gjson.ValidBytes(payload) {
		return Frame{Kind: KindMalformed}
	}

	content := gjson.GetBytes(payload, contentPath)
	if content.Type != gjson.String || content.Str == "" {
		return Frame{Kind: KindSkip}
	}
	return Frame{Kind: KindDelta, Text: content.Str}
}
