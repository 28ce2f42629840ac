// Package httpapi holds the wire-agnostic request and response model the
// middleware stack operates on.
package httpapi

import (
	"bytes"
	"errors"
	"io"
)

// BodyKind tells how a body is backed.
type BodyKind int

const (
	BodyNone BodyKind = iota
	BodyData
	BodyStream
)

func (k BodyKind) String() string {
	switch k {
	case BodyData:
		return "data"
	case BodyStream:
		return "stream"
	default:
		return "none"
	}
}

// ErrBodyNotRewindable is returned when a non-seekable stream is replayed.
var ErrBodyNotRewindable = errors.New("opflow: request body stream cannot be rewound")

// Body is a request payload. Data bodies are replayable byte slices; stream
// bodies are replayable only when the reader also implements io.Seeker.
type Body struct {
	kind   BodyKind
	data   []byte
	stream io.Reader
	length int64
	start  int64
}

// NoBody is the empty body.
var NoBody = Body{}

// NewDataBody wraps a byte slice.
func NewDataBody(data []byte) Body {
	if data == nil {
		data = []byte{}
	}
	return Body{kind: BodyData, data: data, length: int64(len(data))}
}

// NewStreamBody wraps a reader. A negative length means unknown.
func NewStreamBody(r io.Reader, length int64) Body {
	if r == nil {
		return NoBody
	}
	b := Body{kind: BodyStream, stream: r, length: length}
	if s, ok := r.(io.Seeker); ok {
		if pos, err := s.Seek(0, io.SeekCurrent); err == nil {
			b.start = pos
		}
	}
	return b
}

func (b Body) Kind() BodyKind { return b.kind }
func (b Body) IsNone() bool   { return b.kind == BodyNone }

// Data returns the bytes of a data body, or nil for other kinds.
func (b Body) Data() []byte {
	if b.kind != BodyData {
		return nil
	}
	return b.data
}

// Stream returns the underlying reader of a stream body.
func (b Body) Stream() io.Reader {
	return b.stream
}

// Length returns the content length, or -1 when unknown.
func (b Body) Length() int64 {
	if b.kind == BodyNone {
		return 0
	}
	return b.length
}

// Seekable reports whether the body can be replayed.
func (b Body) Seekable() bool {
	switch b.kind {
	case BodyStream:
		_, ok := b.stream.(io.Seeker)
		return ok
	default:
		return true
	}
}

// Reader returns a fresh reader positioned at the start of the body.
func (b Body) Reader() io.Reader {
	switch b.kind {
	case BodyData:
		return bytes.NewReader(b.data)
	case BodyStream:
		return b.stream
	default:
		return bytes.NewReader(nil)
	}
}

// Rewind seeks a stream body back to where it started. Data bodies and empty
// bodies rewind trivially.
func (b Body) Rewind() error {
	if b.kind != BodyStream {
		return nil
	}
	s, ok := b.stream.(io.Seeker)
	if !ok {
		return ErrBodyNotRewindable
	}
	_, err := s.Seek(b.start, io.SeekStart)
	return err
}
