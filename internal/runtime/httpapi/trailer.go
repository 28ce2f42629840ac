package httpapi

import (
	"io"
	"net/http"
	"slices"
)

// TrailerSource observes the body bytes of one transmission and yields the
// trailer value once the body is exhausted.
type TrailerSource interface {
	io.Writer
	Value() string
}

type trailers map[string]func() TrailerSource

func (t trailers) clone() trailers {
	if t == nil {
		return nil
	}
	out := make(trailers, len(t))
	for name, fn := range t {
		out[name] = fn
	}
	return out
}

func (t trailers) names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func (t trailers) wrap(r io.Reader) *trailerReader {
	tr := &trailerReader{
		r:       r,
		header:  make(http.Header, len(t)),
		sources: make(map[string]TrailerSource, len(t)),
	}
	for name, fn := range t {
		tr.header[name] = nil
		tr.sources[name] = fn()
	}
	return tr
}

// trailerReader feeds every byte read to the trailer sources and fills the
// trailer header at EOF, which net/http sends after the last chunk.
type trailerReader struct {
	r       io.Reader
	header  http.Header
	sources map[string]TrailerSource
	done    bool
}

func (t *trailerReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		for _, src := range t.sources {
			_, _ = src.Write(p[:n])
		}
	}
	if err == io.EOF && !t.done {
		t.done = true
		for name, src := range t.sources {
			t.header.Set(name, src.Value())
		}
	}
	return n, err
}

func (t *trailerReader) Close() error {
	if c, ok := t.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
