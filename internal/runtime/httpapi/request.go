package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// RequestBuilder is the mutable request under construction. The Build and
// Finalize steps operate on it; the Deserialize step receives the immutable
// Request it produces.
type RequestBuilder struct {
	method string
	scheme string
	host   string
	port   int
	path   string
	query  url.Values
	header http.Header
	body   Body

	trailers trailers
}

// NewRequestBuilder returns an https GET builder with an empty path.
func NewRequestBuilder() *RequestBuilder {
	return &RequestBuilder{
		method: http.MethodGet,
		scheme: "https",
		path:   "/",
		query:  url.Values{},
		header: http.Header{},
	}
}

func (b *RequestBuilder) WithMethod(method string) *RequestBuilder {
	b.method = strings.ToUpper(method)
	return b
}

func (b *RequestBuilder) WithScheme(scheme string) *RequestBuilder {
	b.scheme = scheme
	return b
}

func (b *RequestBuilder) WithHost(host string) *RequestBuilder {
	b.host = host
	return b
}

// WithPort sets an explicit port. Zero means the scheme default.
func (b *RequestBuilder) WithPort(port int) *RequestBuilder {
	b.port = port
	return b
}

func (b *RequestBuilder) WithPath(path string) *RequestBuilder {
	if path == "" {
		path = "/"
	}
	b.path = path
	return b
}

// WithQueryItem appends a query parameter.
func (b *RequestBuilder) WithQueryItem(name, value string) *RequestBuilder {
	b.query.Add(name, value)
	return b
}

// WithHeader replaces all values of a header.
func (b *RequestBuilder) WithHeader(name, value string) *RequestBuilder {
	b.header.Set(name, value)
	return b
}

// AddHeader appends a header value.
func (b *RequestBuilder) AddHeader(name, value string) *RequestBuilder {
	b.header.Add(name, value)
	return b
}

// WithHeaders merges h into the builder headers, replacing same-named ones.
func (b *RequestBuilder) WithHeaders(h http.Header) *RequestBuilder {
	for name, values := range h {
		b.header[http.CanonicalHeaderKey(name)] = append([]string(nil), values...)
	}
	return b
}

func (b *RequestBuilder) RemoveHeader(name string) *RequestBuilder {
	b.header.Del(name)
	return b
}

func (b *RequestBuilder) WithBody(body Body) *RequestBuilder {
	b.body = body
	return b
}

// WithTrailer declares a trailer whose value is computed over the body bytes
// while they are sent. newSource is called once per transmission.
func (b *RequestBuilder) WithTrailer(name string, newSource func() TrailerSource) *RequestBuilder {
	if b.trailers == nil {
		b.trailers = trailers{}
	}
	b.trailers[http.CanonicalHeaderKey(name)] = newSource
	return b
}

// Trailers returns the names of the declared trailers.
func (b *RequestBuilder) Trailers() []string { return b.trailers.names() }

func (b *RequestBuilder) Method() string { return b.method }
func (b *RequestBuilder) Scheme() string { return b.scheme }
func (b *RequestBuilder) Host() string   { return b.host }
func (b *RequestBuilder) Port() int      { return b.port }
func (b *RequestBuilder) Path() string   { return b.path }
func (b *RequestBuilder) Body() Body     { return b.body }

// Header returns the live header map.
func (b *RequestBuilder) Header() http.Header { return b.header }

// Query returns the live query values.
func (b *RequestBuilder) Query() url.Values { return b.query }

// Clone returns a deep copy sharing only the body payload.
func (b *RequestBuilder) Clone() *RequestBuilder {
	return &RequestBuilder{
		method: b.method,
		scheme: b.scheme,
		host:   b.host,
		port:   b.port,
		path:   b.path,
		query:  cloneValues(b.query),
		header: b.header.Clone(),
		body:   b.body,

		trailers: b.trailers.clone(),
	}
}

// URL assembles the target URL.
func (b *RequestBuilder) URL() *url.URL {
	return buildURL(b.scheme, b.host, b.port, b.path, b.query)
}

// Build freezes the builder into a Request.
func (b *RequestBuilder) Build() *Request {
	c := b.Clone()
	return &Request{
		method: c.method,
		scheme: c.scheme,
		host:   c.host,
		port:   c.port,
		path:   c.path,
		query:  c.query,
		header: c.header,
		body:   c.body,

		trailers: c.trailers,
	}
}

// HTTPRequest converts the builder into a net/http request. Used by signers
// that operate on *http.Request.
func (b *RequestBuilder) HTTPRequest(ctx context.Context) (*http.Request, error) {
	return newHTTPRequest(ctx, b.method, b.URL(), b.header, b.body, b.trailers)
}

// Request is the finished, immutable request handed to the transport.
type Request struct {
	method string
	scheme string
	host   string
	port   int
	path   string
	query  url.Values
	header http.Header
	body   Body

	trailers trailers
}

func (r *Request) Method() string { return r.method }
func (r *Request) Host() string   { return r.host }
func (r *Request) Path() string   { return r.path }
func (r *Request) Body() Body     { return r.body }

// Header returns a copy of the request headers.
func (r *Request) Header() http.Header { return r.header.Clone() }

func (r *Request) URL() *url.URL {
	return buildURL(r.scheme, r.host, r.port, r.path, r.query)
}

// ToBuilder returns a builder seeded with a copy of this request.
func (r *Request) ToBuilder() *RequestBuilder {
	return &RequestBuilder{
		method: r.method,
		scheme: r.scheme,
		host:   r.host,
		port:   r.port,
		path:   r.path,
		query:  cloneValues(r.query),
		header: r.header.Clone(),
		body:   r.body,

		trailers: r.trailers.clone(),
	}
}

// NewHTTPRequest converts the request for a net/http transport.
func (r *Request) NewHTTPRequest(ctx context.Context) (*http.Request, error) {
	return newHTTPRequest(ctx, r.method, r.URL(), r.header, r.body, r.trailers)
}

// Response is the fully read transport response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// IsSuccess reports a 2xx status.
func (r *Response) IsSuccess() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

func buildURL(scheme, host string, port int, path string, query url.Values) *url.URL {
	u := &url.URL{Scheme: scheme, Host: host, Path: path, RawQuery: query.Encode()}
	if port > 0 {
		u.Host = host + ":" + strconv.Itoa(port)
	}
	return u
}

func newHTTPRequest(ctx context.Context, method string, u *url.URL, header http.Header, body Body, tr trailers) (*http.Request, error) {
	var reader io.Reader
	if !body.IsNone() {
		reader = body.Reader()
	}
	var tracked *trailerReader
	if reader != nil && len(tr) > 0 {
		tracked = tr.wrap(reader)
		reader = tracked
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return nil, err
	}
	req.Header = header.Clone()
	switch {
	case tracked != nil:
		// Trailers are only sent with chunked encoding.
		req.Trailer = tracked.header
		req.ContentLength = -1
		req.Header.Del("Content-Length")
	case !body.IsNone():
		if n := body.Length(); n >= 0 {
			req.ContentLength = n
		}
	}
	return req, nil
}

func cloneValues(v url.Values) url.Values {
	out := make(url.Values, len(v))
	for k, vals := range v {
		out[k] = append([]string(nil), vals...)
	}
	return out
}
