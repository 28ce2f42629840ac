package operation

import (
	"net/http"
	"strings"

	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

// Builder accumulates attributes before a call. Build copies them into a new
// Context, so a Builder may be reused for later calls.
type Builder struct {
	attrs map[*keyID]any
}

// NewBuilder returns a builder seeded with a GET method.
func NewBuilder() *Builder {
	b := &Builder{attrs: make(map[*keyID]any)}
	return With(b, MethodKey, http.MethodGet)
}

// With stores v under k and returns the builder for chaining.
func With[T any](b *Builder, k Key[T], v T) *Builder {
	if k.id != nil {
		b.attrs[k.id] = v
	}
	return b
}

// Without removes the value stored under k.
func Without[T any](b *Builder, k Key[T]) *Builder {
	if k.id != nil {
		delete(b.attrs, k.id)
	}
	return b
}

// Lookup returns the value accumulated under k.
func Lookup[T any](b *Builder, k Key[T]) (T, bool) {
	v, ok := b.attrs[k.id].(T)
	return v, ok
}

func (b *Builder) WithOperation(name string) *Builder   { return With(b, OperationNameKey, name) }
func (b *Builder) WithServiceName(name string) *Builder { return With(b, ServiceNameKey, name) }
func (b *Builder) WithPath(path string) *Builder        { return With(b, PathKey, path) }
func (b *Builder) WithHost(host string) *Builder        { return With(b, HostKey, host) }
func (b *Builder) WithHostPrefix(prefix string) *Builder {
	return With(b, HostPrefixKey, prefix)
}
func (b *Builder) WithRegion(region string) *Builder        { return With(b, RegionKey, region) }
func (b *Builder) WithSigningName(name string) *Builder     { return With(b, SigningNameKey, name) }
func (b *Builder) WithSigningRegion(region string) *Builder { return With(b, SigningRegionKey, region) }
func (b *Builder) WithPartitionID(id string) *Builder       { return With(b, PartitionIDKey, id) }
func (b *Builder) WithInvocationID(id string) *Builder      { return With(b, InvocationIDKey, id) }

// WithMethod sets the HTTP method, normalised to upper case.
func (b *Builder) WithMethod(method string) *Builder {
	return With(b, MethodKey, strings.ToUpper(method))
}

func (b *Builder) WithLogger(logger loggingpkg.ServiceLogger) *Builder {
	return With(b, LoggerKey, logger)
}

func (b *Builder) WithIdempotencyTokenGenerator(g IdempotencyTokenGenerator) *Builder {
	return With(b, IdempotencyTokensKey, g)
}

// Build returns a new Context holding a copy of the accumulated attributes.
func (b *Builder) Build() *Context {
	attrs := make(map[*keyID]any, len(b.attrs))
	for k, v := range b.attrs {
		attrs[k] = v
	}
	return newContext(attrs)
}
