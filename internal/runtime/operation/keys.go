package operation

import (
	"time"

	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
)

// IdempotencyTokenGenerator produces tokens for idempotent operation members.
type IdempotencyTokenGenerator interface {
	IdempotencyToken() (string, error)
}

// Core attribute keys read by the standard middleware.
var (
	OperationNameKey     = NewKey[string]("OperationName")
	ServiceNameKey       = NewKey[string]("ServiceName")
	MethodKey            = NewKey[string]("Method")
	PathKey              = NewKey[string]("Path")
	HostKey              = NewKey[string]("Host")
	HostPrefixKey        = NewKey[string]("HostPrefix")
	RegionKey            = NewKey[string]("Region")
	SigningNameKey       = NewKey[string]("SigningName")
	SigningRegionKey     = NewKey[string]("SigningRegion")
	PartitionIDKey       = NewKey[string]("PartitionID")
	InvocationIDKey      = NewKey[string]("InvocationID")
	RequestIDKey         = NewKey[string]("RequestID")
	AttemptCountKey      = NewKey[int]("AttemptCount")
	ExpirationKey        = NewKey[time.Duration]("Expiration")
	LoggerKey            = NewKey[loggingpkg.ServiceLogger]("Logger")
	IdempotencyTokensKey = NewKey[IdempotencyTokenGenerator]("IdempotencyTokenGenerator")
)

func (c *Context) OperationName() string { return Value(c, OperationNameKey) }
func (c *Context) ServiceName() string   { return Value(c, ServiceNameKey) }
func (c *Context) Method() string        { return Value(c, MethodKey) }
func (c *Context) Path() string          { return Value(c, PathKey) }
func (c *Context) Host() string          { return Value(c, HostKey) }
func (c *Context) HostPrefix() string    { return Value(c, HostPrefixKey) }
func (c *Context) Region() string        { return Value(c, RegionKey) }
func (c *Context) SigningName() string   { return Value(c, SigningNameKey) }
func (c *Context) SigningRegion() string { return Value(c, SigningRegionKey) }
func (c *Context) PartitionID() string   { return Value(c, PartitionIDKey) }
func (c *Context) InvocationID() string  { return Value(c, InvocationIDKey) }
func (c *Context) RequestID() string     { return Value(c, RequestIDKey) }
func (c *Context) AttemptCount() int     { return Value(c, AttemptCountKey) }

// SetPath replaces the request path. Used by URL path middleware.
func (c *Context) SetPath(path string) { Set(c, PathKey, path) }

// SetAttemptCount records how many attempts have been made so far.
func (c *Context) SetAttemptCount(n int) { Set(c, AttemptCountKey, n) }

// SetRequestID records the service-assigned request id of the last response.
func (c *Context) SetRequestID(id string) { Set(c, RequestIDKey, id) }

// Logger returns the call logger or a no-op logger when none was configured.
func (c *Context) Logger() loggingpkg.ServiceLogger {
	if l, ok := Get(c, LoggerKey); ok && l != nil {
		return l
	}
	return loggingpkg.NopLogger()
}

// IdempotencyTokenGenerator returns the configured generator, if any.
func (c *Context) IdempotencyTokenGenerator() (IdempotencyTokenGenerator, bool) {
	g, ok := Get(c, IdempotencyTokensKey)
	return g, ok && g != nil
}
