package opflow

import (
	"context"

	runtimepkg "github.com/drblury/opflow/internal/runtime"
	"github.com/drblury/opflow/internal/runtime/auth"
	"github.com/drblury/opflow/internal/runtime/checksum"
	"github.com/drblury/opflow/internal/runtime/codec"
	configpkg "github.com/drblury/opflow/internal/runtime/config"
	"github.com/drblury/opflow/internal/runtime/endpoint"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/httpapi"
	idspkg "github.com/drblury/opflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/metrics"
	"github.com/drblury/opflow/internal/runtime/middleware"
	"github.com/drblury/opflow/internal/runtime/monitoring"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/internal/runtime/retry"
	transportpkg "github.com/drblury/opflow/internal/runtime/transport"
	"github.com/drblury/opflow/internal/runtime/waiter"
	newtransport "github.com/drblury/opflow/transport"
)

type (
	Config             = configpkg.Config
	Client             = runtimepkg.Client
	ClientDependencies = runtimepkg.ClientDependencies
	CallOptions        = runtimepkg.CallOptions
	CallMetadata       = runtimepkg.Metadata
	EndpointParams     = runtimepkg.EndpointParams
	TransportFactory   = transportpkg.Factory
	TransportHandler   = transportpkg.Handler

	Operation[I, O any]       = runtimepkg.Operation[I, O]
	IdempotencyToken[I any]   = runtimepkg.IdempotencyToken[I]
	Stack[I, O any]           = middleware.Stack[I, O]
	OperationContext          = operation.Context
	OperationContextBuilder   = operation.Builder
	Request                   = httpapi.Request
	RequestBuilder            = httpapi.RequestBuilder
	Response                  = httpapi.Response
	Body                      = httpapi.Body
	IdempotencyTokenGenerator = operation.IdempotencyTokenGenerator
	MiddlewareRegistration    = runtimepkg.MiddlewareRegistration
	Registrar                 = runtimepkg.Registrar
	CallMiddleware            = runtimepkg.CallMiddleware
	RequestMiddleware         = runtimepkg.RequestMiddleware
	ResponseMiddleware        = runtimepkg.ResponseMiddleware
	CallHandler               = runtimepkg.CallHandler
	RequestHandler            = runtimepkg.RequestHandler
	ResponseHandler           = runtimepkg.ResponseHandler
	Position                  = middleware.Position
	BodyCodec                 = codec.BodyCodec
	JSONCodec                 = codec.JSON
	ProtobufCodec             = codec.Protobuf
	ProtoJSONCodec            = codec.ProtoJSON
	JSONRPCCodec              = codec.JSONRPC
	ChecksumAlgorithm         = checksum.Algorithm
	Endpoint                  = endpoint.Endpoint
	EndpointResolver[P any]   = endpoint.Resolver[P]
	AuthScheme                = auth.Scheme
	AuthSchemeResolver        = auth.SchemeResolver
	IdentityResolvers         = auth.IdentityResolvers
	RetryAttemptInfo          = retry.AttemptInfo
	RetryTokenBucket          = retry.TokenBucket
	Waiter[I, O any]          = waiter.Waiter[I, O]
	WaiterOptions             = waiter.Options
	WaiterAcceptor[O any]     = waiter.Acceptor[O]
	CallMetrics               = metrics.CallMetrics
	MonitoringPublisher       = monitoring.Publisher
	AttemptEvent              = monitoring.AttemptEvent
	CallEvent                 = monitoring.CallEvent

	// Call hooks
	AttemptContext = runtimepkg.AttemptContext
	CallHooks      = runtimepkg.CallHooks

	LogFields                 = loggingpkg.LogFields
	ServiceLogger             = loggingpkg.ServiceLogger
	EntryLoggerAdapter[T any] = loggingpkg.EntryLoggerAdapter[T]

	// Error taxonomy
	ErrorKind             = errspkg.Kind
	SerializationError    = errspkg.SerializationError
	TransportError        = errspkg.TransportError
	AuthError             = errspkg.AuthError
	ServiceError          = errspkg.ServiceError
	ThrottlingError       = errspkg.ThrottlingError
	CancellationError     = errspkg.CancellationError
	ConfigValidationError = errspkg.ConfigValidationError

	// Transport engines
	TransportBuilder      = newtransport.Builder
	TransportConfig       = newtransport.Config
	TransportRegistry     = newtransport.Registry
	TransportCapabilities = newtransport.Capabilities
)

var (
	NewClient      = runtimepkg.NewClient
	ValidateConfig = configpkg.ValidateConfig

	DefaultMiddlewares        = runtimepkg.DefaultMiddlewares
	TracingMiddleware         = runtimepkg.TracingMiddleware
	MetricsMiddleware         = runtimepkg.MetricsMiddleware
	MonitoringMiddleware      = runtimepkg.MonitoringMiddleware
	InvocationIDMiddleware    = runtimepkg.InvocationIDMiddleware
	UserAgentMiddleware       = runtimepkg.UserAgentMiddleware
	ResponseLoggingMiddleware = runtimepkg.ResponseLoggingMiddleware
	NewCallMiddleware         = runtimepkg.NewCallMiddleware
	NewRequestMiddleware      = runtimepkg.NewRequestMiddleware
	NewResponseMiddleware     = runtimepkg.NewResponseMiddleware
	Front                     = middleware.Front
	Back                      = middleware.Back
	Before                    = middleware.Before
	After                     = middleware.After

	// Call hooks
	HooksMiddleware = runtimepkg.HooksMiddleware
	LoggingHooks    = runtimepkg.LoggingHooks
	AlertingHooks   = runtimepkg.AlertingHooks

	DeserializeServiceError = runtimepkg.DeserializeServiceError
	RequestID               = runtimepkg.RequestID

	NewDataBody   = httpapi.NewDataBody
	NewStreamBody = httpapi.NewStreamBody

	ParseEndpoint = endpoint.Parse

	NewSigV4Scheme                   = auth.NewSigV4Scheme
	NewBearerScheme                  = auth.NewBearerScheme
	NewAPIKeyScheme                  = auth.NewAPIKeyScheme
	NewNoAuthScheme                  = auth.NewNoAuthScheme
	NewStaticSchemeResolver          = auth.NewStaticSchemeResolver
	NewStaticAWSCredentialsResolver  = auth.NewStaticAWSCredentialsResolver
	NewDefaultAWSCredentialsResolver = auth.NewDefaultAWSCredentialsResolver
	NewStaticBearerTokenResolver     = auth.NewStaticBearerTokenResolver

	NewTokenBucket = retry.NewTokenBucket
	NewCallMetrics = metrics.New

	NewChannelMonitor = monitoring.NewChannelPublisher
	NewMonitor        = monitoring.NewPublisher

	DefaultTransportRegistry = newtransport.DefaultRegistry
	RegisterTransport        = newtransport.Register
	BuildTransport           = newtransport.Build
	DefaultTransportFactory  = transportpkg.DefaultFactory

	Marshal       = codec.Marshal
	MarshalIndent = codec.MarshalIndent
	Unmarshal     = codec.Unmarshal
	Encode        = codec.Encode
	Decode        = codec.Decode

	Classify     = errspkg.Classify
	IsRetryable  = errspkg.IsRetryable
	IsThrottling = errspkg.IsThrottling
	RetryAfter   = errspkg.RetryAfter

	ErrConfigRequired           = errspkg.ErrConfigRequired
	ErrClientRequired           = errspkg.ErrClientRequired
	ErrTransportRequired        = errspkg.ErrTransportRequired
	ErrOperationNameRequired    = errspkg.ErrOperationNameRequired
	ErrEndpointResolverRequired = errspkg.ErrEndpointResolverRequired
	ErrMiddlewareNotFound       = errspkg.ErrMiddlewareNotFound
	ErrDuplicateMiddleware      = errspkg.ErrDuplicateMiddleware
	ErrWaiterTimeout            = waiter.ErrWaiterTimeout

	NewSlogServiceLogger      = loggingpkg.NewSlogServiceLogger
	NewWatermillServiceLogger = loggingpkg.NewWatermillServiceLogger

	NewInvocationID = idspkg.NewInvocationID
)

// Checksum algorithms.
const (
	ChecksumCRC32     = checksum.CRC32
	ChecksumCRC32C    = checksum.CRC32C
	ChecksumCRC64NVME = checksum.CRC64NVME
	ChecksumSHA1      = checksum.SHA1
	ChecksumSHA256    = checksum.SHA256
)

// Error kinds returned by Classify.
const (
	ErrorKindUnknown       = errspkg.KindUnknown
	ErrorKindSerialization = errspkg.KindSerialization
	ErrorKindTransport     = errspkg.KindTransport
	ErrorKindAuth          = errspkg.KindAuth
	ErrorKindService       = errspkg.KindService
	ErrorKindThrottling    = errspkg.KindThrottling
	ErrorKindCancellation  = errspkg.KindCancellation
)

// Waiter states.
const (
	WaiterSuccess = waiter.Success
	WaiterFailure = waiter.Failure
	WaiterRetry   = waiter.Retry
)

const Version = runtimepkg.Version

func Invoke[I, O any](ctx context.Context, c *Client, op Operation[I, O], in I, optFns ...func(*CallOptions)) (O, CallMetadata, error) {
	return runtimepkg.Invoke(ctx, c, op, in, optFns...)
}

func NewWaiter[I, O any](c *Client, op Operation[I, O], opts WaiterOptions, acceptors ...WaiterAcceptor[O]) (*Waiter[I, O], error) {
	return runtimepkg.NewWaiter(c, op, opts, acceptors...)
}

func OnOutput[O any](state waiter.State, fn func(O) bool) WaiterAcceptor[O] {
	return waiter.OnOutput(state, fn)
}

func OnErrorCode[O any](state waiter.State, code string) WaiterAcceptor[O] {
	return waiter.OnErrorCode[O](state, code)
}

func StaticEndpoint[P any](ep Endpoint) EndpointResolver[P] {
	return endpoint.Static[P](ep)
}

func NewEntryServiceLogger[T EntryLoggerAdapter[T]](entry T) ServiceLogger {
	return loggingpkg.NewEntryServiceLogger(entry)
}
