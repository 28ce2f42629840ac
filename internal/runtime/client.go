package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/drblury/opflow/internal/runtime/auth"
	configpkg "github.com/drblury/opflow/internal/runtime/config"
	"github.com/drblury/opflow/internal/runtime/endpoint"
	errspkg "github.com/drblury/opflow/internal/runtime/errors"
	"github.com/drblury/opflow/internal/runtime/ids"
	loggingpkg "github.com/drblury/opflow/internal/runtime/logging"
	"github.com/drblury/opflow/internal/runtime/metrics"
	"github.com/drblury/opflow/internal/runtime/monitoring"
	"github.com/drblury/opflow/internal/runtime/operation"
	"github.com/drblury/opflow/internal/runtime/retry"
	transportpkg "github.com/drblury/opflow/internal/runtime/transport"
)

// EndpointParams are the inputs of endpoint resolution for one call.
type EndpointParams struct {
	ServiceName string
	Region      string
	Operation   string
}

// ClientDependencies holds the optional collaborators of a Client. Leave
// fields nil to use the defaults derived from the configuration.
type ClientDependencies struct {
	// Transport overrides the engine built by TransportFactory.
	Transport        transportpkg.Handler
	TransportFactory transportpkg.Factory

	SchemeResolver    auth.SchemeResolver
	Schemes           []auth.Scheme
	IdentityResolvers auth.IdentityResolvers
	EndpointResolver  endpoint.Resolver[EndpointParams]
	TokenGenerator    operation.IdempotencyTokenGenerator

	// Metrics replaces the collectors created when metrics are enabled.
	Metrics           *metrics.CallMetrics
	MetricsRegisterer prometheus.Registerer
	// Monitor replaces the in-process publisher created for MonitoringTopic.
	Monitor *monitoring.Publisher

	Hooks                     CallHooks
	Middlewares               []MiddlewareRegistration // Appended after the default middleware chain.
	DisableDefaultMiddlewares bool                     // Skips registering the default middleware chain when true.
}

// Client holds everything shared by the calls of one service client.
type Client struct {
	conf   configpkg.Config
	logger loggingpkg.ServiceLogger

	transport transportpkg.Handler
	registrar *Registrar

	schemeResolver    auth.SchemeResolver
	schemes           []auth.Scheme
	identityResolvers auth.IdentityResolvers
	endpointResolver  endpoint.Resolver[EndpointParams]
	tokenGenerator    operation.IdempotencyTokenGenerator

	retryOptions retry.Options
	bucket       *retry.TokenBucket

	metrics    *metrics.CallMetrics
	monitor    *monitoring.Publisher
	subscriber message.Subscriber

	closeOnce sync.Once
}

// NewClient validates conf and wires a client for it. The configuration is
// copied, so later changes by the caller have no effect.
func NewClient(ctx context.Context, conf *configpkg.Config, log loggingpkg.ServiceLogger, deps ClientDependencies) (*Client, error) {
	if conf == nil {
		return nil, errspkg.ErrConfigRequired
	}
	if err := conf.Validate(); err != nil {
		return nil, errspkg.ConfigValidationError{Err: err}
	}
	if log == nil {
		log = loggingpkg.NopLogger()
	}

	c := &Client{
		conf:           conf.WithDefaults(),
		logger:         log.With(loggingpkg.LogFields{"service": conf.ServiceName}),
		schemeResolver: deps.SchemeResolver,
		schemes:        deps.Schemes,
		tokenGenerator: deps.TokenGenerator,
	}
	c.logger.Info("Creating service client", loggingpkg.LogFields{"config": c.conf})

	if c.schemeResolver == nil {
		c.schemeResolver = auth.NewStaticSchemeResolver(
			auth.SchemeIDSigV4, auth.SchemeIDBearer, auth.SchemeIDAPIKey, auth.SchemeIDNoAuth)
	}
	if len(c.schemes) == 0 {
		c.schemes = []auth.Scheme{
			auth.NewSigV4Scheme(), auth.NewSigV4AScheme(), auth.NewBearerScheme(),
			auth.NewAPIKeyScheme(), auth.NewNoAuthScheme(),
		}
	}
	if c.tokenGenerator == nil {
		c.tokenGenerator = ids.UUIDTokenGenerator{}
	}

	var err error
	if c.identityResolvers, err = c.buildIdentityResolvers(ctx, deps.IdentityResolvers); err != nil {
		return nil, err
	}
	if c.endpointResolver, err = c.buildEndpointResolver(deps.EndpointResolver); err != nil {
		return nil, err
	}
	if err := c.buildObservability(deps); err != nil {
		return nil, err
	}
	if c.transport, err = c.buildTransport(ctx, deps); err != nil {
		return nil, err
	}

	c.retryOptions = retry.Options{
		MinDelay:    c.conf.RetryMinDelay,
		MaxDelay:    c.conf.RetryMaxDelay,
		MaxWaitTime: c.conf.RetryMaxWaitTime,
		BucketConfig: retry.TokenBucketConfig{
			Capacity:  c.conf.RetryBucketCapacity,
			RetryCost: c.conf.RetryCost,
		},
	}
	if c.conf.SharedRetryQuota {
		c.bucket = retry.NewTokenBucket(c.retryOptions.BucketConfig)
		c.retryOptions.Bucket = c.bucket
	}

	var defaults []MiddlewareRegistration
	if !deps.DisableDefaultMiddlewares {
		defaults = DefaultMiddlewares()
	}
	registrations := make([]MiddlewareRegistration, 0, len(defaults)+len(deps.Middlewares)+1)
	registrations = append(registrations, defaults...)
	if !deps.Hooks.IsZero() {
		registrations = append(registrations, HooksMiddleware(deps.Hooks))
	}
	registrations = append(registrations, deps.Middlewares...)
	if c.registrar, err = c.registerMiddlewares(registrations); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Client) buildIdentityResolvers(ctx context.Context, given auth.IdentityResolvers) (auth.IdentityResolvers, error) {
	resolvers := auth.IdentityResolvers{}
	switch {
	case c.conf.AWSAccessKeyID != "":
		resolvers[auth.IdentityAWS] = auth.NewStaticAWSCredentialsResolver(
			c.conf.AWSAccessKeyID, c.conf.AWSSecretAccessKey, c.conf.AWSSessionToken)
	case c.conf.UseDefaultCredentialChain:
		r, err := auth.NewDefaultAWSCredentialsResolver(ctx, c.conf.Region)
		if err != nil {
			return nil, fmt.Errorf("failed to load default aws credentials: %w", err)
		}
		resolvers[auth.IdentityAWS] = r
	}
	if c.conf.BearerToken != "" {
		resolvers[auth.IdentityBearer] = auth.NewStaticBearerTokenResolver(c.conf.BearerToken)
	}
	if c.conf.APIKey != "" {
		resolvers[auth.IdentityAPIKey] = &auth.APIKeyResolver{Key: c.conf.APIKey}
	}
	for kind, r := range given {
		resolvers[kind] = r
	}
	return resolvers, nil
}

func (c *Client) buildEndpointResolver(given endpoint.Resolver[EndpointParams]) (endpoint.Resolver[EndpointParams], error) {
	if given != nil {
		return given, nil
	}
	if c.conf.EndpointURL == "" {
		// Calls fail with ErrEndpointResolverRequired until one is supplied.
		return nil, nil
	}
	ep, err := endpoint.Parse(c.conf.EndpointURL)
	if err != nil {
		return nil, err
	}
	return endpoint.Static[EndpointParams](ep), nil
}

func (c *Client) buildObservability(deps ClientDependencies) error {
	c.metrics = deps.Metrics
	if c.metrics == nil && c.conf.MetricsEnabled {
		c.metrics = metrics.New(c.conf.MetricsNamespace, deps.MetricsRegisterer)
		if err := c.metrics.Register(); err != nil {
			return fmt.Errorf("failed to register client metrics: %w", err)
		}
	}

	c.monitor = deps.Monitor
	if c.monitor == nil && c.conf.MonitoringTopic != "" {
		pub, channel := monitoring.NewChannelPublisher(c.conf.MonitoringTopic, c.logger)
		c.monitor = pub
		c.subscriber = channel
	}
	return nil
}

func (c *Client) buildTransport(ctx context.Context, deps ClientDependencies) (transportpkg.Handler, error) {
	if deps.Transport != nil {
		return deps.Transport, nil
	}
	factory := deps.TransportFactory
	if factory == nil {
		factory = transportpkg.DefaultFactory()
	}
	h, err := factory.Build(ctx, &c.conf, loggingpkg.NewWatermillAdapter(c.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to build transport %q: %w", c.conf.TransportEngine, err)
	}
	if h == nil {
		return nil, errspkg.ErrTransportRequired
	}
	return h, nil
}

// newContext builds the operation context of one call.
func (c *Client) newContext(name, method, hostPrefix string, opts CallOptions) *operation.Context {
	logger := opts.Logger
	if logger == nil {
		logger = c.logger
	}
	invocationID := ids.NewInvocationID()

	b := operation.NewBuilder().
		WithServiceName(c.conf.ServiceName).
		WithOperation(name).
		WithRegion(opts.Region).
		WithSigningName(c.conf.ServiceName).
		WithSigningRegion(opts.Region).
		WithHostPrefix(hostPrefix).
		WithInvocationID(invocationID).
		WithIdempotencyTokenGenerator(c.tokenGenerator).
		WithLogger(logger.With(loggingpkg.LogFields{
			"operation":     name,
			"invocation_id": invocationID,
		}))
	if method != "" {
		b.WithMethod(method)
	}
	auth.WithSchemeResolver(b, c.schemeResolver)
	auth.WithSchemes(b, c.schemes...)
	auth.WithIdentityResolver(b, auth.IdentityAnonymous, auth.AnonymousResolver{})
	for kind, r := range c.identityResolvers {
		auth.WithIdentityResolver(b, kind, r)
	}
	return b.Build()
}

// Config returns a copy of the effective configuration.
func (c *Client) Config() configpkg.Config { return c.conf }

func (c *Client) Logger() loggingpkg.ServiceLogger { return c.logger }

// Metrics returns the call collectors, nil when metrics are disabled.
func (c *Client) Metrics() *metrics.CallMetrics { return c.metrics }

// Monitor returns the monitoring publisher, nil when monitoring is disabled.
func (c *Client) Monitor() *monitoring.Publisher { return c.monitor }

// MonitoringSubscriber returns the in-process channel monitoring events are
// published to. It is nil unless the client created the publisher itself.
func (c *Client) MonitoringSubscriber() message.Subscriber { return c.subscriber }

// RetryQuota returns the shared retry token bucket, nil unless
// SharedRetryQuota is set.
func (c *Client) RetryQuota() *retry.TokenBucket { return c.bucket }

// Close releases the monitoring publisher and its channel.
func (c *Client) Close() error {
	var errs []error
	c.closeOnce.Do(func() {
		if c.monitor != nil {
			errs = append(errs, c.monitor.Close())
		}
		if closer, ok := c.subscriber.(interface{ Close() error }); ok {
			errs = append(errs, closer.Close())
		}
	})
	return errors.Join(errs...)
}
