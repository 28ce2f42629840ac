/*
Package runtime executes modeled operations against a remote service.

# Architecture Overview

Every call runs through a five-step middleware stack that turns a typed
input into an HTTP request, sends it through a transport engine and turns
the response back into a typed output or a classified error.

# Package Structure

## Client (client.go)

The Client is built once per service and holds what every call shares:
  - Configuration and logger
  - Transport engine (transport/http by default)
  - Auth scheme resolver, schemes and identity resolvers
  - Endpoint resolver
  - Retry options and the optional shared retry quota
  - Metrics collectors and the monitoring publisher

## Operations (operation.go)

Operation describes one modeled operation. Invoke builds a fresh operation
context and stack for every call and adds the standard middleware:

	Initialize:  IdempotencyTokenMiddleware, URLPathMiddleware
	Serialize:   OperationSerializerMiddleware, ContentHeadersMiddleware
	Build:       AuthSchemeMiddleware, EndpointResolverMiddleware, FlexibleChecksumsRequestMiddleware
	Finalize:    RetryMiddleware, SignerMiddleware
	Deserialize: FlexibleChecksumsResponseMiddleware, ErrorMappingMiddleware, OperationDeserializerMiddleware

## Middleware (middleware.go, registrar.go, hooks.go)

Client wide middleware is contributed through MiddlewareRegistration. A
registration receives a Registrar and adds type-erased middleware to the
Initialize, Build, Finalize and Deserialize steps. Default registrations:
  - TracingMiddleware: OpenTelemetry client span per call
  - MetricsMiddleware: Prometheus call, attempt and retry collectors
  - MonitoringMiddleware: call and attempt events on a Watermill publisher
  - InvocationIDMiddleware: invocation id and retry info headers
  - UserAgentMiddleware: User-Agent composition
  - ResponseLoggingMiddleware: debug logging of every response

HooksMiddleware adds per-attempt callbacks for custom alerting.

## Errors (errors.go)

DeserializeServiceError maps non-2xx responses to ServiceError values that
carry the error code, request id and retry hints.

# Subpackages

  - auth: scheme selection, identity resolution and signing
  - checksum: request checksums and response validation
  - codec: payload readers, writers and body codecs
  - config: client configuration with validation
  - endpoint: endpoint resolution and application
  - errors: error taxonomy and classification
  - httpapi: request builder, body and response types
  - ids: invocation ids and idempotency tokens
  - logging: ServiceLogger interface with slog and Watermill adapters
  - metrics: Prometheus collectors
  - middleware: generic handlers, steps and stacks
  - monitoring: call events published through Watermill
  - operation: typed attribute bag of one call
  - retry: scheduler, token bucket and retry middleware
  - transport: transport factory
  - waiter: polling until a terminal state
*/
package runtime
